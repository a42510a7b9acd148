package analytics

import (
	"fmt"
	"slices"
	"strings"

	"finboard/internal/core"
)

const (
	SortByDate     SortKey = "date"
	SortByAmount   SortKey = "amount"
	SortByCategory SortKey = "category"

	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

type (
	SortKey   string
	SortOrder string

	// Comparator orders two transactions the way slices.SortStableFunc
	// expects.
	Comparator func(a, b core.Transaction) int
)

// ParseSortKey maps user input to a SortKey. Empty input means SortByDate.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortByDate, nil
	case SortByDate, SortByAmount, SortByCategory:
		return k, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// ParseSortOrder maps user input to a SortOrder. Empty input means Desc.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return Desc, nil
	case Asc, Desc:
		return o, nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

// NewComparator builds the comparator for key and order. Unknown keys
// fall back to date and unknown orders to ascending.
func NewComparator(key SortKey, order SortOrder) Comparator {
	var cmp Comparator
	switch key {
	case SortByAmount:
		cmp = func(a, b core.Transaction) int { return a.Amount.Cmp(b.Amount) }
	case SortByCategory:
		// Byte-wise, so "Zoo" sorts before "apple".
		cmp = func(a, b core.Transaction) int { return strings.Compare(a.Category, b.Category) }
	default:
		cmp = func(a, b core.Transaction) int {
			return core.DateOf(a.Date.Time).Compare(core.DateOf(b.Date.Time).Time)
		}
	}
	if order == Desc {
		asc := cmp
		cmp = func(a, b core.Transaction) int { return -asc(a, b) }
	}
	return cmp
}

// Sort returns a stably sorted copy of ts. Transactions with equal keys keep
// their input order whatever the direction.
func Sort(ts []core.Transaction, key SortKey, order SortOrder) []core.Transaction {
	out := slices.Clone(ts)
	if out == nil {
		out = []core.Transaction{}
	}
	slices.SortStableFunc(out, NewComparator(key, order))
	return out
}
