package analytics

import (
	"strings"

	"finboard/internal/core"
)

// All is the sentinel that disables the category or type dimension of a
// Filter.
const All = "all"

// Filter selects transactions by category, type and an inclusive calendar
// date range. Zero values disable a dimension.
type Filter struct {
	Category string      // exact, case-sensitive; "" or All passes
	Type     core.TxType // credit, debit; "" or All passes
	Start    core.Date   // inclusive; zero means unbounded
	End      core.Date   // inclusive; zero means unbounded
}

// Match reports whether tx passes every active dimension of f.
func (f Filter) Match(tx core.Transaction) bool {
	if !isAll(f.Category) && tx.Category != f.Category {
		return false
	}
	if !isAll(string(f.Type)) && tx.Type != f.Type {
		return false
	}
	d := core.DateOf(tx.Date.Time)
	if !f.Start.IsZero() && d.Before(core.DateOf(f.Start.Time)) {
		return false
	}
	if !f.End.IsZero() && d.After(core.DateOf(f.End.Time)) {
		return false
	}
	return true
}

// Apply returns the transactions that match f, in input order. The input
// slice is never modified.
func (f Filter) Apply(ts []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(ts))
	for _, tx := range ts {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	return out
}

func isAll(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, All)
}
