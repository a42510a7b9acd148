// Package analytics turns a user's transaction collection into the numbers a
// dashboard or an analytics page renders.
//
// Everything in this package is a pure function of its arguments: no I/O, no
// clock reads and no mutation of the input slices. Amounts stay exact
// decimals; rounding belongs to the presentation layer.
package analytics

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

const (
	Week  Window = "week"
	Month Window = "month"
	Year  Window = "year"
)

var hundred = decimal.NewFromInt(100)

type (
	// Window selects how far back from today an analytics view looks.
	Window string

	Summary struct {
		TotalIncome   decimal.Decimal
		TotalExpenses decimal.Decimal
		Balance       decimal.Decimal
		SavingsRate   decimal.Decimal // percent, 0 when there is no income
		Count         int
	}

	// Bucket is one calendar month of a time series.
	Bucket struct {
		Label    string
		Year     int
		Month    time.Month
		Income   decimal.Decimal
		Expenses decimal.Decimal
	}

	CategoryShare struct {
		Category string
		Amount   decimal.Decimal
		Percent  decimal.Decimal // share of total expenses
	}
)

// ParseWindow maps user input to a Window. Empty input means Month.
func ParseWindow(s string) (Window, error) {
	switch w := Window(strings.ToLower(strings.TrimSpace(s))); w {
	case "":
		return Month, nil
	case Week, Month, Year:
		return w, nil
	}
	return "", fmt.Errorf("unknown window %q", s)
}

// Cutoff is the first calendar date included by w when today is today.
func (w Window) Cutoff(today core.Date) core.Date {
	switch w {
	case Week:
		return today.AddDate(0, 0, -7)
	case Year:
		return today.AddDate(-1, 0, 0)
	default:
		return today.AddDate(0, -1, 0)
	}
}

// Filter is the date-range filter equivalent of w, restricted to category
// unless category is empty or All.
func (w Window) Filter(today core.Date, category string) Filter {
	return Filter{Category: category, Start: w.Cutoff(today)}
}

// ComputeSummary sums ts by type. It never fails: an empty collection gives
// an all-zero summary.
func ComputeSummary(ts []core.Transaction) Summary {
	s := Summary{
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
		Count:         len(ts),
	}
	for _, tx := range ts {
		if tx.IsIncome() {
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		} else {
			s.TotalExpenses = s.TotalExpenses.Add(tx.Amount)
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpenses)
	s.SavingsRate = SavingsRate(s.TotalIncome, s.TotalExpenses)
	return s
}

// SavingsRate is (income-expenses)/income*100, or zero without income.
func SavingsRate(income, expenses decimal.Decimal) decimal.Decimal {
	if !income.IsPositive() {
		return decimal.Zero
	}
	return income.Sub(expenses).Mul(hundred).Div(income)
}

// ComputeTimeSeries buckets the transactions inside window w (relative to
// today) by calendar month, oldest first. category restricts the series to
// one category unless it is empty or All.
func ComputeTimeSeries(ts []core.Transaction, w Window, category string, today core.Date) []Bucket {
	return Bucketize(w.Filter(today, category).Apply(ts), w)
}

// Bucketize groups ts by calendar month without any windowing. w only
// decides the label format.
func Bucketize(ts []core.Transaction, w Window) []Bucket {
	type key struct {
		year  int
		month time.Month
	}
	index := make(map[key]int)
	buckets := make([]Bucket, 0)
	for _, tx := range ts {
		k := key{tx.Date.Time.Year(), tx.Date.Time.Month()}
		i, ok := index[k]
		if !ok {
			i = len(buckets)
			index[k] = i
			buckets = append(buckets, Bucket{
				Label:    bucketLabel(k.year, k.month, w),
				Year:     k.year,
				Month:    k.month,
				Income:   decimal.Zero,
				Expenses: decimal.Zero,
			})
		}
		if tx.IsIncome() {
			buckets[i].Income = buckets[i].Income.Add(tx.Amount)
		} else {
			buckets[i].Expenses = buckets[i].Expenses.Add(tx.Amount)
		}
	}
	slices.SortFunc(buckets, func(a, b Bucket) int {
		if a.Year != b.Year {
			return a.Year - b.Year
		}
		return int(a.Month) - int(b.Month)
	})
	return buckets
}

func bucketLabel(year int, month time.Month, w Window) string {
	abbr := month.String()[:3]
	if w == Year {
		return fmt.Sprintf("%s %d", abbr, year)
	}
	return abbr
}

// CategoryBreakdown totals expenses per category, largest first. Ties are
// ordered by category name.
func CategoryBreakdown(ts []core.Transaction) []CategoryShare {
	totals := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, tx := range ts {
		if tx.IsIncome() {
			continue
		}
		totals[tx.Category] = totals[tx.Category].Add(tx.Amount)
		total = total.Add(tx.Amount)
	}
	shares := make([]CategoryShare, 0, len(totals))
	for cat, amt := range totals {
		pct := decimal.Zero
		if total.IsPositive() {
			pct = amt.Mul(hundred).Div(total)
		}
		shares = append(shares, CategoryShare{Category: cat, Amount: amt, Percent: pct})
	}
	slices.SortFunc(shares, func(a, b CategoryShare) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return strings.Compare(a.Category, b.Category)
	})
	return shares
}
