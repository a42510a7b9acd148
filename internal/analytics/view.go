package analytics

import (
	"finboard/internal/core"
)

type (
	// Query is the filter and sort selection of a transaction list.
	Query struct {
		Category  string
		Type      core.TxType
		SortBy    SortKey
		SortOrder SortOrder
	}

	DashboardView struct {
		// Summary covers the whole collection, not only the listed rows.
		Summary      Summary
		Filtered     Summary
		Transactions []core.Transaction
		Categories   []string
	}

	AnalyticsQuery struct {
		Window   Window
		Category string
	}

	AnalyticsView struct {
		Window    Window
		Cutoff    core.Date
		Summary   Summary // windowed
		Series    []Bucket
		Breakdown []CategoryShare
	}
)

// FilterAndSort applies the category and type filter of q, then sorts the
// survivors stably by q's key and order.
func FilterAndSort(ts []core.Transaction, q Query) []core.Transaction {
	f := Filter{Category: q.Category, Type: q.Type}
	return Sort(f.Apply(ts), q.SortBy, q.SortOrder)
}

// Dashboard builds the dashboard projection: summary cards over the full
// collection plus the filtered, sorted list.
func Dashboard(ts []core.Transaction, q Query) DashboardView {
	list := FilterAndSort(ts, q)
	return DashboardView{
		Summary:      ComputeSummary(ts),
		Filtered:     ComputeSummary(list),
		Transactions: list,
		Categories:   Categories(ts),
	}
}

// Analytics builds the analytics projection for the window in q relative to
// today.
func Analytics(ts []core.Transaction, q AnalyticsQuery, today core.Date) AnalyticsView {
	w := q.Window
	if w == "" {
		w = Month
	}
	windowed := w.Filter(today, q.Category).Apply(ts)
	return AnalyticsView{
		Window:    w,
		Cutoff:    w.Cutoff(today),
		Summary:   ComputeSummary(windowed),
		Series:    Bucketize(windowed, w),
		Breakdown: CategoryBreakdown(windowed),
	}
}

// Categories returns the default categories followed by any other category
// seen in ts, in first-seen order.
func Categories(ts []core.Transaction) []string {
	seen := make(map[string]bool, len(core.DefaultCategories))
	out := make([]string, 0, len(core.DefaultCategories))
	for _, c := range core.DefaultCategories {
		seen[c] = true
		out = append(out, c)
	}
	for _, tx := range ts {
		if tx.Category == "" || seen[tx.Category] {
			continue
		}
		seen[tx.Category] = true
		out = append(out, tx.Category)
	}
	return out
}
