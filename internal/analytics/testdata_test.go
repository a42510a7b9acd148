package analytics

import (
	"fmt"
	"math/rand"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

func tx(id string, typ core.TxType, amount, category, date string) core.Transaction {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Transaction{
		ID:          id,
		UserID:      "user-1",
		Type:        typ,
		Amount:      decimal.RequireFromString(amount),
		Description: category + " " + id,
		Category:    category,
		Date:        d,
	}
}

func scenarioA() []core.Transaction {
	return []core.Transaction{
		tx("1", core.Credit, "5000", "Salary", "2024-03-25"),
		tx("2", core.Debit, "50", "Food", "2024-03-24"),
	}
}

// randomTransactions builds a reproducible collection with plenty of ties on
// every sort key.
func randomTransactions(seed int64, n int) []core.Transaction {
	r := rand.New(rand.NewSource(seed))
	cats := []string{"Food", "Bills", "Salary", "food", "Other"}
	out := make([]core.Transaction, 0, n)
	for i := 0; i < n; i++ {
		typ := core.Debit
		if r.Intn(3) == 0 {
			typ = core.Credit
		}
		cents := r.Intn(5) * 1250
		date := core.NewDate(2023+r.Intn(2), 1+r.Intn(12), 1+r.Intn(28))
		out = append(out, core.Transaction{
			ID:          fmt.Sprintf("t%03d", i),
			UserID:      "user-1",
			Type:        typ,
			Amount:      decimal.New(int64(cents), -2),
			Description: "generated",
			Category:    cats[r.Intn(len(cats))],
			Date:        date,
		})
	}
	return out
}

func ids(ts []core.Transaction) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}
