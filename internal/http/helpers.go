package http

import (
	"strings"
	"time"

	"finboard/internal/analytics"
	"finboard/internal/core"
	"finboard/internal/locale"

	"github.com/shopspring/decimal"
)

// sanitizeInput drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

type transactionDTO struct {
	ID              string          `json:"id"`
	Type            core.TxType     `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	AmountFormatted string          `json:"amount_formatted"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	Date            core.Date       `json:"date"`
	CreatedAt       *time.Time      `json:"created_at,omitempty"`
}

type summaryDTO struct {
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	Balance       decimal.Decimal `json:"balance"`
	SavingsRate   decimal.Decimal `json:"savings_rate"`
	Count         int             `json:"count"`
	Formatted     struct {
		TotalIncome   string `json:"total_income"`
		TotalExpenses string `json:"total_expenses"`
		Balance       string `json:"balance"`
		SavingsRate   string `json:"savings_rate"`
	} `json:"formatted"`
}

type bucketDTO struct {
	Label             string          `json:"label"`
	Year              int             `json:"year"`
	Month             int             `json:"month"`
	Income            decimal.Decimal `json:"income"`
	Expenses          decimal.Decimal `json:"expenses"`
	IncomeFormatted   string          `json:"income_formatted"`
	ExpensesFormatted string          `json:"expenses_formatted"`
}

type shareDTO struct {
	Category        string          `json:"category"`
	Amount          decimal.Decimal `json:"amount"`
	AmountFormatted string          `json:"amount_formatted"`
	Percent         string          `json:"percent"`
}

func toTransactionDTO(tx core.Transaction, f *locale.Formatter) transactionDTO {
	dto := transactionDTO{
		ID:              tx.ID,
		Type:            tx.Type,
		Amount:          tx.Amount,
		AmountFormatted: f.Amount(tx.Amount),
		Description:     tx.Description,
		Category:        tx.Category,
		Date:            tx.Date,
	}
	if !tx.CreatedAt.IsZero() {
		created := tx.CreatedAt.UTC()
		dto.CreatedAt = &created
	}
	return dto
}

func toTransactionDTOs(ts []core.Transaction, f *locale.Formatter) []transactionDTO {
	out := make([]transactionDTO, len(ts))
	for i, tx := range ts {
		out[i] = toTransactionDTO(tx, f)
	}
	return out
}

func toSummaryDTO(s analytics.Summary, f *locale.Formatter) summaryDTO {
	dto := summaryDTO{
		TotalIncome:   s.TotalIncome,
		TotalExpenses: s.TotalExpenses,
		Balance:       s.Balance,
		SavingsRate:   s.SavingsRate,
		Count:         s.Count,
	}
	dto.Formatted.TotalIncome = f.Amount(s.TotalIncome)
	dto.Formatted.TotalExpenses = f.Amount(s.TotalExpenses)
	dto.Formatted.Balance = f.Amount(s.Balance)
	dto.Formatted.SavingsRate = f.Percent(s.SavingsRate)
	return dto
}

func toBucketDTOs(bs []analytics.Bucket, f *locale.Formatter) []bucketDTO {
	out := make([]bucketDTO, len(bs))
	for i, b := range bs {
		out[i] = bucketDTO{
			Label:             b.Label,
			Year:              b.Year,
			Month:             int(b.Month),
			Income:            b.Income,
			Expenses:          b.Expenses,
			IncomeFormatted:   f.Amount(b.Income),
			ExpensesFormatted: f.Amount(b.Expenses),
		}
	}
	return out
}

func toShareDTOs(ss []analytics.CategoryShare, f *locale.Formatter) []shareDTO {
	out := make([]shareDTO, len(ss))
	for i, s := range ss {
		out[i] = shareDTO{
			Category:        s.Category,
			Amount:          s.Amount,
			AmountFormatted: f.Amount(s.Amount),
			Percent:         f.Percent(s.Percent),
		}
	}
	return out
}
