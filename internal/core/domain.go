package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	Credit TxType = "credit"
	Debit  TxType = "debit"
)

// DateLayout is the wire and storage layout of a Date.
const DateLayout = "2006-01-02"

const MaxDescriptionLength = 200

type (
	TxType string

	// Date is a calendar date. The embedded time is always midnight UTC.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID          string
		UserID      string
		Type        TxType
		Amount      decimal.Decimal
		Description string
		Category    string
		Date        Date
		CreatedAt   time.Time
	}

	// NewTransaction is the user-submitted payload for a transaction that has
	// not been persisted yet.
	NewTransaction struct {
		Type        TxType
		Amount      decimal.Decimal
		Description string
		Category    string
		Date        Date // zero means today
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrNegativeAmount     = errors.New("amount must not be negative")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrEmptyCategory      = errors.New("empty category")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrEmptyUser          = errors.New("empty user id")
)

// DefaultCategories is the closed set offered when recording a transaction.
var DefaultCategories = []string{
	"Food", "Transport", "Shopping", "Entertainment",
	"Bills", "Salary", "Investment", "Other",
}

func (t TxType) IsValid() bool {
	return t == Credit || t == Debit
}

// ParseTxType accepts "credit"/"debit" and the income/expense aliases.
func ParseTxType(s string) (TxType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "credit", "income":
		return Credit, nil
	case "debit", "expense":
		return Debit, nil
	}
	return "", ErrInvalidType
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time-of-day of t, keeping the calendar date as seen in
// t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Today returns the current calendar date in UTC.
func Today() Date {
	return DateOf(time.Now().UTC())
}

// ParseDate parses a YYYY-MM-DD string. Full RFC 3339 timestamps are also
// accepted and truncated to their calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// AddDate mirrors time.Time.AddDate but stays a Date.
func (d Date) AddDate(years, months, days int) Date {
	return DateOf(d.Time.AddDate(years, months, days))
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	return d.UnmarshalText([]byte(s))
}

// IsIncome reports whether the transaction increases the balance.
func (t Transaction) IsIncome() bool {
	return t.Type == Credit
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	return t.input().Validate()
}

func (t Transaction) input() NewTransaction {
	return NewTransaction{
		Type:        t.Type,
		Amount:      t.Amount,
		Description: t.Description,
		Category:    t.Category,
		Date:        t.Date,
	}
}

func (n NewTransaction) Validate() error {
	if !n.Type.IsValid() {
		return ErrInvalidType
	}
	if n.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if len(strings.TrimSpace(n.Description)) == 0 {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(n.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if strings.TrimSpace(n.Category) == "" {
		return ErrEmptyCategory
	}
	if !n.Date.IsZero() {
		if err := n.Date.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Normalize trims the free-text fields and fills a missing date with today.
func (n NewTransaction) Normalize(today Date) NewTransaction {
	n.Description = strings.TrimSpace(n.Description)
	n.Category = strings.TrimSpace(n.Category)
	if n.Date.IsZero() {
		n.Date = today
	}
	return n
}

// IsValidationError reports whether err came from input validation rather
// than from a collaborator.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidDay, ErrInvalidMonth, ErrInvalidAmount, ErrNegativeAmount,
		ErrEmptyDescription, ErrDescriptionTooLong, ErrEmptyCategory,
		ErrInvalidType, ErrEmptyUser,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
