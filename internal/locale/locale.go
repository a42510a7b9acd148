// Package locale renders amounts for people. It is the only place where
// amounts are rounded, and it never keeps preferences in package state:
// every call receives the caller's Preferences.
package locale

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	DefaultCurrency = "USD"
	DefaultLocale   = "en-US"
)

// SupportedCurrencies are the currencies offered in the settings selector.
var SupportedCurrencies = []string{"USD", "EUR", "GBP", "JPY", "INR", "CNY", "AUD", "CAD"}

// symbolAfter lists the supported languages that write the currency symbol
// after the amount, separated by a no-break space ("1.234,50 €").
var symbolAfter = []string{"de", "es", "fr", "it"}

// SupportedLanguages are the interface languages offered in the settings
// selector.
var SupportedLanguages = []string{"en", "es", "fr", "de", "it", "ja", "zh", "hi"}

// Preferences is a user's display configuration.
type Preferences struct {
	CurrencyCode string `json:"currency"`
	Locale       string `json:"locale"`
	Theme        string `json:"theme,omitempty"`
}

// Formatter renders amounts for a resolved set of Preferences.
type Formatter struct {
	prefs   Preferences
	unit    currency.Unit
	tag     language.Tag
	printer *message.Printer
	scale   int
	suffix  bool
}

// Resolve fills empty or unsupported fields of p from fallback, and
// fallback's empty fields from the package defaults.
func Resolve(p, fallback Preferences) Preferences {
	if fallback.CurrencyCode == "" || !IsSupportedCurrency(fallback.CurrencyCode) {
		fallback.CurrencyCode = DefaultCurrency
	}
	if fallback.Locale == "" {
		fallback.Locale = DefaultLocale
	}
	p.CurrencyCode = strings.ToUpper(strings.TrimSpace(p.CurrencyCode))
	if !IsSupportedCurrency(p.CurrencyCode) {
		p.CurrencyCode = strings.ToUpper(fallback.CurrencyCode)
	}
	if _, err := language.Parse(strings.TrimSpace(p.Locale)); err != nil || strings.TrimSpace(p.Locale) == "" {
		p.Locale = fallback.Locale
	}
	if p.Theme == "" {
		p.Theme = fallback.Theme
	}
	return p
}

func IsSupportedCurrency(code string) bool {
	return slices.Contains(SupportedCurrencies, strings.ToUpper(strings.TrimSpace(code)))
}

// NewFormatter validates p and prepares a printer for it.
func NewFormatter(p Preferences) (*Formatter, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(p.CurrencyCode))
	if err != nil {
		return nil, fmt.Errorf("parse currency %q: %w", p.CurrencyCode, err)
	}
	tag, err := language.Parse(strings.TrimSpace(p.Locale))
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", p.Locale, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	base, _ := tag.Base()
	return &Formatter{
		prefs:   p,
		unit:    unit,
		tag:     tag,
		printer: message.NewPrinter(tag),
		scale:   scale,
		suffix:  slices.Contains(symbolAfter, base.String()),
	}, nil
}

// MustFormatter is NewFormatter for preferences already passed through
// Resolve.
func MustFormatter(p Preferences) *Formatter {
	f, err := NewFormatter(p)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Formatter) Preferences() Preferences { return f.prefs }

// Scale is the number of fraction digits of the currency.
func (f *Formatter) Scale() int { return f.scale }

// Symbol is the localized currency symbol, e.g. "$" or "€".
func (f *Formatter) Symbol() string {
	return f.printer.Sprint(currency.Symbol(f.unit))
}

// Amount renders d with the currency's standard rounding, e.g. "$1,234.50"
// or, for locales that put the symbol last, "1.234,50 €".
func (f *Formatter) Amount(d decimal.Decimal) string {
	rounded := d.Round(int32(f.scale))
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	v, _ := rounded.Float64()
	num := f.printer.Sprint(number.Decimal(v, number.Scale(f.scale)))
	if f.suffix {
		return sign + num + "\u00a0" + f.Symbol()
	}
	return sign + f.Symbol() + num
}

// Number renders d with the given number of fraction digits and locale
// grouping, without a currency symbol.
func (f *Formatter) Number(d decimal.Decimal, digits int) string {
	v, _ := d.Round(int32(digits)).Float64()
	return f.printer.Sprint(number.Decimal(v, number.Scale(digits)))
}

// Percent renders a percentage value (99 means 99%) with one decimal.
func (f *Formatter) Percent(d decimal.Decimal) string {
	return f.Number(d, 1) + "%"
}
