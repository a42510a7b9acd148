// Package http serves the JSON API.
//
// This file implements query and body parsing shared by the handlers. Query
// parsing errors come back as badRequest; body values that parse but fail
// domain rules come back as core validation errors.

package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"finboard/internal/analytics"
	"finboard/internal/core"
	"finboard/internal/locale"
)

// maxBodyBytes bounds a create request body.
const maxBodyBytes = 64 << 10

// ParseListQuery reads the filter and sort selection of a transaction list.
// sort_by and sort_order are accepted as aliases of sort and order.
func ParseListQuery(q url.Values) (analytics.Query, error) {
	var out analytics.Query
	out.Category = strings.TrimSpace(q.Get("category"))

	if t := strings.TrimSpace(q.Get("type")); t != "" && !strings.EqualFold(t, analytics.All) {
		tt, err := core.ParseTxType(t)
		if err != nil {
			return out, badRequest{msg: "invalid type: must be credit, debit or all"}
		}
		out.Type = tt
	}

	key, err := analytics.ParseSortKey(first(q, "sort", "sort_by"))
	if err != nil {
		return out, badRequest{msg: "invalid sort: must be date, amount or category"}
	}
	order, err := analytics.ParseSortOrder(first(q, "order", "sort_order"))
	if err != nil {
		return out, badRequest{msg: "invalid order: must be asc or desc"}
	}
	out.SortBy, out.SortOrder = key, order
	return out, nil
}

// ParseAnalyticsQuery reads the window and category of an analytics view.
func ParseAnalyticsQuery(q url.Values) (analytics.AnalyticsQuery, error) {
	w, err := analytics.ParseWindow(first(q, "window", "range"))
	if err != nil {
		return analytics.AnalyticsQuery{}, badRequest{msg: "invalid window: must be week, month or year"}
	}
	return analytics.AnalyticsQuery{Window: w, Category: strings.TrimSpace(q.Get("category"))}, nil
}

// ParsePreferences reads currency and locale, falling back to defaults.
func ParsePreferences(q url.Values, defaults locale.Preferences) locale.Preferences {
	return locale.Resolve(locale.Preferences{
		CurrencyCode: q.Get("currency"),
		Locale:       q.Get("locale"),
	}, defaults)
}

func first(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

// RequestBodyParser handles JSON and form-encoded bodies.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most maxBodyBytes of r's body.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	body := bytes.TrimSpace(p.body)
	if len(body) == 0 {
		p.formData = url.Values{}
		return nil
	}
	if body[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(body))
		// Keep numbers as literals so amounts stay exact.
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		p.err = dec.Decode(&p.jsonData)
		return p.err
	}
	p.formData, p.err = url.ParseQuery(string(body))
	return p.err
}

// Get returns a trimmed string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
		return ""
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseNewTransaction builds the create payload from a parsed body. Amount
// may be a JSON number or a string with dot or comma decimals. A missing
// date means today.
func ParseNewTransaction(p *RequestBodyParser) (core.NewTransaction, error) {
	if err := p.Parse(); err != nil {
		return core.NewTransaction{}, badRequest{msg: "malformed request body"}
	}

	t, err := core.ParseTxType(p.Get("type"))
	if err != nil {
		return core.NewTransaction{}, err
	}
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return core.NewTransaction{}, err
	}
	in := core.NewTransaction{
		Type:        t,
		Amount:      amount,
		Description: p.Get("description"),
		Category:    p.Get("category"),
	}
	if ds := p.Get("date"); ds != "" {
		d, err := core.ParseDate(ds)
		if err != nil {
			return core.NewTransaction{}, badRequest{msg: "invalid date: use YYYY-MM-DD"}
		}
		in.Date = d
	}
	return in, nil
}
