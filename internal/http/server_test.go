package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finboard/internal/analytics"
	"finboard/internal/auth"
	"finboard/internal/board"
	"finboard/internal/core"
	"finboard/internal/ledger"
	"finboard/internal/ledger/memory"
	"finboard/internal/locale"
	"finboard/internal/services"
)

type failingStore struct{ err error }

func (f failingStore) ListTransactions(context.Context, string) ([]core.Transaction, error) {
	return nil, f.err
}

func (f failingStore) CreateTransaction(context.Context, string, core.NewTransaction) (core.Transaction, error) {
	return core.Transaction{}, f.err
}

func (f failingStore) Ping(context.Context) error { return f.err }

func newTestServer(t *testing.T, store ledger.Store) *Server {
	t.Helper()
	boards := board.New(store, board.Config{MaxAge: time.Minute}, nil)
	svc := services.NewTransactionService(store, boards, nil, nil, nil)
	srv := NewServer(":0", svc, Options{
		Authenticate:       auth.New("", true).Middleware,
		RateLimitPerMinute: 1000,
		Preferences:        locale.Preferences{CurrencyCode: "USD", Locale: "en-US"},
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, body, user string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if user != "" {
		req.Header.Set(auth.DevUserHeader, user)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, memory.New())
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" || rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Fatalf("%s missing middleware headers: %v", path, rr.Header())
		}
	}

	down := newTestServer(t, failingStore{err: errors.New("db down")})
	if rr := do(t, down, http.MethodGet, "/readyz", "", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing store: %d", rr.Code)
	}
}

func TestAPIRequiresIdentity(t *testing.T) {
	srv := newTestServer(t, memory.New())
	if rr := do(t, srv, http.MethodGet, "/api/v1/dashboard", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv := newTestServer(t, memory.New())
	tests := []struct {
		name string
		body string
		want int
	}{
		{"negative amount", `{"type":"debit","amount":"-5","description":"x","category":"Food"}`, http.StatusUnprocessableEntity},
		{"empty description", `{"type":"debit","amount":"5","description":"  ","category":"Food"}`, http.StatusUnprocessableEntity},
		{"bad type", `{"type":"transfer","amount":"5","description":"x","category":"Food"}`, http.StatusUnprocessableEntity},
		{"exponent amount", `{"type":"debit","amount":"1e3","description":"x","category":"Food"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"type":"debit","amount":"5","description":"x","category":"Food","date":"03/04/2024"}`, http.StatusBadRequest},
		{"malformed json", `{"type":`, http.StatusBadRequest},
		{"zero amount", `{"type":"debit","amount":0,"description":"Free sample","category":"Food"}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/v1/transactions", tt.body, "u1")
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestDashboardScenario(t *testing.T) {
	srv := newTestServer(t, memory.New())

	rr := do(t, srv, http.MethodGet, "/api/v1/dashboard", "", "u1")
	if rr.Code != http.StatusOK || decode[dashboardResponse](t, rr).State != stateEmpty {
		t.Fatalf("expected empty dashboard, got %d %s", rr.Code, rr.Body.String())
	}

	for _, body := range []string{
		`{"type":"credit","amount":5000,"description":"Pay","category":"Salary","date":"2024-03-25"}`,
		`{"type":"debit","amount":"50","description":"Lunch","category":"Food","date":"2024-03-24"}`,
	} {
		if rr := do(t, srv, http.MethodPost, "/api/v1/transactions", body, "u1"); rr.Code != http.StatusCreated {
			t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
		}
	}

	rr = do(t, srv, http.MethodGet, "/api/v1/dashboard?sort=amount&order=asc&currency=EUR", "", "u1")
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard: %d %s", rr.Code, rr.Body.String())
	}
	got := decode[dashboardResponse](t, rr)
	if got.State != stateReady || len(got.Transactions) != 2 {
		t.Fatalf("unexpected dashboard %+v", got)
	}
	if got.Transactions[0].Description != "Lunch" {
		t.Fatalf("expected amount asc order, got %s first", got.Transactions[0].Description)
	}
	if got.Summary.Formatted.Balance != "€4,950.00" || got.Summary.Formatted.SavingsRate != "99.0%" {
		t.Fatalf("unexpected formatted summary %+v", got.Summary.Formatted)
	}
	if got.Preferences.CurrencyCode != "EUR" {
		t.Fatalf("preferences not applied: %+v", got.Preferences)
	}

	// Another user sees nothing of u1's ledger.
	if other := decode[dashboardResponse](t, do(t, srv, http.MethodGet, "/api/v1/dashboard", "", "u2")); other.State != stateEmpty {
		t.Fatalf("ledgers leaked across users: %+v", other)
	}
}

func TestDashboardUpstreamFailureIsNotEmpty(t *testing.T) {
	srv := newTestServer(t, failingStore{err: ledger.ErrUpstream})
	rr := do(t, srv, http.MethodGet, "/api/v1/dashboard", "", "u1")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	body := decode[errorBody](t, rr)
	if body.State != stateError {
		t.Fatalf("expected error state, got %+v", body)
	}
}

func TestDashboardBreakerOpen(t *testing.T) {
	srv := newTestServer(t, failingStore{err: ledger.ErrUnavailable})
	if rr := do(t, srv, http.MethodGet, "/api/v1/dashboard", "", "u1"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestListTransactionsFilter(t *testing.T) {
	srv := newTestServer(t, memory.New())
	for _, body := range []string{
		`{"type":"debit","amount":"50","description":"Lunch","category":"Food","date":"2024-03-24"}`,
		`{"type":"debit","amount":"20","description":"Bus","category":"Transport","date":"2024-03-23"}`,
		`{"type":"credit","amount":"10","description":"Refund","category":"Food","date":"2024-03-22"}`,
	} {
		do(t, srv, http.MethodPost, "/api/v1/transactions", body, "u1")
	}

	got := decode[listResponse](t, do(t, srv, http.MethodGet, "/api/v1/transactions?category=Food&type=debit", "", "u1"))
	if got.Count != 1 || got.Transactions[0].Description != "Lunch" {
		t.Fatalf("unexpected filter result %+v", got)
	}
	all := decode[listResponse](t, do(t, srv, http.MethodGet, "/api/v1/transactions?category=all&type=all", "", "u1"))
	if all.Count != 3 {
		t.Fatalf("all filter should keep everything, got %d", all.Count)
	}
	if rr := do(t, srv, http.MethodGet, "/api/v1/transactions?sort=size", "", "u1"); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown sort key should be 400, got %d", rr.Code)
	}
}

func TestAnalyticsEndpoint(t *testing.T) {
	srv := newTestServer(t, memory.New())
	today := core.Today()
	body := `{"type":"debit","amount":"30","description":"Cinema","category":"Entertainment","date":"` + today.String() + `"}`
	do(t, srv, http.MethodPost, "/api/v1/transactions", body, "u1")

	rr := do(t, srv, http.MethodGet, "/api/v1/analytics?window=week", "", "u1")
	if rr.Code != http.StatusOK {
		t.Fatalf("analytics: %d %s", rr.Code, rr.Body.String())
	}
	got := decode[analyticsResponse](t, rr)
	if got.Window != analytics.Week || got.Summary.Count != 1 || len(got.Series) != 1 || len(got.Breakdown) != 1 {
		t.Fatalf("unexpected analytics %+v", got)
	}
	if got.Breakdown[0].Percent != "100.0%" {
		t.Fatalf("unexpected share %+v", got.Breakdown[0])
	}
	if rr := do(t, srv, http.MethodGet, "/api/v1/analytics?window=decade", "", "u1"); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown window should be 400, got %d", rr.Code)
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	srv := newTestServer(t, memory.New())
	got := decode[categoriesResponse](t, do(t, srv, http.MethodGet, "/api/v1/categories", "", "u1"))
	if len(got.Categories) != len(core.DefaultCategories) || len(got.Currencies) != 8 {
		t.Fatalf("unexpected categories %+v", got)
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	srv := newTestServer(t, memory.New())
	if rr := do(t, srv, http.MethodGet, "/nope", "", "u1"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, "/api/v1/transactions", "", "u1"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
