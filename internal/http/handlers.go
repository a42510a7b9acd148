package http

import (
	"net/http"

	"finboard/internal/analytics"
	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/locale"
	flog "finboard/internal/log"
)

const (
	stateReady = "ready"
	stateEmpty = "empty"
	stateError = "error"
)

type listResponse struct {
	Transactions []transactionDTO   `json:"transactions"`
	Count        int                `json:"count"`
	Preferences  locale.Preferences `json:"preferences"`
}

type dashboardResponse struct {
	State        string             `json:"state"`
	Summary      summaryDTO         `json:"summary"`
	Filtered     summaryDTO         `json:"filtered"`
	Transactions []transactionDTO   `json:"transactions"`
	Categories   []string           `json:"categories"`
	Preferences  locale.Preferences `json:"preferences"`
}

type analyticsResponse struct {
	State       string             `json:"state"`
	Window      analytics.Window   `json:"window"`
	Cutoff      core.Date          `json:"cutoff"`
	Summary     summaryDTO         `json:"summary"`
	Series      []bucketDTO        `json:"series"`
	Breakdown   []shareDTO         `json:"breakdown"`
	Preferences locale.Preferences `json:"preferences"`
}

type categoriesResponse struct {
	Categories []string `json:"categories"`
	Currencies []string `json:"currencies"`
	Languages  []string `json:"languages"`
}

// formatter resolves the request's display preferences.
func (s *Server) formatter(r *http.Request) *locale.Formatter {
	return locale.MustFormatter(ParsePreferences(r.URL.Query(), s.prefs))
}

func state(empty bool) string {
	if empty {
		return stateEmpty
	}
	return stateReady
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, flog.OpList, err, "")
		return
	}
	q, err := ParseListQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, flog.OpList, err, "")
		return
	}
	ts, err := s.svc.Transactions(r.Context(), userID, q)
	if err != nil {
		writeError(w, r, flog.OpList, err, stateError)
		return
	}
	f := s.formatter(r)
	NewJSONResponse().Body(listResponse{
		Transactions: toTransactionDTOs(ts, f),
		Count:        len(ts),
		Preferences:  f.Preferences(),
	}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, flog.OpCreate, err, "")
		return
	}
	in, err := ParseNewTransaction(NewRequestBodyParser(w, r))
	if err != nil {
		writeError(w, r, flog.OpCreate, err, "")
		return
	}
	tx, err := s.svc.CreateTransaction(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, flog.OpCreate, err, "")
		return
	}

	fields := flog.NewFields().
		WithOperation(flog.OpCreate).
		WithUser(userID).
		WithTransaction(tx.ID, string(tx.Type), tx.Amount.String(), tx.Category)
	flog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created", fields.ToSlice()...)

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(toTransactionDTO(tx, s.formatter(r))).
		Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, flog.OpDashboard, err, "")
		return
	}
	q, err := ParseListQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, flog.OpDashboard, err, "")
		return
	}
	res, err := s.svc.Dashboard(r.Context(), userID, q)
	if err != nil {
		// A failed load is reported as an error state, never as an empty
		// dashboard.
		writeError(w, r, flog.OpDashboard, err, stateError)
		return
	}
	f := s.formatter(r)
	NewJSONResponse().Body(dashboardResponse{
		State:        state(res.Empty),
		Summary:      toSummaryDTO(res.View.Summary, f),
		Filtered:     toSummaryDTO(res.View.Filtered, f),
		Transactions: toTransactionDTOs(res.View.Transactions, f),
		Categories:   res.View.Categories,
		Preferences:  f.Preferences(),
	}).Write(w)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, flog.OpAnalytics, err, "")
		return
	}
	q, err := ParseAnalyticsQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, flog.OpAnalytics, err, "")
		return
	}
	res, err := s.svc.Analytics(r.Context(), userID, q)
	if err != nil {
		writeError(w, r, flog.OpAnalytics, err, stateError)
		return
	}
	f := s.formatter(r)
	NewJSONResponse().Body(analyticsResponse{
		State:       state(res.Empty),
		Window:      res.View.Window,
		Cutoff:      res.View.Cutoff,
		Summary:     toSummaryDTO(res.View.Summary, f),
		Series:      toBucketDTOs(res.View.Series, f),
		Breakdown:   toShareDTOs(res.View.Breakdown, f),
		Preferences: f.Preferences(),
	}).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, flog.OpList, err, "")
		return
	}
	cats, err := s.svc.Categories(r.Context(), userID)
	if err != nil {
		writeError(w, r, flog.OpList, err, stateError)
		return
	}
	NewJSONResponse().Body(categoriesResponse{
		Categories: cats,
		Currencies: locale.SupportedCurrencies,
		Languages:  locale.SupportedLanguages,
	}).Write(w)
}
