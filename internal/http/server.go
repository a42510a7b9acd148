package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"finboard/internal/analytics"
	"finboard/internal/core"
	"finboard/internal/locale"
	flog "finboard/internal/log"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/middleware/security"
	"finboard/internal/middleware/trace"
	"finboard/internal/services"

	"github.com/gorilla/mux"
)

// TransactionService is what the handlers need from the service layer.
type TransactionService interface {
	CreateTransaction(ctx context.Context, userID string, in core.NewTransaction) (core.Transaction, error)
	Transactions(ctx context.Context, userID string, q analytics.Query) ([]core.Transaction, error)
	Dashboard(ctx context.Context, userID string, q analytics.Query) (services.DashboardResult, error)
	Analytics(ctx context.Context, userID string, q analytics.AnalyticsQuery) (services.AnalyticsResult, error)
	Categories(ctx context.Context, userID string) ([]string, error)
	Ping(ctx context.Context) error
}

type Options struct {
	// Authenticate guards every /api/v1 route and stores the user id in the
	// request context.
	Authenticate func(http.Handler) http.Handler
	// Observer receives per-route request outcomes. May be nil.
	Observer trace.Observer
	// MetricsHandler is mounted on /metrics when not nil.
	MetricsHandler     http.Handler
	Logger             *flog.Logger
	RateLimitPerMinute int
	Preferences        locale.Preferences
}

type Server struct {
	http.Server
	svc      TransactionService
	prefs    locale.Preferences
	limiter  *ratelimit.Limiter
	detector *security.Detector

	shutdownOnce sync.Once
}

func NewServer(addr string, svc TransactionService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = flog.New(flog.DefaultConfig())
	}
	if opts.Authenticate == nil {
		opts.Authenticate = func(next http.Handler) http.Handler { return next }
	}
	s := &Server{
		svc:      svc,
		prefs:    locale.Resolve(opts.Preferences, locale.Preferences{}),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: security.NewDetector(),
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError().Write(w)
	})
	r.Use(
		trace.NewMiddleware(opts.Observer, routeTemplate).Middleware,
		flog.Middleware(opts.Logger, trace.RequestID),
		flog.AccessLog(s.detector.ClientIP),
	)

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	if opts.MetricsHandler != nil {
		r.Handle("/metrics", opts.MetricsHandler).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(
		s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
		}),
		opts.Authenticate,
	)
	api.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	api.HandleFunc("/analytics", s.handleAnalytics).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleCategories).Methods(http.MethodGet)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              addr,
		Handler:           headers.Middleware(s.detector.Middleware(r)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// routeTemplate names the matched route for metrics, so ids and query
// strings do not explode label cardinality.
func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return ""
	}
	return tpl
}

// Shutdown stops the background limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// ListenAndServe is http.Server.ListenAndServe that treats a clean shutdown
// as success.
func (s *Server) ListenAndServe() error {
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.svc.Ping(ctx); err != nil {
		flog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", "error", err)
		NewJSONResponse().Status(http.StatusServiceUnavailable).Body(map[string]string{"status": "unavailable"}).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
