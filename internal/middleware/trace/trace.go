package trace

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HeaderRequestID is read from and echoed to clients.
const HeaderRequestID = "X-Request-ID"

type ctxKey struct{}

// Observer receives one call per finished request.
type Observer interface {
	ObserveRequest(route, method string, code int, took time.Duration)
}

type Middleware struct {
	observer Observer
	route    func(*http.Request) string
}

// NewMiddleware builds the tracing middleware. route names the matched
// route for metrics and may be nil, in which case the path is used.
func NewMiddleware(observer Observer, route func(*http.Request) string) *Middleware {
	return &Middleware{observer: observer, route: route}
}

// Middleware assigns a request id, echoes it in the response and reports
// the request outcome to the observer.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if id == "" || len(id) > 128 {
			id = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, id)
		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, id))

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		if m.observer != nil {
			route := r.URL.Path
			if m.route != nil {
				if name := m.route(r); name != "" {
					route = name
				}
			}
			m.observer.ObserveRequest(route, r.Method, rw.statusCode, time.Since(start))
		}
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func GenerateRequestID() string {
	return uuid.NewString()
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestID is GetRequestID for an *http.Request.
func RequestID(r *http.Request) string {
	return GetRequestID(r.Context())
}
