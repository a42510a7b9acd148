// Package http serves the JSON API.
//
// This file implements the builder used by every handler to write JSON
// responses and the mapping from errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"finboard/internal/auth"
	"finboard/internal/board"
	"finboard/internal/core"
	"finboard/internal/ledger"
	flog "finboard/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	payload, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
}

type errorBody struct {
	Error string `json:"error"`
	State string `json:"state,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func MethodNotAllowedError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method not allowed")
}

// badRequest marks malformed input that never reached validation.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

// classify maps err to a status code, a client-safe message and a log
// error type.
func classify(err error) (int, string, string) {
	var br badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, br.msg, flog.ErrorTypeValidation
	case core.IsValidationError(err):
		return http.StatusUnprocessableEntity, validationMessage(err), flog.ErrorTypeValidation
	case errors.Is(err, auth.ErrNoUser):
		return http.StatusUnauthorized, "unauthenticated", flog.ErrorTypeAuth
	case errors.Is(err, ledger.ErrUnavailable):
		return http.StatusServiceUnavailable, "ledger temporarily unavailable", flog.ErrorTypeUnavailable
	case errors.Is(err, ledger.ErrUpstream), errors.Is(err, board.ErrNotLoaded):
		return http.StatusBadGateway, "failed to load transactions", flog.ErrorTypeUpstream
	}
	return http.StatusInternalServerError, "internal error", flog.ErrorTypeInternal
}

// validationMessage returns the innermost sentinel's text so clients see
// "amount must not be negative" rather than the wrapping chain.
func validationMessage(err error) string {
	for _, target := range []error{
		core.ErrInvalidDay, core.ErrInvalidMonth, core.ErrInvalidAmount, core.ErrNegativeAmount,
		core.ErrEmptyDescription, core.ErrDescriptionTooLong, core.ErrEmptyCategory,
		core.ErrInvalidType, core.ErrEmptyUser,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

// writeError logs err on the request logger and writes its response. state
// is included in the body when not empty.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error, state string) {
	code, msg, errType := classify(err)
	level := slog.LevelWarn
	if code >= 500 {
		level = slog.LevelError
	}
	fields := flog.NewFields().WithOperation(op).WithError(err, errType)
	flog.FromContext(r.Context()).Log(r.Context(), level, "Request failed", fields.ToSlice()...)
	NewJSONResponse().Status(code).Body(errorBody{Error: msg, State: state}).Write(w)
}
