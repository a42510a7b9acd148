// Package ledger defines the persistence collaborator of the dashboard and the
// wrappers that make it safe to call from request handlers.
package ledger

import (
	"context"
	"errors"
	"time"

	"finboard/internal/core"
)

var (
	// ErrUpstream marks a failure of the persistence collaborator.
	ErrUpstream = errors.New("ledger upstream failure")
	// ErrUnavailable is returned without calling upstream while the breaker
	// is open.
	ErrUnavailable = errors.New("ledger temporarily unavailable")
)

// Ports for the persistence collaborator.
type (
	Lister interface {
		// ListTransactions returns every transaction owned by userID,
		// most recent first.
		ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
	}

	Creator interface {
		// CreateTransaction persists in for userID and returns the stored
		// record with its assigned ID.
		CreateTransaction(ctx context.Context, userID string, in core.NewTransaction) (core.Transaction, error)
	}

	Store interface {
		Lister
		Creator
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Recorder receives operational signals from the wrappers.
	Recorder interface {
		UpstreamCall(op string, took time.Duration, err error)
		BreakerState(name, state string)
		CacheLookup(layer string, hit bool)
	}
)

// NopRecorder discards every signal.
type NopRecorder struct{}

func (NopRecorder) UpstreamCall(string, time.Duration, error) {}
func (NopRecorder) BreakerState(string, string)               {}
func (NopRecorder) CacheLookup(string, bool)                  {}

// Ping checks s if it can be pinged and reports success otherwise.
func Ping(ctx context.Context, s any) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
