package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finboard/internal/core"

	"github.com/sony/gobreaker"
)

// BreakerConfig tunes the circuit breaker in front of the persistence
// collaborator.
type BreakerConfig struct {
	Name                string
	MaxRequests         uint32        // allowed in half-open state
	Interval            time.Duration // closed-state counter reset, 0 never resets
	OpenTimeout         time.Duration // how long the breaker stays open
	ConsecutiveFailures uint32        // failures that trip the breaker
	CallTimeout         time.Duration // per call, 0 disables
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "ledger",
		MaxRequests:         1,
		Interval:            time.Minute,
		OpenTimeout:         30 * time.Second,
		ConsecutiveFailures: 5,
		CallTimeout:         7 * time.Second,
	}
}

// ResilientStore guards a Store with a per-call timeout and a circuit
// breaker. Every upstream error comes back wrapped in ErrUpstream, and calls
// rejected by an open breaker return ErrUnavailable.
type ResilientStore struct {
	next     Store
	cb       *gobreaker.CircuitBreaker
	timeout  time.Duration
	recorder Recorder
	logger   *slog.Logger
}

func NewResilientStore(next Store, cfg BreakerConfig, recorder Recorder, logger *slog.Logger) *ResilientStore {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	rs := &ResilientStore{next: next, timeout: cfg.CallTimeout, recorder: recorder, logger: logger}
	rs.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			// Rejected input says nothing about upstream health.
			return err == nil || core.IsValidationError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			recorder.BreakerState(name, to.String())
		},
	})
	recorder.BreakerState(cfg.Name, gobreaker.StateClosed.String())
	return rs
}

// State reports the breaker state ("closed", "half-open" or "open").
func (rs *ResilientStore) State() string {
	return rs.cb.State().String()
}

func (rs *ResilientStore) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	out, err := rs.execute(ctx, "list", func(ctx context.Context) (any, error) {
		return rs.next.ListTransactions(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return out.([]core.Transaction), nil
}

func (rs *ResilientStore) CreateTransaction(ctx context.Context, userID string, in core.NewTransaction) (core.Transaction, error) {
	out, err := rs.execute(ctx, "create", func(ctx context.Context) (any, error) {
		return rs.next.CreateTransaction(ctx, userID, in)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return out.(core.Transaction), nil
}

func (rs *ResilientStore) Ping(ctx context.Context) error {
	_, err := rs.execute(ctx, "ping", func(ctx context.Context) (any, error) {
		return nil, Ping(ctx, rs.next)
	})
	return err
}

func (rs *ResilientStore) execute(ctx context.Context, op string, fn func(context.Context) (any, error)) (any, error) {
	if rs.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rs.timeout)
		defer cancel()
	}
	start := time.Now()
	out, err := rs.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	rs.recorder.UpstreamCall(op, time.Since(start), err)
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%s: %w", op, ErrUnavailable)
	case core.IsValidationError(err):
		return nil, err
	default:
		rs.logger.ErrorContext(ctx, "Ledger call failed", "op", op, "error", err)
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
	}
}
