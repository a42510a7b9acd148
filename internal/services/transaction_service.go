package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/analytics"
	"finboard/internal/board"
	"finboard/internal/core"
	"finboard/internal/ledger"
)

type (
	// Publisher announces stored transactions to other processes.
	Publisher interface {
		PublishTransactionCreated(ctx context.Context, msg *amqp.TransactionCreatedMessage) error
	}

	// Recorder receives business counters.
	Recorder interface {
		TransactionCreated(txType string)
		EventPublished(ok bool)
	}

	// DashboardResult is a dashboard view plus the board state it was built
	// from.
	DashboardResult struct {
		State board.State
		Empty bool
		View  analytics.DashboardView
	}

	AnalyticsResult struct {
		State board.State
		Empty bool
		View  analytics.AnalyticsView
	}
)

type nopRecorder struct{}

func (nopRecorder) TransactionCreated(string) {}
func (nopRecorder) EventPublished(bool)       {}

// TransactionService orchestrates writes to the ledger, the per-user boards
// and the event stream, and builds the read projections.
type TransactionService struct {
	store     ledger.Store
	boards    *board.Board
	publisher Publisher // may be nil
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

func NewTransactionService(store ledger.Store, boards *board.Board, publisher Publisher, recorder Recorder, logger *slog.Logger) *TransactionService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionService{
		store:     store,
		boards:    boards,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *TransactionService) today() core.Date {
	return core.DateOf(s.now().UTC())
}

// CreateTransaction validates and stores in for userID, applies it to the
// user's board and publishes it. A publish failure is logged but does not
// fail the call: the record is already stored.
func (s *TransactionService) CreateTransaction(ctx context.Context, userID string, in core.NewTransaction) (core.Transaction, error) {
	if strings.TrimSpace(userID) == "" {
		return core.Transaction{}, core.ErrEmptyUser
	}
	in = in.Normalize(s.today())
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	tx, err := s.store.CreateTransaction(ctx, userID, in)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.recorder.TransactionCreated(string(tx.Type))
	s.boards.Insert(userID, tx)

	if err := s.publish(ctx, tx); err != nil {
		s.recorder.EventPublished(false)
		s.logger.ErrorContext(ctx, "Failed to publish transaction created message", "id", tx.ID, "error", err)
	}
	return tx, nil
}

func (s *TransactionService) publish(ctx context.Context, tx core.Transaction) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not configured, skipping message", "id", tx.ID)
		return nil
	}
	if err := s.publisher.PublishTransactionCreated(ctx, amqp.NewTransactionCreatedMessage(tx)); err != nil {
		return err
	}
	s.recorder.EventPublished(true)
	return nil
}

// Transactions returns userID's transactions filtered and sorted by q.
func (s *TransactionService) Transactions(ctx context.Context, userID string, q analytics.Query) ([]core.Transaction, error) {
	snap, err := s.view(ctx, userID)
	if err != nil {
		return nil, err
	}
	return analytics.FilterAndSort(snap.Transactions, q), nil
}

// Dashboard builds the dashboard for userID. When the fetch fails the
// result carries the Failed state and the error; it is never presented as
// an empty ledger.
func (s *TransactionService) Dashboard(ctx context.Context, userID string, q analytics.Query) (DashboardResult, error) {
	snap, err := s.view(ctx, userID)
	if err != nil {
		return DashboardResult{State: board.Failed}, err
	}
	return DashboardResult{
		State: snap.State,
		Empty: snap.IsEmpty(),
		View:  analytics.Dashboard(snap.Transactions, q),
	}, nil
}

// Analytics builds the windowed analytics view for userID relative to today.
func (s *TransactionService) Analytics(ctx context.Context, userID string, q analytics.AnalyticsQuery) (AnalyticsResult, error) {
	snap, err := s.view(ctx, userID)
	if err != nil {
		return AnalyticsResult{State: board.Failed}, err
	}
	return AnalyticsResult{
		State: snap.State,
		Empty: snap.IsEmpty(),
		View:  analytics.Analytics(snap.Transactions, q, s.today()),
	}, nil
}

// Categories lists the selectable categories for userID.
func (s *TransactionService) Categories(ctx context.Context, userID string) ([]string, error) {
	snap, err := s.view(ctx, userID)
	if err != nil {
		return nil, err
	}
	return analytics.Categories(snap.Transactions), nil
}

func (s *TransactionService) view(ctx context.Context, userID string) (board.Snapshot, error) {
	if strings.TrimSpace(userID) == "" {
		return board.Snapshot{}, core.ErrEmptyUser
	}
	snap, err := s.boards.View(ctx, userID)
	if err != nil {
		return snap, fmt.Errorf("load transactions: %w", err)
	}
	if snap.State != board.Ready {
		return snap, fmt.Errorf("load transactions: %w", board.ErrNotLoaded)
	}
	return snap, nil
}

// Ping checks the ledger.
func (s *TransactionService) Ping(ctx context.Context) error {
	return ledger.Ping(ctx, s.store)
}

// IsUpstreamError reports whether err came from the ledger rather than from
// the caller's input.
func IsUpstreamError(err error) bool {
	return errors.Is(err, ledger.ErrUpstream) || errors.Is(err, ledger.ErrUnavailable) || errors.Is(err, board.ErrNotLoaded)
}
