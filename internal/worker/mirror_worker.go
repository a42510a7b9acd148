package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"finboard/internal/amqp"
	"finboard/internal/sheets"
)

// MirrorWorker copies announced transactions into a TransactionMirror.
type MirrorWorker struct {
	mirror sheets.TransactionMirror
	logger *slog.Logger

	mirrored atomic.Int64
	dropped  atomic.Int64
	failed   atomic.Int64
}

func NewMirrorWorker(mirror sheets.TransactionMirror, logger *slog.Logger) *MirrorWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &MirrorWorker{mirror: mirror, logger: logger}
}

// HandleTransactionCreated mirrors one message. Messages that can never
// succeed are logged and acknowledged; a mirror failure is returned so the
// message is redelivered.
func (w *MirrorWorker) HandleTransactionCreated(ctx context.Context, msg *amqp.TransactionCreatedMessage) error {
	tx, err := msg.Transaction()
	if err != nil {
		w.dropped.Add(1)
		w.logger.ErrorContext(ctx, "Dropping invalid transaction message", "id", msg.ID, "version", msg.Version, "error", err)
		return nil
	}

	ref, err := w.mirror.AppendTransaction(ctx, tx)
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("mirror transaction %s: %w", tx.ID, err)
	}
	w.mirrored.Add(1)
	w.logger.InfoContext(ctx, "Transaction mirrored", "id", tx.ID, "user_id", tx.UserID, "row", ref)
	return nil
}

// Stats reports how many messages were mirrored, dropped and failed.
type Stats struct {
	Mirrored int64
	Dropped  int64
	Failed   int64
}

func (w *MirrorWorker) Stats() Stats {
	return Stats{
		Mirrored: w.mirrored.Load(),
		Dropped:  w.dropped.Load(),
		Failed:   w.failed.Load(),
	}
}
