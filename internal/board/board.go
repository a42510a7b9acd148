// Package board holds the per-user view state behind the dashboard and
// analytics pages.
//
// A user's board is Idle until its first fetch, Loading while a fetch is in
// flight, then Ready (with a possibly empty list) or Failed. An empty Ready
// board and a Failed board are never the same thing.
//
// Every fetch carries a generation number. Only the result of the latest
// generation is applied; anything older is discarded. A successful write
// prepends the stored record to a Ready board and bumps the generation, so a
// fetch that started before the write cannot overwrite it. The next fetch
// replaces the list wholesale (last fetch wins).
package board

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"finboard/internal/core"
	"finboard/internal/ledger"

	"golang.org/x/sync/singleflight"
)

const (
	Idle    State = "idle"
	Loading State = "loading"
	Ready   State = "ready"
	Failed  State = "failed"
)

// maxRefreshAttempts bounds how often Refresh retries after its own result
// was superseded.
const maxRefreshAttempts = 3

// ErrNotLoaded is returned when no fetch ever completed for a user.
var ErrNotLoaded = errors.New("board not loaded")

type (
	State string

	// Snapshot is an immutable copy of a user's board.
	Snapshot struct {
		UserID       string
		State        State
		Transactions []core.Transaction
		Err          error // set when State is Failed
		Generation   uint64
		FetchedAt    time.Time
		Optimistic   int // records inserted locally since the last fetch
	}

	Config struct {
		// MaxAge is how long a Ready board is served without refetching.
		// Zero refetches on every View.
		MaxAge time.Duration
		// IdleTTL drops boards nobody looked at for this long.
		IdleTTL time.Duration
	}

	Board struct {
		lister ledger.Lister
		cfg    Config
		logger *slog.Logger
		now    func() time.Time

		group singleflight.Group

		mu    sync.Mutex
		users map[string]*entry

		applied   atomic.Uint64
		discarded atomic.Uint64
	}

	entry struct {
		gen        uint64
		prev       State // state before the fetch in flight
		snap       Snapshot
		lastAccess time.Time
	}
)

// IsEmpty reports a successful fetch that returned no transactions.
func (s Snapshot) IsEmpty() bool {
	return s.State == Ready && len(s.Transactions) == 0
}

func New(lister ledger.Lister, cfg Config, logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{
		lister: lister,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		users:  make(map[string]*entry),
	}
}

// Snapshot returns the current board of userID without fetching.
func (b *Board) Snapshot(userID string) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.users[userID]
	if !ok {
		return Snapshot{UserID: userID, State: Idle}
	}
	e.lastAccess = b.now()
	return e.snap.clone()
}

// View returns a Ready board for userID, fetching when the current one is
// missing, failed or older than MaxAge. A failed fetch is returned as a
// Failed snapshot together with the fetch error.
func (b *Board) View(ctx context.Context, userID string) (Snapshot, error) {
	if b.cfg.MaxAge > 0 {
		snap := b.Snapshot(userID)
		if snap.State == Ready && b.now().Sub(snap.FetchedAt) < b.cfg.MaxAge {
			return snap, nil
		}
	}
	return b.Refresh(ctx, userID)
}

// Refresh fetches userID's transactions and applies them unless a newer
// generation has started meanwhile. Concurrent refreshes of one user share
// a single upstream call.
func (b *Board) Refresh(ctx context.Context, userID string) (Snapshot, error) {
	for attempt := 0; ; attempt++ {
		v, err, _ := b.group.Do(userID, func() (any, error) {
			// Shared by every caller in the flight, so one caller going
			// away must not cancel it.
			return b.fetch(context.WithoutCancel(ctx), userID), nil
		})
		if err != nil {
			return Snapshot{}, err
		}
		res := v.(fetchResult)
		if res.applied || attempt+1 >= maxRefreshAttempts {
			snap := b.Snapshot(userID)
			if !res.applied && snap.State != Ready && snap.State != Failed {
				// Every attempt was superseded; report our own result.
				snap = res.snap
			}
			return snap, snap.Err
		}
		if snap := b.Snapshot(userID); snap.State == Ready || snap.State == Failed {
			return snap, snap.Err
		}
	}
}

type fetchResult struct {
	applied bool
	snap    Snapshot
}

func (b *Board) fetch(ctx context.Context, userID string) fetchResult {
	gen := b.begin(userID)
	ts, err := b.lister.ListTransactions(ctx, userID)
	return b.complete(ctx, userID, gen, ts, err)
}

// begin opens a new generation and marks the board Loading. The previous
// list stays visible while loading.
func (b *Board) begin(userID string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entryLocked(userID)
	e.gen++
	if e.snap.State != Loading {
		e.prev = e.snap.State
	}
	e.snap.State = Loading
	e.snap.Generation = e.gen
	return e.gen
}

func (b *Board) complete(ctx context.Context, userID string, gen uint64, ts []core.Transaction, err error) fetchResult {
	now := b.now()
	next := Snapshot{
		UserID:     userID,
		Generation: gen,
		FetchedAt:  now,
	}
	if err != nil {
		next.State = Failed
		next.Err = err
	} else {
		next.State = Ready
		next.Transactions = slices.Clone(ts)
		if next.Transactions == nil {
			next.Transactions = []core.Transaction{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entryLocked(userID)
	if gen != e.gen {
		b.discarded.Add(1)
		b.logger.DebugContext(ctx, "Discarded stale fetch", "user_id", userID, "generation", gen, "current", e.gen)
		return fetchResult{applied: false, snap: next.clone()}
	}
	if err != nil && len(e.snap.Transactions) > 0 {
		// Keep the last good list around for callers that want it, but the
		// state says the refresh failed.
		next.Transactions = e.snap.Transactions
	}
	e.snap = next
	e.lastAccess = now
	b.applied.Add(1)
	return fetchResult{applied: true, snap: next.clone()}
}

// Insert applies a successfully written transaction to userID's board
// without refetching. It supersedes any fetch already in flight.
func (b *Board) Insert(userID string, tx core.Transaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.users[userID]
	if !ok {
		return
	}
	e.gen++
	e.snap.Generation = e.gen
	b.group.Forget(userID)
	if e.snap.State == Loading {
		// The fetch in flight is superseded and will never land.
		e.snap.State = e.prev
	}
	if e.snap.State != Ready {
		return
	}
	list := make([]core.Transaction, 0, len(e.snap.Transactions)+1)
	list = append(list, tx)
	list = append(list, e.snap.Transactions...)
	e.snap.Transactions = list
	e.snap.Optimistic++
}

// Forget drops userID's board.
func (b *Board) Forget(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.users, userID)
	b.group.Forget(userID)
}

// CleanExpired drops boards idle for longer than IdleTTL and returns how
// many were dropped.
func (b *Board) CleanExpired() int {
	if b.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := b.now().Add(-b.cfg.IdleTTL)
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for id, e := range b.users {
		if e.snap.State != Loading && e.lastAccess.Before(cutoff) {
			delete(b.users, id)
			n++
		}
	}
	return n
}

// Size is the number of boards held.
func (b *Board) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.users)
}

// Applied counts fetch results written to a board.
func (b *Board) Applied() uint64 { return b.applied.Load() }

// Discarded counts fetch results dropped because a newer generation existed.
func (b *Board) Discarded() uint64 { return b.discarded.Load() }

func (b *Board) entryLocked(userID string) *entry {
	e, ok := b.users[userID]
	if !ok {
		e = &entry{snap: Snapshot{UserID: userID, State: Idle}}
		b.users[userID] = e
	}
	e.lastAccess = b.now()
	return e
}

func (s Snapshot) clone() Snapshot {
	s.Transactions = slices.Clone(s.Transactions)
	return s
}
