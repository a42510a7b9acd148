package board

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

type fakeLister struct {
	mu    sync.Mutex
	calls atomic.Int32
	items []core.Transaction
	err   error
	gate  chan struct{} // when set, ListTransactions waits for it
}

func (f *fakeLister) ListTransactions(ctx context.Context, _ string) ([]core.Transaction, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]core.Transaction(nil), f.items...), nil
}

func (f *fakeLister) set(items []core.Transaction, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items, f.err = items, err
}

func txn(id string) core.Transaction {
	return core.Transaction{ID: id, UserID: "u1", Type: core.Debit, Amount: decimal.NewFromInt(1), Category: "Food", Date: core.NewDate(2024, 3, 1)}
}

func TestSnapshotIdleForUnknownUser(t *testing.T) {
	b := New(&fakeLister{}, Config{}, nil)
	if s := b.Snapshot("nobody"); s.State != Idle || s.IsEmpty() {
		t.Fatalf("expected idle, got %+v", s)
	}
}

func TestRefreshReadyEmptyAndFailedAreDistinct(t *testing.T) {
	l := &fakeLister{}
	b := New(l, Config{}, nil)
	ctx := context.Background()

	snap, err := b.Refresh(ctx, "u1")
	if err != nil || snap.State != Ready || !snap.IsEmpty() {
		t.Fatalf("expected empty ready board, got %+v (err=%v)", snap, err)
	}

	boom := errors.New("upstream down")
	l.set(nil, boom)
	snap, err = b.Refresh(ctx, "u1")
	if !errors.Is(err, boom) || snap.State != Failed || snap.IsEmpty() {
		t.Fatalf("expected failed board, got %+v (err=%v)", snap, err)
	}

	l.set([]core.Transaction{txn("a")}, nil)
	snap, err = b.Refresh(ctx, "u1")
	if err != nil || snap.State != Ready || len(snap.Transactions) != 1 {
		t.Fatalf("expected recovery, got %+v (err=%v)", snap, err)
	}
}

func TestFailedRefreshKeepsLastGoodList(t *testing.T) {
	l := &fakeLister{items: []core.Transaction{txn("a")}}
	b := New(l, Config{}, nil)
	if _, err := b.Refresh(context.Background(), "u1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	l.set(nil, errors.New("down"))
	snap, err := b.Refresh(context.Background(), "u1")
	if err == nil || snap.State != Failed || len(snap.Transactions) != 1 {
		t.Fatalf("expected failed state with previous list, got %+v", snap)
	}
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	b := New(&fakeLister{}, Config{}, nil)
	ctx := context.Background()

	older := b.begin("u1")
	newer := b.begin("u1")
	if res := b.complete(ctx, "u1", newer, []core.Transaction{txn("new")}, nil); !res.applied {
		t.Fatalf("latest generation must apply")
	}
	if res := b.complete(ctx, "u1", older, []core.Transaction{txn("old")}, nil); res.applied {
		t.Fatalf("older generation must be discarded")
	}
	snap := b.Snapshot("u1")
	if len(snap.Transactions) != 1 || snap.Transactions[0].ID != "new" {
		t.Fatalf("stale result leaked into board: %+v", snap.Transactions)
	}
	if b.Discarded() != 1 || b.Applied() != 1 {
		t.Fatalf("unexpected counters applied=%d discarded=%d", b.Applied(), b.Discarded())
	}
}

func TestInsertIsOptimisticUntilNextFetch(t *testing.T) {
	l := &fakeLister{items: []core.Transaction{txn("a")}}
	b := New(l, Config{}, nil)
	ctx := context.Background()
	if _, err := b.Refresh(ctx, "u1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	b.Insert("u1", txn("local"))
	snap := b.Snapshot("u1")
	if len(snap.Transactions) != 2 || snap.Transactions[0].ID != "local" || snap.Optimistic != 1 {
		t.Fatalf("expected optimistic prepend, got %+v", snap)
	}

	// The next fetch wins even when it disagrees.
	l.set([]core.Transaction{txn("server")}, nil)
	snap, err := b.Refresh(ctx, "u1")
	if err != nil || len(snap.Transactions) != 1 || snap.Transactions[0].ID != "server" || snap.Optimistic != 0 {
		t.Fatalf("expected fetched list to replace board, got %+v (err=%v)", snap, err)
	}
}

func TestInsertSupersedesFetchInFlight(t *testing.T) {
	b := New(&fakeLister{}, Config{}, nil)
	ctx := context.Background()
	first := b.begin("u1")
	b.complete(ctx, "u1", first, []core.Transaction{txn("a")}, nil)

	inflight := b.begin("u1")
	if s := b.Snapshot("u1"); s.State != Loading || len(s.Transactions) != 1 {
		t.Fatalf("loading board should keep previous list, got %+v", s)
	}
	b.Insert("u1", txn("written"))
	if res := b.complete(ctx, "u1", inflight, []core.Transaction{txn("a")}, nil); res.applied {
		t.Fatalf("fetch started before the write must be discarded")
	}
	snap := b.Snapshot("u1")
	if snap.State != Ready || len(snap.Transactions) != 2 || snap.Transactions[0].ID != "written" {
		t.Fatalf("unexpected board %+v", snap)
	}
}

func TestInsertWithoutBoardIsNoop(t *testing.T) {
	b := New(&fakeLister{}, Config{}, nil)
	b.Insert("u1", txn("x"))
	if b.Size() != 0 {
		t.Fatalf("insert must not create a board")
	}
}

func TestRefreshCoalescesConcurrentCallers(t *testing.T) {
	l := &fakeLister{items: []core.Transaction{txn("a")}, gate: make(chan struct{})}
	b := New(l, Config{}, nil)

	var wg sync.WaitGroup
	results := make([]Snapshot, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = b.Refresh(context.Background(), "u1")
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(l.gate)
	wg.Wait()

	if n := l.calls.Load(); n != 1 {
		t.Fatalf("expected a single upstream call, got %d", n)
	}
	for i, r := range results {
		if r.State != Ready || len(r.Transactions) != 1 {
			t.Fatalf("caller %d got %+v", i, r)
		}
	}
}

func TestViewHonoursMaxAge(t *testing.T) {
	l := &fakeLister{items: []core.Transaction{txn("a")}}
	b := New(l, Config{MaxAge: time.Minute}, nil)
	clock := time.Date(2024, 3, 25, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := b.View(ctx, "u1"); err != nil {
			t.Fatalf("view: %v", err)
		}
	}
	if n := l.calls.Load(); n != 1 {
		t.Fatalf("expected one fetch within max age, got %d", n)
	}
	clock = clock.Add(2 * time.Minute)
	if _, err := b.View(ctx, "u1"); err != nil {
		t.Fatalf("view: %v", err)
	}
	if n := l.calls.Load(); n != 2 {
		t.Fatalf("expected refetch after max age, got %d", n)
	}
}

func TestCleanExpired(t *testing.T) {
	b := New(&fakeLister{}, Config{IdleTTL: time.Minute}, nil)
	clock := time.Date(2024, 3, 25, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }
	ctx := context.Background()
	if _, err := b.Refresh(ctx, "old"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if _, err := b.Refresh(ctx, "fresh"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if n := b.CleanExpired(); n != 1 {
		t.Fatalf("expected one board dropped, got %d", n)
	}
	if b.Snapshot("fresh").State != Ready {
		t.Fatalf("fresh board should remain")
	}
}
