package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"finboard/internal/cache"
	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

type mapRemote struct {
	data   map[string][]core.Transaction
	getErr error
}

func (m *mapRemote) Get(_ context.Context, key string) ([]core.Transaction, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapRemote) Set(_ context.Context, key string, data []core.Transaction) error {
	m.data[key] = data
	return nil
}

func (m *mapRemote) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func seeded() *fakeStore {
	return &fakeStore{items: []core.Transaction{
		{ID: "1", UserID: "u1", Type: core.Credit, Amount: decimal.NewFromInt(5000), Category: "Salary"},
		{ID: "2", UserID: "u2", Type: core.Debit, Amount: decimal.NewFromInt(50), Category: "Food"},
	}}
}

func TestCachedStoreReadThrough(t *testing.T) {
	fake := seeded()
	rec := newRecorder()
	cs := NewCachedStore(fake, cache.NewLRUCache[[]core.Transaction](10, time.Minute), nil, rec, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := cs.ListTransactions(ctx, "u1")
		if err != nil || len(got) != 1 || got[0].ID != "1" {
			t.Fatalf("unexpected %v (err=%v)", got, err)
		}
	}
	if fake.lists != 1 {
		t.Fatalf("expected one upstream call, got %d", fake.lists)
	}
	if rec.hits["local"] != 2 || rec.misses["local"] != 1 {
		t.Fatalf("unexpected cache stats hits=%v misses=%v", rec.hits, rec.misses)
	}
}

func TestCachedStoreIsolatesUsers(t *testing.T) {
	cs := NewCachedStore(seeded(), cache.NewLRUCache[[]core.Transaction](10, time.Minute), nil, nil, nil)
	ctx := context.Background()
	if _, err := cs.ListTransactions(ctx, "u1"); err != nil {
		t.Fatalf("list: %v", err)
	}
	got, err := cs.ListTransactions(ctx, "u2")
	if err != nil || len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("expected u2's own data, got %v (err=%v)", got, err)
	}
}

func TestCachedStoreCreateInvalidates(t *testing.T) {
	fake := seeded()
	remote := &mapRemote{data: map[string][]core.Transaction{}}
	cs := NewCachedStore(fake, cache.NewLRUCache[[]core.Transaction](10, time.Minute), remote, nil, nil)
	ctx := context.Background()

	if _, err := cs.ListTransactions(ctx, "u1"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, ok := remote.data["tx:u1"]; !ok {
		t.Fatalf("expected shared cache populated")
	}
	in := core.NewTransaction{Type: core.Debit, Amount: decimal.NewFromInt(3), Description: "Bus", Category: "Transport", Date: core.NewDate(2024, 1, 1)}
	if _, err := cs.CreateTransaction(ctx, "u1", in); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := remote.data["tx:u1"]; ok {
		t.Fatalf("expected shared cache invalidated")
	}
	got, err := cs.ListTransactions(ctx, "u1")
	if err != nil || len(got) != 2 {
		t.Fatalf("expected fresh list with 2 items, got %v (err=%v)", got, err)
	}
	if fake.lists != 2 {
		t.Fatalf("expected second upstream read, got %d", fake.lists)
	}
}

func TestCachedStoreRemoteHitAndFailure(t *testing.T) {
	fake := seeded()
	remote := &mapRemote{data: map[string][]core.Transaction{
		"tx:u1": {{ID: "cached", UserID: "u1"}},
	}}
	cs := NewCachedStore(fake, cache.NewLRUCache[[]core.Transaction](10, time.Minute), remote, nil, nil)
	got, err := cs.ListTransactions(context.Background(), "u1")
	if err != nil || len(got) != 1 || got[0].ID != "cached" || fake.lists != 0 {
		t.Fatalf("expected shared cache hit, got %v (err=%v, upstream=%d)", got, err, fake.lists)
	}

	broken := &mapRemote{data: map[string][]core.Transaction{}, getErr: errors.New("redis down")}
	cs = NewCachedStore(fake, cache.NewLRUCache[[]core.Transaction](10, time.Minute), broken, nil, nil)
	if _, err := cs.ListTransactions(context.Background(), "u1"); err != nil {
		t.Fatalf("shared cache failure must fall back to upstream, got %v", err)
	}
}

func TestCachedStoreDoesNotCacheErrors(t *testing.T) {
	fake := &fakeStore{listErr: errors.New("down")}
	cs := NewCachedStore(fake, cache.NewLRUCache[[]core.Transaction](10, time.Minute), nil, nil, nil)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := cs.ListTransactions(ctx, "u1"); err == nil {
			t.Fatalf("expected error")
		}
	}
	if fake.lists != 2 {
		t.Fatalf("errors must not be cached, got %d upstream calls", fake.lists)
	}
}

func TestCachedStoreDropsListReadBeforeCreate(t *testing.T) {
	store := newBlockingStore(seeded())
	remote := &mapRemote{data: map[string][]core.Transaction{}}
	cs := NewCachedStore(store, cache.NewLRUCache[[]core.Transaction](10, time.Minute), remote, nil, nil)
	ctx := context.Background()

	done := make(chan []core.Transaction, 1)
	go func() {
		ts, _ := cs.ListTransactions(ctx, "u1")
		done <- ts
	}()
	<-store.read

	in := core.NewTransaction{Type: core.Debit, Amount: decimal.NewFromInt(3), Description: "Bus", Category: "Transport", Date: core.NewDate(2024, 1, 1)}
	if _, err := cs.CreateTransaction(ctx, "u1", in); err != nil {
		t.Fatalf("create: %v", err)
	}
	close(store.release)
	if stale := <-done; len(stale) != 1 {
		t.Fatalf("in-flight list should return what it read, got %d", len(stale))
	}
	if _, ok := remote.data["tx:u1"]; ok {
		t.Fatalf("list read before the create must not reach the shared cache")
	}

	got, err := cs.ListTransactions(ctx, "u1")
	if err != nil || len(got) != 2 {
		t.Fatalf("expected the created transaction after invalidation, got %v (err=%v)", got, err)
	}
	if store.lists != 2 {
		t.Fatalf("expected a fresh upstream read, got %d", store.lists)
	}
	if len(remote.data["tx:u1"]) != 2 {
		t.Fatalf("expected the fresh list cached, got %v", remote.data["tx:u1"])
	}
}
