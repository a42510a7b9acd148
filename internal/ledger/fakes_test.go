package ledger

import (
	"context"
	"sync"
	"time"

	"finboard/internal/core"
)

type fakeStore struct {
	mu        sync.Mutex
	listErr   error
	createErr error
	lists     int
	creates   int
	items     []core.Transaction
}

func (f *fakeStore) ListTransactions(_ context.Context, userID string) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]core.Transaction, 0, len(f.items))
	for _, tx := range f.items {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateTransaction(_ context.Context, userID string, in core.NewTransaction) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return core.Transaction{}, f.createErr
	}
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{ID: "id", UserID: userID, Type: in.Type, Amount: in.Amount, Description: in.Description, Category: in.Category, Date: in.Date}
	f.items = append(f.items, tx)
	return tx, nil
}

type recordingRecorder struct {
	mu     sync.Mutex
	calls  []string
	states []string
	hits   map[string]int
	misses map[string]int
}

func newRecorder() *recordingRecorder {
	return &recordingRecorder{hits: map[string]int{}, misses: map[string]int{}}
}

func (r *recordingRecorder) UpstreamCall(op string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, op)
}

func (r *recordingRecorder) BreakerState(_, state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recordingRecorder) CacheLookup(layer string, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits[layer]++
	} else {
		r.misses[layer]++
	}
}

// blockingStore parks its first list call after reading upstream, until
// release is closed.
type blockingStore struct {
	*fakeStore
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingStore(f *fakeStore) *blockingStore {
	return &blockingStore{fakeStore: f, read: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingStore) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	ts, err := b.fakeStore.ListTransactions(ctx, userID)
	b.once.Do(func() {
		close(b.read)
		<-b.release
	})
	return ts, err
}
