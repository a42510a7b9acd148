package ledger

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"finboard/internal/cache"
	"finboard/internal/core"
)

// CachedStore is a read-through cache of per-user transaction lists. A local
// LRU sits in front of an optional shared cache. Successful writes drop both
// entries for the user so the next read goes upstream.
//
// Every invalidation bumps the key's epoch. A read only fills the caches
// when the epoch it started under is still current, so a list fetched before
// a write never lands in the cache after that write.
type CachedStore struct {
	next     Store
	local    cache.Cache[[]core.Transaction]
	remote   cache.Remote[[]core.Transaction] // may be nil
	recorder Recorder
	logger   *slog.Logger

	mu     sync.Mutex
	epochs map[string]uint64
}

func NewCachedStore(next Store, local cache.Cache[[]core.Transaction], remote cache.Remote[[]core.Transaction], recorder Recorder, logger *slog.Logger) *CachedStore {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{
		next:     next,
		local:    local,
		remote:   remote,
		recorder: recorder,
		logger:   logger,
		epochs:   make(map[string]uint64),
	}
}

func (c *CachedStore) epoch(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epochs[key]
}

// fill stores ts in the local cache unless key was invalidated after epoch
// was read.
func (c *CachedStore) fill(key string, epoch uint64, ts []core.Transaction) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epochs[key] != epoch {
		return false
	}
	c.local.Set(key, slices.Clone(ts))
	return true
}

func cacheKey(userID string) string {
	return "tx:" + userID
}

func (c *CachedStore) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	key := cacheKey(userID)
	epoch := c.epoch(key)
	if ts, ok := c.local.Get(key); ok {
		c.recorder.CacheLookup("local", true)
		return slices.Clone(ts), nil
	}
	c.recorder.CacheLookup("local", false)

	if c.remote != nil {
		ts, ok, err := c.remote.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.WarnContext(ctx, "Shared cache read failed", "user_id", userID, "error", err)
		case ok:
			c.recorder.CacheLookup("remote", true)
			c.fill(key, epoch, ts)
			return slices.Clone(ts), nil
		default:
			c.recorder.CacheLookup("remote", false)
		}
	}

	ts, err := c.next.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !c.fill(key, epoch, ts) {
		c.logger.DebugContext(ctx, "Skipped caching list read before an invalidation", "user_id", userID)
		return ts, nil
	}
	if c.remote != nil {
		if err := c.remote.Set(ctx, key, ts); err != nil {
			c.logger.WarnContext(ctx, "Shared cache write failed", "user_id", userID, "error", err)
		} else if c.epoch(key) != epoch {
			// Invalidated while writing; its delete may have run first.
			if err := c.remote.Delete(ctx, key); err != nil {
				c.logger.WarnContext(ctx, "Shared cache invalidation failed", "user_id", userID, "error", err)
			}
		}
	}
	return ts, nil
}

func (c *CachedStore) CreateTransaction(ctx context.Context, userID string, in core.NewTransaction) (core.Transaction, error) {
	tx, err := c.next.CreateTransaction(ctx, userID, in)
	if err != nil {
		return core.Transaction{}, err
	}
	c.Invalidate(ctx, userID)
	return tx, nil
}

// Invalidate drops the cached list of userID from every layer.
func (c *CachedStore) Invalidate(ctx context.Context, userID string) {
	key := cacheKey(userID)
	c.mu.Lock()
	c.epochs[key]++
	c.local.Delete(key)
	c.mu.Unlock()
	if c.remote != nil {
		if err := c.remote.Delete(ctx, key); err != nil {
			c.logger.WarnContext(ctx, "Shared cache invalidation failed", "user_id", userID, "error", err)
		}
	}
}

func (c *CachedStore) Ping(ctx context.Context) error {
	return Ping(ctx, c.next)
}
