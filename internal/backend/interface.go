package backend

import (
	"context"
	"time"

	"finboard/internal/ledger"
)

// CleanupFunc releases the resources behind a backend.
type CleanupFunc func() error

// BackendResult contains the assembled store and its cleanup function.
type BackendResult struct {
	// Store is the fully wrapped ledger: cache, then breaker, then the
	// raw store.
	Store ledger.Store
	// Cached is the cache layer of Store, for explicit invalidation.
	Cached *ledger.CachedStore
	// Resilient is the breaker layer of Store.
	Resilient *ledger.ResilientStore
	// LocalCache is registered with the cache manager for expiry sweeps.
	LocalCache interface{ CleanExpired() int }
	Cleanup    CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string
	SeedFile     string

	UpstreamTimeout time.Duration
	BreakerFailures int

	RedisAddr string
	CacheTTL  time.Duration
	CacheSize int
}

// BackendType names the raw transaction store.
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
