package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/ledger"
	"finboard/internal/ledger/memory"
	"finboard/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger   *slog.Logger
	recorder ledger.Recorder
}

func NewFactory(logger *slog.Logger, recorder ledger.Recorder) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = ledger.NopRecorder{}
	}
	return &DefaultFactory{logger: logger, recorder: recorder}
}

type rawStore struct {
	store   ledger.Store
	cleanup CleanupFunc
}

// CreateBackend builds the raw store for config.Type and wraps it with the
// circuit breaker and the read-through cache.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		raw rawStore
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		raw, err = f.createSQLiteBackend(config)
	case PostgresBackend:
		raw, err = f.createPostgresBackend(ctx, config)
	case MemoryBackend:
		raw, err = f.createMemoryBackend(config)
	default:
		err = fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	breaker := ledger.DefaultBreakerConfig()
	if config.BreakerFailures > 0 {
		breaker.ConsecutiveFailures = uint32(config.BreakerFailures)
	}
	if config.UpstreamTimeout > 0 {
		breaker.CallTimeout = config.UpstreamTimeout
	}
	resilient := ledger.NewResilientStore(raw.store, breaker, f.recorder, f.logger)

	cleanups := []CleanupFunc{raw.cleanup}
	// A zero TTL makes every entry stale on the next read.
	local := cache.NewLRUCache[[]core.Transaction](config.CacheSize, config.CacheTTL)

	var remote cache.Remote[[]core.Transaction]
	if config.RedisAddr != "" {
		rc, err := cache.NewRedisCache[[]core.Transaction](ctx, cache.RedisConfig{
			Addr:      config.RedisAddr,
			KeyPrefix: "finboard:",
			TTL:       config.CacheTTL,
		})
		if err != nil {
			// The shared layer is optional; run with the local cache only.
			f.logger.WarnContext(ctx, "Redis unavailable, continuing without shared cache", "addr", config.RedisAddr, "error", err)
		} else {
			remote = rc
			cleanups = append(cleanups, func() error { rc.Close(); return nil })
			f.logger.InfoContext(ctx, "Shared transaction cache enabled", "addr", config.RedisAddr)
		}
	}
	cached := ledger.NewCachedStore(resilient, local, remote, f.recorder, f.logger)

	f.logger.InfoContext(ctx, "Ledger backend ready",
		"backend", config.Type,
		"cache_size", config.CacheSize,
		"cache_ttl", config.CacheTTL,
		"breaker_failures", breaker.ConsecutiveFailures)

	return &BackendResult{
		Store:      cached,
		Cached:     cached,
		Resilient:  resilient,
		LocalCache: local,
		Cleanup: func() error {
			var errs []error
			for i := len(cleanups) - 1; i >= 0; i-- {
				if cleanups[i] != nil {
					errs = append(errs, cleanups[i]())
				}
			}
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (rawStore, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return rawStore{}, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Using SQLite backend", "path", config.SQLiteDBPath)
	return rawStore{store: repo, cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (rawStore, error) {
	repo, err := storage.NewPostgresRepository(ctx, config.DatabaseURL, storage.PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return rawStore{}, fmt.Errorf("failed to initialize Postgres repository: %w", err)
	}
	f.logger.Info("Using Postgres backend")
	return rawStore{store: repo, cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (rawStore, error) {
	if config.SeedFile == "" {
		f.logger.Info("Using memory backend")
		return rawStore{store: memory.New()}, nil
	}
	store, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return rawStore{}, fmt.Errorf("failed to seed memory backend: %w", err)
	}
	f.logger.Info("Using memory backend", "seed_file", config.SeedFile)
	return rawStore{store: store}, nil
}
