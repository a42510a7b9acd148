package main

import (
	"context"
	"os"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/auth"
	"finboard/internal/backend"
	"finboard/internal/board"
	"finboard/internal/cache"
	"finboard/internal/cli"
	apphttp "finboard/internal/http"
	"finboard/internal/locale"
	flog "finboard/internal/log"
	"finboard/internal/metrics"
	"finboard/internal/services"
)

const (
	boardIdleTTL    = 30 * time.Minute
	cleanupInterval = 5 * time.Minute
	shutdownTimeout = 30 * time.Second
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(flog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	collector := metrics.New()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(flog.ComponentBackend).Slog(), collector).
		CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	logger.Info("Initialized backend", "backend", cfg.DataBackend)

	boards := board.New(result.Store, board.Config{
		MaxAge:  cfg.CacheTTL,
		IdleTTL: boardIdleTTL,
	}, logger.WithComponent(flog.ComponentBoard).Slog())
	collector.WatchBoards(boards)

	caches := cache.NewManager(logger.WithComponent(flog.ComponentCache).Slog())
	if result.LocalCache != nil {
		caches.Register(result.LocalCache)
	}
	caches.Register(boards)
	caches.StartCleanup(cleanupInterval)

	var (
		publisher  services.Publisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP broker unreachable, publishing will reconnect on demand", "error", err)
			amqpClient = amqp.NewLazyClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		} else {
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
		publisher = amqpClient
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	svc := services.NewTransactionService(result.Store, boards, publisher, collector,
		logger.WithComponent(flog.ComponentLedger).Slog())

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Authenticate:       auth.New(cfg.JWTSecret, cfg.AllowDevUserHeader).Middleware,
		Observer:           collector,
		MetricsHandler:     collector.Handler(),
		Logger:             logger.WithComponent(flog.ComponentHTTP),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Preferences: locale.Preferences{
			CurrencyCode: cfg.DefaultCurrency,
			Locale:       cfg.DefaultLocale,
		},
	})
	if cfg.AllowDevUserHeader {
		logger.Warn("Development user header enabled", "header", auth.DevUserHeader)
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting finboard server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
