package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/cache"
	"github.com/mmynk/splitledger/internal/cache/rediscache"
	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/events/kafkaevents"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/server"
	"github.com/mmynk/splitledger/internal/service"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/memory"
	"github.com/mmynk/splitledger/internal/storage/postgres"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
	"github.com/mmynk/splitledger/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return err
	}

	ctx := context.Background()
	health := map[string]server.Pinger{}

	store, err := openStore(ctx, cfg.Store, health)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	snapshots, closeSnapshots := openSnapshots(ctx, cfg.Redis, health)
	defer closeSnapshots()

	opts := []ledger.Option{
		ledger.WithMaxRetries(cfg.Ledger.MaxRetries),
		ledger.WithSnapshots(snapshots),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := kafkaevents.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		opts = append(opts, ledger.WithPublisher(publisher))
		slog.Info("Publishing ledger events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	interceptors := []connect.Interceptor{middleware.MetricsInterceptor()}
	if cfg.Auth.JWTSecret != "" {
		tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		interceptors = append(interceptors, middleware.RequireAuth(tokens))
	} else {
		slog.Warn("JWT_SECRET not set, requests are not authenticated")
	}
	interceptors = append(interceptors, middleware.LoggingInterceptor())

	router := server.NewRouter(server.RouterDependencies{
		Ledger:         service.NewLedgerService(ledger.New(store, opts...)),
		Interceptors:   interceptors,
		Health:         health,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
	srv := server.New(cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, health map[string]server.Pinger) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err := postgres.New(ctx, cfg.DatabaseURL, postgres.DefaultOptions())
		if err != nil {
			return nil, err
		}
		health["store"] = store
		slog.Info("Storage initialized", "driver", cfg.Driver)
		return store, nil
	case config.DriverMemory:
		slog.Warn("Using in-memory storage, facts are lost on restart")
		return memory.New(), nil
	default:
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		health["store"] = store
		slog.Info("Storage initialized", "driver", cfg.Driver, "database", cfg.DBPath)
		return store, nil
	}
}

// openSnapshots prefers the shared Redis cache and falls back to an
// in-process cache when Redis is not configured or not reachable.
func openSnapshots(ctx context.Context, cfg config.RedisConfig, health map[string]server.Pinger) (cache.Snapshots, func()) {
	noop := func() {}
	if cfg.Addr == "" {
		return cache.NewMemory(), noop
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rc, err := rediscache.New(connectCtx, rediscache.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		TTL:      cfg.SnapshotTTL,
	})
	if err != nil {
		slog.Warn("Redis unavailable, using in-process snapshot cache", "addr", cfg.Addr, "error", err)
		return cache.NewMemory(), noop
	}
	health["redis"] = rc
	slog.Info("Snapshot cache connected", "addr", cfg.Addr)
	return rc, func() {
		if err := rc.Close(); err != nil {
			slog.Warn("Failed to close redis client", "error", err)
		}
	}
}
