package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/fieldserve/fieldserve/internal/config"
	_ "github.com/fieldserve/fieldserve/internal/importer/kinds" // Register all entity kinds
	"github.com/fieldserve/fieldserve/internal/job"
	"github.com/fieldserve/fieldserve/internal/logging"
	"github.com/fieldserve/fieldserve/internal/store"
	"github.com/fieldserve/fieldserve/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store_driver", cfg.Store.Driver,
		"import_workers", cfg.Import.Workers,
		"import_batch_size", cfg.Import.BatchSize,
	)

	ctx := context.Background()

	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open entity store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	pub := job.NewPublisher(cfg.Import.Retention)
	queue := job.NewQueue(job.Config{
		Workers:       cfg.Import.Workers,
		BatchSize:     cfg.Import.BatchSize,
		RetryAttempts: cfg.Import.RetryAttempts,
		RetryBackoff:  cfg.Import.RetryBackoff,
		JobTimeout:    cfg.Import.JobTimeout,
		Retention:     cfg.Import.Retention,
	}, st, pub)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	queue.Start(workerCtx)

	server := web.NewServer(queue, pub, cfg)

	// Graceful shutdown: stop accepting jobs, let queued work reach a
	// terminal state, then stop the HTTP server.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		queue.Close()
		if queue.PendingCount() > 0 || queue.ActiveCount() > 0 {
			slog.Info("waiting for import jobs to finish",
				"pending", queue.PendingCount(), "active", queue.ActiveCount())
			if err := queue.Drain(shutdownCtx); err != nil {
				slog.Warn("import jobs did not finish in time", "error", err)
			} else {
				slog.Info("all import jobs finished")
			}
		}
		cancelWorkers()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && err != http.ErrServerClosed {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// openStore builds the configured entity store. The returned cleanup closes
// any underlying connection pool.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if strings.EqualFold(cfg.Store.Driver, "memory") {
		slog.Info("using in-memory entity store")
		return store.NewMemoryStore(), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Store.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.Store.MaxConns)
	poolConfig.MinConns = int32(cfg.Store.MinConns)
	poolConfig.MaxConnLifetime = cfg.Store.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Store.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	if u, err := url.Parse(cfg.Store.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	return store.NewPostgresStore(pool), pool.Close, nil
}
