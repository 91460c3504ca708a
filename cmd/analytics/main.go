// Command analytics runs the query analytics service.
//
// It consumes the query events published by psgc-api from Kafka, aggregates
// them in memory (totals per operation, zero-result searches, latency
// percentiles, top searches), snapshots the totals to PostgreSQL, and serves
// them at GET /api/v1/analytics.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Analytics.Port, "topic", cfg.Kafka.Topics.QueryEvents)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	agg := analytics.NewAggregator(cfg.Analytics.TopN, m)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents, agg.HandleEvent())
	defer consumer.Close()

	go func() {
		if err := consumer.Run(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()

	checker := health.NewChecker()
	checker.Register("consumer", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d events processed", consumer.Processed()),
		}
	})

	// Snapshots are best effort: without PostgreSQL the service still
	// aggregates and serves live totals.
	var snapshots analytics.SnapshotLister
	snapshotsDone := make(chan struct{})
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
		close(snapshotsDone)
	} else {
		defer db.Close()
		store := aggregator.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare snapshot table", "error", err)
			os.Exit(1)
		}
		snapshots = store
		checker.RegisterOptional("postgres", health.PingCheck(db.Ping))
		go func() {
			defer close(snapshotsDone)
			aggregator.RunPeriodic(ctx, store, agg.Stats, cfg.Analytics.SnapshotInterval)
		}()
	}

	mux := http.NewServeMux()
	analytics.NewHandler(agg, snapshots).Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", m.Handler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	<-snapshotsDone
	slog.Info("analytics service stopped")
}
