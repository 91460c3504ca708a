// Command psgc-api serves the PSGC lookup and search API.
//
// It loads the PSGC dataset once (CSV, the PSA XLSX datafile, or a
// PostgreSQL table), builds the hierarchical index, and answers list and
// search queries over HTTP. Redis response caching and Kafka query
// analytics are optional and degrade gracefully when unavailable.
//
// Usage:
//
//	go run ./cmd/psgc-api [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/api"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/psgc"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	scheme, err := psgc.ParseScheme(cfg.PSGC.Segmentation)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: psgc.segmentation: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting psgc api",
		"port", cfg.Server.Port,
		"dataset_source", cfg.Dataset.Source,
		"segmentation", scheme.Name,
		"strict_levels", cfg.PSGC.StrictLevels,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	checker := health.NewChecker()

	var pg *postgres.Client
	if cfg.Dataset.Source == config.SourcePostgres {
		pg, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		checker.RegisterOptional("postgres", health.PingCheck(pg.Ping))
	}

	svc, err := buildService(ctx, cfg, scheme, pg, m)
	if err != nil {
		slog.Error("failed to build psgc index", "error", err)
		os.Exit(1)
	}
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		n := svc.Index().Len()
		if n == 0 {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no records loaded"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d records", n)}
	})

	opts := []api.Option{api.WithMetrics(m)}

	if cfg.Redis.CacheEnabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, response caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			qc := cache.New(redisClient, svc.CacheNamespace(), cfg.Redis.CacheTTL, m)
			opts = append(opts, api.WithCache(qc))
			checker.RegisterOptional("redis", health.PingCheck(redisClient.Ping))
			slog.Info("response cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	if cfg.Analytics.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, cfg.Analytics.BufferSize, m)
		collector.Start(ctx)
		defer collector.Close()
		opts = append(opts, api.WithTracker(collector))

		if cfg.Analytics.URL != "" {
			target, err := url.Parse(cfg.Analytics.URL)
			if err != nil {
				slog.Error("invalid analytics url", "url", cfg.Analytics.URL, "error", err)
				os.Exit(1)
			}
			opts = append(opts, api.WithAnalyticsProxy(target))
		}
		slog.Info("query analytics enabled", "topic", cfg.Kafka.Topics.QueryEvents)
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
		defer limiter.Close()
	}

	if cfg.Metrics.Enabled {
		metricsDone := m.ServeStandalone(ctx, cfg.Metrics.Port)
		defer func() { <-metricsDone }()
	}

	router := api.NewRouter(api.New(svc, opts...), api.RouterConfig{
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		Limiter:        limiter,
		Metrics:        m,
		Health:         checker,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
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

	slog.Info("psgc api listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("psgc api stopped")
}

// buildService loads the dataset, reports data-quality issues and builds
// the index and query service.
func buildService(ctx context.Context, cfg *config.Config, scheme psgc.Scheme, pg *postgres.Client, m *metrics.Metrics) (*psgc.Service, error) {
	src, err := dataset.Open(cfg.Dataset, pg)
	if err != nil {
		return nil, err
	}
	ds, err := dataset.Load(ctx, src, cfg.Dataset.LoadTimeout)
	if err != nil {
		return nil, err
	}

	if report := psgc.Validate(ds.Records, scheme); !report.OK() {
		slog.Warn("dataset has data-quality issues",
			"scheme", report.Scheme,
			"issues", len(report.Issues),
			"counts", report.Counts,
		)
	}

	idx, err := psgc.NewIndex(ds.Records)
	if err != nil {
		return nil, err
	}
	for _, level := range psgc.Levels {
		m.RecordsLoaded.WithLabelValues(level.String()).Set(float64(idx.Count(level)))
	}
	slog.Info("psgc index built", "records", idx.Len(), "fingerprint", idx.Fingerprint())

	return psgc.NewService(idx, scheme, psgc.WithStrictLevels(cfg.PSGC.StrictLevels)), nil
}
