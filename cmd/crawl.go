package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openveris/declaration-crawler/internal/cache"
	"github.com/openveris/declaration-crawler/internal/config"
	"github.com/openveris/declaration-crawler/internal/crawl"
	"github.com/openveris/declaration-crawler/internal/logging"
	"github.com/openveris/declaration-crawler/internal/metrics"
	"github.com/openveris/declaration-crawler/internal/registry"
	"github.com/openveris/declaration-crawler/internal/storage/postgres"
)

// newCrawlCmd creates the 'crawl' subcommand, which runs the full
// ingest: migrations, cache warm-up, then the sharded year loop.
func newCrawlCmd() *cobra.Command {
	var (
		startYear   int
		endYear     int
		workers     int
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the registry and stores new declarations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("start-year") {
				cfg.Crawl.StartYear = startYear
			}
			if cmd.Flags().Changed("end-year") {
				cfg.Crawl.EndYear = endYear
			}
			if cmd.Flags().Changed("workers") {
				cfg.Crawl.Workers = workers
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Metrics.Addr = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runCrawl(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVar(&startYear, "start-year", 0, "first declaration year to crawl")
	cmd.Flags().IntVar(&endYear, "end-year", 0, "last declaration year to crawl")
	cmd.Flags().IntVar(&workers, "workers", 0, "number of year-shard workers")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Prometheus listen address (empty disables)")

	return cmd
}

func runCrawl(ctx context.Context, cfg config.Config) error {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics.Init()
	stopMetrics := startMetricsServer(cfg.Metrics.Addr, logger)
	defer stopMetrics()

	if !cfg.DB.SkipMigrations {
		if err := postgres.RunMigrations(cfg.DB.DSN, cfg.DB.MigrationsPath); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	store, err := postgres.NewStore(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	}, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	existence, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Key:      cfg.Redis.Key,
	}, logger)
	if err != nil {
		return err
	}
	defer existence.Close() //nolint:errcheck

	ids, err := store.LoadDocumentIDs(ctx)
	if err != nil {
		return err
	}
	if err := existence.BulkLoad(ctx, ids); err != nil {
		return fmt.Errorf("warm existence cache: %w", err)
	}

	client, err := registry.NewClient(registry.Config{
		BaseURL:          cfg.Registry.BaseURL,
		ListEndpoint:     cfg.Registry.ListEndpoint,
		DocumentEndpoint: cfg.Registry.DocumentEndpoint,
		Timeout:          cfg.HTTP.RequestTimeout(),
		Concurrency:      cfg.HTTP.Concurrency,
		RequestDelay:     cfg.HTTP.RequestDelay(),
		MaxRetries:       cfg.HTTP.MaxRetries,
		RetryDelay:       cfg.HTTP.RetryDelay(),
		UserAgents:       cfg.HTTP.UserAgents,
	}, logger)
	if err != nil {
		return err
	}

	orch := crawl.New(client, store, existence, cfg.Crawl.PageTimeout(), logger)
	years := crawl.YearRange(cfg.Crawl.StartYear, cfg.Crawl.EndYear)

	logger.Info("starting crawl",
		zap.Ints("years", years),
		zap.Int("workers", cfg.Crawl.Workers),
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := range cfg.Crawl.Workers {
		shard := crawl.ShardYears(years, i, cfg.Crawl.Workers)
		if len(shard) == 0 {
			continue
		}
		g.Go(func() error {
			_, err := orch.CrawlYears(gctx, shard)
			return err
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("crawl: %w", err)
	}
	logger.Info("crawl command finished")
	return nil
}

// startMetricsServer serves /metrics when an address is configured.
// The returned function shuts the listener down.
func startMetricsServer(addr string, logger *zap.Logger) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("metrics listening", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
}
