// Package app initializes and holds long-lived application services,
// acting as a dependency injection container for the crawler binaries.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Harryguci/Car-Resource-Crawler/internal/clock/system"
	"github.com/Harryguci/Car-Resource-Crawler/internal/config"
	"github.com/Harryguci/Car-Resource-Crawler/internal/crawler"
	"github.com/Harryguci/Car-Resource-Crawler/internal/id/uuid"
	"github.com/Harryguci/Car-Resource-Crawler/internal/logging"
	"github.com/Harryguci/Car-Resource-Crawler/internal/metrics"
	"github.com/Harryguci/Car-Resource-Crawler/internal/pexels"
	"github.com/Harryguci/Car-Resource-Crawler/internal/policy/ratelimit"
	memorypublisher "github.com/Harryguci/Car-Resource-Crawler/internal/publisher/memory"
	pubsubpublisher "github.com/Harryguci/Car-Resource-Crawler/internal/publisher/pubsub"
	gcsstorage "github.com/Harryguci/Car-Resource-Crawler/internal/storage/gcs"
	localstorage "github.com/Harryguci/Car-Resource-Crawler/internal/storage/local"
	memorystorage "github.com/Harryguci/Car-Resource-Crawler/internal/storage/memory"
	postgresstorage "github.com/Harryguci/Car-Resource-Crawler/internal/storage/postgres"
)

// App holds the shared, long-lived services: logger, stores, rate limiter,
// provider client, and the job controller built on top of them. It is
// initialized once at startup and fails fast if any service cannot start.
type App struct {
	Logger     *zap.Logger
	Config     config.Config
	Controller *crawler.Controller

	pgPool    *pgxpool.Pool
	publisher *pubsubpublisher.Publisher
}

// New wires every component from the resolved configuration.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()

	a := &App{Logger: logger, Config: cfg}

	store, err := a.buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	blobs, err := a.buildBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pub, err := a.buildPublisher(ctx, cfg)
	if err != nil {
		return nil, err
	}

	searchClient, err := pexels.New(pexels.Config{
		BaseURL:   cfg.Pexels.BaseURL,
		SecretKey: cfg.Pexels.SecretKey,
		UserAgent: cfg.Pexels.UserAgent,
		Timeout:   cfg.PexelsTimeout(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init pexels client: %w", err)
	}

	clk := system.New()
	ids := uuid.NewGenerator()
	limiter := ratelimit.New(ratelimit.Config{
		Requests: cfg.Crawler.RateRequests,
		Window:   cfg.RateWindow(),
	})
	retry := crawler.NewExponentialRetryPolicy(cfg.Crawler.MaxRetries, cfg.BackoffInitial(), cfg.BackoffMax())
	tracker := crawler.NewStatusTracker(store, clk, logger)
	dedup := crawler.NewDeduplicator(store)
	downloader := crawler.NewDownloader(nil, blobs, clk, crawler.DownloaderConfig{
		Timeout:    cfg.DownloadTimeout(),
		PathPrefix: cfg.Storage.Prefix,
		UserAgent:  cfg.Pexels.UserAgent,
	}, logger)

	engine := crawler.NewEngine(
		searchClient, store, dedup, tracker, downloader,
		limiter, retry, clk, ids, pub,
		crawler.EngineConfig{
			Source:          cfg.Crawler.Source,
			PerPage:         cfg.Crawler.PerPage,
			CompletionTopic: cfg.PubSub.Topic,
		},
		logger,
	)
	a.Controller = crawler.NewController(engine, clk, ids, crawler.ControllerConfig{
		DefaultConcurrency: cfg.Crawler.Concurrency,
		DefaultMaxPages:    cfg.Crawler.MaxPages,
	}, logger)

	return a, nil
}

// ServeMetrics exposes the Prometheus endpoint on addr in a background
// goroutine.
func (a *App) ServeMetrics(addr string) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			a.Logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}

// Close gracefully shuts down the services the App owns.
func (a *App) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.Logger.Warn("close publisher", zap.Error(err))
		}
	}
	if a.pgPool != nil {
		a.pgPool.Close()
	}
	if err := a.Logger.Sync(); err != nil {
		// Best effort; stderr sync failures are expected on some platforms.
		_ = err
	}
}

func (a *App) buildStore(ctx context.Context, cfg config.Config) (crawler.Store, error) {
	switch cfg.DB.Provider {
	case "postgres":
		a.Logger.Info("connecting to PostgreSQL")
		pool, err := pgxpool.New(ctx, cfg.DB.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.pgPool = pool
		return postgresstorage.New(pool), nil
	case "memory":
		a.Logger.Info("using in-memory resource store")
		return memorystorage.New(), nil
	default:
		return nil, fmt.Errorf("unknown db provider: %s", cfg.DB.Provider)
	}
}

func (a *App) buildBlobStore(ctx context.Context, cfg config.Config) (crawler.BlobStore, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		a.Logger.Info("using GCS blob store", zap.String("bucket", cfg.Storage.GCSBucket))
		return gcsstorage.New(ctx, cfg.Storage.GCSBucket)
	case "local":
		a.Logger.Info("using local blob store", zap.String("base_dir", cfg.Storage.BaseDir))
		return localstorage.New(localstorage.Config{BaseDir: cfg.Storage.BaseDir})
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}
}

func (a *App) buildPublisher(ctx context.Context, cfg config.Config) (crawler.Publisher, error) {
	if cfg.PubSub.Topic == "" {
		return nil, nil
	}
	if cfg.PubSub.ProjectID == "" {
		a.Logger.Info("pubsub project not set, recording completion events in memory")
		return memorypublisher.New(), nil
	}
	pub, err := pubsubpublisher.New(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub publisher: %w", err)
	}
	a.publisher = pub
	return pub, nil
}
