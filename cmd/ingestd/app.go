package main

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mx-pai/rss-recommendation-platform/internal/config"
	"github.com/mx-pai/rss-recommendation-platform/internal/database"
	"github.com/mx-pai/rss-recommendation-platform/internal/metrics"
	"github.com/mx-pai/rss-recommendation-platform/internal/scheduler"
	"github.com/mx-pai/rss-recommendation-platform/pkg/enrichment"
	"github.com/mx-pai/rss-recommendation-platform/pkg/feed"
	"github.com/mx-pai/rss-recommendation-platform/pkg/fetch"
	"github.com/mx-pai/rss-recommendation-platform/pkg/genai"
	"github.com/mx-pai/rss-recommendation-platform/pkg/log"
	"github.com/mx-pai/rss-recommendation-platform/pkg/page"
	"github.com/mx-pai/rss-recommendation-platform/pkg/store"
)

// app holds the wired components of one ingestd process
type app struct {
	cfg       *config.Config
	logger    logr.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	db        *database.DB
	store     store.Store
	fetcher   *fetch.Service
	scheduler *scheduler.Scheduler
}

func loadConfig() (*config.Config, logr.Logger, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, logr.Discard(), err
	}
	output := cfg.Log.File
	if output == "" {
		output = "stdout"
	}
	logger, err := log.NewWithLevel(cfg.Log.Level, output)
	if err != nil {
		return nil, logr.Discard(), err
	}
	return cfg, logger, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	switch cfg.Store {
	case config.StoreMemory:
		a.store = store.NewMemoryStore()
		logger.Info("Using in-memory store; data is lost on exit")
	default:
		db, err := database.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.store = store.NewPGStore(db.DB)
	}

	enricher := enrichment.New(cfg.Enrichment.Service(), a.generator(), a.metrics, logger.WithName("enrichment"))
	renderer := page.NewChromeRenderer(&cfg.Browser, logger.WithName("browser"))
	pages := page.New(&cfg.Browser, renderer, enricher, logger.WithName("page"))
	feeds := feed.New(&cfg.Feed, logger.WithName("feed"))

	a.fetcher = fetch.New(&cfg.Fetch, a.store, feeds, pages, a.metrics, logger.WithName("fetch"))
	a.scheduler = scheduler.NewScheduler(cfg.SchedulerSettings(), a.fetcher, a.metrics, logger.WithName("scheduler"))
	return a, nil
}

// generator returns the remote text generator, or nil when page enrichment
// runs locally only.
func (a *app) generator() enrichment.Generator {
	if !a.cfg.Enrichment.EnabledOnPage {
		return nil
	}
	client, err := genai.NewClient(a.cfg.Enrichment.GenAI(), a.logger.WithName("genai"))
	if err != nil {
		a.logger.Error(err, "Remote enrichment unavailable, using local enrichment")
		return nil
	}
	return client
}

func (a *app) migrate(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("migrations need the %s store", config.StorePostgres)
	}
	return database.NewMigrator(a.db.DB, a.logger.WithName("migrator")).RunMigrations(ctx)
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error(err, "Failed to close database")
		}
	}
}
