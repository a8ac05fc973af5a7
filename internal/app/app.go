package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"StockNewsScanner/internal/config"
	"StockNewsScanner/internal/domain"
	"StockNewsScanner/internal/infrastructure/enrich"
	"StockNewsScanner/internal/infrastructure/feed"
	"StockNewsScanner/internal/infrastructure/parser"
	"StockNewsScanner/internal/infrastructure/scheduler"
	"StockNewsScanner/internal/infrastructure/storage"
	"StockNewsScanner/internal/infrastructure/telegram"
	"StockNewsScanner/internal/logging"
	"StockNewsScanner/internal/ports"
	"StockNewsScanner/internal/scanner"
	"StockNewsScanner/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *scanner.Registry
	store    *storage.SQLiteStore
	enricher ports.Enricher
	notifier ports.Notifier
	sites    map[string]config.SiteConfig
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := storage.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Crawler.Timeout()}

	registry := scanner.NewRegistry()
	sites := map[string]config.SiteConfig{}
	for _, site := range cfg.Sites {
		switch site.Scanner {
		case "aastocks":
			registry.Register(parser.NewAAStocksScanner(httpClient, site.Name, site.URL))
		case "rss":
			registry.Register(feed.NewRSSSource(site.Name, site.Feeds, baseLogger.With("component", "source."+site.Name)))
		default:
			return nil, fmt.Errorf("site %s: unknown scanner %s", site.Name, site.Scanner)
		}
		sites[site.Name] = site
	}

	var enricher ports.Enricher
	if cfg.Enrichment.URL != "" {
		enricher = enrich.NewClient(cfg.Enrichment.URL, cfg.Enrichment.APIKey)
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != "" {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		registry: registry,
		store:    store,
		enricher: enricher,
		notifier: notifier,
		sites:    sites,
	}, nil
}

// Close releases the store.
func (a *Application) Close() error {
	return a.store.Close()
}

// Crawl executes one pipeline run against the named source (the first
// configured site when the name is empty).
func (a *Application) Crawl(ctx context.Context, sourceName string, opts usecase.RunOptions) (domain.RunStats, error) {
	pipeline, err := a.pipelineFor(sourceName)
	if err != nil {
		return domain.RunStats{}, err
	}
	return pipeline.Run(ctx, opts)
}

// Serve runs recurring crawls at the configured interval until ctx is done.
func (a *Application) Serve(ctx context.Context, sourceName string, opts usecase.RunOptions) error {
	pipeline, err := a.pipelineFor(sourceName)
	if err != nil {
		return err
	}

	driver := scheduler.NewTickerScheduler(a.cfg.Scheduler.Interval())
	runner := usecase.NewScheduler(driver, pipeline, opts)
	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return runner.Stop(stopCtx)
}

// Search queries stored news by keyword or title substring.
func (a *Application) Search(ctx context.Context, query string, limit int) ([]domain.NewsItem, error) {
	if err := a.store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return a.store.SearchRecent(ctx, query, limit)
}

// Trends returns the per-date mention counts of a keyword.
func (a *Application) Trends(ctx context.Context, keyword, since string) ([]domain.TrendPoint, error) {
	if err := a.store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return a.store.KeywordTrend(ctx, keyword, since)
}

func (a *Application) pipelineFor(sourceName string) (*usecase.Pipeline, error) {
	if sourceName == "" {
		if len(a.cfg.Sites) == 0 {
			return nil, fmt.Errorf("no sites configured")
		}
		sourceName = a.cfg.Sites[0].Name
	}

	source, err := a.registry.Resolve(sourceName)
	if err != nil {
		return nil, err
	}
	site := a.sites[sourceName]

	return usecase.NewPipeline(usecase.PipelineDeps{
		Source:      source,
		Store:       a.store,
		Enricher:    a.enricher,
		Notifier:    a.notifier,
		Logger:      a.logger.With("component", "pipeline", "source", sourceName),
		SourceName:  site.Name,
		Category:    site.Category,
		QueueSize:   a.cfg.Crawler.QueueSize,
		Delay:       a.cfg.Crawler.Delay(),
		TopKeywords: a.cfg.Enrichment.TopKeywords,
	}), nil
}
