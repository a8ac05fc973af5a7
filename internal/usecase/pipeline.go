package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"StockNewsScanner/internal/domain"
	"StockNewsScanner/internal/ports"
	"StockNewsScanner/internal/retry"
)

const (
	defaultQueueSize   = 50
	defaultWorkers     = 3
	defaultTopKeywords = 5
	digestTitleLimit   = 10
)

// PipelineDeps wires all driven adapters into the crawl pipeline.
type PipelineDeps struct {
	Source   ports.ArticleSource
	Store    ports.NewsStore
	Enricher ports.Enricher
	Notifier ports.Notifier
	Logger   *slog.Logger

	SourceName  string
	Category    string
	QueueSize   int
	Delay       time.Duration
	TopKeywords int
}

// Pipeline crawls a source and persists articles through a bounded
// producer-consumer hand-off: one producer discovers and fetches, a pool of
// workers deduplicates, enriches, and writes.
type Pipeline struct {
	source   ports.ArticleSource
	store    ports.NewsStore
	enricher ports.Enricher
	notifier ports.Notifier
	logger   *slog.Logger

	sourceName  string
	category    string
	queueSize   int
	delay       time.Duration
	topKeywords int
}

// RunOptions parameterizes a single crawl run.
type RunOptions struct {
	Days            int
	MaxCount        int
	Workers         int
	Extended        bool
	ExtractKeywords bool
}

func (o RunOptions) withDefaults() RunOptions {
	if o.Days <= 0 {
		o.Days = 1
	}
	if o.MaxCount <= 0 {
		o.MaxCount = 1000
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	return o
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	queueSize := deps.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	topKeywords := deps.TopKeywords
	if topKeywords <= 0 {
		topKeywords = defaultTopKeywords
	}
	return &Pipeline{
		source:      deps.Source,
		store:       deps.Store,
		enricher:    deps.Enricher,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
		sourceName:  deps.SourceName,
		category:    deps.Category,
		queueSize:   queueSize,
		delay:       deps.Delay,
		topKeywords: topKeywords,
	}
}

// processedItem records one successful write for trend tracking and the
// post-run digest.
type processedItem struct {
	item     domain.NewsItem
	keywords []string
	inserted bool
}

type workerResult struct {
	stats domain.RunStats
	saved []processedItem
}

// Run executes one crawl. It always returns a stats snapshot; the only error
// it surfaces is a failed schema bootstrap, since nothing can be persisted
// without it. Partial failures are folded into the Failed counter.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (domain.RunStats, error) {
	opts = opts.withDefaults()

	if p.source == nil || p.store == nil {
		return domain.RunStats{}, fmt.Errorf("pipeline requires a source and a store")
	}

	if err := p.store.EnsureSchema(ctx); err != nil {
		return domain.RunStats{}, fmt.Errorf("ensure schema: %w", err)
	}

	enrich := opts.ExtractKeywords && p.enricher != nil
	if enrich {
		if err := p.enricher.Ping(ctx); err != nil {
			p.warn("enrichment service unavailable, continuing without keywords", "error", err)
			enrich = false
		}
	}

	queue := make(chan domain.NewsItem, p.queueSize)
	results := make([]workerResult, opts.Workers)

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			results[id] = p.consume(ctx, queue, enrich, id+1)
		}(i)
	}

	p.produce(ctx, queue, opts)

	wg.Wait()

	var (
		stats domain.RunStats
		saved []processedItem
	)
	for _, result := range results {
		stats.Add(result.stats)
		saved = append(saved, result.saved...)
	}

	p.recordTrends(ctx, saved)
	p.publishDigest(ctx, stats, saved)

	p.info("crawl finished",
		"inserted", stats.Inserted,
		"updated", stats.Updated,
		"duplicate_skipped", stats.DuplicateSkipped,
		"failed", stats.Failed,
		"total_processed", stats.TotalProcessed,
	)

	return stats, nil
}

// produce discovers candidates, fetches their detail pages, filters by the
// recency window, and feeds the queue. Closing the queue is the shutdown
// signal for every worker, so it is deferred: a discovery failure must never
// leave the workers blocked.
func (p *Pipeline) produce(ctx context.Context, queue chan<- domain.NewsItem, opts RunOptions) {
	defer close(queue)

	candidates, err := p.source.Discover(ctx, opts.MaxCount, opts.Extended)
	if err != nil {
		p.warn("discovery failed", "error", err)
		return
	}
	if len(candidates) == 0 {
		p.info("no news links found on the summary page")
		return
	}

	p.info("discovered news links", "count", len(candidates))

	for idx, candidate := range candidates {
		if ctx.Err() != nil {
			return
		}

		var (
			content    string
			detailTime *time.Time
		)
		fetchErr := retry.Do(ctx, retry.Config{MaxAttempts: 2, Delay: p.delay}, func() error {
			var err error
			content, detailTime, err = p.source.FetchDetail(ctx, candidate.URL, candidate.Title)
			return err
		})
		if fetchErr != nil {
			p.warn("fetch detail failed", "url", candidate.URL, "error", fetchErr)
			continue
		}

		// The listing-page timestamp is considered more reliable than
		// whatever the detail page exposes.
		publishedAt := candidate.PublishedAt
		if publishedAt == nil {
			publishedAt = detailTime
		}
		if publishedAt != nil && !withinDays(*publishedAt, opts.Days) {
			continue
		}

		resolved := time.Now()
		if publishedAt != nil {
			resolved = *publishedAt
		}

		if content == "" {
			content = candidate.Title
		}

		item := domain.NewsItem{
			Title:       candidate.Title,
			URL:         candidate.URL,
			Content:     content,
			PublishedAt: resolved,
			Source:      p.sourceName,
			Category:    p.category,
		}

		select {
		case queue <- item:
		case <-ctx.Done():
			return
		}
		p.debug("queued article", "index", idx+1, "total", len(candidates), "title", candidate.Title)

		if p.delay > 0 {
			select {
			case <-time.After(p.delay):
			case <-ctx.Done():
				return
			}
		}
	}
}

// consume drains the queue until it is closed. Every dequeued item bumps
// TotalProcessed exactly once; a bad item is counted as failed and never
// terminates the worker.
func (p *Pipeline) consume(ctx context.Context, queue <-chan domain.NewsItem, enrich bool, workerID int) workerResult {
	var result workerResult
	for item := range queue {
		p.processItem(ctx, item, enrich, workerID, &result)
	}
	return result
}

func (p *Pipeline) processItem(ctx context.Context, item domain.NewsItem, enrich bool, workerID int, result *workerResult) {
	defer func() {
		result.stats.TotalProcessed++
	}()

	existing, err := p.store.FindByURL(ctx, item.URL)
	if err != nil {
		result.stats.Failed++
		p.warn("lookup failed", "worker", workerID, "url", item.URL, "error", err)
		return
	}

	switch {
	case existing == nil:
		keywords, industry := p.enrichItem(ctx, item, enrich)
		if _, err := p.store.Insert(ctx, item, keywords, industry); err != nil {
			result.stats.Failed++
			p.warn("insert failed", "worker", workerID, "title", item.Title, "error", err)
			return
		}
		result.stats.Inserted++
		result.saved = append(result.saved, processedItem{item: item, keywords: keywords, inserted: true})
		p.debug("saved article", "worker", workerID, "title", item.Title)

	case len(item.Content) > len(existing.Content):
		keywords, industry := p.enrichItem(ctx, item, enrich)
		if err := p.store.Update(ctx, existing.ID, item.Content, keywords, industry); err != nil {
			result.stats.Failed++
			p.warn("update failed", "worker", workerID, "title", item.Title, "error", err)
			return
		}
		result.stats.Updated++
		result.saved = append(result.saved, processedItem{item: item, keywords: keywords})
		p.debug("updated article", "worker", workerID, "title", item.Title)

	default:
		result.stats.DuplicateSkipped++
		p.debug("skipped duplicate", "worker", workerID, "title", item.Title)
	}
}

// enrichItem asks the model service for keywords and an industry label.
// Either call may fail without blocking the write; the record is then stored
// without enrichment, matching the best-effort contract.
func (p *Pipeline) enrichItem(ctx context.Context, item domain.NewsItem, enrich bool) ([]string, string) {
	if !enrich {
		return nil, ""
	}

	fullText := item.FullText()

	var keywords []string
	weighted, err := p.enricher.ExtractKeywords(ctx, fullText, p.topKeywords)
	if err != nil {
		p.warn("keyword extraction failed", "title", item.Title, "error", err)
	} else {
		for _, kw := range weighted {
			keywords = append(keywords, kw.Keyword)
		}
	}

	var industry string
	matches, err := p.enricher.IdentifyIndustry(ctx, fullText, 1)
	if err != nil {
		p.warn("industry identification failed", "title", item.Title, "error", err)
	} else if len(matches) > 0 {
		industry = matches[0].Label
	}

	return keywords, industry
}

// recordTrends bumps the keyword trend counters for everything written this
// run. Best-effort: a trend write failure is logged, never surfaced.
func (p *Pipeline) recordTrends(ctx context.Context, saved []processedItem) {
	for _, entry := range saved {
		date := entry.item.PublishedAt.Format("2006-01-02")
		for _, keyword := range entry.keywords {
			if err := p.store.RecordKeywordTrend(ctx, keyword, date, 1); err != nil {
				p.warn("record keyword trend failed", "keyword", keyword, "error", err)
			}
		}
	}
}

func (p *Pipeline) publishDigest(ctx context.Context, stats domain.RunStats, saved []processedItem) {
	if p.notifier == nil || stats.Inserted+stats.Updated == 0 {
		return
	}

	if err := p.notifier.PublishDigest(ctx, buildDigest(p.sourceName, stats, saved)); err != nil {
		p.warn("publish digest failed", "error", err)
	}
}

func buildDigest(sourceName string, stats domain.RunStats, saved []processedItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📰 <b>%s 爬取完成</b>\n", sourceName)
	fmt.Fprintf(&b, "新增 %d · 更新 %d · 重複 %d · 失敗 %d · 總計 %d\n",
		stats.Inserted, stats.Updated, stats.DuplicateSkipped, stats.Failed, stats.TotalProcessed)

	listed := 0
	for _, entry := range saved {
		if !entry.inserted {
			continue
		}
		if listed >= digestTitleLimit {
			fmt.Fprintf(&b, "… 以及另外 %d 條\n", stats.Inserted-listed)
			break
		}
		fmt.Fprintf(&b, "• %s\n", entry.item.Title)
		listed++
	}

	return b.String()
}

// withinDays reports whether ts falls inside [now-days, now]; future
// timestamps are outside the window.
func withinDays(ts time.Time, days int) bool {
	delta := time.Since(ts)
	return delta >= 0 && delta <= time.Duration(days)*24*time.Hour
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
