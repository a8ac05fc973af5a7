package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"StockNewsScanner/internal/domain"
	"StockNewsScanner/internal/scanner"
)

// RSSSource exposes a set of RSS/Atom feeds (crypto news outlets) through the
// same source contract as the HTML scanners. Feed items already carry their
// body, so FetchDetail answers from the parsed items instead of refetching.
type RSSSource struct {
	parser *gofeed.Parser
	name   string
	feeds  []string
	logger *slog.Logger

	mu    sync.Mutex
	items map[string]*gofeed.Item
}

var _ scanner.Source = (*RSSSource)(nil)

// NewRSSSource wires a gofeed parser over the configured feed URLs.
func NewRSSSource(name string, feeds []string, logger *slog.Logger) *RSSSource {
	return &RSSSource{
		parser: gofeed.NewParser(),
		name:   name,
		feeds:  feeds,
		logger: logger,
		items:  map[string]*gofeed.Item{},
	}
}

// Name identifies the source inside the registry.
func (r *RSSSource) Name() string {
	return r.name
}

// Discover parses every configured feed; a broken feed is logged and skipped
// so one dead outlet never aborts the run.
func (r *RSSSource) Discover(ctx context.Context, maxCount int, extended bool) ([]domain.Candidate, error) {
	if len(r.feeds) == 0 {
		return nil, fmt.Errorf("source %s has no feeds configured", r.name)
	}

	var candidates []domain.Candidate
	parsed := 0

	for _, feedURL := range r.feeds {
		feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			r.warn("parse feed failed", "feed", feedURL, "error", err)
			continue
		}
		parsed++

		for _, item := range feed.Items {
			if len(candidates) >= maxCount {
				break
			}
			if item.Link == "" || item.Title == "" {
				continue
			}

			r.remember(item)
			candidates = append(candidates, domain.Candidate{
				URL:         item.Link,
				Title:       item.Title,
				PublishedAt: itemTime(item),
			})
		}
	}

	if parsed == 0 {
		return nil, fmt.Errorf("all %d feeds of source %s failed", len(r.feeds), r.name)
	}

	return candidates, nil
}

// FetchDetail returns the body captured during discovery.
func (r *RSSSource) FetchDetail(ctx context.Context, url, title string) (string, *time.Time, error) {
	r.mu.Lock()
	item, ok := r.items[url]
	r.mu.Unlock()

	if !ok {
		return "", nil, fmt.Errorf("feed item %s not seen during discovery", url)
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}
	return content, itemTime(item), nil
}

func (r *RSSSource) remember(item *gofeed.Item) {
	r.mu.Lock()
	r.items[item.Link] = item
	r.mu.Unlock()
}

func itemTime(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return item.UpdatedParsed
}

func (r *RSSSource) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
