package ports

import (
	"context"
	"time"

	"StockNewsScanner/internal/domain"
)

// ArticleSource discovers article links from a listing endpoint and fetches
// full content per link.
type ArticleSource interface {
	// Discover returns up to maxCount candidates in the source's own
	// relevance order. Extended switches the source to its deeper paged
	// discovery mode when it has one.
	Discover(ctx context.Context, maxCount int, extended bool) ([]domain.Candidate, error)

	// FetchDetail loads the detail page and returns its body text plus the
	// publish time when the page exposes one. Idempotent.
	FetchDetail(ctx context.Context, url, title string) (string, *time.Time, error)
}

// Enricher derives keywords and an industry classification from raw text.
type Enricher interface {
	ExtractKeywords(ctx context.Context, text string, topN int) ([]domain.KeywordWeight, error)
	IdentifyIndustry(ctx context.Context, text string, topN int) ([]domain.IndustryMatch, error)

	// Ping verifies the service is reachable; the pipeline downgrades to
	// enrichment-disabled when it fails.
	Ping(ctx context.Context) error
}

// NewsStore persists news records keyed by URL.
type NewsStore interface {
	EnsureSchema(ctx context.Context) error

	// FindByURL returns nil when no record exists for the URL.
	FindByURL(ctx context.Context, url string) (*domain.StoredNews, error)
	Insert(ctx context.Context, item domain.NewsItem, keywords []string, industry string) (int64, error)
	Update(ctx context.Context, id int64, content string, keywords []string, industry string) error

	RecordKeywordTrend(ctx context.Context, keyword, date string, count int) error
	KeywordTrend(ctx context.Context, keyword, since string) ([]domain.TrendPoint, error)
	SearchRecent(ctx context.Context, query string, limit int) ([]domain.NewsItem, error)
}

// Notifier pushes run digests to subscribers (Telegram, etc.).
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when recurring crawls execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
