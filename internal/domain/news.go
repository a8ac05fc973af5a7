package domain

import "time"

// NewsItem is a single scraped news article. The URL is the dedup key inside
// the store; the producer builds a NewsItem once and consumers only read it.
type NewsItem struct {
	Title       string
	URL         string
	Content     string
	PublishedAt time.Time
	Source      string
	Category    string
}

// FullText joins title and body the way the analyzer expects its input.
func (n NewsItem) FullText() string {
	return n.Title + "\n" + n.Content
}

// KeywordWeight is one extracted keyword with its relevance weight,
// ordered by descending weight in analyzer responses.
type KeywordWeight struct {
	Keyword string  `json:"keyword"`
	Weight  float64 `json:"weight"`
}

// IndustryMatch is one classified industry candidate.
type IndustryMatch struct {
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	Strength float64 `json:"strength"`
}

// StoredNews is the slice of a persisted record the pipeline needs for its
// insert-or-update decision.
type StoredNews struct {
	ID      int64
	Content string
}

// RunStats aggregates the outcome counters of one crawl run. Each worker
// accumulates its own copy; the coordinator merges them after join.
type RunStats struct {
	Inserted         int
	Updated          int
	DuplicateSkipped int
	Failed           int
	TotalProcessed   int
}

// Add merges other into s.
func (s *RunStats) Add(other RunStats) {
	s.Inserted += other.Inserted
	s.Updated += other.Updated
	s.DuplicateSkipped += other.DuplicateSkipped
	s.Failed += other.Failed
	s.TotalProcessed += other.TotalProcessed
}

// TrendPoint is a keyword's mention count on one date bucket.
type TrendPoint struct {
	Date  string
	Count int
}

// Candidate is a discovered article link before its detail page is fetched.
// PublishedAt is the listing-page timestamp when the listing exposed one.
type Candidate struct {
	URL         string
	Title       string
	PublishedAt *time.Time
}
