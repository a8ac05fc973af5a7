package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"StockNewsScanner/internal/domain"
	"StockNewsScanner/internal/ports"
)

const newsTable = "hkstocks_news"

// SQLiteStore persists news records and keyword trends into SQLite.
// The UNIQUE constraint on url backstops the pipeline's unguarded
// check-then-insert sequence.
type SQLiteStore struct {
	db *sql.DB
}

var _ ports.NewsStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (and creates, if needed) the database file.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables and indexes; idempotent.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS hkstocks_news (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			url TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL,
			publish_date TEXT NOT NULL,
			source TEXT DEFAULT 'AAStocks',
			category TEXT,
			keywords TEXT,
			industry TEXT,
			created_at TEXT DEFAULT (datetime('now')),
			updated_at TEXT DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hkstocks_url ON hkstocks_news(url)`,
		`CREATE INDEX IF NOT EXISTS idx_hkstocks_date ON hkstocks_news(publish_date DESC)`,
		`CREATE TABLE IF NOT EXISTS keyword_trends (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			keyword TEXT NOT NULL,
			date TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			UNIQUE(keyword, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_keyword_trends ON keyword_trends(keyword, date)`,
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	return nil
}

// FindByURL returns the stored record slice for the URL, nil when absent.
func (s *SQLiteStore) FindByURL(ctx context.Context, url string) (*domain.StoredNews, error) {
	query, args, err := sq.Select("id", "content").
		From(newsTable).
		Where(sq.Eq{"url": url}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find query: %w", err)
	}

	var stored domain.StoredNews
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&stored.ID, &stored.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by url: %w", err)
	}

	return &stored, nil
}

// Insert stores a new record and returns its id.
func (s *SQLiteStore) Insert(ctx context.Context, item domain.NewsItem, keywords []string, industry string) (int64, error) {
	query, args, err := sq.Insert(newsTable).
		Columns("title", "url", "content", "publish_date", "source", "category", "keywords", "industry").
		Values(
			item.Title,
			item.URL,
			item.Content,
			item.PublishedAt.Format(time.RFC3339),
			item.Source,
			item.Category,
			joinKeywords(keywords),
			nullableString(industry),
		).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert news: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	return id, nil
}

// Update overwrites content and enrichment fields of an existing record.
func (s *SQLiteStore) Update(ctx context.Context, id int64, content string, keywords []string, industry string) error {
	query, args, err := sq.Update(newsTable).
		Set("content", content).
		Set("keywords", joinKeywords(keywords)).
		Set("industry", nullableString(industry)).
		Set("updated_at", sq.Expr("datetime('now')")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update news %d: %w", id, err)
	}

	return nil
}

// RecordKeywordTrend bumps a keyword's mention count for one date bucket.
func (s *SQLiteStore) RecordKeywordTrend(ctx context.Context, keyword, date string, count int) error {
	query, args, err := sq.Insert("keyword_trends").
		Columns("keyword", "date", "count").
		Values(keyword, date, count).
		Suffix("ON CONFLICT(keyword, date) DO UPDATE SET count = count + excluded.count").
		ToSql()
	if err != nil {
		return fmt.Errorf("build trend query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record trend %s: %w", keyword, err)
	}

	return nil
}

// KeywordTrend returns the per-date counts of one keyword since a date.
func (s *SQLiteStore) KeywordTrend(ctx context.Context, keyword, since string) ([]domain.TrendPoint, error) {
	builder := sq.Select("date", "count").
		From("keyword_trends").
		Where(sq.Eq{"keyword": keyword}).
		OrderBy("date ASC")
	if since != "" {
		builder = builder.Where(sq.GtOrEq{"date": since})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build trend query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trend: %w", err)
	}
	defer rows.Close()

	var points []domain.TrendPoint
	for rows.Next() {
		var point domain.TrendPoint
		if err := rows.Scan(&point.Date, &point.Count); err != nil {
			return nil, fmt.Errorf("scan trend point: %w", err)
		}
		points = append(points, point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return points, nil
}

// SearchRecent matches the query against titles and stored keywords.
func (s *SQLiteStore) SearchRecent(ctx context.Context, query string, limit int) ([]domain.NewsItem, error) {
	if limit <= 0 {
		limit = 20
	}

	pattern := "%" + query + "%"
	sqlQuery, args, err := sq.Select("title", "url", "content", "publish_date", "source", "category").
		From(newsTable).
		Where(sq.Or{sq.Like{"title": pattern}, sq.Like{"keywords": pattern}}).
		OrderBy("publish_date DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query search: %w", err)
	}
	defer rows.Close()

	var items []domain.NewsItem
	for rows.Next() {
		var (
			item     domain.NewsItem
			rawDate  string
			category sql.NullString
		)
		if err := rows.Scan(&item.Title, &item.URL, &item.Content, &rawDate, &item.Source, &category); err != nil {
			return nil, fmt.Errorf("scan news row: %w", err)
		}
		if parsed, parseErr := time.Parse(time.RFC3339, rawDate); parseErr == nil {
			item.PublishedAt = parsed
		}
		item.Category = category.String
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return items, nil
}

func joinKeywords(keywords []string) any {
	if len(keywords) == 0 {
		return nil
	}
	return strings.Join(keywords, ",")
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
