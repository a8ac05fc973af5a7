package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"StockNewsScanner/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "news.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return store
}

func sampleItem(url string) domain.NewsItem {
	return domain.NewsItem{
		Title:       "騰訊第二季多賺一成",
		URL:         url,
		Content:     "第一段內容。",
		PublishedAt: time.Date(2025, 11, 12, 23, 45, 0, 0, time.UTC),
		Source:      "AAStocks",
		Category:    "港股新聞",
	}
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("second ensure schema: %v", err)
	}
}

func TestInsertFindUpdate(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	absent, err := store.FindByURL(ctx, "http://example.com/none")
	if err != nil {
		t.Fatalf("find absent: %v", err)
	}
	if absent != nil {
		t.Fatalf("expected nil for absent url, got %+v", absent)
	}

	item := sampleItem("http://example.com/news/1")
	id, err := store.Insert(ctx, item, []string{"騰訊", "業績"}, "科技")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	found, err := store.FindByURL(ctx, item.URL)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil || found.ID != id {
		t.Fatalf("unexpected find result: %+v", found)
	}
	if found.Content != item.Content {
		t.Fatalf("unexpected content: %q", found.Content)
	}

	longer := item.Content + " 更多細節。"
	if err := store.Update(ctx, id, longer, []string{"騰訊"}, "科技"); err != nil {
		t.Fatalf("update: %v", err)
	}

	found, err = store.FindByURL(ctx, item.URL)
	if err != nil {
		t.Fatalf("find after update: %v", err)
	}
	if found.Content != longer {
		t.Fatalf("content not updated: %q", found.Content)
	}
}

func TestInsertDuplicateURLRejected(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	item := sampleItem("http://example.com/news/dup")
	if _, err := store.Insert(ctx, item, nil, ""); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := store.Insert(ctx, item, nil, ""); err == nil {
		t.Fatal("expected unique constraint error on duplicate url")
	}
}

func TestKeywordTrendUpsert(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.RecordKeywordTrend(ctx, "騰訊", "2025-11-12", 1); err != nil {
		t.Fatalf("record trend: %v", err)
	}
	if err := store.RecordKeywordTrend(ctx, "騰訊", "2025-11-12", 2); err != nil {
		t.Fatalf("record trend again: %v", err)
	}
	if err := store.RecordKeywordTrend(ctx, "騰訊", "2025-11-13", 1); err != nil {
		t.Fatalf("record trend new day: %v", err)
	}

	points, err := store.KeywordTrend(ctx, "騰訊", "")
	if err != nil {
		t.Fatalf("keyword trend: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Date != "2025-11-12" || points[0].Count != 3 {
		t.Fatalf("unexpected first point: %+v", points[0])
	}

	since, err := store.KeywordTrend(ctx, "騰訊", "2025-11-13")
	if err != nil {
		t.Fatalf("keyword trend since: %v", err)
	}
	if len(since) != 1 {
		t.Fatalf("expected 1 point since 11-13, got %d", len(since))
	}
}

func TestSearchRecent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	first := sampleItem("http://example.com/news/a")
	if _, err := store.Insert(ctx, first, []string{"騰訊"}, "科技"); err != nil {
		t.Fatalf("insert first: %v", err)
	}

	second := sampleItem("http://example.com/news/b")
	second.Title = "港交所全年業績"
	if _, err := store.Insert(ctx, second, []string{"港交所"}, "金融"); err != nil {
		t.Fatalf("insert second: %v", err)
	}

	results, err := store.SearchRecent(ctx, "騰訊", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].URL != first.URL {
		t.Fatalf("unexpected result: %+v", results[0])
	}
	if results[0].PublishedAt.IsZero() {
		t.Fatal("publish date not parsed back")
	}
}
