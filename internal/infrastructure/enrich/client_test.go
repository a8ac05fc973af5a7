package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractKeywords(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/keywords" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header: %s", got)
		}

		var payload struct {
			Text string `json:"text"`
			TopN int    `json:"top_n"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload.TopN != 5 {
			t.Errorf("expected top_n=5, got %d", payload.TopN)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"keywords": []map[string]any{
				{"keyword": "騰訊", "weight": 0.91},
				{"keyword": "業績", "weight": 0.52},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	keywords, err := client.ExtractKeywords(context.Background(), "騰訊公布業績", 5)
	if err != nil {
		t.Fatalf("extract keywords: %v", err)
	}
	if len(keywords) != 2 {
		t.Fatalf("expected 2 keywords, got %d", len(keywords))
	}
	if keywords[0].Keyword != "騰訊" || keywords[0].Weight != 0.91 {
		t.Fatalf("unexpected first keyword: %+v", keywords[0])
	}
}

func TestIdentifyIndustry(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/industries" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"industries": []map[string]any{
				{"id": "tech", "label": "科技", "strength": 3.0},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	industries, err := client.IdentifyIndustry(context.Background(), "騰訊公布業績", 1)
	if err != nil {
		t.Fatalf("identify industry: %v", err)
	}
	if len(industries) != 1 || industries[0].Label != "科技" {
		t.Fatalf("unexpected industries: %+v", industries)
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer healthy.Close()

	if err := NewClient(healthy.URL, "").Ping(context.Background()); err != nil {
		t.Fatalf("ping healthy service: %v", err)
	}

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	if err := NewClient(broken.URL, "").Ping(context.Background()); err == nil {
		t.Fatal("expected error from unhealthy service")
	}
}
