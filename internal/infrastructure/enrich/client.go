package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"StockNewsScanner/internal/domain"
	"StockNewsScanner/internal/ports"
)

// Client talks to the external keyword/industry model service.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Enricher = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// ExtractKeywords requests the top-n keywords for the text, ordered by
// descending weight.
func (c *Client) ExtractKeywords(ctx context.Context, text string, topN int) ([]domain.KeywordWeight, error) {
	payload := map[string]any{
		"text":  text,
		"top_n": topN,
	}

	var resp struct {
		Keywords []domain.KeywordWeight `json:"keywords"`
	}

	if err := c.post(ctx, "/keywords", payload, &resp); err != nil {
		return nil, err
	}

	return resp.Keywords, nil
}

// IdentifyIndustry requests the top-n industry classifications for the text.
func (c *Client) IdentifyIndustry(ctx context.Context, text string, topN int) ([]domain.IndustryMatch, error) {
	payload := map[string]any{
		"text":  text,
		"top_n": topN,
	}

	var resp struct {
		Industries []domain.IndustryMatch `json:"industries"`
	}

	if err := c.post(ctx, "/industries", payload, &resp); err != nil {
		return nil, err
	}

	return resp.Industries, nil
}

// Ping checks the service health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
