package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"StockNewsScanner/internal/domain"
	"StockNewsScanner/internal/scanner"
)

const (
	aastocksBaseURL  = "http://www.aastocks.com"
	maxDiscoverPages = 50
)

// AAStocks embeds publish times in script fragments like dt:'2025/11/12 23:45'.
var (
	scriptTimeExpr = regexp.MustCompile(`dt:\s*['"](\d{4}/\d{1,2}/\d{1,2}\s+\d{1,2}:\d{2})['"]`)
	newsTimeExpr   = regexp.MustCompile(`newstime['"]?\s*[:=]\s*['"](\d{4}/\d{1,2}/\d{1,2}\s+\d{1,2}:\d{2})['"]`)
	bodyTimeExpr   = regexp.MustCompile(`(\d{4})[/-](\d{1,2})[/-](\d{1,2})\s+(\d{1,2}):(\d{2})`)
	newsIDExpr     = regexp.MustCompile(`/([A-Z]+\.\d+)/`)
)

// AAStocksScanner crawls the AAStocks summary page and news detail pages.
type AAStocksScanner struct {
	client     *http.Client
	name       string
	summaryURL string
}

var _ scanner.Source = (*AAStocksScanner)(nil)

// NewAAStocksScanner wires an HTTP client; summaryURL is the listing page.
func NewAAStocksScanner(client *http.Client, name, summaryURL string) *AAStocksScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if name == "" {
		name = "aastocks"
	}
	return &AAStocksScanner{client: client, name: name, summaryURL: summaryURL}
}

// Name identifies the source inside the registry.
func (a *AAStocksScanner) Name() string {
	return a.name
}

// Discover extracts news links from the summary page. Extended mode walks
// paged listing URLs until maxCount is reached or pages stop yielding new
// links.
func (a *AAStocksScanner) Discover(ctx context.Context, maxCount int, extended bool) ([]domain.Candidate, error) {
	if !extended {
		doc, err := a.fetchDocument(ctx, a.summaryURL)
		if err != nil {
			return nil, fmt.Errorf("summary page: %w", err)
		}
		candidates := extractNewsLinks(doc, map[string]struct{}{}, maxCount)
		return candidates, nil
	}

	var (
		candidates []domain.Candidate
		seen       = map[string]struct{}{}
		noNew      int
	)

	for page := 1; page <= maxDiscoverPages && len(candidates) < maxCount; page++ {
		pageURL, err := buildPageURL(a.summaryURL, page)
		if err != nil {
			return nil, err
		}

		doc, err := a.fetchDocument(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("summary page: %w", err)
			}
			break
		}

		found := extractNewsLinks(doc, seen, maxCount-len(candidates))
		if len(found) == 0 {
			noNew++
			if noNew >= 3 {
				break
			}
			continue
		}
		noNew = 0
		candidates = append(candidates, found...)
	}

	return candidates, nil
}

// FetchDetail loads a news detail page and extracts body text plus the
// publish time when the page exposes one.
func (a *AAStocksScanner) FetchDetail(ctx context.Context, newsURL, title string) (string, *time.Time, error) {
	doc, err := a.fetchDocument(ctx, newsURL)
	if err != nil {
		return "", nil, fmt.Errorf("detail page %s: %w", newsURL, err)
	}

	content := extractContent(doc)
	publishedAt := extractDetailTime(doc)
	return content, publishedAt, nil
}

func (a *AAStocksScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("aastocks returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func extractNewsLinks(doc *goquery.Document, seen map[string]struct{}, limit int) []domain.Candidate {
	var candidates []domain.Candidate

	doc.Find("a[href]").EachWithBreak(func(i int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if !strings.Contains(href, "/news/aafn-con/") && !strings.Contains(href, "/stocks/news/aafn-con/") {
			return true
		}

		fullURL := absolutizeURL(href)
		if _, ok := seen[fullURL]; ok {
			return true
		}

		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}

		seen[fullURL] = struct{}{}
		candidates = append(candidates, domain.Candidate{
			URL:         fullURL,
			Title:       title,
			PublishedAt: findListingTime(doc, link, fullURL),
		})

		return len(candidates) < limit
	})

	return candidates
}

// findListingTime pulls the publish time the listing page attaches to a news
// link: first the newstime4 fragment in an enclosing container, then any
// script on the page that mentions the link's news ID.
func findListingTime(doc *goquery.Document, link *goquery.Selection, fullURL string) *time.Time {
	parent := link.Parent()
	for depth := 0; depth < 10 && parent.Length() > 0; depth++ {
		script := parent.Find("div.newstime4 script").First()
		if script.Length() > 0 {
			if ts := parseScriptTime(script.Text()); ts != nil {
				return ts
			}
			break
		}
		parent = parent.Parent()
	}

	idMatch := newsIDExpr.FindStringSubmatch(fullURL)
	if idMatch == nil {
		return nil
	}

	var found *time.Time
	doc.Find("script").EachWithBreak(func(i int, script *goquery.Selection) bool {
		text := script.Text()
		if !strings.Contains(text, idMatch[1]) {
			return true
		}
		if ts := parseScriptTime(text); ts != nil {
			found = ts
			return false
		}
		return true
	})

	return found
}

func extractContent(doc *goquery.Document) string {
	container := doc.Find("#spanContent").First()
	if container.Length() == 0 {
		container = doc.Find("#divContentContainer").First()
	}

	var content string
	if container.Length() > 0 {
		var lines []string
		for _, line := range strings.Split(container.Text(), "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
		content = strings.TrimSpace(strings.ReplaceAll(strings.Join(lines, "\n"), "AASTOCKS新聞", ""))

		if strings.Contains(content, "暫時沒有相關新聞") || strings.Contains(content, "暂时没有相关新闻") {
			content = ""
		} else if strings.Contains(content, "最HIT熱話") && len(content) > 500 {
			content = ""
		}
	}

	if content == "" {
		var paragraphs []string
		doc.Find("p").Each(func(i int, p *goquery.Selection) {
			text := strings.TrimSpace(p.Text())
			if len([]rune(text)) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		content = strings.Join(paragraphs, "\n\n")
	}

	return content
}

func extractDetailTime(doc *goquery.Document) *time.Time {
	var found *time.Time
	doc.Find("script").EachWithBreak(func(i int, script *goquery.Selection) bool {
		text := script.Text()
		for _, expr := range []*regexp.Regexp{scriptTimeExpr, newsTimeExpr} {
			match := expr.FindStringSubmatch(text)
			if match == nil {
				continue
			}
			if ts := parseNewsTime(match[1]); ts != nil {
				found = ts
				return false
			}
		}
		return true
	})
	if found != nil {
		return found
	}

	if meta, ok := doc.Find(`meta[name="aa-update"]`).First().Attr("content"); ok {
		if parsed, err := time.Parse("2006-01-02 15:04:05", meta); err == nil {
			return &parsed
		}
	}

	searchText := doc.Find("#spanContent, #divContentContainer").First().Text()
	if searchText == "" {
		searchText = doc.Text()
	}
	if match := bodyTimeExpr.FindStringSubmatch(searchText); match != nil {
		parts := make([]int, 5)
		for i := range parts {
			parts[i], _ = strconv.Atoi(match[i+1])
		}
		candidate := time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], 0, 0, time.Local)
		if plausibleNewsTime(candidate) {
			return &candidate
		}
	}

	return nil
}

func parseScriptTime(text string) *time.Time {
	match := scriptTimeExpr.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	return parseNewsTime(match[1])
}

func parseNewsTime(value string) *time.Time {
	for _, layout := range []string{"2006/1/2 15:04", "2006-1-2 15:04"} {
		if parsed, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			if plausibleNewsTime(parsed) {
				return &parsed
			}
			return nil
		}
	}
	return nil
}

// plausibleNewsTime rejects future-dated and pre-2020 timestamps, which show
// up when a script fragment carries an unrelated date.
func plausibleNewsTime(ts time.Time) bool {
	return !ts.After(time.Now()) && ts.Year() >= 2020
}

func absolutizeURL(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return aastocksBaseURL + href
	}
	return aastocksBaseURL + "/" + href
}

func buildPageURL(base string, page int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid summary url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("p", strconv.Itoa(page))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
