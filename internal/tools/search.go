package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// DefaultUserAgent is sent with outbound web requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; oneshot/1.0)"

const (
	defaultSearchURL = "https://html.duckduckgo.com/html/"
	maxSearchBody    = 2 << 20
)

// SearchResult is one web or news hit.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
	Date    string
}

// Searcher runs live web searches.
type Searcher interface {
	Text(ctx context.Context, query string, max int) ([]SearchResult, error)
	News(ctx context.Context, query string, days, max int) ([]SearchResult, error)
}

// DuckDuckGo searches the DuckDuckGo HTML endpoint.
type DuckDuckGo struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

// DuckDuckGoOption configures a DuckDuckGo searcher.
type DuckDuckGoOption func(*DuckDuckGo)

// WithBaseURL points the searcher at another endpoint.
func WithBaseURL(u string) DuckDuckGoOption {
	return func(d *DuckDuckGo) { d.baseURL = u }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) DuckDuckGoOption {
	return func(d *DuckDuckGo) { d.client = c }
}

// NewDuckDuckGo creates a searcher with a 10 second timeout.
func NewDuckDuckGo(opts ...DuckDuckGoOption) *DuckDuckGo {
	d := &DuckDuckGo{
		client:    &http.Client{Timeout: 10 * time.Second},
		baseURL:   defaultSearchURL,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Text runs a general web search.
func (d *DuckDuckGo) Text(ctx context.Context, query string, max int) ([]SearchResult, error) {
	return d.search(ctx, query, "", max)
}

// News runs a search restricted to recent pages.
func (d *DuckDuckGo) News(ctx context.Context, query string, days, max int) ([]SearchResult, error) {
	return d.search(ctx, query+" news", freshness(days), max)
}

// freshness maps a look-back window to the endpoint's date filter.
func freshness(days int) string {
	switch {
	case days <= 1:
		return "d"
	case days <= 7:
		return "w"
	case days <= 31:
		return "m"
	default:
		return "y"
	}
}

func (d *DuckDuckGo) search(ctx context.Context, query, df string, max int) ([]SearchResult, error) {
	form := url.Values{"q": {query}}
	if df != "" {
		form.Set("df", df)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request: HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	results, err := ParseDuckDuckGo(io.LimitReader(resp.Body, maxSearchBody))
	if err != nil {
		return nil, err
	}
	if max > 0 && len(results) > max {
		results = results[:max]
	}
	return results, nil
}

// ParseDuckDuckGo extracts results from a DuckDuckGo HTML results page.
func ParseDuckDuckGo(r io.Reader) ([]SearchResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	var results []SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "result__a"):
				results = append(results, SearchResult{
					Title: strings.TrimSpace(textContent(n)),
					URL:   resolveResultURL(attr(n, "href")),
				})
				return
			case hasClass(n, "result__snippet") && len(results) > 0:
				results[len(results)-1].Snippet = strings.TrimSpace(textContent(n))
				return
			case hasClass(n, "result__timestamp") && len(results) > 0:
				results[len(results)-1].Date = strings.TrimSpace(textContent(n))
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	out := results[:0]
	for _, r := range results {
		if r.URL != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

// resolveResultURL unwraps DuckDuckGo redirect links.
func resolveResultURL(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
