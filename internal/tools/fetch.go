package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

const (
	defaultMaxPageBytes = 1 << 20
	// MaxPageChars bounds the markdown handed back to the model.
	MaxPageChars = 8000
)

var excessiveLinesRe = regexp.MustCompile(`\n{3,}`)

// Fetcher downloads a page and converts its main content to markdown.
type Fetcher struct {
	client    *http.Client
	converter *md.Converter
	userAgent string
	maxBytes  int64
}

// NewFetcher creates a fetcher with the given request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		converter: converter,
		userAgent: DefaultUserAgent,
		maxBytes:  defaultMaxPageBytes,
	}
}

// Page is a fetched document.
type Page struct {
	URL      string
	Title    string
	Markdown string
}

// Fetch retrieves rawURL and converts it.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d: %s", u.Host, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return f.Convert(u.String(), body)
}

// Convert turns an HTML document into a Page.
func (f *Fetcher) Convert(pageURL string, body []byte) (*Page, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := ""
	if t := findTag(doc, "title"); t != nil {
		title = strings.TrimSpace(textContent(t))
	}

	content := string(body)
	for _, tag := range []string{"main", "article", "body"} {
		if n := findTag(doc, tag); n != nil {
			stripTags(n, "script", "style", "nav", "header", "footer", "aside", "noscript", "form")
			var sb strings.Builder
			if err := html.Render(&sb, n); err == nil {
				content = sb.String()
			}
			break
		}
	}

	markdown, err := f.converter.ConvertString(content)
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}
	markdown = strings.TrimSpace(excessiveLinesRe.ReplaceAllString(markdown, "\n\n"))

	return &Page{URL: pageURL, Title: title, Markdown: markdown}, nil
}

func findTag(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findTag(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func stripTags(n *html.Node, tags ...string) {
	drop := make(map[string]bool, len(tags))
	for _, t := range tags {
		drop[t] = true
	}
	var remove []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && drop[n.Data] {
			remove = append(remove, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	for _, r := range remove {
		if r.Parent != nil {
			r.Parent.RemoveChild(r)
		}
	}
}

// FetchPageTool exposes the fetcher as the fetch_page tool.
func FetchPageTool(f *Fetcher) Tool {
	return NewFunc("fetch_page",
		"Fetch a web page and return its main content as markdown. Use it to read a source found by search.",
		Schema{
			Properties: map[string]any{"url": prop("string", "Absolute http(s) URL to fetch")},
			Required:   []string{"url"},
		},
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var args struct {
				URL string `json:"url"`
			}
			if err := decode(input, &args); err != nil {
				return "", err
			}
			page, err := f.Fetch(ctx, args.URL)
			if err != nil {
				return "", err
			}
			text := page.Markdown
			if r := []rune(text); len(r) > MaxPageChars {
				text = string(r[:MaxPageChars]) + "\n\n[truncated]"
			}
			return fmt.Sprintf("# %s\nSource: %s\n\n%s", page.Title, page.URL, text), nil
		})
}
