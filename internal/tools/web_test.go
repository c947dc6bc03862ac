package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/oneshot/internal/citation"
)

func TestSearchWeb(t *testing.T) {
	ctx := context.Background()

	t.Run("live", func(t *testing.T) {
		s := &fakeSearcher{results: []SearchResult{
			{Title: "A", URL: "https://a.example.com", Snippet: "first"},
			{Title: "B", URL: "https://b.example.com"},
		}}
		out := SearchWeb(ctx, s, "ai")
		urls := citation.ExtractURLs(out)
		if len(urls) != 2 || urls[0] != "https://a.example.com" {
			t.Errorf("URLs = %v\n%s", urls, out)
		}
	})

	t.Run("offline fallback", func(t *testing.T) {
		out := SearchWeb(ctx, &fakeSearcher{err: errors.New("dns failure")}, "ai")
		if !strings.Contains(out, "dns failure") {
			t.Errorf("fallback should mention the error:\n%s", out)
		}
		cites := citation.Extract(out)
		if len(cites) != 3 || cites[0].Preview != "Gartner Research" {
			t.Errorf("fallback citations = %+v", cites)
		}
	})

	t.Run("no results", func(t *testing.T) {
		out := SearchWeb(ctx, &fakeSearcher{}, "zzz")
		if !strings.HasPrefix(out, "No web results") {
			t.Errorf("got %q", out)
		}
	})

	t.Run("nil searcher", func(t *testing.T) {
		if out := SearchWeb(ctx, nil, "ai"); !strings.Contains(out, "cached results") {
			t.Errorf("got %q", out)
		}
	})
}

func TestSearchNews_DefaultsDays(t *testing.T) {
	s := &fakeSearcher{results: []SearchResult{{Title: "N", URL: "https://n.example.com", Date: "today"}}}
	out := SearchNews(context.Background(), s, "ai", 0)
	if !strings.Contains(out, "(last 7 days)") || !strings.Contains(out, "**N** (today)") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestSearchTrends(t *testing.T) {
	out := SearchTrends(context.Background(), &fakeSearcher{}, "ai", "twitter")
	if !strings.Contains(out, "#AIAgents") || strings.Contains(out, "linkedin") {
		t.Errorf("curated twitter trends expected:\n%s", out)
	}

	live := &fakeSearcher{results: []SearchResult{{Title: "T", URL: "https://t.example.com"}}}
	out = SearchTrends(context.Background(), live, "ai", "")
	if !strings.Contains(out, "Live trending topics") || live.queries[0] != "ai trending all social media" {
		t.Errorf("live trends expected, query %v:\n%s", live.queries, out)
	}
}

func TestAnalyzeHashtags(t *testing.T) {
	d := loadTestData(t)
	out := AnalyzeHashtags(context.Background(), nil, d, "#AIInnovation, #BuildInPublic", "linkedin")

	if !strings.Contains(out, "#AIInnovation: Found in 1 past post(s), avg engagement 5.2%") {
		t.Errorf("missing historical note:\n%s", out)
	}
	if again := AnalyzeHashtags(context.Background(), nil, d, "#AIInnovation, #BuildInPublic", "linkedin"); again != out {
		t.Error("analysis should be deterministic")
	}
}

func TestSearchCompetitor(t *testing.T) {
	s := &fakeSearcher{results: []SearchResult{{Title: "Rival", URL: "https://rival.example.com", Snippet: "posts a lot"}}}
	out := SearchCompetitor(context.Background(), s, "Rival", "all")
	if !strings.Contains(out, "Live Research on Rival") || !strings.Contains(out, "https://rival.example.com") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
