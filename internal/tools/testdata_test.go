package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const testGuidelines = `# Brand Guidelines

## Voice
Professional yet approachable. Lead with insight.

## Hashtags
Always include #AIInnovation on LinkedIn.
`

const testPosts = `[
  {"platform": "linkedin", "content": "How AI changed our planning #AIInnovation", "date": "2025-01-10", "engagement_rate": 5.2, "impressions": 12000, "performance": "high", "success_factors": ["data", "story"]},
  {"platform": "linkedin", "content": "Culture at our office", "date": "2025-01-12", "engagement_rate": 3.0, "impressions": 8000, "performance": "medium"},
  {"platform": "twitter", "content": "Thread on AI agents", "date": "2025-01-14", "engagement_rate": 4.0, "impressions": 15000, "performance": "very_high"}
]`

const testCalendar = `{
  "week_of": "2025-01-20",
  "theme": "AI at work",
  "calendar": [
    {"day": "Tuesday", "time": "9:00 AM", "platform": "linkedin", "topic": "Agents in planning", "content_type": "carousel"},
    {"day": "Thursday", "time": "11:00 AM", "platform": "twitter", "topic": "Build in public", "content_type": "thread"}
  ]
}`

func writeTestData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		GuidelinesFile: testGuidelines,
		PastPostsFile:  testPosts,
		CalendarFile:   testCalendar,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func loadTestData(t *testing.T) *BrandData {
	t.Helper()
	d, err := LoadBrandData(writeTestData(t), nil)
	if err != nil {
		t.Fatalf("LoadBrandData() error = %v", err)
	}
	return d
}

type fakeSearcher struct {
	results []SearchResult
	err     error
	queries []string
}

func (f *fakeSearcher) Text(_ context.Context, query string, max int) ([]SearchResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	if max > 0 && len(f.results) > max {
		return f.results[:max], nil
	}
	return f.results, nil
}

func (f *fakeSearcher) News(ctx context.Context, query string, _ int, max int) ([]SearchResult, error) {
	return f.Text(ctx, query, max)
}
