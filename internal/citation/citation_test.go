package citation

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/oneshot/pkg/models"
)

func TestExtract_URLsAndLabels(t *testing.T) {
	text := `Findings:
1. AI adoption is rising (see https://example.com/report).
   Source: https://example.com/report
2. Benchmarks from the field.
   Source: Gartner Research
3. Nothing to cite here.
   Source: N/A
Also https://news.example.org/a?b=c, and again https://example.com/report.`

	got := Extract(text)
	want := []models.Citation{
		{Type: models.CitationURL, URL: "https://example.com/report", SourceTool: SourceTextExtraction},
		{Type: models.CitationURL, URL: "https://news.example.org/a?b=c", SourceTool: SourceTextExtraction},
		{Type: models.CitationKnowledge, SourceTool: SourceTextExtraction, Preview: "Gartner Research"},
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() =\n%+v\nwant\n%+v", got, want)
	}
}

func TestExtract_LabelContainingURL(t *testing.T) {
	got := Extract("Source: Gartner report (https://gartner.example.com/r)")
	want := []models.Citation{
		{Type: models.CitationURL, URL: "https://gartner.example.com/r", SourceTool: SourceTextExtraction},
		{Type: models.CitationKnowledge, SourceTool: SourceTextExtraction, Preview: "Gartner report (https://gartner.example.com/r)"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() =\n%+v\nwant\n%+v", got, want)
	}
}

func TestExtract_DuplicateURLYieldsOneCitation(t *testing.T) {
	text := "https://a.example.com/x and https://a.example.com/x"
	got := Extract(text)
	if len(got) != 1 {
		t.Fatalf("len(Extract) = %d, want 1: %+v", len(got), got)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	text := "Source: Sprout Social\nhttps://one.example.com https://two.example.com\nSource: HubSpot"
	first := Extract(text)
	second := Extract(text)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Extract not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestExtract_Empty(t *testing.T) {
	if got := Extract(""); len(got) != 0 {
		t.Errorf("Extract(\"\") = %+v, want empty", got)
	}
}

func TestExtract_TruncatesLabel(t *testing.T) {
	label := strings.Repeat("x", 400)
	got := Extract("Source: " + label)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if n := len([]rune(got[0].Preview)); n != KnowledgePreviewLen {
		t.Errorf("preview length = %d, want %d", n, KnowledgePreviewLen)
	}
}

func TestExtractFromTrace(t *testing.T) {
	raw := models.RawTrace{Invocations: []models.ToolInvocation{
		{Tool: "search_web", Input: json.RawMessage(`{"query":"ai"}`), Output: "1. X\n   Source: https://x.example.com\n2. Y https://y.example.com"},
		{Tool: "get_brand_guidelines", Output: "Be bold."},
		{Tool: "get_brand_guidelines", Output: "Be bold, again."},
		{Tool: "calculate_engagement_metrics", Output: "4.2% https://ignored.example.com"},
		{Tool: "search_news", Output: "https://x.example.com repeated"},
		{Tool: "search_trends", Output: "https://err.example.com", IsError: true},
	}}

	records, citations := ExtractFromTrace(raw)

	if len(records) != 6 {
		t.Fatalf("len(records) = %d, want 6", len(records))
	}
	if !records[0].IsSource || records[3].IsSource {
		t.Errorf("IsSource flags wrong: %+v", records)
	}
	if records[0].Arguments != `{"query":"ai"}` {
		t.Errorf("Arguments = %q", records[0].Arguments)
	}
	if len(records[3].URLs) != 0 {
		t.Errorf("non-source tool should not carry URLs: %v", records[3].URLs)
	}

	want := []models.Citation{
		{Type: models.CitationURL, URL: "https://x.example.com", SourceTool: "search_web"},
		{Type: models.CitationURL, URL: "https://y.example.com", SourceTool: "search_web"},
		{Type: models.CitationKnowledge, SourceTool: "get_brand_guidelines", Preview: "Be bold."},
	}
	if !reflect.DeepEqual(citations, want) {
		t.Errorf("citations =\n%+v\nwant\n%+v", citations, want)
	}
}

func TestMerge_TextFirstAndDedup(t *testing.T) {
	text := []models.Citation{
		{Type: models.CitationURL, URL: "https://a.example.com", SourceTool: SourceTextExtraction},
		{Type: models.CitationKnowledge, SourceTool: SourceTextExtraction, Preview: "Brand Book"},
	}
	trace := []models.Citation{
		{Type: models.CitationURL, URL: "https://a.example.com", SourceTool: "search_web"},
		{Type: models.CitationURL, URL: "https://b.example.com", SourceTool: "search_web"},
		{Type: models.CitationKnowledge, SourceTool: "get_brand_guidelines", Preview: "Brand Book"},
		{Type: models.CitationKnowledge, SourceTool: "get_past_posts", Preview: "[...]"},
	}

	got := Merge(text, trace)
	if len(got) != 4 {
		t.Fatalf("len(Merge) = %d, want 4: %+v", len(got), got)
	}
	if got[0].SourceTool != SourceTextExtraction || got[1].SourceTool != SourceTextExtraction {
		t.Errorf("text-based entries should come first: %+v", got)
	}
	if got[2].URL != "https://b.example.com" || got[3].SourceTool != "get_past_posts" {
		t.Errorf("unexpected trace entries: %+v", got)
	}
}

func TestBuildTrace(t *testing.T) {
	raw := models.RawTrace{Invocations: []models.ToolInvocation{
		{Tool: "search_web", Output: "https://w.example.com"},
	}}
	tr := BuildTrace("see https://t.example.com", raw, 42, 1500*time.Millisecond)

	if tr.Tokens != 42 || tr.DurationMs != 1500 {
		t.Errorf("Tokens/DurationMs = %d/%d", tr.Tokens, tr.DurationMs)
	}
	if len(tr.ToolCalls) != 1 {
		t.Errorf("len(ToolCalls) = %d, want 1", len(tr.ToolCalls))
	}
	if len(tr.Citations) != 2 || tr.Citations[0].URL != "https://t.example.com" {
		t.Errorf("Citations = %+v", tr.Citations)
	}

	empty := BuildTrace("", models.RawTrace{}, 0, 0)
	if empty.ToolCalls == nil || empty.Citations == nil {
		t.Error("empty trace should have non-nil slices")
	}
}

func TestTruncate_RuneSafe(t *testing.T) {
	if got := Truncate("héllo", 2); got != "hé" {
		t.Errorf("Truncate = %q, want %q", got, "hé")
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Errorf("Truncate = %q, want abc", got)
	}
}
