// Package citation extracts structured source references from task output
// text and from the tool-invocation history of a task execution.
//
// Every function here is pure: the same text or trace always yields the
// same citations in the same order.
package citation

import (
	"regexp"
	"strings"
	"time"

	"github.com/ShayCichocki/oneshot/pkg/models"
)

// SourceTextExtraction tags citations found by scanning output text.
const SourceTextExtraction = "text_extraction"

// Preview bounds.
const (
	KnowledgePreviewLen = 200
	ArgumentPreviewLen  = 500
	ResultPreviewLen    = 300
)

var (
	urlRe     = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
	sourceRe  = regexp.MustCompile(`(?m)Source:[ \t]*([^\r\n]+)`)
	bareURLRe = regexp.MustCompile(`^https?://\S+$`)
)

// URLSourceTools are tools whose output is scanned for URLs.
var URLSourceTools = map[string]bool{
	"search_web":                true,
	"search_news":               true,
	"search_trends":             true,
	"search_competitor_content": true,
	"analyze_hashtags":          true,
	"fetch_page":                true,
}

// KnowledgeSourceTools are tools whose output always yields one labeled
// knowledge citation, at most once per tool per trace.
var KnowledgeSourceTools = map[string]bool{
	"search_knowledge_base": true,
	"get_brand_guidelines":  true,
	"get_past_posts":        true,
	"get_content_calendar":  true,
}

// ExtractURLs returns every URL in text in order of first appearance,
// without duplicates.
func ExtractURLs(text string) []string {
	if text == "" {
		return nil
	}
	var urls []string
	seen := make(map[string]bool)
	for _, raw := range urlRe.FindAllString(text, -1) {
		u := trimURL(raw)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

// trimURL strips sentence punctuation that the pattern swallows.
func trimURL(u string) string {
	u = strings.TrimRight(u, ".,;:!?*")
	if u == "http://" || u == "https://" {
		return ""
	}
	return u
}

// Extract scans text for bare URLs and "Source: <label>" references.
// URL citations come first in order of appearance, then knowledge citations.
func Extract(text string) []models.Citation {
	var out []models.Citation

	for _, u := range ExtractURLs(text) {
		out = append(out, models.Citation{
			Type:       models.CitationURL,
			URL:        u,
			SourceTool: SourceTextExtraction,
		})
	}

	seen := make(map[string]bool)
	for _, m := range sourceRe.FindAllStringSubmatch(text, -1) {
		label := strings.TrimSpace(m[1])
		label = strings.TrimRight(label, " \t")
		if label == "" || strings.EqualFold(label, "N/A") || bareURLRe.MatchString(label) {
			continue
		}
		label = truncate(label, KnowledgePreviewLen)
		if seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, models.Citation{
			Type:       models.CitationKnowledge,
			SourceTool: SourceTextExtraction,
			Preview:    label,
		})
	}

	return out
}

// ExtractFromTrace walks a runtime's invocation history and produces the
// tool-call log and the citations it supports.
func ExtractFromTrace(raw models.RawTrace) ([]models.ToolCallRecord, []models.Citation) {
	var records []models.ToolCallRecord
	var citations []models.Citation
	seenURL := make(map[string]bool)
	seenKnowledge := make(map[string]bool)

	for _, inv := range raw.Invocations {
		isURLTool := URLSourceTools[inv.Tool]
		isKnowledgeTool := KnowledgeSourceTools[inv.Tool]

		var urls []string
		if isURLTool && !inv.IsError {
			urls = ExtractURLs(inv.Output)
		}

		records = append(records, models.ToolCallRecord{
			ToolName:      inv.Tool,
			Arguments:     truncate(string(inv.Input), ArgumentPreviewLen),
			ResultPreview: truncate(inv.Output, ResultPreviewLen),
			URLs:          urls,
			IsSource:      isURLTool || isKnowledgeTool,
		})

		if inv.IsError {
			continue
		}

		for _, u := range urls {
			if seenURL[u] {
				continue
			}
			seenURL[u] = true
			citations = append(citations, models.Citation{
				Type:       models.CitationURL,
				URL:        u,
				SourceTool: inv.Tool,
			})
		}

		if isKnowledgeTool && !seenKnowledge[inv.Tool] {
			seenKnowledge[inv.Tool] = true
			citations = append(citations, models.Citation{
				Type:       models.CitationKnowledge,
				SourceTool: inv.Tool,
				Preview:    truncate(inv.Output, KnowledgePreviewLen),
			})
		}
	}

	return records, citations
}

// Merge unions text-based and trace-based citations. Text-based entries come
// first; URL citations are deduplicated by URL and knowledge citations by
// preview text.
func Merge(textBased, traceBased []models.Citation) []models.Citation {
	out := make([]models.Citation, 0, len(textBased)+len(traceBased))
	seen := make(map[string]bool)

	add := func(c models.Citation) {
		key := dedupKey(c)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, c)
	}

	for _, c := range textBased {
		add(c)
	}
	for _, c := range traceBased {
		add(c)
	}
	return out
}

func dedupKey(c models.Citation) string {
	if c.Type == models.CitationURL {
		return "url\x00" + c.URL
	}
	return "knowledge\x00" + c.Preview
}

// BuildTrace assembles the execution trace for one task from its output
// text and, when present, the runtime's invocation history.
func BuildTrace(text string, raw models.RawTrace, tokens int, elapsed time.Duration) models.ExecutionTrace {
	records, traceCitations := ExtractFromTrace(raw)
	return models.ExecutionTrace{
		ToolCalls:  nonNilRecords(records),
		Citations:  Merge(Extract(text), traceCitations),
		DurationMs: elapsed.Milliseconds(),
		Tokens:     tokens,
	}
}

func nonNilRecords(r []models.ToolCallRecord) []models.ToolCallRecord {
	if r == nil {
		return []models.ToolCallRecord{}
	}
	return r
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Truncate is exported for callers that need the same rune-safe cut used
// for previews.
func Truncate(s string, n int) string {
	return truncate(s, n)
}
