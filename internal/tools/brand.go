package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const defaultGuidelines = "Brand guidelines file not found. Using default: professional yet approachable, innovation-forward, human-centered."

func brandGuidelinesTool(data *BrandData) Tool {
	return NewFunc("get_brand_guidelines",
		"Retrieve the brand guidelines for content creation.",
		Schema{Properties: map[string]any{}},
		func(context.Context, json.RawMessage) (string, error) {
			if g, ok := data.Guidelines(); ok {
				return g, nil
			}
			return defaultGuidelines, nil
		})
}

func pastPostsTool(data *BrandData) Tool {
	return NewFunc("get_past_posts",
		"Retrieve past post performance data for content strategy.",
		Schema{Properties: map[string]any{
			"platform":    prop("string", "linkedin, twitter, instagram, or all"),
			"performance": prop("string", "high, very_high, viral, or all"),
		}},
		func(_ context.Context, input json.RawMessage) (string, error) {
			args := struct {
				Platform    string `json:"platform"`
				Performance string `json:"performance"`
			}{Platform: "all", Performance: "all"}
			if err := decode(input, &args); err != nil {
				return "", err
			}
			posts, ok := data.Posts()
			if !ok {
				return "Past posts data not found.", nil
			}
			filtered := make([]Post, 0, len(posts))
			for _, p := range posts {
				if args.Platform != "" && args.Platform != "all" && p.Platform != args.Platform {
					continue
				}
				if args.Performance != "" && args.Performance != "all" && p.Performance != args.Performance {
					continue
				}
				filtered = append(filtered, p)
			}
			out, err := json.MarshalIndent(filtered, "", "  ")
			if err != nil {
				return "", fmt.Errorf("encode posts: %w", err)
			}
			return string(out), nil
		})
}

func contentCalendarTool(data *BrandData) Tool {
	return NewFunc("get_content_calendar",
		"Retrieve the current content calendar.",
		Schema{Properties: map[string]any{}},
		func(context.Context, json.RawMessage) (string, error) {
			if _, raw, ok := data.Calendar(); ok {
				return raw, nil
			}
			return "Content calendar not found.", nil
		})
}

func knowledgeBaseTool(data *BrandData) Tool {
	return NewFunc("search_knowledge_base",
		"Search the internal knowledge base for brand and content information.",
		Schema{
			Properties: map[string]any{"query": prop("string", "Search query for the knowledge base")},
			Required:   []string{"query"},
		},
		func(_ context.Context, input json.RawMessage) (string, error) {
			var args struct {
				Query string `json:"query"`
			}
			if err := decode(input, &args); err != nil {
				return "", err
			}
			return SearchKnowledgeBase(data, args.Query), nil
		})
}

// SearchKnowledgeBase does keyword matching over the guidelines, past posts
// and calendar, returning a default brand context when nothing matches.
func SearchKnowledgeBase(data *BrandData, query string) string {
	words := strings.Fields(strings.ToLower(query))
	var long []string
	for _, w := range words {
		if len(w) > 3 {
			long = append(long, w)
		}
	}
	matchAny := func(text string, kws []string) bool {
		text = strings.ToLower(text)
		for _, kw := range kws {
			if strings.Contains(text, kw) {
				return true
			}
		}
		return false
	}

	var sections []string

	if g, ok := data.Guidelines(); ok && len(words) > 0 {
		lines := strings.Split(g, "\n")
		var relevant []string
		for i, line := range lines {
			if !matchAny(line, words) {
				continue
			}
			start, end := max(0, i-1), min(len(lines), i+4)
			relevant = append(relevant, lines[start:end]...)
		}
		if len(relevant) > 20 {
			relevant = relevant[:20]
		}
		if len(relevant) > 0 {
			sections = append(sections, "**Brand Guidelines (matched):**\n"+strings.Join(relevant, "\n"))
		}
	}

	if posts, ok := data.Posts(); ok && len(long) > 0 {
		var lines []string
		for _, p := range posts {
			if len(lines) == 3 {
				break
			}
			if matchAny(p.Content, long) {
				lines = append(lines, fmt.Sprintf("  - [%s] %.1f%% engagement, %d impressions (performance: %s)",
					p.Platform, p.EngagementRate, p.Impressions, p.Performance))
			}
		}
		if len(lines) > 0 {
			sections = append(sections, "**Matching Past Posts:**\n"+strings.Join(lines, "\n"))
		}
	}

	if cal, _, ok := data.Calendar(); ok && len(long) > 0 {
		var lines []string
		for _, e := range cal.Entries {
			if len(lines) == 3 {
				break
			}
			if matchAny(e.Topic, long) {
				lines = append(lines, fmt.Sprintf("  - %s: %s (%s)", e.Day, e.Topic, e.Platform))
			}
		}
		if len(lines) > 0 {
			sections = append(sections, "**Matching Calendar Entries:**\n"+strings.Join(lines, "\n"))
		}
	}

	header := fmt.Sprintf("Knowledge Base Results for: %q\n\n", query)
	if len(sections) > 0 {
		return header + strings.Join(sections, "\n\n")
	}
	return header + `**Content Patterns That Work:**
1. Data-backed thought leadership (avg 5.2% engagement on LinkedIn)
2. Lessons-learned posts (avg 4.5% engagement)
3. Thread format on Twitter (avg 5.0% engagement)
4. Behind-the-scenes culture content (avg 4.8% on Instagram)`
}
