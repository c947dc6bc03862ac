package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/oneshot/internal/citation"
	"github.com/ShayCichocki/oneshot/internal/tools"
	"github.com/ShayCichocki/oneshot/pkg/models"
)

// Gathered is the material a Gatherer collected for a fallback completion.
type Gathered struct {
	// Prompt replaces the task prompt for the completion call.
	Prompt string
	// Text is the raw tool output citations are extracted from.
	Text string
	// Calls is the tool-call log of the direct invocations.
	Calls []models.ToolCallRecord
}

// Gatherer collects context with direct tool calls before a fallback
// completion. Gather never fails; tool errors are folded into the text.
type Gatherer interface {
	Gather(ctx context.Context, description string, tc models.TaskContext) Gathered
}

// ResearchGatherer runs web search, news search and trend search directly
// against the original request.
type ResearchGatherer struct {
	Registry *tools.Registry
}

type gatherStep struct {
	tool    string
	heading string
	input   map[string]any
}

// Gather implements Gatherer.
func (g ResearchGatherer) Gather(ctx context.Context, description string, tc models.TaskContext) Gathered {
	query := tc.Message
	if query == "" {
		query = description
	}
	steps := []gatherStep{
		{tool: "search_web", heading: "Web Search", input: map[string]any{"query": query}},
		{tool: "search_news", heading: "Recent News", input: map[string]any{"query": query}},
		{tool: "search_trends", heading: "Trending Topics", input: map[string]any{"topic": query, "platform": "all"}},
	}

	var sections []string
	calls := make([]models.ToolCallRecord, 0, len(steps))
	for _, step := range steps {
		input, _ := json.Marshal(step.input)
		var out string
		if g.Registry == nil {
			out = "Error: no tool registry configured"
		} else {
			out = g.Registry.Execute(ctx, step.tool, input).Content
		}
		sections = append(sections, fmt.Sprintf("## %s\n%s", step.heading, out))
		calls = append(calls, models.ToolCallRecord{
			ToolName:      step.tool,
			Arguments:     string(input),
			ResultPreview: citation.Truncate(out, citation.ResultPreviewLen),
			URLs:          citation.ExtractURLs(out),
			IsSource:      true,
		})
	}

	research := strings.Join(sections, "\n\n")
	prompt := fmt.Sprintf(`Based on the following research results, provide a comprehensive briefing.

Task: %s
Target Platforms: %s

Research Data:
%s

Synthesize these findings into a clear, well-organized research briefing.`,
		description, platformList(tc.Platforms), research)

	return Gathered{Prompt: prompt, Text: research, Calls: calls}
}
