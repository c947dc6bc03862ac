package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/oneshot/internal/api"
	"github.com/ShayCichocki/oneshot/pkg/models"
)

// OrchestratorPrompt is the system prompt for classification and synthesis.
const OrchestratorPrompt = `You coordinate a team of social media specialists for the communications team at NotContosso Inc. The team publishes on LinkedIn, Twitter/X and Instagram.

Specialists you can call on:
- strategist: audience, tone, cadence and platform planning
- researcher: trending topics, news, competitor activity and hashtags
- analyst: engagement benchmarks, posting times and reach estimates
- scribe: platform-ready copy such as LinkedIn posts, tweet threads and Instagram captions
- advisor: brand compliance review with a 1-10 score
- memory: brand guidelines, past post performance and style preferences

Work in two steps. First gather context (research, strategy, brand memory, benchmarks). Then create and review content using that context.

When you merge specialist output into a final answer, keep it well structured, keep platform-specific content separate per platform, and carry the reviewer's compliance notes through.`

// IntentSchema returns the structured-output schema for intent
// classification. Enums list every known intent, platform and task.
func IntentSchema() api.StructuredSchema {
	return api.StructuredSchema{
		Name:        "intent_analysis",
		Description: "Record the classified intent of the user's request.",
		Properties: map[string]any{
			"primary_intent": map[string]any{
				"type": "string",
				"enum": enumOf(models.AllIntents()),
			},
			"target_platforms": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "enum": enumOf(models.AllPlatforms())},
			},
			"required_agents": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "enum": enumOf(models.AllTaskNames())},
			},
			"key_entities": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"task_description": map[string]any{"type": "string"},
		},
		Required: []string{"primary_intent", "target_platforms", "required_agents", "key_entities", "task_description"},
	}
}

func enumOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func classificationPrompt(message string) string {
	return fmt.Sprintf(`Classify this request so it can be routed to the right specialists.

User Request: %s

Determine:
1. The primary intent:
   - content_creation: create social media posts for one or more platforms
   - content_strategy: a content plan, calendar or strategy
   - content_review: review existing content for brand alignment
   - trend_research: current trends, topics or competitor activity
   - question: a general question about social media or the platform
   - other: anything else
2. Target platforms mentioned or implied (linkedin, twitter, instagram). If none are specified, include all three.
3. Which specialists should be involved
4. Key entities mentioned (brands, topics, platforms, campaigns)
5. A clear task description`, message)
}

// classify runs intent classification and normalizes the result. The
// returned token count covers the classification call only.
func (e *Engine) classify(ctx context.Context, message string) (models.IntentAnalysis, int, error) {
	out, err := e.completer.CompleteStructured(ctx, classificationPrompt(message), IntentSchema(), OrchestratorPrompt)
	if err != nil {
		return models.IntentAnalysis{}, 0, err
	}

	var analysis models.IntentAnalysis
	if err := json.Unmarshal(out.JSON, &analysis); err != nil {
		return models.IntentAnalysis{}, out.Tokens, fmt.Errorf("decode intent analysis: %w", err)
	}

	analysis.Normalize()
	if !analysis.PrimaryIntent.Valid() {
		analysis.PrimaryIntent = models.IntentOther
	}
	if strings.TrimSpace(analysis.TaskDescription) == "" {
		analysis.TaskDescription = message
	}
	return analysis, out.Tokens, nil
}

// intentSummary is the thinking text shown once classification succeeds.
func intentSummary(a models.IntentAnalysis) string {
	agents := make([]string, len(a.RequiredAgents))
	for i, n := range a.RequiredAgents {
		agents[i] = string(n)
	}
	return fmt.Sprintf("Intent: %s | Platforms: %s | Agents: %s",
		a.PrimaryIntent, joinPlatforms(a.TargetPlatforms), strings.Join(agents, ", "))
}

func joinPlatforms(ps []models.Platform) string {
	return strings.Join(enumOf(ps), ", ")
}
