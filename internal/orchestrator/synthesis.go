package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/oneshot/internal/api"
	"github.com/ShayCichocki/oneshot/pkg/models"
)

// formatResults renders task outputs in plan order as "=== TASK ===" blocks.
func formatResults(order []models.TaskName, results map[models.TaskName]string) string {
	var b strings.Builder
	for _, name := range order {
		text, ok := results[name]
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "=== %s ===\n%s\n", strings.ToUpper(string(name)), text)
	}
	return b.String()
}

// synthesisPrompt builds the synthesis request. With no task results the
// raw message is sent on its own.
func synthesisPrompt(run *models.OrchestrationRun) string {
	if len(run.Results) == 0 {
		return run.Message
	}
	return fmt.Sprintf(`Based on the following specialist outputs, write a complete response to the user's request.

User Request: %s
Target Platforms: %s
Intent: %s

Specialist Outputs:
%s
Provide a well-structured response that:
- Includes platform-specific content for each requested platform
- References engagement data and best practices from the analyst
- Follows the brand guidelines surfaced by memory
- Notes any compliance feedback from the advisor
- Includes a recommended posting schedule where it applies`,
		run.Message, joinPlatforms(run.Platforms), run.Intent, formatResults(run.Plan.Tasks(), run.Results))
}

func (e *Engine) synthesize(ctx context.Context, run *models.OrchestrationRun) (api.Completion, error) {
	return e.completer.Complete(ctx, synthesisPrompt(run), OrchestratorPrompt, e.policy.Synthesis.Temperature)
}
