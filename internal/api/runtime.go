package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/oneshot/internal/tools"
	"github.com/ShayCichocki/oneshot/pkg/models"
)

// RunResult is the outcome of one tool-using run.
type RunResult struct {
	Text       string
	Tokens     int
	Raw        models.RawTrace
	Iterations int
}

// Executor runs one agent prompt against the model with its bound tools.
type Executor struct {
	client       *Client
	name         string
	systemPrompt string
	registry     *tools.Registry
	defs         []anthropic.ToolUnionParam
	onToolResult func(models.ToolInvocation)
}

// CreateExecutor binds an agent name, system prompt and tool set.
func (c *Client) CreateExecutor(name, systemPrompt string, ts []tools.Tool) *Executor {
	return &Executor{
		client:       c,
		name:         name,
		systemPrompt: systemPrompt,
		registry:     tools.NewRegistry(ts...),
		defs:         ToolParams(ts),
	}
}

// Name returns the agent name the executor was created for.
func (e *Executor) Name() string { return e.name }

// OnToolResult registers a callback invoked after every tool call.
func (e *Executor) OnToolResult(fn func(models.ToolInvocation)) {
	e.onToolResult = fn
}

// ToolParams converts tools to SDK tool definitions.
func ToolParams(ts []tools.Tool) []anthropic.ToolUnionParam {
	if len(ts) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(ts))
	for _, t := range ts {
		schema := t.Schema()
		props := schema.Properties
		if props == nil {
			props = map[string]any{}
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name(),
				Description: anthropic.String(t.Description()),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   schema.Required,
				},
			},
		})
	}
	return out
}

// Run drives the model/tool loop until the model ends its turn. Every tool
// invocation is recorded in the result's raw trace.
func (e *Executor) Run(ctx context.Context, prompt string) (RunResult, error) {
	var result RunResult
	c := e.client

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	}

	for result.Iterations < c.maxIterations {
		result.Iterations++

		if err := ctx.Err(); err != nil {
			return result, err
		}

		params := anthropic.MessageNewParams{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			Messages:  messages,
			Tools:     e.defs,
		}
		if e.systemPrompt != "" {
			params.System = []anthropic.TextBlockParam{{Text: e.systemPrompt}}
		}

		resp, err := c.messages.New(ctx, params)
		if err != nil {
			return result, fmt.Errorf("API call failed: %w", err)
		}

		result.Tokens += usageTokens(resp.Usage)
		c.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

		var assistantBlocks []anthropic.ContentBlockParamUnion
		var toolResultBlocks []anthropic.ContentBlockParamUnion
		var textOutput string

		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				textOutput += variant.Text
				assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(variant.Text))

			case anthropic.ToolUseBlock:
				assistantBlocks = append(assistantBlocks,
					anthropic.NewToolUseBlock(variant.ID, variant.Input, variant.Name))

				toolResult := e.registry.Execute(ctx, variant.Name, variant.Input)
				inv := models.ToolInvocation{
					Tool:    variant.Name,
					Input:   append(json.RawMessage(nil), variant.Input...),
					Output:  toolResult.Content,
					IsError: toolResult.IsError,
				}
				result.Raw.Invocations = append(result.Raw.Invocations, inv)
				if e.onToolResult != nil {
					e.onToolResult(inv)
				}

				toolResultBlocks = append(toolResultBlocks,
					anthropic.NewToolResultBlock(variant.ID, toolResult.Content, toolResult.IsError))
			}
		}

		if resp.StopReason != anthropic.StopReasonToolUse || len(toolResultBlocks) == 0 {
			result.Text = textOutput
			return result, nil
		}

		messages = append(messages, anthropic.NewAssistantMessage(assistantBlocks...))
		messages = append(messages, anthropic.NewUserMessage(toolResultBlocks...))
	}

	return result, fmt.Errorf("max iterations (%d) reached", c.maxIterations)
}
