package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
)

// Completion is the text and token usage of one model call.
type Completion struct {
	Text   string
	Tokens int
}

// StructuredSchema describes the JSON object a structured call must return.
type StructuredSchema struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// Structured is the decoded-on-demand result of a structured call.
type Structured struct {
	JSON   json.RawMessage
	Tokens int
}

// usageTokens totals a response's usage. Missing usage counts as zero.
func usageTokens(u anthropic.Usage) int {
	return int(u.InputTokens + u.OutputTokens)
}

func textOf(msg *anthropic.Message) string {
	var out string
	for _, block := range msg.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			out += variant.Text
		}
	}
	return out
}

// Complete makes one plain completion call with no tools.
func (c *Client) Complete(ctx context.Context, prompt, systemPrompt string, temperature float64) (Completion, error) {
	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := c.messages.New(ctx, params)
	if err != nil {
		return Completion{}, fmt.Errorf("completion call failed: %w", err)
	}
	c.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	return Completion{Text: textOf(resp), Tokens: usageTokens(resp.Usage)}, nil
}

// CompleteStructured forces the model to answer through a single tool whose
// input schema is schema, and returns that tool input.
func (c *Client) CompleteStructured(ctx context.Context, prompt string, schema StructuredSchema, systemPrompt string) (Structured, error) {
	if schema.Name == "" {
		return Structured{}, fmt.Errorf("structured call: schema name is required")
	}
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Tools: []anthropic.ToolUnionParam{{
			OfTool: &anthropic.ToolParam{
				Name:        schema.Name,
				Description: anthropic.String(schema.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schema.Properties,
					Required:   schema.Required,
				},
			},
		}},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: schema.Name},
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := c.messages.New(ctx, params)
	if err != nil {
		return Structured{}, fmt.Errorf("structured call failed: %w", err)
	}
	c.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.ToolUseBlock); ok && variant.Name == schema.Name {
			return Structured{JSON: variant.Input, Tokens: usageTokens(resp.Usage)}, nil
		}
	}
	return Structured{}, fmt.Errorf("structured call: model did not call %s", schema.Name)
}
