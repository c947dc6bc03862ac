// Package tools defines the named tools agents may invoke and the static
// table that decides which agent is entitled to which tool.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownTool is returned when a tool name is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Schema describes a tool's JSON input object.
type Schema struct {
	Properties map[string]any
	Required   []string
}

// Tool is one callable capability exposed to agents.
type Tool interface {
	Name() string
	Description() string
	Schema() Schema
	Call(ctx context.Context, input json.RawMessage) (string, error)
}

// ToolResult is the outcome of a dispatched tool call.
type ToolResult struct {
	Content string
	IsError bool
}

// Registry maps tool names to implementations.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry holding tools. Later duplicates replace
// earlier ones.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// Register adds t. It fails if the name is already taken.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Name()]; ok {
		return fmt.Errorf("register tool %q: already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Execute runs the named tool. Failures are reported in the result rather
// than as an error so they can be handed back to the model.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) ToolResult {
	t, ok := r.Get(name)
	if !ok {
		return ToolResult{Content: fmt.Sprintf("%v: %s", ErrUnknownTool, name), IsError: true}
	}
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	out, err := t.Call(ctx, input)
	if err != nil {
		return ToolResult{Content: fmt.Sprintf("Error: %v", err), IsError: true}
	}
	return ToolResult{Content: out}
}

// funcTool adapts a function to Tool.
type funcTool struct {
	name   string
	desc   string
	schema Schema
	fn     func(ctx context.Context, input json.RawMessage) (string, error)
}

func (f *funcTool) Name() string        { return f.name }
func (f *funcTool) Description() string { return f.desc }
func (f *funcTool) Schema() Schema      { return f.schema }

func (f *funcTool) Call(ctx context.Context, input json.RawMessage) (string, error) {
	return f.fn(ctx, input)
}

// NewFunc builds a Tool from a function.
func NewFunc(name, description string, schema Schema, fn func(ctx context.Context, input json.RawMessage) (string, error)) Tool {
	return &funcTool{name: name, desc: description, schema: schema, fn: fn}
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

// decode unmarshals input into v, treating an empty input as {}.
func decode(input json.RawMessage, v any) error {
	if len(input) == 0 {
		return nil
	}
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}
