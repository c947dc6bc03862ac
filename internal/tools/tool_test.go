package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/oneshot/pkg/models"
)

func TestRegistry_Execute(t *testing.T) {
	echo := NewFunc("echo", "echo input", Schema{}, func(_ context.Context, in json.RawMessage) (string, error) {
		return string(in), nil
	})
	broken := NewFunc("broken", "always fails", Schema{}, func(context.Context, json.RawMessage) (string, error) {
		return "", errors.New("boom")
	})
	r := NewRegistry(echo, broken)

	tests := []struct {
		name    string
		tool    string
		input   json.RawMessage
		want    string
		isError bool
	}{
		{"success", "echo", json.RawMessage(`{"a":1}`), `{"a":1}`, false},
		{"empty input", "echo", nil, `{}`, false},
		{"tool error", "broken", nil, "Error: boom", true},
		{"unknown tool", "missing", nil, "unknown tool: missing", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Execute(context.Background(), tt.tool, tt.input)
			if got.Content != tt.want || got.IsError != tt.isError {
				t.Errorf("Execute() = %+v, want {%q %v}", got, tt.want, tt.isError)
			}
		})
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	tool := NewFunc("x", "", Schema{}, nil)
	if err := r.Register(tool); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := r.Register(tool); err == nil {
		t.Error("second Register() should fail")
	}
	if names := r.Names(); len(names) != 1 || names[0] != "x" {
		t.Errorf("Names() = %v", names)
	}
}

func TestDefaultTable_ResolvesAgainstDefaultRegistry(t *testing.T) {
	table := DefaultTable()
	reg := DefaultRegistry(Deps{})

	if err := table.Validate(reg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		task  models.TaskName
		count int
	}{
		{models.TaskResearcher, 6},
		{models.TaskStrategist, 3},
		{models.TaskMemory, 4},
		{models.TaskAnalyst, 3},
		{models.TaskAdvisor, 2},
		{models.TaskScribe, 0},
	}
	for _, tt := range tests {
		tools, err := table.Resolve(tt.task, reg)
		if err != nil {
			t.Errorf("Resolve(%s) error = %v", tt.task, err)
			continue
		}
		if len(tools) != tt.count {
			t.Errorf("Resolve(%s) = %d tools, want %d", tt.task, len(tools), tt.count)
		}
	}

	bs := table.Bindings(models.TaskResearcher)
	if last := bs[len(bs)-1]; last.Name != "fetch_page" || last.Type != BindingMCP {
		t.Errorf("last researcher binding = %+v", last)
	}
}

func TestTable_BindingsAreCopies(t *testing.T) {
	src := map[models.TaskName][]Binding{
		models.TaskAdvisor: {{Name: "get_brand_guidelines"}},
	}
	table := NewTable(src)
	src[models.TaskAdvisor][0].Name = "mutated"

	bs := table.Bindings(models.TaskAdvisor)
	if bs[0].Name != "get_brand_guidelines" || bs[0].Type != BindingTool {
		t.Errorf("table shares storage with source: %+v", bs[0])
	}
	bs[0].Name = "also mutated"
	if table.Bindings(models.TaskAdvisor)[0].Name != "get_brand_guidelines" {
		t.Error("Bindings() returned shared slice")
	}
}

func TestTable_ResolveUnknown(t *testing.T) {
	table := NewTable(map[models.TaskName][]Binding{
		models.TaskScribe: {{Name: "save_draft", Type: BindingMCP}},
	})
	_, err := table.Resolve(models.TaskScribe, NewRegistry())
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("Resolve() error = %v, want ErrUnknownTool", err)
	}
	if !strings.Contains(err.Error(), "save_draft") {
		t.Errorf("error should name the tool: %v", err)
	}
}
