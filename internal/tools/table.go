package tools

import (
	"fmt"

	"github.com/ShayCichocki/oneshot/pkg/models"
)

// BindingType distinguishes in-process tools from externally served ones.
type BindingType string

const (
	// BindingTool is an in-process function tool.
	BindingTool BindingType = "tool"
	// BindingMCP is a tool exposed the way an external tool server would be.
	BindingMCP BindingType = "mcp"
)

// Binding entitles an agent to one named tool.
type Binding struct {
	Name string      `json:"name" yaml:"name"`
	Type BindingType `json:"type" yaml:"type"`
}

// Table is the immutable task to tool mapping. The zero value entitles no
// task to any tool.
type Table struct {
	m map[models.TaskName][]Binding
}

// NewTable copies m into a Table. Bindings without a type default to
// BindingTool.
func NewTable(m map[models.TaskName][]Binding) Table {
	cp := make(map[models.TaskName][]Binding, len(m))
	for task, bs := range m {
		out := make([]Binding, len(bs))
		for i, b := range bs {
			if b.Type == "" {
				b.Type = BindingTool
			}
			out[i] = b
		}
		cp[task] = out
	}
	return Table{m: cp}
}

// DefaultTable returns the built-in entitlements.
func DefaultTable() Table {
	fn := func(names ...string) []Binding {
		out := make([]Binding, len(names))
		for i, n := range names {
			out[i] = Binding{Name: n, Type: BindingTool}
		}
		return out
	}
	return NewTable(map[models.TaskName][]Binding{
		models.TaskResearcher: append(
			fn("search_trends", "analyze_hashtags", "search_competitor_content", "search_web", "search_news"),
			Binding{Name: "fetch_page", Type: BindingMCP},
		),
		models.TaskStrategist: fn("calculate_engagement_metrics", "recommend_posting_schedule", "search_trends"),
		models.TaskMemory:     fn("get_brand_guidelines", "get_past_posts", "get_content_calendar", "search_knowledge_base"),
		models.TaskAnalyst:    fn("calculate_engagement_metrics", "recommend_posting_schedule", "search_trends"),
		models.TaskAdvisor:    fn("get_brand_guidelines", "get_past_posts"),
		models.TaskScribe:     nil,
	})
}

// Bindings returns a copy of task's bindings in table order.
func (t Table) Bindings(task models.TaskName) []Binding {
	bs := t.m[task]
	out := make([]Binding, len(bs))
	copy(out, bs)
	return out
}

// Resolve looks up task's tools in r. Every bound name must be registered.
func (t Table) Resolve(task models.TaskName, r *Registry) ([]Tool, error) {
	bs := t.m[task]
	out := make([]Tool, 0, len(bs))
	for _, b := range bs {
		tool, ok := r.Get(b.Name)
		if !ok {
			return nil, fmt.Errorf("resolve tools for %s: %w: %s", task, ErrUnknownTool, b.Name)
		}
		out = append(out, tool)
	}
	return out, nil
}

// Validate reports bindings that name tools missing from r.
func (t Table) Validate(r *Registry) error {
	for _, task := range models.AllTaskNames() {
		if _, err := t.Resolve(task, r); err != nil {
			return err
		}
	}
	return nil
}
