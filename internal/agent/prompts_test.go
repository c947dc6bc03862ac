package agent

import (
	"strings"
	"testing"

	"github.com/ShayCichocki/oneshot/pkg/models"
)

func TestFallbackTemperature(t *testing.T) {
	tests := []struct {
		task models.TaskName
		want float64
	}{
		{models.TaskStrategist, 0.7},
		{models.TaskResearcher, 0.5},
		{models.TaskMemory, 0.4},
		{models.TaskAnalyst, 0.3},
		{models.TaskAdvisor, 0.6},
		{models.TaskScribe, 0.6},
	}
	for _, tt := range tests {
		if got := FallbackTemperature(tt.task); got != tt.want {
			t.Errorf("FallbackTemperature(%s) = %v, want %v", tt.task, got, tt.want)
		}
	}
}

func TestSystemPrompt_EveryTask(t *testing.T) {
	for _, task := range models.AllTaskNames() {
		if SystemPrompt(task) == "" {
			t.Errorf("no system prompt for %s", task)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	long := strings.Repeat("x", 1500)
	wave2 := models.TaskContext{
		Message:   "Create a post",
		Platforms: nil,
		PreviousResults: map[models.TaskName]string{
			models.TaskResearcher: long,
			models.TaskMemory:     "brand voice notes",
			models.TaskStrategist: "strategy notes",
		},
	}

	tests := []struct {
		name     string
		task     models.TaskName
		tc       models.TaskContext
		contains []string
		excludes []string
	}{
		{
			name:     "researcher defaults",
			task:     models.TaskResearcher,
			tc:       models.TaskContext{Message: "AI trends"},
			contains: []string{"Target Platforms: linkedin, twitter, instagram", "Key Entities: None specified", "Original Request: AI trends"},
		},
		{
			name:     "strategist truncates research",
			task:     models.TaskStrategist,
			tc:       wave2,
			contains: []string{"Research Findings:\n" + strings.Repeat("x", 1000) + "\n", "Brand Context:\nbrand voice notes"},
			excludes: []string{strings.Repeat("x", 1001)},
		},
		{
			name:     "analyst labels",
			task:     models.TaskAnalyst,
			tc:       wave2,
			contains: []string{"Research Data:", "Historical Data:\nbrand voice notes"},
		},
		{
			name:     "scribe uses full outputs",
			task:     models.TaskScribe,
			tc:       wave2,
			contains: []string{"Strategy Content:\nstrategy notes", "Research Content:\n" + long},
		},
		{
			name:     "scribe without context",
			task:     models.TaskScribe,
			tc:       models.TaskContext{Message: "just the request"},
			contains: []string{"Source Content:\njust the request"},
		},
		{
			name:     "advisor reviews every result",
			task:     models.TaskAdvisor,
			tc:       wave2,
			contains: []string{"Strategist Output:\nstrategy notes", "Memory Output:\nbrand voice notes", "Researcher Output:\n" + strings.Repeat("x", 500) + "\n"},
			excludes: []string{strings.Repeat("x", 501)},
		},
		{
			name:     "memory",
			task:     models.TaskMemory,
			tc:       models.TaskContext{Message: "q", Entities: []string{"Acme", "launch"}},
			contains: []string{"Key Entities: Acme, launch", "Original Query: q"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildPrompt(tt.task, "the task", tt.tc)
			if !strings.HasPrefix(got, "Task: the task") {
				t.Errorf("prompt should open with the task, got %q", got[:40])
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("prompt missing %q", want)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("prompt should not contain %d-char run", len(bad))
				}
			}
		})
	}
}
