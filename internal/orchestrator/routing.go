package orchestrator

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/oneshot/pkg/models"
)

// Routing maps an intent to the wave plan that serves it. A Routing is
// immutable once built and safe for concurrent use.
type Routing struct {
	plans map[models.Intent]models.WavePlan
}

// DefaultRouting returns the built-in routing table. Intents without an
// entry (question, other) run a degraded plan.
func DefaultRouting() *Routing {
	wave1 := []models.TaskName{models.TaskResearcher, models.TaskStrategist, models.TaskMemory, models.TaskAnalyst}
	r, err := NewRouting(map[models.Intent]models.WavePlan{
		models.IntentContentCreation: {
			Wave1: wave1,
			Wave2: []models.TaskName{models.TaskScribe, models.TaskAdvisor},
		},
		models.IntentContentStrategy: {
			Wave1: wave1,
			Wave2: []models.TaskName{models.TaskAdvisor},
		},
		models.IntentContentReview: {
			Wave1: []models.TaskName{models.TaskMemory},
			Wave2: []models.TaskName{models.TaskAdvisor},
		},
		models.IntentTrendResearch: {
			Wave1: []models.TaskName{models.TaskResearcher, models.TaskAnalyst, models.TaskMemory},
		},
	})
	if err != nil {
		panic(fmt.Sprintf("default routing: %v", err))
	}
	return r
}

// NewRouting validates plans and copies them into a Routing. A task may
// appear at most once per plan, and a plan with wave-2 tasks needs wave-1
// tasks to feed them.
func NewRouting(plans map[models.Intent]models.WavePlan) (*Routing, error) {
	r := &Routing{plans: make(map[models.Intent]models.WavePlan, len(plans))}
	for intent, plan := range plans {
		if !intent.Valid() {
			return nil, fmt.Errorf("unknown intent %q", intent)
		}
		seen := make(map[models.TaskName]bool)
		for _, name := range plan.Tasks() {
			if !name.Valid() {
				return nil, fmt.Errorf("intent %s: unknown task %q", intent, name)
			}
			if seen[name] {
				return nil, fmt.Errorf("intent %s: task %s listed more than once", intent, name)
			}
			seen[name] = true
		}
		if len(plan.Wave1) == 0 && len(plan.Wave2) > 0 {
			return nil, fmt.Errorf("intent %s: wave2 has no wave1 to depend on", intent)
		}
		r.plans[intent] = plan.Clone()
	}
	return r, nil
}

// LoadRouting reads a routing table from a YAML file keyed by intent:
//
//	content_creation:
//	  wave1: [researcher, strategist]
//	  wave2: [scribe]
func LoadRouting(path string) (*Routing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing file: %w", err)
	}

	var raw map[string]models.WavePlan
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse routing file: %w", err)
	}

	plans := make(map[models.Intent]models.WavePlan, len(raw))
	for k, v := range raw {
		plans[models.Intent(k)] = v
	}
	r, err := NewRouting(plans)
	if err != nil {
		return nil, fmt.Errorf("routing file %s: %w", path, err)
	}
	return r, nil
}

// Resolve returns a copy of the plan for intent and whether one exists.
func (r *Routing) Resolve(intent models.Intent) (models.WavePlan, bool) {
	plan, ok := r.plans[intent]
	if !ok {
		return models.WavePlan{}, false
	}
	return plan.Clone(), true
}

// Intents returns the routed intents in sorted order.
func (r *Routing) Intents() []models.Intent {
	out := make([]models.Intent, 0, len(r.plans))
	for intent := range r.plans {
		out = append(out, intent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DegradedPlan builds the plan used when an intent has no routing entry:
// the first n distinct known tasks from requested, all in wave 1.
func DegradedPlan(requested []models.TaskName, n int) models.WavePlan {
	plan := models.WavePlan{Wave1: []models.TaskName{}}
	seen := make(map[models.TaskName]bool)
	for _, name := range requested {
		if len(plan.Wave1) == n {
			break
		}
		if !name.Valid() || seen[name] {
			continue
		}
		seen[name] = true
		plan.Wave1 = append(plan.Wave1, name)
	}
	return plan
}
