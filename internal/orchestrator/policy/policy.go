// Package policy defines configurable policy parameters for orchestration runs.
// This centralizes the limits, preview lengths and progress milestones the
// engine uses so they can be configured and tested in one place.
package policy

import "fmt"

// Config contains all configurable policy parameters for the orchestrator.
type Config struct {
	// Dispatch controls wave fan-out.
	Dispatch DispatchPolicy

	// Synthesis controls the final completion call.
	Synthesis SynthesisPolicy

	// Preview controls how much text is kept in traces, events and titles.
	Preview PreviewPolicy

	// Progress holds the thinking-event milestones.
	Progress ProgressPolicy
}

// DispatchPolicy controls task dispatch within a wave.
type DispatchPolicy struct {
	// MaxParallel bounds concurrent tasks in one wave. Zero means every task
	// in the wave runs at once.
	MaxParallel int

	// DegradedPlanSize is how many classifier-requested tasks run when the
	// intent has no routing entry.
	DegradedPlanSize int
}

// SynthesisPolicy controls the synthesis call.
type SynthesisPolicy struct {
	// Temperature is the sampling temperature for synthesis.
	Temperature float64
}

// PreviewPolicy bounds stored and broadcast text, in characters.
type PreviewPolicy struct {
	// ResponseChars is the answer preview kept on the run trace.
	ResponseChars int

	// TaskResultChars is the result preview kept on each task trace.
	TaskResultChars int

	// TaskTypeChars bounds the task type label of task traces.
	TaskTypeChars int

	// TitleChars bounds the description used in document titles.
	TitleChars int
}

// ProgressPolicy holds the progress fraction reported at each run milestone.
// Values must be non-decreasing in the order declared.
type ProgressPolicy struct {
	Classifying  float64
	Classified   float64
	Wave1        float64
	Wave2        float64
	Synthesizing float64
	Done         float64
}

// Default returns the default policy configuration.
func Default() *Config {
	return &Config{
		Dispatch: DispatchPolicy{
			MaxParallel:      0,
			DegradedPlanSize: 3,
		},
		Synthesis: SynthesisPolicy{
			Temperature: 0.7,
		},
		Preview: PreviewPolicy{
			ResponseChars:   500,
			TaskResultChars: 200,
			TaskTypeChars:   50,
			TitleChars:      60,
		},
		Progress: ProgressPolicy{
			Classifying:  0.1,
			Classified:   0.2,
			Wave1:        0.3,
			Wave2:        0.6,
			Synthesizing: 0.9,
			Done:         1.0,
		},
	}
}

// Validate resets out-of-range values to their defaults and rejects
// progress milestones that would report progress going backwards.
func (c *Config) Validate() error {
	d := Default()
	if c.Dispatch.MaxParallel < 0 {
		c.Dispatch.MaxParallel = d.Dispatch.MaxParallel
	}
	if c.Dispatch.DegradedPlanSize < 1 {
		c.Dispatch.DegradedPlanSize = d.Dispatch.DegradedPlanSize
	}
	if c.Synthesis.Temperature < 0 || c.Synthesis.Temperature > 1 {
		c.Synthesis.Temperature = d.Synthesis.Temperature
	}
	if c.Preview.ResponseChars < 1 {
		c.Preview.ResponseChars = d.Preview.ResponseChars
	}
	if c.Preview.TaskResultChars < 1 {
		c.Preview.TaskResultChars = d.Preview.TaskResultChars
	}
	if c.Preview.TaskTypeChars < 1 {
		c.Preview.TaskTypeChars = d.Preview.TaskTypeChars
	}
	if c.Preview.TitleChars < 1 {
		c.Preview.TitleChars = d.Preview.TitleChars
	}

	p := c.Progress
	steps := []float64{p.Classifying, p.Classified, p.Wave1, p.Wave2, p.Synthesizing, p.Done}
	prev := 0.0
	for i, v := range steps {
		if v < 0 || v > 1 {
			return fmt.Errorf("progress milestone %d out of range: %v", i, v)
		}
		if v < prev {
			return fmt.Errorf("progress milestone %d (%v) is below the previous one (%v)", i, v, prev)
		}
		prev = v
	}
	return nil
}
