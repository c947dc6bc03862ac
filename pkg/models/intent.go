package models

// Intent is the classified purpose of an inbound request.
type Intent string

const (
	IntentContentCreation Intent = "content_creation"
	IntentContentStrategy Intent = "content_strategy"
	IntentContentReview   Intent = "content_review"
	IntentTrendResearch   Intent = "trend_research"
	IntentQuestion        Intent = "question"
	IntentOther           Intent = "other"
)

// AllIntents returns the fixed enumeration used by the classifier schema.
func AllIntents() []Intent {
	return []Intent{
		IntentContentCreation, IntentContentStrategy, IntentContentReview,
		IntentTrendResearch, IntentQuestion, IntentOther,
	}
}

// Valid returns true if the intent is a known value.
func (i Intent) Valid() bool {
	switch i {
	case IntentContentCreation, IntentContentStrategy, IntentContentReview,
		IntentTrendResearch, IntentQuestion, IntentOther:
		return true
	default:
		return false
	}
}

// ProducesArtifact reports whether a run with this intent persists its answer
// as a generated document.
func (i Intent) ProducesArtifact() bool {
	return i == IntentContentCreation || i == IntentContentStrategy
}

// Platform is a publishing target.
type Platform string

const (
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTwitter   Platform = "twitter"
	PlatformInstagram Platform = "instagram"
)

// AllPlatforms returns the full supported scope.
func AllPlatforms() []Platform {
	return []Platform{PlatformLinkedIn, PlatformTwitter, PlatformInstagram}
}

// Valid returns true if the platform is a known value.
func (p Platform) Valid() bool {
	switch p {
	case PlatformLinkedIn, PlatformTwitter, PlatformInstagram:
		return true
	default:
		return false
	}
}

// IntentAnalysis is the structured output of intent classification.
type IntentAnalysis struct {
	PrimaryIntent   Intent     `json:"primary_intent"`
	TargetPlatforms []Platform `json:"target_platforms"`
	RequiredAgents  []TaskName `json:"required_agents"`
	KeyEntities     []string   `json:"key_entities"`
	TaskDescription string     `json:"task_description"`
}

// Normalize drops unknown platforms and agents, removes duplicates and
// defaults an empty scope to every supported platform.
func (a *IntentAnalysis) Normalize() {
	seenP := make(map[Platform]bool)
	platforms := make([]Platform, 0, len(a.TargetPlatforms))
	for _, p := range a.TargetPlatforms {
		if p.Valid() && !seenP[p] {
			seenP[p] = true
			platforms = append(platforms, p)
		}
	}
	if len(platforms) == 0 {
		platforms = AllPlatforms()
	}
	a.TargetPlatforms = platforms

	seenA := make(map[TaskName]bool)
	agents := make([]TaskName, 0, len(a.RequiredAgents))
	for _, n := range a.RequiredAgents {
		if n.Valid() && !seenA[n] {
			seenA[n] = true
			agents = append(agents, n)
		}
	}
	a.RequiredAgents = agents

	if a.KeyEntities == nil {
		a.KeyEntities = []string{}
	}
}

// WavePlan is the two ordered groups of tasks resolved from an intent.
// Wave2 may be empty; when it is not, its tasks see all Wave1 results.
type WavePlan struct {
	Wave1 []TaskName `json:"wave1" yaml:"wave1"`
	Wave2 []TaskName `json:"wave2" yaml:"wave2"`
}

// Tasks returns every task in dispatch order.
func (p WavePlan) Tasks() []TaskName {
	out := make([]TaskName, 0, len(p.Wave1)+len(p.Wave2))
	out = append(out, p.Wave1...)
	return append(out, p.Wave2...)
}

// Empty reports whether the plan dispatches nothing.
func (p WavePlan) Empty() bool {
	return len(p.Wave1) == 0 && len(p.Wave2) == 0
}

// Clone returns a deep copy so callers cannot mutate a shared table entry.
func (p WavePlan) Clone() WavePlan {
	return WavePlan{
		Wave1: append([]TaskName(nil), p.Wave1...),
		Wave2: append([]TaskName(nil), p.Wave2...),
	}
}
