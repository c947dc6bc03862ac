package agent

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/oneshot/internal/citation"
	"github.com/ShayCichocki/oneshot/pkg/models"
)

// Previous results are cut before being quoted to a later task.
const (
	contextPreviewLen = 1000
	reviewPreviewLen  = 500
)

// StrategistPrompt guides audience and cadence planning.
const StrategistPrompt = `You are the Strategist for a social media command center.

Reason step by step before answering:
1. Identify the audience for each platform. LinkedIn reaches technology leaders,
   Twitter/X reaches developers, Instagram reaches the wider community and future hires.
2. Find the core message and how it ties to the brand pillars.
3. Choose tone per platform: thought leadership on LinkedIn, quick punchy takes on
   Twitter/X, authentic storytelling on Instagram.
4. Plan cadence and a content mix of announcements, thought leadership, engagement
   and culture posts.
5. Recommend calls to action per platform.

Return a structured strategy and give the reasoning behind each recommendation.`

// ResearcherPrompt guides trend and competitor research.
const ResearcherPrompt = `You are the Researcher for a social media command center.

Work in a reason, act, observe loop:
- Think about what information the request needs.
- Call tools to search trends, news, competitor activity and hashtags.
- Record what each result tells you and decide whether more searching is needed.

Finish with a research brief that lists the top trending topics for the request,
recommended hashtags with estimated reach, what competitors are doing and where the
gaps are, and the data points and sources the content can cite. Keep every source URL
you relied on.`

// AnalystPrompt guides engagement benchmarking.
const AnalystPrompt = `You are the Analyst for a social media command center.

Ground every recommendation in numbers:
- Benchmark expected engagement per platform against historical post performance.
- Recommend posting days and times for a B2B technology audience.
- Predict reach and engagement for the proposed format and flag timing risks.
- Suggest formats and A/B tests worth running.

Use tables for comparisons and state the metric behind each recommendation.`

// ScribePrompt guides platform-specific writing.
const ScribePrompt = `You are the Scribe for a social media command center.

Write finished, platform-ready content:
- LinkedIn: a two-line hook, three to five short paragraphs, a clear call to action and
  three to five hashtags. Stay under 3000 characters.
- Twitter/X: a thread of at most ten numbered tweets of 280 characters or fewer. Open
  with the strongest point and close with a call to action and two or three hashtags.
- Instagram: an attention-grabbing first line, a story-driven caption under 2200
  characters, a call to save or share, 15 to 25 hashtags and a suggested visual.

Match the brand voice. Avoid unsupported superlatives and include at least one
concrete data point or example per post.`

// AdvisorPrompt guides brand compliance review.
const AdvisorPrompt = `You are the Advisor for a social media command center.

Review content in three passes:
1. Assess brand voice, platform fit, accuracy of claims, hashtag use and content policy.
2. Reflect on whether the assessment is too strict or too lenient and whether the
   content would help the brand if it spread widely.
3. Give a revised assessment with a compliance score from 1 to 10, what to keep, what
   to improve, any brand risks, and rewrites for anything scoring below 8.

Be direct and constructive.`

// MemoryPrompt guides brand knowledge retrieval.
const MemoryPrompt = `You are the Memory agent for a social media command center.

Retrieve and summarize the brand context other agents need:
- Brand voice, key messages, platform tone and audience personas.
- Past post performance: what the best posts did well and what to avoid.
- Hashtag strategy and formatting preferences per platform.
- Upcoming calendar entries, launches and events worth referencing.

Quote the guidelines and posts you retrieved rather than paraphrasing from memory.`

var systemPrompts = map[models.TaskName]string{
	models.TaskStrategist: StrategistPrompt,
	models.TaskResearcher: ResearcherPrompt,
	models.TaskAnalyst:    AnalystPrompt,
	models.TaskScribe:     ScribePrompt,
	models.TaskAdvisor:    AdvisorPrompt,
	models.TaskMemory:     MemoryPrompt,
}

// SystemPrompt returns the system prompt for task.
func SystemPrompt(task models.TaskName) string {
	return systemPrompts[task]
}

var fallbackTemperatures = map[models.TaskName]float64{
	models.TaskStrategist: 0.7,
	models.TaskResearcher: 0.5,
	models.TaskMemory:     0.4,
	models.TaskAnalyst:    0.3,
	models.TaskAdvisor:    0.6,
	models.TaskScribe:     0.6,
}

// FallbackTemperature returns the sampling temperature used when task
// degrades to a plain completion.
func FallbackTemperature(task models.TaskName) float64 {
	if t, ok := fallbackTemperatures[task]; ok {
		return t
	}
	return 0.7
}

// BuildPrompt renders the user prompt for task from the run context.
func BuildPrompt(task models.TaskName, description string, tc models.TaskContext) string {
	switch task {
	case models.TaskResearcher:
		return researcherPrompt(description, tc)
	case models.TaskStrategist:
		return strategistPrompt(description, tc)
	case models.TaskAnalyst:
		return analystPrompt(description, tc)
	case models.TaskScribe:
		return scribePrompt(description, tc)
	case models.TaskAdvisor:
		return advisorPrompt(description, tc)
	case models.TaskMemory:
		return memoryPrompt(description, tc)
	default:
		return fmt.Sprintf("Task: %s\n\nOriginal Request: %s", description, tc.Message)
	}
}

func platformList(ps []models.Platform) string {
	if len(ps) == 0 {
		ps = models.AllPlatforms()
	}
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

func entityList(es []string) string {
	if len(es) == 0 {
		return "None specified"
	}
	return strings.Join(es, ", ")
}

func researcherPrompt(description string, tc models.TaskContext) string {
	message := tc.Message
	if message == "" {
		message = description
	}
	return fmt.Sprintf(`Task: %s

Target Platforms: %s
Key Entities: %s
Original Request: %s

Research this topic in a reason, act, observe loop:
1. Decide what information is needed
2. Use the available tools to search trends, news, competitor content and hashtags
3. Review the results and search again if something is missing
4. Write a research briefing that cites its sources

Use the page fetch tool to read any article worth quoting.`,
		description, platformList(tc.Platforms), entityList(tc.Entities), message)
}

func strategistPrompt(description string, tc models.TaskContext) string {
	var ctxParts []string
	if r, ok := tc.PreviousResults[models.TaskResearcher]; ok {
		ctxParts = append(ctxParts, "\nResearch Findings:\n"+citation.Truncate(r, contextPreviewLen))
	}
	if r, ok := tc.PreviousResults[models.TaskMemory]; ok {
		ctxParts = append(ctxParts, "\nBrand Context:\n"+citation.Truncate(r, contextPreviewLen))
	}
	return fmt.Sprintf(`Task: %s

Target Platforms: %s
%s

Original Request: %s

Reason step by step to develop a content strategy.
Use the available tools to check engagement benchmarks and posting schedules.`,
		description, platformList(tc.Platforms), strings.Join(ctxParts, "\n"), tc.Message)
}

func analystPrompt(description string, tc models.TaskContext) string {
	var data string
	if r, ok := tc.PreviousResults[models.TaskResearcher]; ok {
		data += "\nResearch Data:\n" + citation.Truncate(r, contextPreviewLen)
	}
	if r, ok := tc.PreviousResults[models.TaskMemory]; ok {
		data += "\nHistorical Data:\n" + citation.Truncate(r, contextPreviewLen)
	}
	return fmt.Sprintf(`Task: %s

Target Platforms: %s
%s

Original Request: %s

Use the available tools to calculate engagement metrics and recommend posting schedules.
Provide quantitative analysis and data-driven insights.`,
		description, platformList(tc.Platforms), data, tc.Message)
}

func scribePrompt(description string, tc models.TaskContext) string {
	var parts []string
	for _, src := range []struct {
		task  models.TaskName
		label string
	}{
		{models.TaskStrategist, "Strategy Content"},
		{models.TaskResearcher, "Research Content"},
		{models.TaskAnalyst, "Analysis Content"},
	} {
		if r, ok := tc.PreviousResults[src.task]; ok {
			parts = append(parts, src.label+":\n"+r)
		}
	}
	source := tc.Message
	if len(parts) > 0 {
		source = strings.Join(parts, "\n\n")
	}
	return fmt.Sprintf(`Task: %s

Target Platforms: %s

Source Content:
%s

Write the finished content for each target platform in markdown, following the
platform templates.`,
		description, platformList(tc.Platforms), source)
}

func advisorPrompt(description string, tc models.TaskContext) string {
	var parts []string
	for _, task := range models.AllTaskNames() {
		r, ok := tc.PreviousResults[task]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s Output:\n%s", titleCase(string(task)), citation.Truncate(r, reviewPreviewLen)))
	}
	content := tc.Message
	if len(parts) > 0 {
		content = strings.Join(parts, "\n\n")
	}
	return fmt.Sprintf(`Task: %s

Content to Review:
%s

Use the available tools to retrieve the brand guidelines and past post performance.
Review, reflect, then give a revised assessment with a compliance score (1-10) and
specific feedback. Lead with the key recommendation and end with next steps.`,
		description, content)
}

func memoryPrompt(description string, tc models.TaskContext) string {
	message := tc.Message
	if message == "" {
		message = description
	}
	return fmt.Sprintf(`Task: %s

Key Entities: %s
Original Query: %s

Use the available tools to retrieve the brand guidelines, past post performance, the
content calendar and any matching knowledge base entries. Then summarize:
1. The past posts most relevant to this request and how they performed
2. The guidelines that apply
3. Insights that should shape the new content`,
		description, entityList(tc.Entities), message)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
