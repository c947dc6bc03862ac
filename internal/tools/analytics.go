package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type benchmark struct {
	engagement  float64
	impressions int
}

var benchmarks = map[string]map[string]benchmark{
	"linkedin": {
		"text":     {2.5, 8000},
		"image":    {3.2, 12000},
		"video":    {4.1, 18000},
		"carousel": {4.8, 15000},
		"poll":     {5.5, 10000},
	},
	"twitter": {
		"text":   {1.8, 5000},
		"image":  {2.5, 7000},
		"video":  {3.0, 10000},
		"thread": {4.2, 15000},
		"poll":   {5.0, 8000},
	},
	"instagram": {
		"image":    {4.0, 8000},
		"carousel": {5.5, 12000},
		"video":    {4.8, 15000},
		"reel":     {6.2, 25000},
	},
}

func bestPostingTime(platform string) string {
	switch platform {
	case "linkedin":
		return "8-10 AM"
	case "twitter":
		return "10-11 AM"
	default:
		return "12-1 PM"
	}
}

func engagementMetricsTool(data *BrandData) Tool {
	return NewFunc("calculate_engagement_metrics",
		"Calculate predicted engagement metrics for a content type on a platform.",
		Schema{
			Properties: map[string]any{
				"platform":     prop("string", "linkedin, twitter, or instagram"),
				"content_type": prop("string", "text, image, video, carousel, thread, poll, or reel"),
			},
			Required: []string{"platform", "content_type"},
		},
		func(_ context.Context, input json.RawMessage) (string, error) {
			var args struct {
				Platform    string `json:"platform"`
				ContentType string `json:"content_type"`
			}
			if err := decode(input, &args); err != nil {
				return "", err
			}
			return EngagementMetrics(data, args.Platform, args.ContentType), nil
		})
}

// EngagementMetrics predicts engagement from historical posts, falling back
// to format benchmarks.
func EngagementMetrics(data *BrandData, platform, contentType string) string {
	bench, ok := benchmarks[platform][contentType]
	if !ok {
		bench = benchmark{2.0, 5000}
	}

	predictedEng := bench.engagement
	predictedImp := bench.impressions
	history := ""

	if data != nil {
		posts, _ := data.Posts()
		var plat []Post
		for _, p := range posts {
			if p.Platform == platform {
				plat = append(plat, p)
			}
		}
		if len(plat) > 0 {
			var engSum float64
			var impSum int
			top := plat[0]
			for _, p := range plat {
				engSum += p.EngagementRate
				impSum += p.Impressions
				if p.EngagementRate > top.EngagementRate {
					top = p
				}
			}
			predictedEng = engSum / float64(len(plat))
			predictedImp = impSum / len(plat)
			history = fmt.Sprintf(`
Historical Data (%d posts on %s):
- Average engagement rate: %.1f%%
- Average impressions: %d
- Top post engagement: %.1f%% (performance: %s)
- Top post success factors: %s
`, len(plat), platform, predictedEng, predictedImp, top.EngagementRate, top.Performance, strings.Join(top.SuccessFactors, ", "))
		}
	}

	return fmt.Sprintf(`Engagement Prediction for %s on %s:

- Predicted engagement rate: %.1f%%
- Estimated impressions: %d
- Estimated likes: %d
- Best posting time: %s

Industry Benchmark (%s):
- Industry average: %.1f%%
- Format benchmark: %.1f%% engagement, %d impressions
%s`, contentType, platform,
		predictedEng, predictedImp, int(float64(predictedImp)*predictedEng/100), bestPostingTime(platform),
		contentType, bench.engagement-0.3, bench.engagement, bench.impressions, history)
}

type slot struct {
	OptimalDays          []string `json:"optimal_days"`
	OptimalTimes         []string `json:"optimal_times"`
	RecommendedFrequency string   `json:"recommended_frequency"`
}

var schedules = map[string]slot{
	"linkedin": {
		OptimalDays:          []string{"Tuesday", "Wednesday", "Thursday"},
		OptimalTimes:         []string{"8:30 AM", "9:00 AM", "12:00 PM"},
		RecommendedFrequency: "3-4 posts/week",
	},
	"twitter": {
		OptimalDays:          []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		OptimalTimes:         []string{"9:00 AM", "11:00 AM", "1:00 PM"},
		RecommendedFrequency: "1-2 posts/day",
	},
	"instagram": {
		OptimalDays:          []string{"Monday", "Wednesday", "Friday"},
		OptimalTimes:         []string{"11:00 AM", "12:00 PM", "7:00 PM"},
		RecommendedFrequency: "3-5 posts/week",
	},
}

func postingScheduleTool(data *BrandData) Tool {
	return NewFunc("recommend_posting_schedule",
		"Recommend an optimal posting schedule based on audience data.",
		Schema{
			Properties: map[string]any{
				"platforms":      prop("string", "Comma-separated list of target platforms"),
				"posts_per_week": prop("integer", "Total posts per week across all platforms (default 10)"),
			},
			Required: []string{"platforms"},
		},
		func(_ context.Context, input json.RawMessage) (string, error) {
			args := struct {
				Platforms    string `json:"platforms"`
				PostsPerWeek int    `json:"posts_per_week"`
			}{PostsPerWeek: 10}
			if err := decode(input, &args); err != nil {
				return "", err
			}
			return PostingSchedule(data, args.Platforms, args.PostsPerWeek), nil
		})
}

// PostingSchedule recommends slots per platform and a weekly content mix.
func PostingSchedule(data *BrandData, platforms string, postsPerWeek int) string {
	if postsPerWeek <= 0 {
		postsPerWeek = 10
	}
	var list []string
	for _, p := range strings.Split(platforms, ",") {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}
	inList := func(p string) bool {
		for _, l := range list {
			if l == p {
				return true
			}
		}
		return false
	}

	result := make(map[string]slot, len(list))
	for _, p := range list {
		result[p] = schedules[p]
	}
	resultJSON, _ := json.MarshalIndent(result, "", "  ")

	var sb strings.Builder
	fmt.Fprintf(&sb, "Recommended Posting Schedule (%d posts/week):\n\n%s\n", postsPerWeek, resultJSON)

	if data != nil {
		if cal, _, ok := data.Calendar(); ok {
			var lines []string
			for _, e := range cal.Entries {
				if inList(e.Platform) {
					lines = append(lines, fmt.Sprintf("  - %s %s: [%s] %s (%s)", e.Day, e.Time, e.Platform, e.Topic, e.ContentType))
				}
			}
			if len(lines) > 0 {
				fmt.Fprintf(&sb, "\nExisting Calendar:\nCurrent Week (%s), Theme: %s\n%s\n", cal.WeekOf, cal.Theme, strings.Join(lines, "\n"))
			}
		}
		if posts, ok := data.Posts(); ok {
			var perf []string
			for _, plat := range list {
				var top *Post
				for i := range posts {
					if posts[i].Platform == plat && (top == nil || posts[i].EngagementRate > top.EngagementRate) {
						top = &posts[i]
					}
				}
				if top != nil {
					perf = append(perf, fmt.Sprintf("  %s: Top post scored %.1f%% engagement on %s", plat, top.EngagementRate, top.Date))
				}
			}
			if len(perf) > 0 {
				fmt.Fprintf(&sb, "\nHistorical Performance:\n%s\n", strings.Join(perf, "\n"))
			}
		}
	}

	fmt.Fprintf(&sb, `
Content Mix Recommendation:
- Announcements: 20%% (%d posts)
- Thought Leadership: 30%% (%d posts)
- Engagement: 25%% (%d posts)
- Culture: 25%% (%d posts)`,
		postsPerWeek*20/100, postsPerWeek*30/100, postsPerWeek*25/100, postsPerWeek*25/100)
	return sb.String()
}
