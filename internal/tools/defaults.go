package tools

// Deps are the collaborators the built-in tools need. A nil Searcher makes
// the web tools answer from cached data; a nil Fetcher gets a default one.
type Deps struct {
	Data     *BrandData
	Searcher Searcher
	Fetcher  *Fetcher
}

// DefaultRegistry registers every built-in tool.
func DefaultRegistry(deps Deps) *Registry {
	data := deps.Data
	if data == nil {
		data = &BrandData{}
	}
	all := []Tool{
		searchWebTool(deps.Searcher),
		searchNewsTool(deps.Searcher),
		searchTrendsTool(deps.Searcher),
		analyzeHashtagsTool(deps.Searcher, data),
		searchCompetitorTool(deps.Searcher),
		brandGuidelinesTool(data),
		pastPostsTool(data),
		contentCalendarTool(data),
		knowledgeBaseTool(data),
		engagementMetricsTool(data),
		postingScheduleTool(data),
	}
	fetcher := deps.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher(0)
	}
	all = append(all, FetchPageTool(fetcher))
	return NewRegistry(all...)
}
