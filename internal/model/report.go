package model

import "time"

// Tab is a display-oriented view combining one or more stage outputs. The
// coordinator guarantees every key in TabKeys is present on every report,
// full or degraded, so consumers never null-check beyond Success.
type Tab struct {
	Title   string    `json:"title"`
	Summary string    `json:"summary,omitempty"`
	Items   []TabItem `json:"items"`
	Sources []StageID `json:"sources,omitempty"`
}

// TabItem is one labeled row within a tab.
type TabItem struct {
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
}

// Fixed tab key set.
const (
	TabOverview     = "overview"
	TabCompetitive  = "competitive_landscape"
	TabStakeholders = "stakeholder_voices"
	TabMedia        = "media_coverage"
	TabRegulatory   = "regulatory_risk"
	TabTrends       = "market_trends"
)

// TabKeys lists every tab key a report must carry.
func TabKeys() []string {
	return []string{
		TabOverview, TabCompetitive, TabStakeholders,
		TabMedia, TabRegulatory, TabTrends,
	}
}

// ReportMetadata describes which organization a report covers and how much
// of the pipeline actually completed.
type ReportMetadata struct {
	Organization    string    `json:"organization"`
	Timestamp       time.Time `json:"timestamp"`
	PhasesCompleted []StageID `json:"phases_completed"`
	Degraded        []StageID `json:"degraded,omitempty"`
}

// IntelReport is the aggregated result of a pipeline run. A degraded run is
// shape-identical to a full one; only stage statuses and field emptiness
// distinguish them.
type IntelReport struct {
	Success   bool               `json:"success"`
	RequestID string             `json:"request_id,omitempty"`
	Tabs      map[string]Tab     `json:"tabs"`
	Analysis  map[StageID]string `json:"analysis"`
	Stages    []StageResult      `json:"stages"`
	Metadata  ReportMetadata     `json:"metadata"`
}

// EmptyTabs returns the full tab key set with empty placeholder content.
func EmptyTabs() map[string]Tab {
	tabs := make(map[string]Tab, len(TabKeys()))
	titles := map[string]string{
		TabOverview:     "Overview",
		TabCompetitive:  "Competitive Landscape",
		TabStakeholders: "Stakeholder Voices",
		TabMedia:        "Media Coverage",
		TabRegulatory:   "Regulatory Risk",
		TabTrends:       "Market Trends",
	}
	for _, key := range TabKeys() {
		tabs[key] = Tab{Title: titles[key], Items: []TabItem{}}
	}
	return tabs
}
