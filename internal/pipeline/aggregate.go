package pipeline

import (
	"strings"
	"time"

	"github.com/sells-group/intel-cli/internal/model"
)

// buildReport aggregates settled stage results into the display-oriented
// report. Every tab key is always present; stages that did not run simply
// leave their tab empty.
func buildReport(profile *model.OrganizationProfile, results map[model.StageID]model.StageResult, requestID string) *model.IntelReport {
	tabs := model.EmptyTabs()
	analysis := make(map[model.StageID]string)
	stages := make([]model.StageResult, 0, len(results))
	phases := make([]model.StageID, 0, len(results))
	degraded := make([]model.StageID, 0)

	for _, id := range model.AllStages() {
		r, ok := results[id]
		if !ok {
			continue
		}
		stages = append(stages, r)
		if r.Completed() {
			phases = append(phases, id)
		}
		if r.Status == model.StageFallback {
			degraded = append(degraded, id)
		}
		if r.Analysis != "" {
			analysis[id] = r.Analysis
		}
		applyTab(tabs, r)
	}

	return &model.IntelReport{
		Success:   true,
		RequestID: requestID,
		Tabs:      tabs,
		Analysis:  analysis,
		Stages:    stages,
		Metadata: model.ReportMetadata{
			Organization:    profile.Name,
			Timestamp:       time.Now().UTC(),
			PhasesCompleted: phases,
			Degraded:        degraded,
		},
	}
}

// emptyReport is the well-formed result for a run that failed at extraction.
// All tab keys are present but empty so callers only ever check Success.
func emptyReport(profile *model.OrganizationProfile, requestID string) *model.IntelReport {
	return &model.IntelReport{
		Success:   false,
		RequestID: requestID,
		Tabs:      model.EmptyTabs(),
		Analysis:  map[model.StageID]string{},
		Stages:    []model.StageResult{},
		Metadata: model.ReportMetadata{
			Organization:    profile.Name,
			Timestamp:       time.Now().UTC(),
			PhasesCompleted: []model.StageID{},
		},
	}
}

// applyTab folds one stage's typed output into its tab. Extraction and
// synthesis share the overview tab; synthesis wins the summary when present.
func applyTab(tabs map[string]model.Tab, r model.StageResult) {
	switch out := r.Output.(type) {
	case model.ProfileExtract:
		tab := tabs[model.TabOverview]
		tab.Summary = firstNonEmpty(out.Summary, out.Description)
		if out.Industry != "" {
			tab.Items = append(tab.Items, model.TabItem{Label: "Industry", Detail: out.Industry})
		}
		if out.Website != "" {
			tab.Items = append(tab.Items, model.TabItem{Label: "Website", Detail: out.Website})
		}
		if len(out.Keywords) > 0 {
			tab.Items = append(tab.Items, model.TabItem{Label: "Keywords", Detail: strings.Join(out.Keywords, ", ")})
		}
		tab.Sources = append(tab.Sources, r.Stage)
		tabs[model.TabOverview] = tab

	case model.SynthesisReport:
		tab := tabs[model.TabOverview]
		if out.ExecutiveSummary != "" {
			tab.Summary = out.ExecutiveSummary
		}
		for _, f := range out.KeyFindings {
			tab.Items = append(tab.Items, model.TabItem{Label: "Finding", Detail: f})
		}
		for _, o := range out.Opportunities {
			tab.Items = append(tab.Items, model.TabItem{Label: "Opportunity", Detail: o})
		}
		for _, risk := range out.Risks {
			tab.Items = append(tab.Items, model.TabItem{Label: "Risk", Detail: risk})
		}
		for _, rec := range out.Recommendations {
			tab.Items = append(tab.Items, model.TabItem{Label: "Recommendation", Detail: rec})
		}
		tab.Sources = append(tab.Sources, r.Stage)
		tabs[model.TabOverview] = tab

	case model.CompetitiveLandscape:
		tab := tabs[model.TabCompetitive]
		tab.Summary = out.Summary
		if out.MarketPosition != "" {
			tab.Items = append(tab.Items, model.TabItem{Label: "Market position", Detail: out.MarketPosition})
		}
		for _, c := range out.Competitors {
			tab.Items = append(tab.Items, model.TabItem{Label: c.Name, Detail: c.Position})
		}
		tab.Sources = append(tab.Sources, r.Stage)
		tabs[model.TabCompetitive] = tab

	case model.StakeholderMap:
		tab := tabs[model.TabStakeholders]
		tab.Summary = out.Summary
		for _, g := range out.Groups {
			detail := strings.Join(g.Names, ", ")
			switch {
			case g.Stance != "" && detail != "":
				detail += " (" + g.Stance + ")"
			case g.Stance != "":
				detail = g.Stance
			}
			tab.Items = append(tab.Items, model.TabItem{Label: g.Category, Detail: detail})
		}
		tab.Sources = append(tab.Sources, r.Stage)
		tabs[model.TabStakeholders] = tab

	case model.MediaCoverage:
		tab := tabs[model.TabMedia]
		tab.Summary = out.Summary
		if out.OverallSentiment != "" {
			tab.Items = append(tab.Items, model.TabItem{Label: "Overall sentiment", Detail: out.OverallSentiment})
		}
		for _, o := range out.Outlets {
			tab.Items = append(tab.Items, model.TabItem{Label: o.Outlet, Detail: o.Sentiment})
		}
		for _, n := range out.Narratives {
			tab.Items = append(tab.Items, model.TabItem{Label: "Narrative", Detail: n})
		}
		tab.Sources = append(tab.Sources, r.Stage)
		tabs[model.TabMedia] = tab

	case model.RegulatoryOutlook:
		tab := tabs[model.TabRegulatory]
		tab.Summary = out.Summary
		if out.RiskLevel != "" {
			tab.Items = append(tab.Items, model.TabItem{Label: "Risk level", Detail: out.RiskLevel})
		}
		for _, b := range out.Bodies {
			tab.Items = append(tab.Items, model.TabItem{Label: b.Name, Detail: b.Scrutiny})
		}
		for _, issue := range out.OpenIssues {
			tab.Items = append(tab.Items, model.TabItem{Label: "Open issue", Detail: issue})
		}
		tab.Sources = append(tab.Sources, r.Stage)
		tabs[model.TabRegulatory] = tab

	case model.TrendReport:
		tab := tabs[model.TabTrends]
		tab.Summary = out.Summary
		for _, t := range out.Trends {
			tab.Items = append(tab.Items, model.TabItem{Label: t.Name, Detail: t.Direction})
		}
		tab.Sources = append(tab.Sources, r.Stage)
		tabs[model.TabTrends] = tab
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
