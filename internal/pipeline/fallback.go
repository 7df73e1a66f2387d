package pipeline

import (
	"fmt"

	"github.com/sells-group/intel-cli/internal/model"
)

// FallbackContext carries whatever the executor still has when the external
// call has failed: the profile and any upstream results already settled.
type FallbackContext struct {
	Profile  *model.OrganizationProfile
	Upstream map[model.StageID]model.StageResult
}

// Fallback produces a deterministic, structurally valid substitute output
// when a stage's external call fails. Output shapes are identical to the
// successful case for the same stage, so downstream stages and the
// aggregator never branch on degradation.
type Fallback struct{}

// Synthesize builds the degraded output for a stage from the context alone.
func (Fallback) Synthesize(stage model.StageID, fc FallbackContext) model.StageOutput {
	var p model.OrganizationProfile
	if fc.Profile != nil {
		p = *fc.Profile
	}
	name := p.Name
	if name == "" {
		name = "the organization"
	}
	note := fmt.Sprintf("Degraded result for %s: external analysis was unavailable; assembled from known profile data only.", name)

	switch stage {
	case model.StageExtraction:
		return model.ProfileExtract{
			Name:         p.Name,
			Industry:     p.Industry,
			Website:      p.Website,
			Description:  p.Description,
			Competitors:  p.Competitors,
			Regulators:   p.Regulators,
			MediaOutlets: p.MediaOutlets,
			Investors:    p.Investors,
			Analysts:     p.Analysts,
			Critics:      p.Critics,
			Keywords:     p.Keywords,
			Summary:      note,
		}

	case model.StageCompetitive:
		competitors := make([]model.Competitor, 0, len(p.Competitors))
		for _, c := range p.Competitors {
			competitors = append(competitors, model.Competitor{Name: c, Position: "unverified"})
		}
		return model.CompetitiveLandscape{
			Competitors:    competitors,
			MarketPosition: "unknown",
			Summary:        note,
		}

	case model.StageStakeholders:
		var groups []model.StakeholderGroup
		for _, g := range []struct {
			category string
			names    []string
		}{
			{"investors", p.Investors},
			{"analysts", p.Analysts},
			{"critics", p.Critics},
		} {
			if len(g.names) == 0 {
				continue
			}
			groups = append(groups, model.StakeholderGroup{
				Category:  g.category,
				Names:     g.names,
				Influence: "unknown",
				Stance:    "unknown",
			})
		}
		return model.StakeholderMap{Groups: groups, Summary: note}

	case model.StageMedia:
		outlets := make([]model.OutletCoverage, 0, len(p.MediaOutlets))
		for _, o := range p.MediaOutlets {
			outlets = append(outlets, model.OutletCoverage{Outlet: o, Sentiment: "unknown"})
		}
		return model.MediaCoverage{
			Outlets:          outlets,
			OverallSentiment: "unknown",
			Summary:          note,
		}

	case model.StageRegulatory:
		bodies := make([]model.RegulatorWatch, 0, len(p.Regulators))
		for _, r := range p.Regulators {
			bodies = append(bodies, model.RegulatorWatch{Name: r, Scrutiny: "unknown"})
		}
		return model.RegulatoryOutlook{
			Bodies:    bodies,
			RiskLevel: "unknown",
			Summary:   note,
		}

	case model.StageTrends:
		trends := make([]model.Trend, 0, len(p.Keywords))
		for _, k := range p.Keywords {
			trends = append(trends, model.Trend{Name: k, Direction: "unknown"})
		}
		return model.TrendReport{Trends: trends, Summary: note}

	case model.StageSynthesis:
		var findings []string
		for _, id := range model.MiddleStages() {
			r, ok := fc.Upstream[id]
			if !ok || !r.Completed() {
				continue
			}
			if s := outputSummary(r.Output); s != "" {
				findings = append(findings, fmt.Sprintf("%s: %s", id, s))
			}
		}
		return model.SynthesisReport{
			ExecutiveSummary: note,
			KeyFindings:      findings,
		}
	}

	return model.SynthesisReport{ExecutiveSummary: note}
}

// outputSummary extracts the free-text summary a stage output carries.
func outputSummary(out model.StageOutput) string {
	switch v := out.(type) {
	case model.ProfileExtract:
		return v.Summary
	case model.CompetitiveLandscape:
		return v.Summary
	case model.StakeholderMap:
		return v.Summary
	case model.MediaCoverage:
		return v.Summary
	case model.RegulatoryOutlook:
		return v.Summary
	case model.TrendReport:
		return v.Summary
	case model.SynthesisReport:
		return v.ExecutiveSummary
	}
	return ""
}
