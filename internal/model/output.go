package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// StageOutput is the typed payload a stage produces. External JSON never
// crosses the executor boundary untyped: every response is decoded into one
// of the shapes below, and fallback synthesis produces the same shapes.
type StageOutput interface {
	StageID() StageID
	// Empty reports whether the payload carries no usable content. An empty
	// decode of an otherwise-2xx response is treated like a failed call.
	Empty() bool
}

// ProfileExtract is the extraction stage output: the organization identity
// plus any stakeholders and keywords the analysis discovered.
type ProfileExtract struct {
	Name         string   `json:"name"`
	Industry     string   `json:"industry,omitempty"`
	Website      string   `json:"website,omitempty"`
	Description  string   `json:"description,omitempty"`
	Competitors  []string `json:"competitors,omitempty"`
	Regulators   []string `json:"regulators,omitempty"`
	MediaOutlets []string `json:"media_outlets,omitempty"`
	Investors    []string `json:"investors,omitempty"`
	Analysts     []string `json:"analysts,omitempty"`
	Critics      []string `json:"critics,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	Summary      string   `json:"summary,omitempty"`
}

func (ProfileExtract) StageID() StageID { return StageExtraction }
func (o ProfileExtract) Empty() bool    { return o.Name == "" }

// Competitor is one entry in the competitive landscape.
type Competitor struct {
	Name      string   `json:"name"`
	Position  string   `json:"position,omitempty"`
	Strengths []string `json:"strengths,omitempty"`
	Threats   []string `json:"threats,omitempty"`
}

// CompetitiveLandscape is the competitive stage output.
type CompetitiveLandscape struct {
	Competitors    []Competitor `json:"competitors"`
	MarketPosition string       `json:"market_position,omitempty"`
	Summary        string       `json:"summary,omitempty"`
}

func (CompetitiveLandscape) StageID() StageID { return StageCompetitive }
func (o CompetitiveLandscape) Empty() bool {
	return len(o.Competitors) == 0 && o.Summary == ""
}

// StakeholderGroup is one category of stakeholders and its assessed posture.
type StakeholderGroup struct {
	Category  string   `json:"category"`
	Names     []string `json:"names,omitempty"`
	Influence string   `json:"influence,omitempty"`
	Stance    string   `json:"stance,omitempty"`
}

// StakeholderMap is the stakeholders stage output.
type StakeholderMap struct {
	Groups  []StakeholderGroup `json:"groups"`
	Summary string             `json:"summary,omitempty"`
}

func (StakeholderMap) StageID() StageID { return StageStakeholders }
func (o StakeholderMap) Empty() bool    { return len(o.Groups) == 0 && o.Summary == "" }

// OutletCoverage is one media outlet's observed coverage.
type OutletCoverage struct {
	Outlet    string   `json:"outlet"`
	Sentiment string   `json:"sentiment,omitempty"`
	Topics    []string `json:"topics,omitempty"`
}

// MediaCoverage is the media stage output.
type MediaCoverage struct {
	Outlets          []OutletCoverage `json:"outlets"`
	OverallSentiment string           `json:"overall_sentiment,omitempty"`
	Narratives       []string         `json:"narratives,omitempty"`
	Summary          string           `json:"summary,omitempty"`
}

func (MediaCoverage) StageID() StageID { return StageMedia }
func (o MediaCoverage) Empty() bool    { return len(o.Outlets) == 0 && o.Summary == "" }

// RegulatorWatch is one regulatory body and its scrutiny level.
type RegulatorWatch struct {
	Name         string `json:"name"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	Scrutiny     string `json:"scrutiny,omitempty"`
}

// RegulatoryOutlook is the regulatory stage output.
type RegulatoryOutlook struct {
	Bodies     []RegulatorWatch `json:"bodies"`
	OpenIssues []string         `json:"open_issues,omitempty"`
	RiskLevel  string           `json:"risk_level,omitempty"`
	Summary    string           `json:"summary,omitempty"`
}

func (RegulatoryOutlook) StageID() StageID { return StageRegulatory }
func (o RegulatoryOutlook) Empty() bool    { return len(o.Bodies) == 0 && o.Summary == "" }

// Trend is one market or industry trend relevant to the organization.
type Trend struct {
	Name      string `json:"name"`
	Direction string `json:"direction,omitempty"`
	Horizon   string `json:"horizon,omitempty"`
	Relevance string `json:"relevance,omitempty"`
}

// TrendReport is the trends stage output.
type TrendReport struct {
	Trends  []Trend `json:"trends"`
	Summary string  `json:"summary,omitempty"`
}

func (TrendReport) StageID() StageID { return StageTrends }
func (o TrendReport) Empty() bool    { return len(o.Trends) == 0 && o.Summary == "" }

// SynthesisReport is the terminal stage output combining all upstream stages.
type SynthesisReport struct {
	ExecutiveSummary string   `json:"executive_summary"`
	KeyFindings      []string `json:"key_findings,omitempty"`
	Opportunities    []string `json:"opportunities,omitempty"`
	Risks            []string `json:"risks,omitempty"`
	Recommendations  []string `json:"recommendations,omitempty"`
}

func (SynthesisReport) StageID() StageID { return StageSynthesis }
func (o SynthesisReport) Empty() bool    { return o.ExecutiveSummary == "" }

// DecodeStageOutput decodes raw JSON into the typed output for a stage.
func DecodeStageOutput(stage StageID, data []byte) (StageOutput, error) {
	var out StageOutput
	switch stage {
	case StageExtraction:
		out = &ProfileExtract{}
	case StageCompetitive:
		out = &CompetitiveLandscape{}
	case StageStakeholders:
		out = &StakeholderMap{}
	case StageMedia:
		out = &MediaCoverage{}
	case StageRegulatory:
		out = &RegulatoryOutlook{}
	case StageTrends:
		out = &TrendReport{}
	case StageSynthesis:
		out = &SynthesisReport{}
	default:
		return nil, eris.Errorf("model: unknown stage %q", stage)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, eris.Wrapf(err, "model: decode %s output", stage)
	}
	return deref(out), nil
}

// deref unwraps the pointer so callers can type-assert on value types, which
// is how results are constructed everywhere else.
func deref(out StageOutput) StageOutput {
	switch v := out.(type) {
	case *ProfileExtract:
		return *v
	case *CompetitiveLandscape:
		return *v
	case *StakeholderMap:
		return *v
	case *MediaCoverage:
		return *v
	case *RegulatoryOutlook:
		return *v
	case *TrendReport:
		return *v
	case *SynthesisReport:
		return *v
	}
	return out
}
