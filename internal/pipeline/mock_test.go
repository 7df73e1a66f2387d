package pipeline

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/intel-cli/internal/model"
	"github.com/sells-group/intel-cli/pkg/insight"
)

// --- Insight Mock ---

type mockInsightClient struct {
	mock.Mock
}

func (m *mockInsightClient) Analyze(ctx context.Context, req insight.AnalyzeRequest) (*insight.AnalyzeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*insight.AnalyzeResponse), args.Error(1)
}

// --- State Bridge Mock ---

type mockBridgeClient struct {
	mock.Mock
}

func (m *mockBridgeClient) SaveStage(ctx context.Context, orgKey, stage string, payload json.RawMessage) error {
	args := m.Called(ctx, orgKey, stage, payload)
	return args.Error(0)
}

func (m *mockBridgeClient) GetStage(ctx context.Context, orgKey, stage string) (json.RawMessage, error) {
	args := m.Called(ctx, orgKey, stage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *mockBridgeClient) GetProfile(ctx context.Context, orgKey string) (json.RawMessage, error) {
	args := m.Called(ctx, orgKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

// --- Archive Mock ---

type mockArchiveClient struct {
	mock.Mock
}

func (m *mockArchiveClient) Store(ctx context.Context, orgKey, requestID, stage, analysis string) error {
	args := m.Called(ctx, orgKey, requestID, stage, analysis)
	return args.Error(0)
}

// --- Helpers ---

func analyzeOK(t interface{ Fatalf(string, ...any) }, data any, analysis string) *insight.AnalyzeResponse {
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &insight.AnalyzeResponse{Success: true, Data: raw, Analysis: analysis}
}

func forStage(stage model.StageID) any {
	return mock.MatchedBy(func(req insight.AnalyzeRequest) bool {
		return req.Stage == string(stage)
	})
}

// minimalPayloads returns one well-formed payload per stage.
func minimalPayloads() map[model.StageID]model.StageOutput {
	return map[model.StageID]model.StageOutput{
		model.StageExtraction: model.ProfileExtract{
			Name:        "Acme Corp",
			Industry:    "technology",
			Competitors: []string{"Globex"},
			Keywords:    []string{"robotics"},
			Summary:     "Acme Corp builds industrial automation.",
		},
		model.StageCompetitive: model.CompetitiveLandscape{
			Competitors:    []model.Competitor{{Name: "Globex", Position: "challenger"}},
			MarketPosition: "leader",
			Summary:        "Acme leads a two-player market.",
		},
		model.StageStakeholders: model.StakeholderMap{
			Groups:  []model.StakeholderGroup{{Category: "investors", Names: []string{"Initech Capital"}}},
			Summary: "Investor base is concentrated.",
		},
		model.StageMedia: model.MediaCoverage{
			Outlets:          []model.OutletCoverage{{Outlet: "TechWire", Sentiment: "positive"}},
			OverallSentiment: "positive",
			Summary:          "Coverage is favorable.",
		},
		model.StageRegulatory: model.RegulatoryOutlook{
			Bodies:    []model.RegulatorWatch{{Name: "FTC", Scrutiny: "low"}},
			RiskLevel: "low",
			Summary:   "No open regulatory issues.",
		},
		model.StageTrends: model.TrendReport{
			Trends:  []model.Trend{{Name: "automation", Direction: "up"}},
			Summary: "Automation demand is growing.",
		},
		model.StageSynthesis: model.SynthesisReport{
			ExecutiveSummary: "Acme Corp is well positioned.",
			KeyFindings:      []string{"Market leadership in automation"},
		},
	}
}

// stubAllStages makes every stage call succeed with its minimal payload.
func stubAllStages(t interface{ Fatalf(string, ...any) }, m *mockInsightClient) {
	for stage, payload := range minimalPayloads() {
		m.On("Analyze", mock.Anything, forStage(stage)).
			Return(analyzeOK(t, payload, string(stage)+" analysis"), nil)
	}
}
