package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/intel-cli/internal/model"
	"github.com/sells-group/intel-cli/internal/resilience"
	"github.com/sells-group/intel-cli/pkg/insight"
)

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func acmeProfile() model.OrganizationProfile {
	return model.OrganizationProfile{
		Name:         "Acme Corp",
		Industry:     "technology",
		Competitors:  []string{"Globex"},
		Regulators:   []string{"FTC"},
		MediaOutlets: []string{"TechWire"},
		Keywords:     []string{"automation"},
	}
}

func TestExecuteSuccess(t *testing.T) {
	ic := &mockInsightClient{}
	ic.On("Analyze", mock.Anything, forStage(model.StageCompetitive)).
		Return(analyzeOK(t, minimalPayloads()[model.StageCompetitive], "competitive analysis"), nil)

	e := NewExecutor(ic, nil, nil, WithRetry(fastRetry(1)))
	profile := acmeProfile()
	upstream := map[model.StageID]model.StageResult{
		model.StageExtraction: {
			Stage:  model.StageExtraction,
			Status: model.StageSucceeded,
			Output: minimalPayloads()[model.StageExtraction],
		},
	}

	res, err := e.Execute(context.Background(), model.StageCompetitive, &profile, upstream, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.StageSucceeded, res.Status)
	assert.Equal(t, "req-1", res.RequestID)
	assert.Equal(t, "competitive analysis", res.Analysis)

	out, ok := res.Output.(model.CompetitiveLandscape)
	require.True(t, ok)
	assert.Equal(t, "leader", out.MarketPosition)
	ic.AssertExpectations(t)
}

func TestExecuteCarriesUpstreamPayload(t *testing.T) {
	ic := &mockInsightClient{}
	ic.On("Analyze", mock.Anything, mock.MatchedBy(func(req insight.AnalyzeRequest) bool {
		_, ok := req.Upstream["extraction"]
		return req.Stage == "media" && ok
	})).Return(analyzeOK(t, minimalPayloads()[model.StageMedia], ""), nil)

	e := NewExecutor(ic, nil, nil, WithRetry(fastRetry(1)))
	profile := acmeProfile()
	upstream := map[model.StageID]model.StageResult{
		model.StageExtraction: {
			Stage:  model.StageExtraction,
			Status: model.StageSucceeded,
			Output: minimalPayloads()[model.StageExtraction],
		},
	}

	res, err := e.Execute(context.Background(), model.StageMedia, &profile, upstream, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.StageSucceeded, res.Status)
	ic.AssertExpectations(t)
}

func TestExecuteLoadsUpstreamFromBridge(t *testing.T) {
	stored, err := json.Marshal(model.StageResult{
		Stage:     model.StageExtraction,
		Status:    model.StageSucceeded,
		Output:    minimalPayloads()[model.StageExtraction],
		RequestID: "req-bridge",
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)

	bridge := &mockBridgeClient{}
	bridge.On("GetStage", mock.Anything, "acme-corp", "extraction").
		Return(json.RawMessage(stored), nil)

	ic := &mockInsightClient{}
	ic.On("Analyze", mock.Anything, mock.MatchedBy(func(req insight.AnalyzeRequest) bool {
		_, ok := req.Upstream["extraction"]
		return req.Stage == "trends" && ok
	})).Return(analyzeOK(t, minimalPayloads()[model.StageTrends], ""), nil)

	e := NewExecutor(ic, bridge, nil, WithRetry(fastRetry(1)))
	profile := acmeProfile()

	res, err := e.Execute(context.Background(), model.StageTrends, &profile, nil, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.StageSucceeded, res.Status)
	bridge.AssertExpectations(t)
	ic.AssertExpectations(t)
}

func TestExecuteRetriesTransient(t *testing.T) {
	ic := &mockInsightClient{}
	ic.On("Analyze", mock.Anything, forStage(model.StageRegulatory)).
		Return(nil, &insight.StatusError{Code: 503, Body: "unavailable"}).Once()
	ic.On("Analyze", mock.Anything, forStage(model.StageRegulatory)).
		Return(analyzeOK(t, minimalPayloads()[model.StageRegulatory], ""), nil).Once()

	e := NewExecutor(ic, nil, nil, WithRetry(fastRetry(2)))
	profile := acmeProfile()

	res, err := e.Execute(context.Background(), model.StageRegulatory, &profile, nil, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.StageSucceeded, res.Status)
	ic.AssertNumberOfCalls(t, "Analyze", 2)
}

func TestExecuteFallbackOnFailure(t *testing.T) {
	ic := &mockInsightClient{}
	ic.On("Analyze", mock.Anything, mock.Anything).Return(nil, eris.New("boom"))

	e := NewExecutor(ic, nil, nil, WithRetry(fastRetry(1)))
	profile := acmeProfile()

	res, err := e.Execute(context.Background(), model.StageCompetitive, &profile, nil, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.StageFallback, res.Status)

	out, ok := res.Output.(model.CompetitiveLandscape)
	require.True(t, ok)
	assert.False(t, out.Empty())
	assert.Contains(t, out.Summary, "Degraded")
	assert.Equal(t, "Globex", out.Competitors[0].Name)
}

func TestExecuteEmptyPayloadDegrades(t *testing.T) {
	ic := &mockInsightClient{}
	ic.On("Analyze", mock.Anything, mock.Anything).
		Return(analyzeOK(t, model.CompetitiveLandscape{}, ""), nil)

	e := NewExecutor(ic, nil, nil, WithRetry(fastRetry(1)))
	profile := acmeProfile()

	res, err := e.Execute(context.Background(), model.StageCompetitive, &profile, nil, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.StageFallback, res.Status)
}

func TestExecuteUnsuccessfulResponseDegrades(t *testing.T) {
	ic := &mockInsightClient{}
	ic.On("Analyze", mock.Anything, mock.Anything).
		Return(&insight.AnalyzeResponse{Success: false}, nil)

	e := NewExecutor(ic, nil, nil, WithRetry(fastRetry(1)))
	profile := acmeProfile()

	res, err := e.Execute(context.Background(), model.StageMedia, &profile, nil, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.StageFallback, res.Status)
}

func TestExecuteExtractionMergesDiscovered(t *testing.T) {
	ic := &mockInsightClient{}
	ic.On("Analyze", mock.Anything, forStage(model.StageExtraction)).
		Return(analyzeOK(t, model.ProfileExtract{
			Name:        "Acme Corp",
			Website:     "https://acme.example",
			Competitors: []string{"Initech", "Globex"},
		}, ""), nil)

	e := NewExecutor(ic, nil, nil, WithRetry(fastRetry(1)))
	profile := acmeProfile()

	res, err := e.Execute(context.Background(), model.StageExtraction, &profile, nil, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.StageSucceeded, res.Status)
	assert.Equal(t, "https://acme.example", profile.Website)
	assert.ElementsMatch(t, []string{"Globex", "Initech"}, profile.Competitors)
}

func TestExecuteExtractionHardFailure(t *testing.T) {
	ic := &mockInsightClient{}
	ic.On("Analyze", mock.Anything, mock.Anything).Return(nil, eris.New("boom"))

	e := NewExecutor(ic, nil, nil, WithRetry(fastRetry(1)))
	profile := model.OrganizationProfile{}

	res, err := e.Execute(context.Background(), model.StageExtraction, &profile, nil, "req-1")
	require.Error(t, err)
	assert.Equal(t, model.StageFailed, res.Status)
	assert.Contains(t, err.Error(), "no organization identity")
}

func TestExecuteUnknownStage(t *testing.T) {
	e := NewExecutor(&mockInsightClient{}, nil, nil)
	profile := acmeProfile()
	_, err := e.Execute(context.Background(), model.StageID("bogus"), &profile, nil, "req-1")
	require.Error(t, err)
}

func TestExecuteArchivesAnalysis(t *testing.T) {
	archived := make(chan struct{})
	arc := &mockArchiveClient{}
	arc.On("Store", mock.Anything, "acme-corp", "req-1", "trends", "trend analysis").
		Run(func(mock.Arguments) { close(archived) }).
		Return(nil)

	ic := &mockInsightClient{}
	ic.On("Analyze", mock.Anything, mock.Anything).
		Return(analyzeOK(t, minimalPayloads()[model.StageTrends], "trend analysis"), nil)

	e := NewExecutor(ic, nil, arc, WithRetry(fastRetry(1)))
	profile := acmeProfile()

	res, err := e.Execute(context.Background(), model.StageTrends, &profile, nil, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.StageSucceeded, res.Status)

	select {
	case <-archived:
	case <-time.After(2 * time.Second):
		t.Fatal("analysis was never archived")
	}
}

func TestExecuteArchiveFailureDoesNotAffectResult(t *testing.T) {
	archived := make(chan struct{})
	arc := &mockArchiveClient{}
	arc.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(archived) }).
		Return(eris.New("sink down"))

	ic := &mockInsightClient{}
	ic.On("Analyze", mock.Anything, mock.Anything).
		Return(analyzeOK(t, minimalPayloads()[model.StageMedia], "media analysis"), nil)

	e := NewExecutor(ic, nil, arc, WithRetry(fastRetry(1)))
	profile := acmeProfile()

	res, err := e.Execute(context.Background(), model.StageMedia, &profile, nil, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.StageSucceeded, res.Status)

	select {
	case <-archived:
	case <-time.After(2 * time.Second):
		t.Fatal("archive call never happened")
	}
}
