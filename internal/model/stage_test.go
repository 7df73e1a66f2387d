package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageID_Dependencies(t *testing.T) {
	assert.Empty(t, StageExtraction.Dependencies())

	for _, mid := range MiddleStages() {
		assert.Equal(t, []StageID{StageExtraction}, mid.Dependencies(), string(mid))
	}

	deps := StageSynthesis.Dependencies()
	assert.Len(t, deps, 6)
	assert.Contains(t, deps, StageExtraction)
	assert.Contains(t, deps, StageTrends)
}

func TestStageID_Valid(t *testing.T) {
	for _, s := range AllStages() {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, StageID("scoring").Valid())
}

func TestStageResult_JSONRoundTrip(t *testing.T) {
	in := StageResult{
		Stage:  StageCompetitive,
		Status: StageSucceeded,
		Output: CompetitiveLandscape{
			Competitors:    []Competitor{{Name: "Globex", Position: "incumbent"}},
			MarketPosition: "challenger",
			Summary:        "two-player market",
		},
		Analysis:  "analysis text",
		RequestID: "req-1",
		Timestamp: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out StageResult
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, in.Stage, out.Stage)
	assert.Equal(t, in.Status, out.Status)
	assert.Equal(t, in.Analysis, out.Analysis)
	assert.Equal(t, in.RequestID, out.RequestID)

	landscape, ok := out.Output.(CompetitiveLandscape)
	require.True(t, ok, "output should decode to its typed shape")
	assert.Equal(t, "challenger", landscape.MarketPosition)
	assert.Equal(t, "Globex", landscape.Competitors[0].Name)
}

func TestStageResult_UnmarshalUnknownStage(t *testing.T) {
	var out StageResult
	err := json.Unmarshal([]byte(`{"stage":"scoring","status":"succeeded","output":{}}`), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")
}

func TestDecodeStageOutput_AllStages(t *testing.T) {
	payloads := map[StageID]string{
		StageExtraction:   `{"name":"Acme Corp"}`,
		StageCompetitive:  `{"competitors":[{"name":"Globex"}]}`,
		StageStakeholders: `{"groups":[{"category":"investors"}]}`,
		StageMedia:        `{"outlets":[{"outlet":"Wire"}]}`,
		StageRegulatory:   `{"bodies":[{"name":"FTC"}]}`,
		StageTrends:       `{"trends":[{"name":"automation"}]}`,
		StageSynthesis:    `{"executive_summary":"ok"}`,
	}

	for stage, payload := range payloads {
		out, err := DecodeStageOutput(stage, []byte(payload))
		require.NoError(t, err, string(stage))
		assert.Equal(t, stage, out.StageID())
		assert.False(t, out.Empty(), string(stage))
	}
}

func TestStageOutput_EmptyDetection(t *testing.T) {
	assert.True(t, ProfileExtract{}.Empty())
	assert.True(t, CompetitiveLandscape{}.Empty())
	assert.True(t, StakeholderMap{}.Empty())
	assert.True(t, MediaCoverage{}.Empty())
	assert.True(t, RegulatoryOutlook{}.Empty())
	assert.True(t, TrendReport{}.Empty())
	assert.True(t, SynthesisReport{}.Empty())

	assert.False(t, ProfileExtract{Name: "Acme"}.Empty())
	assert.False(t, TrendReport{Summary: "trend view"}.Empty())
}
