package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// StageID names one unit of work in the intelligence pipeline. Each stage is
// backed by one external analysis endpoint of the same name.
type StageID string

const (
	StageExtraction   StageID = "extraction"
	StageCompetitive  StageID = "competitive"
	StageStakeholders StageID = "stakeholders"
	StageMedia        StageID = "media"
	StageRegulatory   StageID = "regulatory"
	StageTrends       StageID = "trends"
	StageSynthesis    StageID = "synthesis"
)

// AllStages returns the full dependency order: extraction first, the four
// independent domain stages, then synthesis.
func AllStages() []StageID {
	return []StageID{
		StageExtraction,
		StageCompetitive,
		StageStakeholders,
		StageMedia,
		StageRegulatory,
		StageTrends,
		StageSynthesis,
	}
}

// MiddleStages returns the four mutually independent domain stages. None of
// them reads another's output, so they may execute concurrently.
func MiddleStages() []StageID {
	return []StageID{StageCompetitive, StageStakeholders, StageMedia, StageRegulatory, StageTrends}
}

// Valid reports whether id names a known stage.
func (s StageID) Valid() bool {
	switch s {
	case StageExtraction, StageCompetitive, StageStakeholders, StageMedia,
		StageRegulatory, StageTrends, StageSynthesis:
		return true
	}
	return false
}

// Dependencies returns the upstream stages whose outputs this stage consumes.
func (s StageID) Dependencies() []StageID {
	switch s {
	case StageExtraction:
		return nil
	case StageSynthesis:
		return []StageID{
			StageExtraction, StageCompetitive, StageStakeholders,
			StageMedia, StageRegulatory, StageTrends,
		}
	default:
		return []StageID{StageExtraction}
	}
}

// StageStatus records how a stage settled.
type StageStatus string

const (
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageFallback  StageStatus = "fallback"
)

// StageResult is the settled outcome of one stage within one pipeline run.
type StageResult struct {
	Stage     StageID     `json:"stage"`
	Status    StageStatus `json:"status"`
	Output    StageOutput `json:"output,omitempty"`
	Analysis  string      `json:"analysis,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Completed reports whether the stage produced usable output (a fallback
// still counts; only a hard failure does not).
func (r StageResult) Completed() bool {
	return r.Status == StageSucceeded || r.Status == StageFallback
}

// stageResultWire is the envelope used to round-trip typed outputs through
// JSON (the State Bridge and the local store both persist this form).
type stageResultWire struct {
	Stage     StageID         `json:"stage"`
	Status    StageStatus     `json:"status"`
	Output    json.RawMessage `json:"output,omitempty"`
	Analysis  string          `json:"analysis,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func (r StageResult) MarshalJSON() ([]byte, error) {
	w := stageResultWire{
		Stage:     r.Stage,
		Status:    r.Status,
		Analysis:  r.Analysis,
		RequestID: r.RequestID,
		Timestamp: r.Timestamp,
	}
	if r.Output != nil {
		raw, err := json.Marshal(r.Output)
		if err != nil {
			return nil, eris.Wrapf(err, "model: marshal %s output", r.Stage)
		}
		w.Output = raw
	}
	return json.Marshal(w)
}

func (r *StageResult) UnmarshalJSON(data []byte) error {
	var w stageResultWire
	if err := json.Unmarshal(data, &w); err != nil {
		return eris.Wrap(err, "model: unmarshal stage result")
	}
	r.Stage = w.Stage
	r.Status = w.Status
	r.Analysis = w.Analysis
	r.RequestID = w.RequestID
	r.Timestamp = w.Timestamp
	r.Output = nil
	if len(w.Output) > 0 {
		out, err := DecodeStageOutput(w.Stage, w.Output)
		if err != nil {
			return err
		}
		r.Output = out
	}
	return nil
}
