package model

import "time"

// RunStatus represents the current state of an intelligence run.
type RunStatus string

const (
	RunStatusPending  RunStatus = "pending"
	RunStatusRunning  RunStatus = "running"
	RunStatusPartial  RunStatus = "partial"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// IntelRun is the audit record for a single pipeline execution. The State
// Bridge owns cross-call stage data; this record exists for local history
// and is immutable once complete or failed.
type IntelRun struct {
	ID              string     `json:"id"`
	OrganizationKey string     `json:"organization_key"`
	RequestID       string     `json:"request_id,omitempty"`
	Mode            string     `json:"mode"`
	Status          RunStatus  `json:"status"`
	Result          *RunResult `json:"result,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// RunResult summarizes a finished run for the audit log.
type RunResult struct {
	Success         bool      `json:"success"`
	PhasesCompleted []StageID `json:"phases_completed"`
	Degraded        []StageID `json:"degraded,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// RunStage is one stage row within a run's audit trail.
type RunStage struct {
	ID        string      `json:"id"`
	RunID     string      `json:"run_id"`
	Stage     StageID     `json:"stage"`
	Status    StageStatus `json:"status"`
	StartedAt time.Time   `json:"started_at"`
}
