package domain

import "time"

// Stage identifies a step of the pipeline.
type Stage string

const (
	StageIngest     Stage = "ingest"
	StageClean      Stage = "clean"
	StageAggregate  Stage = "aggregate"
	StageRender     Stage = "render"
	StageResolve    Stage = "resolve"
	StageDistribute Stage = "distribute"
	StageDone       Stage = "done"
)

// RunStatus is the terminal status of a run.
type RunStatus string

const (
	RunSucceeded                RunStatus = "succeeded"
	RunFailed                   RunStatus = "failed"
	RunSucceededSkippedDelivery RunStatus = "succeeded-delivery-skipped"
)

// Trigger names what started a run.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// RenderFailure records one render spec that produced no artifact.
type RenderFailure struct {
	Spec  string `json:"spec"`
	Error string `json:"error"`
}

// RunRecord describes one pipeline execution. It is appended to the run log
// once, when the run finishes, and never edited afterwards.
type RunRecord struct {
	ID             string          `json:"id"`
	Trigger        Trigger         `json:"trigger"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
	Stage          Stage           `json:"stage"`
	Status         RunStatus       `json:"status"`
	Error          string          `json:"error,omitempty"`
	Rows           int             `json:"rows"`
	Artifacts      []string        `json:"artifacts,omitempty"`
	RenderFailures []RenderFailure `json:"render_failures,omitempty"`
	Recipients     int             `json:"recipients"`
}

// Duration returns how long the run took.
func (r RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the run ended without failure.
func (r RunRecord) Succeeded() bool {
	return r.Status == RunSucceeded || r.Status == RunSucceededSkippedDelivery
}
