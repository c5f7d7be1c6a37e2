package model

import "time"

// RunKind identifies which pipeline operation a run record covers.
type RunKind string

const (
	RunKindIngest  RunKind = "ingest"
	RunKindDataset RunKind = "dataset"
	RunKindTrain   RunKind = "train"
	RunKindRetrain RunKind = "retrain"
)

// RunStatus tracks run lifecycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded execution of a pipeline operation.
type Run struct {
	ID        string     `json:"id"`
	Kind      RunKind    `json:"kind"`
	Status    RunStatus  `json:"status"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// StageStatus tracks stage lifecycle within a run.
type StageStatus string

const (
	StageStatusRunning  StageStatus = "running"
	StageStatusComplete StageStatus = "complete"
	StageStatusFailed   StageStatus = "failed"
	StageStatusSkipped  StageStatus = "skipped"
)

// Stage is one step inside a run (e.g. the workflow's backup or validate step).
type Stage struct {
	ID         string      `json:"id"`
	RunID      string      `json:"run_id"`
	Name       string      `json:"name"`
	Status     StageStatus `json:"status"`
	Detail     string      `json:"detail,omitempty"`
	DurationMS int64       `json:"duration_ms"`
	StartedAt  time.Time   `json:"started_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind   RunKind   `json:"kind,omitempty"`
	Status RunStatus `json:"status,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}
