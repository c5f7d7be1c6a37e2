// Package store persists run history, accuracy measurements, and the model
// registry behind a driver-agnostic interface.
package store

import (
	"context"
	"time"

	"github.com/roadsafe/crash-cli/internal/model"
)

// AccuracyPoint is one recorded test-set accuracy measurement.
type AccuracyPoint struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id,omitempty"`
	Accuracy   float64   `json:"accuracy"`
	MeasuredAt time.Time `json:"measured_at"`
}

// ModelRecord is one registered model artifact.
type ModelRecord struct {
	ID           string          `json:"id"`
	RunID        string          `json:"run_id,omitempty"`
	Info         model.ModelInfo `json:"info"`
	RegisteredAt time.Time       `json:"registered_at"`
}

// Store defines the persistence interface for the pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, kind model.RunKind) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, accuracy *float64) error
	FailRun(ctx context.Context, runID string, cause string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)

	// Stages
	CreateStage(ctx context.Context, runID, name string) (*model.Stage, error)
	FinishStage(ctx context.Context, stageID string, status model.StageStatus, detail string) error
	ListStages(ctx context.Context, runID string) ([]model.Stage, error)

	// Accuracy history
	RecordAccuracy(ctx context.Context, runID string, accuracy float64) error
	LatestAccuracy(ctx context.Context) (*AccuracyPoint, error)
	ListAccuracy(ctx context.Context, limit int) ([]AccuracyPoint, error)

	// Model registry
	RegisterModel(ctx context.Context, runID string, info model.ModelInfo) (*ModelRecord, error)
	ListModels(ctx context.Context, limit int) ([]ModelRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open builds a Store for the configured driver: "sqlite" or "postgres".
func Open(ctx context.Context, driver, databaseURL string) (Store, error) {
	if driver == "postgres" {
		return NewPostgres(ctx, databaseURL, nil)
	}
	return NewSQLite(databaseURL)
}
