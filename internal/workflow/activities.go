// Package workflow hosts the scheduled model-maintenance workflow: refresh
// the data, measure the live model against it, and retrain with rollback
// when the model has degraded.
package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roadsafe/crash-cli/internal/model"
	"github.com/roadsafe/crash-cli/internal/notify"
	"github.com/roadsafe/crash-cli/internal/pipeline"
)

// Activities are the side-effecting steps the retrain workflow schedules.
type Activities struct {
	pipe     *pipeline.Pipeline
	notifier *notify.Notifier
}

// NewActivities binds the workflow steps to the pipeline and notifier.
func NewActivities(pipe *pipeline.Pipeline, notifier *notify.Notifier) *Activities {
	return &Activities{pipe: pipe, notifier: notifier}
}

// StartRun opens the retrain run record and returns its ID.
func (a *Activities) StartRun(ctx context.Context) (string, error) {
	run, err := a.pipe.Store().CreateRun(ctx, model.RunKindRetrain)
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// CompleteRunInput closes a run with its final accuracy.
type CompleteRunInput struct {
	RunID    string
	Accuracy *float64
}

// CompleteRun marks the retrain run complete.
func (a *Activities) CompleteRun(ctx context.Context, input CompleteRunInput) error {
	return a.pipe.Store().CompleteRun(ctx, input.RunID, input.Accuracy)
}

// FailRunInput records why a run failed.
type FailRunInput struct {
	RunID string
	Cause string
}

// FailRun marks the retrain run failed.
func (a *Activities) FailRun(ctx context.Context, input FailRunInput) error {
	return a.pipe.Store().FailRun(ctx, input.RunID, input.Cause)
}

// IngestOutput summarizes the data refresh step.
type IngestOutput struct {
	Files int
	Bytes int64
}

// Ingest re-downloads the raw source files.
func (a *Activities) Ingest(ctx context.Context, runID string) (IngestOutput, error) {
	var out IngestOutput
	err := a.withStage(ctx, runID, "ingest", func() (string, error) {
		res, err := a.pipe.Ingest(ctx, nil)
		if err != nil {
			return "", err
		}
		out = IngestOutput{Files: len(res.Files), Bytes: res.Bytes}
		return fmt.Sprintf("%d files, %d bytes", out.Files, out.Bytes), nil
	})
	return out, err
}

// PrepareOutput summarizes the dataset refresh step.
type PrepareOutput struct {
	TrainCount int
	TestCount  int
}

// Prepare rebuilds the observation splits and feature matrices.
func (a *Activities) Prepare(ctx context.Context, runID string) (PrepareOutput, error) {
	var out PrepareOutput
	err := a.withStage(ctx, runID, "prepare", func() (string, error) {
		manifest, err := a.pipe.Prepare(ctx)
		if err != nil {
			return "", err
		}
		out = PrepareOutput{TrainCount: manifest.TrainCount, TestCount: manifest.TestCount}
		return fmt.Sprintf("train=%d test=%d", out.TrainCount, out.TestCount), nil
	})
	return out, err
}

// EvaluateOutput reports the live model's accuracy on the fresh test split.
type EvaluateOutput struct {
	HasModel bool
	Accuracy float64
}

// Evaluate measures the live model. A missing model is not an error: it
// forces the retrain branch.
func (a *Activities) Evaluate(ctx context.Context, runID string) (EvaluateOutput, error) {
	var out EvaluateOutput
	err := a.withStage(ctx, runID, "evaluate", func() (string, error) {
		if !a.pipe.HasModel() {
			return "no live model", nil
		}
		eval, err := a.pipe.Accuracy(ctx, runID)
		if err != nil {
			return "", err
		}
		out = EvaluateOutput{HasModel: true, Accuracy: eval.Accuracy}
		return fmt.Sprintf("accuracy=%.4f", eval.Accuracy), nil
	})
	return out, err
}

// Backup archives the live model before retraining overwrites it.
func (a *Activities) Backup(ctx context.Context, runID string) (string, error) {
	var name string
	err := a.withStage(ctx, runID, "backup", func() (string, error) {
		var err error
		name, err = a.pipe.Backup()
		return name, err
	})
	return name, err
}

// Train fits and installs a new model and returns its test accuracy.
func (a *Activities) Train(ctx context.Context, runID string) (float64, error) {
	var accuracy float64
	err := a.withStage(ctx, runID, "train", func() (string, error) {
		res, err := a.pipe.Train(ctx)
		if err != nil {
			return "", err
		}
		accuracy = res.Eval.Accuracy
		return fmt.Sprintf("accuracy=%.4f", accuracy), nil
	})
	return accuracy, err
}

// RestoreInput names the archive to roll back to. Empty means most recent.
type RestoreInput struct {
	RunID string
	Name  string
}

// Restore rolls the live model back to an archived copy.
func (a *Activities) Restore(ctx context.Context, input RestoreInput) error {
	return a.withStage(ctx, input.RunID, "restore", func() (string, error) {
		return a.pipe.Restore(input.Name)
	})
}

// SkipInput records a stage the retrain decision skipped.
type SkipInput struct {
	RunID  string
	Stage  string
	Detail string
}

// MarkSkipped records a skipped stage so the run history shows the decision.
func (a *Activities) MarkSkipped(ctx context.Context, input SkipInput) error {
	st, err := a.pipe.Store().CreateStage(ctx, input.RunID, input.Stage)
	if err != nil {
		return err
	}
	return a.pipe.Store().FinishStage(ctx, st.ID, model.StageStatusSkipped, input.Detail)
}

// Notify posts the retrain outcome to the configured webhook.
func (a *Activities) Notify(ctx context.Context, event notify.Event) error {
	return a.notifier.Send(ctx, event)
}

// withStage runs fn inside a recorded stage on the run.
func (a *Activities) withStage(ctx context.Context, runID, name string, fn func() (string, error)) error {
	st, err := a.pipe.Store().CreateStage(ctx, runID, name)
	if err != nil {
		return err
	}

	started := time.Now()
	detail, err := fn()
	if err != nil {
		if ferr := a.pipe.Store().FinishStage(ctx, st.ID, model.StageStatusFailed, err.Error()); ferr != nil {
			zap.L().Error("workflow: record stage failure", zap.String("stage", name), zap.Error(ferr))
		}
		return err
	}

	zap.L().Info("workflow: stage complete",
		zap.String("run_id", runID),
		zap.String("stage", name),
		zap.Duration("took", time.Since(started)),
	)
	return a.pipe.Store().FinishStage(ctx, st.ID, model.StageStatusComplete, detail)
}
