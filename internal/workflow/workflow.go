package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/roadsafe/crash-cli/internal/notify"
)

// Retrain outcomes.
const (
	OutcomeSkipped  = "skipped"
	OutcomeImproved = "improved"
	OutcomeReverted = "reverted"
)

// RetrainInput parameterizes one maintenance run.
type RetrainInput struct {
	// Threshold is the accuracy below which the model is retrained.
	Threshold float64
	// Force retrains regardless of the current accuracy.
	Force bool
}

// RetrainResult reports what the maintenance run decided and measured.
type RetrainResult struct {
	RunID       string
	Outcome     string
	OldAccuracy float64
	NewAccuracy float64
}

// RetrainWorkflow refreshes the data, evaluates the live model on it, and
// retrains when accuracy has fallen below the threshold. A retrained model
// that scores worse than the one it replaced is rolled back.
func RetrainWorkflow(ctx workflow.Context, input RetrainInput) (*RetrainResult, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Minute,
			BackoffCoefficient: 1.0,
			MaximumAttempts:    3,
		},
	})
	logger := workflow.GetLogger(ctx)

	var a *Activities
	var runID string
	if err := workflow.ExecuteActivity(ctx, a.StartRun).Get(ctx, &runID); err != nil {
		return nil, err
	}
	result := &RetrainResult{RunID: runID}

	fail := func(err error) (*RetrainResult, error) {
		_ = workflow.ExecuteActivity(ctx, a.FailRun, FailRunInput{RunID: runID, Cause: err.Error()}).Get(ctx, nil)
		_ = workflow.ExecuteActivity(ctx, a.Notify, notify.Event{
			Type:    notify.EventRetrainFailed,
			RunID:   runID,
			Message: fmt.Sprintf("model maintenance failed: %v", err),
		}).Get(ctx, nil)
		return nil, err
	}

	if err := workflow.ExecuteActivity(ctx, a.Ingest, runID).Get(ctx, nil); err != nil {
		return fail(err)
	}
	if err := workflow.ExecuteActivity(ctx, a.Prepare, runID).Get(ctx, nil); err != nil {
		return fail(err)
	}

	var eval EvaluateOutput
	if err := workflow.ExecuteActivity(ctx, a.Evaluate, runID).Get(ctx, &eval); err != nil {
		return fail(err)
	}
	result.OldAccuracy = eval.Accuracy

	if !input.Force && eval.HasModel && eval.Accuracy >= input.Threshold {
		logger.Info("model accuracy above threshold, skipping retrain",
			"accuracy", eval.Accuracy, "threshold", input.Threshold)

		detail := fmt.Sprintf("accuracy %.4f >= threshold %.4f", eval.Accuracy, input.Threshold)
		if err := workflow.ExecuteActivity(ctx, a.MarkSkipped, SkipInput{RunID: runID, Stage: "train", Detail: detail}).Get(ctx, nil); err != nil {
			return fail(err)
		}
		_ = workflow.ExecuteActivity(ctx, a.Notify, notify.Event{
			Type:    notify.EventRetrainSkipped,
			RunID:   runID,
			Message: detail,
			Details: map[string]any{"accuracy": eval.Accuracy, "threshold": input.Threshold},
		}).Get(ctx, nil)
		if err := workflow.ExecuteActivity(ctx, a.CompleteRun, CompleteRunInput{RunID: runID, Accuracy: &eval.Accuracy}).Get(ctx, nil); err != nil {
			return nil, err
		}
		result.Outcome = OutcomeSkipped
		result.NewAccuracy = eval.Accuracy
		return result, nil
	}

	if eval.HasModel {
		if err := workflow.ExecuteActivity(ctx, a.Backup, runID).Get(ctx, nil); err != nil {
			return fail(err)
		}
	}

	var newAccuracy float64
	if err := workflow.ExecuteActivity(ctx, a.Train, runID).Get(ctx, &newAccuracy); err != nil {
		return fail(err)
	}
	result.NewAccuracy = newAccuracy

	if eval.HasModel && newAccuracy < eval.Accuracy {
		logger.Info("retrained model regressed, rolling back",
			"old", eval.Accuracy, "new", newAccuracy)

		if err := workflow.ExecuteActivity(ctx, a.Restore, RestoreInput{RunID: runID}).Get(ctx, nil); err != nil {
			return fail(err)
		}
		_ = workflow.ExecuteActivity(ctx, a.Notify, notify.Event{
			Type:    notify.EventRetrainReverted,
			RunID:   runID,
			Message: fmt.Sprintf("retrained model scored %.4f below previous %.4f, rolled back", newAccuracy, eval.Accuracy),
			Details: map[string]any{"old_accuracy": eval.Accuracy, "new_accuracy": newAccuracy},
		}).Get(ctx, nil)
		if err := workflow.ExecuteActivity(ctx, a.CompleteRun, CompleteRunInput{RunID: runID, Accuracy: &eval.Accuracy}).Get(ctx, nil); err != nil {
			return nil, err
		}
		result.Outcome = OutcomeReverted
		return result, nil
	}

	_ = workflow.ExecuteActivity(ctx, a.Notify, notify.Event{
		Type:    notify.EventRetrainSucceeded,
		RunID:   runID,
		Message: fmt.Sprintf("model retrained, accuracy %.4f", newAccuracy),
		Details: map[string]any{"old_accuracy": eval.Accuracy, "new_accuracy": newAccuracy},
	}).Get(ctx, nil)
	if err := workflow.ExecuteActivity(ctx, a.CompleteRun, CompleteRunInput{RunID: runID, Accuracy: &newAccuracy}).Get(ctx, nil); err != nil {
		return nil, err
	}
	result.Outcome = OutcomeImproved
	return result, nil
}
