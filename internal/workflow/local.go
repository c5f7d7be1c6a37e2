package workflow

import (
	"context"
	"fmt"

	"github.com/roadsafe/crash-cli/internal/notify"
)

// RunLocal executes the retrain decision sequence in process, without a
// Temporal server. It follows the same steps as RetrainWorkflow but without
// durable retries.
func RunLocal(ctx context.Context, a *Activities, input RetrainInput) (*RetrainResult, error) {
	runID, err := a.StartRun(ctx)
	if err != nil {
		return nil, err
	}
	result := &RetrainResult{RunID: runID}

	fail := func(err error) (*RetrainResult, error) {
		_ = a.FailRun(ctx, FailRunInput{RunID: runID, Cause: err.Error()})
		_ = a.Notify(ctx, notify.Event{
			Type:    notify.EventRetrainFailed,
			RunID:   runID,
			Message: fmt.Sprintf("model maintenance failed: %v", err),
		})
		return nil, err
	}

	if _, err := a.Ingest(ctx, runID); err != nil {
		return fail(err)
	}
	if _, err := a.Prepare(ctx, runID); err != nil {
		return fail(err)
	}

	eval, err := a.Evaluate(ctx, runID)
	if err != nil {
		return fail(err)
	}
	result.OldAccuracy = eval.Accuracy

	if !input.Force && eval.HasModel && eval.Accuracy >= input.Threshold {
		detail := fmt.Sprintf("accuracy %.4f >= threshold %.4f", eval.Accuracy, input.Threshold)
		if err := a.MarkSkipped(ctx, SkipInput{RunID: runID, Stage: "train", Detail: detail}); err != nil {
			return fail(err)
		}
		_ = a.Notify(ctx, notify.Event{
			Type:    notify.EventRetrainSkipped,
			RunID:   runID,
			Message: detail,
			Details: map[string]any{"accuracy": eval.Accuracy, "threshold": input.Threshold},
		})
		if err := a.CompleteRun(ctx, CompleteRunInput{RunID: runID, Accuracy: &eval.Accuracy}); err != nil {
			return nil, err
		}
		result.Outcome = OutcomeSkipped
		result.NewAccuracy = eval.Accuracy
		return result, nil
	}

	if eval.HasModel {
		if _, err := a.Backup(ctx, runID); err != nil {
			return fail(err)
		}
	}

	newAccuracy, err := a.Train(ctx, runID)
	if err != nil {
		return fail(err)
	}
	result.NewAccuracy = newAccuracy

	if eval.HasModel && newAccuracy < eval.Accuracy {
		if err := a.Restore(ctx, RestoreInput{RunID: runID}); err != nil {
			return fail(err)
		}
		_ = a.Notify(ctx, notify.Event{
			Type:    notify.EventRetrainReverted,
			RunID:   runID,
			Message: fmt.Sprintf("retrained model scored %.4f below previous %.4f, rolled back", newAccuracy, eval.Accuracy),
			Details: map[string]any{"old_accuracy": eval.Accuracy, "new_accuracy": newAccuracy},
		})
		if err := a.CompleteRun(ctx, CompleteRunInput{RunID: runID, Accuracy: &eval.Accuracy}); err != nil {
			return nil, err
		}
		result.Outcome = OutcomeReverted
		return result, nil
	}

	_ = a.Notify(ctx, notify.Event{
		Type:    notify.EventRetrainSucceeded,
		RunID:   runID,
		Message: fmt.Sprintf("model retrained, accuracy %.4f", newAccuracy),
		Details: map[string]any{"old_accuracy": eval.Accuracy, "new_accuracy": newAccuracy},
	})
	if err := a.CompleteRun(ctx, CompleteRunInput{RunID: runID, Accuracy: &newAccuracy}); err != nil {
		return nil, err
	}
	result.Outcome = OutcomeImproved
	return result, nil
}
