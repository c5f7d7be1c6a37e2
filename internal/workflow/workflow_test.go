package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/roadsafe/crash-cli/internal/notify"
)

func newTestEnv(t *testing.T) (*testsuite.TestWorkflowEnvironment, *Activities) {
	t.Helper()
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()

	a := &Activities{}
	env.RegisterActivity(a)
	return env, a
}

func TestRetrainWorkflowSkipsHealthyModel(t *testing.T) {
	env, a := newTestEnv(t)

	env.OnActivity(a.StartRun, mock.Anything).Return("run-1", nil)
	env.OnActivity(a.Ingest, mock.Anything, "run-1").Return(IngestOutput{Files: 4}, nil)
	env.OnActivity(a.Prepare, mock.Anything, "run-1").Return(PrepareOutput{TrainCount: 100, TestCount: 30}, nil)
	env.OnActivity(a.Evaluate, mock.Anything, "run-1").Return(EvaluateOutput{HasModel: true, Accuracy: 0.91}, nil)
	env.OnActivity(a.MarkSkipped, mock.Anything, mock.MatchedBy(func(in SkipInput) bool {
		return in.Stage == "train"
	})).Return(nil)
	env.OnActivity(a.Notify, mock.Anything, mock.MatchedBy(func(e notify.Event) bool {
		return e.Type == notify.EventRetrainSkipped
	})).Return(nil)
	env.OnActivity(a.CompleteRun, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(RetrainWorkflow, RetrainInput{Threshold: 0.85})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result RetrainResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, OutcomeSkipped, result.Outcome)
	assert.Equal(t, 0.91, result.OldAccuracy)
	env.AssertExpectations(t)
}

func TestRetrainWorkflowTrainsWhenDegraded(t *testing.T) {
	env, a := newTestEnv(t)

	env.OnActivity(a.StartRun, mock.Anything).Return("run-2", nil)
	env.OnActivity(a.Ingest, mock.Anything, "run-2").Return(IngestOutput{}, nil)
	env.OnActivity(a.Prepare, mock.Anything, "run-2").Return(PrepareOutput{}, nil)
	env.OnActivity(a.Evaluate, mock.Anything, "run-2").Return(EvaluateOutput{HasModel: true, Accuracy: 0.70}, nil)
	env.OnActivity(a.Backup, mock.Anything, "run-2").Return("trained_model_20260830T030000.gob", nil)
	env.OnActivity(a.Train, mock.Anything, "run-2").Return(0.88, nil)
	env.OnActivity(a.Notify, mock.Anything, mock.MatchedBy(func(e notify.Event) bool {
		return e.Type == notify.EventRetrainSucceeded
	})).Return(nil)
	env.OnActivity(a.CompleteRun, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(RetrainWorkflow, RetrainInput{Threshold: 0.85})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result RetrainResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, OutcomeImproved, result.Outcome)
	assert.Equal(t, 0.88, result.NewAccuracy)
	env.AssertExpectations(t)
}

func TestRetrainWorkflowRevertsRegression(t *testing.T) {
	env, a := newTestEnv(t)

	env.OnActivity(a.StartRun, mock.Anything).Return("run-3", nil)
	env.OnActivity(a.Ingest, mock.Anything, "run-3").Return(IngestOutput{}, nil)
	env.OnActivity(a.Prepare, mock.Anything, "run-3").Return(PrepareOutput{}, nil)
	env.OnActivity(a.Evaluate, mock.Anything, "run-3").Return(EvaluateOutput{HasModel: true, Accuracy: 0.80}, nil)
	env.OnActivity(a.Backup, mock.Anything, "run-3").Return("trained_model_20260830T030000.gob", nil)
	env.OnActivity(a.Train, mock.Anything, "run-3").Return(0.75, nil)
	env.OnActivity(a.Restore, mock.Anything, RestoreInput{RunID: "run-3"}).Return(nil)
	env.OnActivity(a.Notify, mock.Anything, mock.MatchedBy(func(e notify.Event) bool {
		return e.Type == notify.EventRetrainReverted
	})).Return(nil)
	env.OnActivity(a.CompleteRun, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(RetrainWorkflow, RetrainInput{Threshold: 0.85})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result RetrainResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, OutcomeReverted, result.Outcome)
	assert.Equal(t, 0.80, result.OldAccuracy)
	assert.Equal(t, 0.75, result.NewAccuracy)
	env.AssertExpectations(t)
}

func TestRetrainWorkflowTrainsWithoutPriorModel(t *testing.T) {
	env, a := newTestEnv(t)

	env.OnActivity(a.StartRun, mock.Anything).Return("run-4", nil)
	env.OnActivity(a.Ingest, mock.Anything, "run-4").Return(IngestOutput{}, nil)
	env.OnActivity(a.Prepare, mock.Anything, "run-4").Return(PrepareOutput{}, nil)
	env.OnActivity(a.Evaluate, mock.Anything, "run-4").Return(EvaluateOutput{HasModel: false}, nil)
	// No backup without a live model to archive.
	env.OnActivity(a.Train, mock.Anything, "run-4").Return(0.86, nil)
	env.OnActivity(a.Notify, mock.Anything, mock.MatchedBy(func(e notify.Event) bool {
		return e.Type == notify.EventRetrainSucceeded
	})).Return(nil)
	env.OnActivity(a.CompleteRun, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(RetrainWorkflow, RetrainInput{Threshold: 0.85})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result RetrainResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, OutcomeImproved, result.Outcome)
	env.AssertExpectations(t)
}

func TestRetrainWorkflowFailureNotifies(t *testing.T) {
	env, a := newTestEnv(t)

	env.OnActivity(a.StartRun, mock.Anything).Return("run-5", nil)
	env.OnActivity(a.Ingest, mock.Anything, "run-5").Return(IngestOutput{}, errors.New("object store unreachable"))
	env.OnActivity(a.FailRun, mock.Anything, mock.MatchedBy(func(in FailRunInput) bool {
		return in.RunID == "run-5"
	})).Return(nil)
	env.OnActivity(a.Notify, mock.Anything, mock.MatchedBy(func(e notify.Event) bool {
		return e.Type == notify.EventRetrainFailed
	})).Return(nil)

	env.ExecuteWorkflow(RetrainWorkflow, RetrainInput{Threshold: 0.85})

	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}
