package workflow

import (
	"context"

	"github.com/rotisserie/eris"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	"github.com/roadsafe/crash-cli/internal/config"
)

// CreateSchedule registers the cron schedule that triggers the retrain
// workflow on the configured task queue.
func CreateSchedule(ctx context.Context, c client.Client, cfg config.TemporalConfig, input RetrainInput) error {
	_, err := c.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: cfg.ScheduleID,
		Spec: client.ScheduleSpec{
			CronExpressions: []string{cfg.Cron},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        cfg.ScheduleID + "-run",
			Workflow:  RetrainWorkflow,
			Args:      []any{input},
			TaskQueue: cfg.TaskQueue,
		},
		Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
	})
	if err != nil {
		return eris.Wrapf(err, "workflow: create schedule %s", cfg.ScheduleID)
	}
	return nil
}

// DescribeSchedule returns the schedule's current description.
func DescribeSchedule(ctx context.Context, c client.Client, scheduleID string) (*client.ScheduleDescription, error) {
	desc, err := c.ScheduleClient().GetHandle(ctx, scheduleID).Describe(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "workflow: describe schedule %s", scheduleID)
	}
	return desc, nil
}

// DeleteSchedule removes the schedule.
func DeleteSchedule(ctx context.Context, c client.Client, scheduleID string) error {
	if err := c.ScheduleClient().GetHandle(ctx, scheduleID).Delete(ctx); err != nil {
		return eris.Wrapf(err, "workflow: delete schedule %s", scheduleID)
	}
	return nil
}

// Trigger starts one retrain workflow immediately.
func Trigger(ctx context.Context, c client.Client, cfg config.TemporalConfig, input RetrainInput) (string, error) {
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		TaskQueue: cfg.TaskQueue,
	}, RetrainWorkflow, input)
	if err != nil {
		return "", eris.Wrap(err, "workflow: start retrain")
	}
	return run.GetID(), nil
}
