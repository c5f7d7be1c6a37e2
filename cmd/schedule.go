package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roadsafe/crash-cli/internal/workflow"
)

var (
	scheduleForce     bool
	scheduleThreshold float64
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage the scheduled retrain workflow",
}

func scheduleInput(cmd *cobra.Command) workflow.RetrainInput {
	threshold := scheduleThreshold
	if !cmd.Flags().Changed("threshold") {
		threshold = cfg.Training.AccuracyThreshold
	}
	return workflow.RetrainInput{Threshold: threshold, Force: scheduleForce}
}

var scheduleCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the cron schedule for the retrain workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := workflow.Dial(cfg.Temporal)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := workflow.CreateSchedule(cmd.Context(), c, cfg.Temporal, scheduleInput(cmd)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schedule %s created (cron %q)\n", cfg.Temporal.ScheduleID, cfg.Temporal.Cron)
		return nil
	},
}

var scheduleDescribeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Show the retrain schedule state",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := workflow.Dial(cfg.Temporal)
		if err != nil {
			return err
		}
		defer c.Close()

		desc, err := workflow.DescribeSchedule(cmd.Context(), c, cfg.Temporal.ScheduleID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "schedule: %s\n", cfg.Temporal.ScheduleID)
		fmt.Fprintf(out, "paused:   %v\n", desc.Schedule.State.Paused)
		for _, action := range desc.Info.RecentActions {
			if action.StartWorkflowResult == nil {
				continue
			}
			fmt.Fprintf(out, "ran %s as %s\n", action.ScheduleTime, action.StartWorkflowResult.WorkflowID)
		}
		return nil
	},
}

var scheduleDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the retrain schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := workflow.Dial(cfg.Temporal)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := workflow.DeleteSchedule(cmd.Context(), c, cfg.Temporal.ScheduleID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schedule %s deleted\n", cfg.Temporal.ScheduleID)
		return nil
	},
}

var scheduleTriggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Start one retrain workflow run immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := workflow.Dial(cfg.Temporal)
		if err != nil {
			return err
		}
		defer c.Close()

		workflowID, err := workflow.Trigger(cmd.Context(), c, cfg.Temporal, scheduleInput(cmd))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "started workflow %s\n", workflowID)
		return nil
	},
}

func init() {
	scheduleCmd.PersistentFlags().BoolVar(&scheduleForce, "force", false, "retrain even when the current model meets the threshold")
	scheduleCmd.PersistentFlags().Float64Var(&scheduleThreshold, "threshold", 0, "accuracy below which the model is retrained")
	scheduleCmd.AddCommand(scheduleCreateCmd, scheduleDescribeCmd, scheduleDeleteCmd, scheduleTriggerCmd)
	rootCmd.AddCommand(scheduleCmd)
}
