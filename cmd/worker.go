package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roadsafe/crash-cli/internal/notify"
	"github.com/roadsafe/crash-cli/internal/workflow"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the retrain workflow worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, closeStore, err := openPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		c, err := workflow.Dial(cfg.Temporal)
		if err != nil {
			return err
		}
		defer c.Close()

		zap.L().Info("worker starting",
			zap.String("host_port", cfg.Temporal.HostPort),
			zap.String("task_queue", cfg.Temporal.TaskQueue),
		)
		activities := workflow.NewActivities(pipe, notify.New(cfg.Notify.WebhookURL))
		return workflow.RunWorker(c, cfg.Temporal.TaskQueue, activities)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
