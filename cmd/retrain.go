package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roadsafe/crash-cli/internal/notify"
	"github.com/roadsafe/crash-cli/internal/workflow"
)

var (
	retrainForce     bool
	retrainThreshold float64
)

var retrainCmd = &cobra.Command{
	Use:   "retrain",
	Short: "Run the full retrain cycle in-process",
	Long: `Run the full retrain cycle in-process: ingest, prepare, evaluate the
current model, and train a replacement when the accuracy threshold is not met.
A regressing replacement is rolled back to the archived model.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, closeStore, err := openPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		threshold := retrainThreshold
		if !cmd.Flags().Changed("threshold") {
			threshold = cfg.Training.AccuracyThreshold
		}

		activities := workflow.NewActivities(pipe, notify.New(cfg.Notify.WebhookURL))
		result, err := workflow.RunLocal(cmd.Context(), activities, workflow.RetrainInput{
			Threshold: threshold,
			Force:     retrainForce,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "run %s: %s\n", result.RunID, result.Outcome)
		switch result.Outcome {
		case workflow.OutcomeSkipped:
			fmt.Fprintf(out, "current accuracy %.4f meets threshold %.4f\n", result.OldAccuracy, threshold)
		case workflow.OutcomeReverted:
			fmt.Fprintf(out, "new model %.4f regressed below %.4f, previous model restored\n",
				result.NewAccuracy, result.OldAccuracy)
		default:
			fmt.Fprintf(out, "new model accuracy %.4f\n", result.NewAccuracy)
		}
		return nil
	},
}

func init() {
	retrainCmd.Flags().BoolVar(&retrainForce, "force", false, "retrain even when the current model meets the threshold")
	retrainCmd.Flags().Float64Var(&retrainThreshold, "threshold", 0, "accuracy below which the model is retrained")
	rootCmd.AddCommand(retrainCmd)
}
