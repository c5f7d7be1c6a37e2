package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roadsafe/crash-cli/internal/model"
)

var (
	runsKind   string
	runsStatus string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, closeStore, err := openPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		runs, err := pipe.Store().ListRuns(cmd.Context(), model.RunFilter{
			Kind:   model.RunKind(runsKind),
			Status: model.RunStatus(runsStatus),
			Limit:  runsLimit,
		})
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tSTATUS\tACCURACY\tSTARTED\tERROR")
		for _, r := range runs {
			accuracy := "-"
			if r.Accuracy != nil {
				accuracy = fmt.Sprintf("%.4f", *r.Accuracy)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Kind, r.Status, accuracy, r.StartedAt.Format(time.RFC3339), r.Error)
		}
		return w.Flush()
	},
}

var runsAccuracyCmd = &cobra.Command{
	Use:   "accuracy",
	Short: "Show the recorded accuracy history, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, closeStore, err := openPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		points, err := pipe.Store().ListAccuracy(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		if len(points) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no accuracy measurements recorded")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MEASURED\tACCURACY\tRUN")
		for _, p := range points {
			runID := p.RunID
			if runID == "" {
				runID = "-"
			}
			fmt.Fprintf(w, "%s\t%.4f\t%s\n", p.MeasuredAt.Format(time.RFC3339), p.Accuracy, runID)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.PersistentFlags().IntVar(&runsLimit, "limit", 20, "maximum number of rows")
	runsCmd.Flags().StringVar(&runsKind, "kind", "", "filter by run kind (ingest, dataset, train, retrain)")
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by run status (running, complete, failed)")
	runsCmd.AddCommand(runsAccuracyCmd)
	rootCmd.AddCommand(runsCmd)
}
