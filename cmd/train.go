package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit a random forest on the prepared matrices and save the artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, closeStore, err := openPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		result, err := pipe.Train(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "trained %d trees, accuracy %.4f on %d test rows\nmodel: %s\n",
			result.Artifact.Trees, result.Eval.Accuracy, result.Eval.Rows, pipe.ModelPath())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)
}
