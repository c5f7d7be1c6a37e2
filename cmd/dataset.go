package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Merge, clean, and split the raw files into train/test sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, closeStore, err := openPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		manifest, err := pipe.Prepare(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "train: %d observations\ntest:  %d observations\ndropped: %d\nmanifest: %s\n",
			manifest.TrainCount, manifest.TestCount, manifest.Dropped, manifest.Layout.ManifestPath())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(datasetCmd)
}
