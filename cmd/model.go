package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roadsafe/crash-cli/internal/archive"
	"github.com/roadsafe/crash-cli/internal/trainer"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect, back up, and restore model artifacts",
}

var modelInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the current model artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		artifact, err := trainer.LoadArtifact(cfg.Data.ModelPath)
		if err != nil {
			return err
		}
		info := artifact.Info(cfg.Data.ModelPath)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "path:       %s\n", info.Path)
		fmt.Fprintf(out, "trained at: %s\n", info.TrainedAt.Format(time.RFC3339))
		fmt.Fprintf(out, "accuracy:   %.4f\n", info.Accuracy)
		fmt.Fprintf(out, "trees:      %d\n", info.Trees)
		fmt.Fprintf(out, "features:   %d\n", len(info.Features))
		return nil
	},
}

var modelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived model artifacts, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := archive.List(cfg.Data.ArchiveDir)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no archived models")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tARCHIVED\tSIZE")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%d\n", e.Name, e.ArchivedAt.Format(time.RFC3339), e.Bytes)
		}
		return w.Flush()
	},
}

var modelBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy the current model into the archive directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, closeStore, err := openPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		name, err := pipe.Backup()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "archived as %s\n", name)
		return nil
	},
}

var modelRestoreCmd = &cobra.Command{
	Use:   "restore [name]",
	Short: "Promote an archived model back to the live path (latest when no name is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, closeStore, err := openPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		var name string
		if len(args) == 1 {
			name = args[0]
		}
		restored, err := pipe.Restore(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored %s to %s\n", restored, pipe.ModelPath())
		return nil
	},
}

func init() {
	modelCmd.AddCommand(modelInfoCmd, modelListCmd, modelBackupCmd, modelRestoreCmd)
	rootCmd.AddCommand(modelCmd)
}
