package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roadsafe/crash-cli/internal/dataset"
	"github.com/roadsafe/crash-cli/internal/features"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Rebuild the feature matrices from the prepared observations",
	RunE: func(cmd *cobra.Command, args []string) error {
		layout := dataset.Layout{
			RawDir:          cfg.Data.RawDir,
			PreprocessedDir: cfg.Data.PreprocessedDir,
		}
		manifest, err := dataset.LoadManifest(layout)
		if err != nil {
			return err
		}

		schema, err := features.LoadSchema(cfg.Features.SchemaPath)
		if err != nil {
			return err
		}
		if err := features.Build(schema, manifest, cfg.Data.ExampleFeatures); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "built %d-column matrices: %s\n",
			len(schema.Features), strings.Join(schema.Names(), ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(featuresCmd)
}
