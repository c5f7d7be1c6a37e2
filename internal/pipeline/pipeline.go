// Package pipeline wires the configured stages together and records every
// execution in the run store. It is the single entry point the CLI, the HTTP
// API, and the retrain workflow share.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/roadsafe/crash-cli/internal/archive"
	"github.com/roadsafe/crash-cli/internal/config"
	"github.com/roadsafe/crash-cli/internal/dataset"
	"github.com/roadsafe/crash-cli/internal/features"
	"github.com/roadsafe/crash-cli/internal/fetcher"
	"github.com/roadsafe/crash-cli/internal/geo"
	"github.com/roadsafe/crash-cli/internal/ingest"
	"github.com/roadsafe/crash-cli/internal/model"
	"github.com/roadsafe/crash-cli/internal/store"
	"github.com/roadsafe/crash-cli/internal/trainer"
)

// Pipeline binds the configured stages to the run store.
type Pipeline struct {
	cfg *config.Config
	st  store.Store
}

// New creates a Pipeline over the given config and store.
func New(cfg *config.Config, st store.Store) *Pipeline {
	return &Pipeline{cfg: cfg, st: st}
}

// Layout returns the configured path contract between stages.
func (p *Pipeline) Layout() dataset.Layout {
	return dataset.Layout{
		RawDir:          p.cfg.Data.RawDir,
		PreprocessedDir: p.cfg.Data.PreprocessedDir,
	}
}

// ModelPath returns the live artifact path.
func (p *Pipeline) ModelPath() string { return p.cfg.Data.ModelPath }

// ArchiveDir returns the model archive directory.
func (p *Pipeline) ArchiveDir() string { return p.cfg.Data.ArchiveDir }

// Ingest downloads the configured raw source files. confirm is invoked when
// the raw directory has to be created; nil creates it silently.
func (p *Pipeline) Ingest(ctx context.Context, confirm func(string) (bool, error)) (*ingest.Result, error) {
	run, err := p.st.CreateRun(ctx, model.RunKindIngest)
	if err != nil {
		return nil, err
	}

	resolver := fetcher.Resolver{
		HTTP: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:    p.cfg.Ingest.UserAgent,
			Timeout:      time.Duration(p.cfg.Ingest.TimeoutSecs) * time.Second,
			MaxRetries:   p.cfg.Ingest.MaxRetries,
			RateLimiters: fetcher.DefaultRateLimiters(),
		}),
		FTP: fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout: time.Duration(p.cfg.Ingest.TimeoutSecs) * time.Second,
		}),
	}

	result, err := ingest.Run(ctx, resolver, ingest.Options{
		BaseURL:       p.cfg.Ingest.BaseURL,
		Files:         p.cfg.Ingest.Files,
		RawDir:        p.cfg.Data.RawDir,
		ConfirmCreate: confirm,
	})
	if err != nil {
		p.failRun(ctx, run.ID, err)
		return nil, err
	}

	if err := p.st.CompleteRun(ctx, run.ID, nil); err != nil {
		return nil, err
	}
	return result, nil
}

// Prepare merges and splits the raw files, then builds the feature matrices.
func (p *Pipeline) Prepare(ctx context.Context) (*dataset.Manifest, error) {
	run, err := p.st.CreateRun(ctx, model.RunKindDataset)
	if err != nil {
		return nil, err
	}

	manifest, err := p.prepare(ctx)
	if err != nil {
		p.failRun(ctx, run.ID, err)
		return nil, err
	}

	if err := p.st.CompleteRun(ctx, run.ID, nil); err != nil {
		return nil, err
	}
	return manifest, nil
}

func (p *Pipeline) prepare(ctx context.Context) (*dataset.Manifest, error) {
	var zones dataset.ZoneTagger
	if p.cfg.Geo.ZonesShapefile != "" {
		idx, err := geo.LoadIndex(p.cfg.Geo.ZonesShapefile, p.cfg.Geo.ZoneField)
		if err != nil {
			return nil, err
		}
		zones = idx
	}

	manifest, err := dataset.Prepare(ctx, dataset.Options{
		Layout:       p.Layout(),
		Seed:         p.cfg.Training.Seed,
		TestFraction: p.cfg.Training.TestFraction,
		Zones:        zones,
	})
	if err != nil {
		return nil, err
	}

	schema, err := features.LoadSchema(p.cfg.Features.SchemaPath)
	if err != nil {
		return nil, err
	}
	if err := features.Build(schema, manifest, p.cfg.Data.ExampleFeatures); err != nil {
		return nil, err
	}
	return manifest, nil
}

// Train fits a new model on the current matrices, installs the artifact, and
// records the run, the accuracy point, and the registry entry.
func (p *Pipeline) Train(ctx context.Context) (*trainer.Result, error) {
	run, err := p.st.CreateRun(ctx, model.RunKindTrain)
	if err != nil {
		return nil, err
	}

	result, err := p.train(ctx, run.ID)
	if err != nil {
		p.failRun(ctx, run.ID, err)
		return nil, err
	}

	if err := p.st.CompleteRun(ctx, run.ID, &result.Eval.Accuracy); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) train(ctx context.Context, runID string) (*trainer.Result, error) {
	result, err := trainer.Train(p.Layout(), trainer.Options{
		Trees: p.cfg.Training.Trees,
		Seed:  p.cfg.Training.Seed,
	})
	if err != nil {
		return nil, err
	}

	if err := result.Artifact.Save(p.cfg.Data.ModelPath); err != nil {
		return nil, err
	}
	if err := p.st.RecordAccuracy(ctx, runID, result.Eval.Accuracy); err != nil {
		return nil, err
	}
	if _, err := p.st.RegisterModel(ctx, runID, result.Artifact.Info(p.cfg.Data.ModelPath)); err != nil {
		return nil, err
	}
	return result, nil
}

// Accuracy evaluates the live artifact on the current test split and records
// the measurement. runID may be empty for ad hoc evaluations.
func (p *Pipeline) Accuracy(ctx context.Context, runID string) (trainer.Evaluation, error) {
	artifact, err := trainer.LoadArtifact(p.cfg.Data.ModelPath)
	if err != nil {
		return trainer.Evaluation{}, err
	}

	layout := p.Layout()
	x, y, _, err := features.ReadMatrix(layout.XTest(), layout.YTest())
	if err != nil {
		return trainer.Evaluation{}, err
	}

	eval, err := trainer.Evaluate(artifact, x, y)
	if err != nil {
		return trainer.Evaluation{}, err
	}
	if err := p.st.RecordAccuracy(ctx, runID, eval.Accuracy); err != nil {
		return trainer.Evaluation{}, err
	}

	zap.L().Info("pipeline: accuracy measured", zap.Float64("accuracy", eval.Accuracy))
	return eval, nil
}

// HasModel reports whether a live artifact exists and loads cleanly.
func (p *Pipeline) HasModel() bool {
	_, err := trainer.LoadArtifact(p.cfg.Data.ModelPath)
	return err == nil
}

// Backup archives the live artifact.
func (p *Pipeline) Backup() (string, error) {
	return archive.Backup(p.cfg.Data.ModelPath, p.cfg.Data.ArchiveDir)
}

// Restore promotes an archived artifact back to the live path. An empty name
// restores the most recent archive.
func (p *Pipeline) Restore(name string) (string, error) {
	return archive.Restore(p.cfg.Data.ArchiveDir, p.cfg.Data.ModelPath, name)
}

// Store exposes the run store for read-side consumers.
func (p *Pipeline) Store() store.Store { return p.st }

func (p *Pipeline) failRun(ctx context.Context, runID string, cause error) {
	if err := p.st.FailRun(ctx, runID, cause.Error()); err != nil {
		zap.L().Error("pipeline: record run failure", zap.String("run_id", runID), zap.Error(err))
	}
}
