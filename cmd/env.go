package main

import (
	"context"

	"github.com/roadsafe/crash-cli/internal/pipeline"
	"github.com/roadsafe/crash-cli/internal/store"
)

// openPipeline opens the run store and wires the pipeline over it. The
// returned closer releases the store.
func openPipeline(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return pipeline.New(cfg, st), func() { _ = st.Close() }, nil
}
