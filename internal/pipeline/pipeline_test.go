package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadsafe/crash-cli/internal/config"
	"github.com/roadsafe/crash-cli/internal/model"
	"github.com/roadsafe/crash-cli/internal/store"
)

// syntheticRawFiles builds the four raw source files with n accidents, one
// victim and one vehicle each. Even accidents are severe motorway crashes,
// odd ones are mild urban ones, so a classifier has signal to learn.
func syntheticRawFiles(n int) map[string]string {
	var chars, locs, vehs, users strings.Builder
	chars.WriteString("Num_Acc;jour;mois;an;hrmn;lum;dep;com;agg;int;atm;col;adr;lat;long\n")
	locs.WriteString("Num_Acc;catr;voie;circ;surf;situ;vma\n")
	vehs.WriteString("Num_Acc;id_vehicule;num_veh;catv;obs;obsm;motor\n")
	users.WriteString("Num_Acc;id_usager;id_vehicule;num_veh;place;catu;grav;sexe;an_nais;secu1\n")

	for i := 0; i < n; i++ {
		acc := fmt.Sprintf("2021%08d", i+1)
		grav, vma, lum := 4, 50, 1
		if i%2 == 0 {
			grav, vma, lum = 2, 130, 5
		}
		fmt.Fprintf(&chars, "%s;%d;%d;2021;%02d:30;%d;77;77317;2;1;1;3;;48,60;2,89\n", acc, i%28+1, i%12+1, i%24, lum)
		fmt.Fprintf(&locs, "%s;3;D21;2;1;1;%d\n", acc, vma)
		fmt.Fprintf(&vehs, "%s;V%d;A01;7;0;2;1\n", acc, i)
		fmt.Fprintf(&users, "%s;U%d;V%d;A01;1;1;%d;1;1980;1\n", acc, i, i, grav)
	}

	return map[string]string{
		"caracteristiques-2021.csv": chars.String(),
		"lieux-2021.csv":            locs.String(),
		"usagers-2021.csv":          users.String(),
		"vehicules-2021.csv":        vehs.String(),
	}
}

func newTestPipeline(t *testing.T, baseURL string) (*Pipeline, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.Data.RawDir = filepath.Join(dir, "raw")
	cfg.Data.PreprocessedDir = filepath.Join(dir, "preprocessed")
	cfg.Data.ModelPath = filepath.Join(dir, "models", "trained_model.gob")
	cfg.Data.ArchiveDir = filepath.Join(dir, "models", "archives")
	cfg.Data.ExampleFeatures = filepath.Join(dir, "models", "test_features.json")
	cfg.Ingest.BaseURL = baseURL
	cfg.Ingest.Files = []string{
		"caracteristiques-2021.csv",
		"lieux-2021.csv",
		"usagers-2021.csv",
		"vehicules-2021.csv",
	}
	cfg.Ingest.TimeoutSecs = 10
	cfg.Ingest.MaxRetries = 2
	cfg.Ingest.UserAgent = "crash-cli-test"
	cfg.Training.Trees = 20
	cfg.Training.Seed = 42
	cfg.Training.TestFraction = 0.25

	st, err := store.NewSQLite(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	return New(cfg, st), cfg
}

func TestPipelineEndToEnd(t *testing.T) {
	files := syntheticRawFiles(40)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content, ok := files[filepath.Base(r.URL.Path)]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(content))
	}))
	defer srv.Close()

	p, cfg := newTestPipeline(t, srv.URL)
	ctx := context.Background()

	// Ingest: directory creation goes through the confirm hook.
	confirmed := false
	res, err := p.Ingest(ctx, func(dir string) (bool, error) {
		confirmed = true
		assert.Equal(t, cfg.Data.RawDir, dir)
		return true, nil
	})
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.Len(t, res.Files, 4)
	assert.Positive(t, res.Bytes)

	// Prepare: observations split and matrices built.
	manifest, err := p.Prepare(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, manifest.TrainCount+manifest.TestCount)
	assert.NotEmpty(t, manifest.FeatureNames)
	assert.FileExists(t, cfg.Data.ExampleFeatures)

	// Train: artifact installed and registered.
	assert.False(t, p.HasModel())
	result, err := p.Train(ctx)
	require.NoError(t, err)
	assert.True(t, p.HasModel())
	assert.GreaterOrEqual(t, result.Eval.Accuracy, 0.5)

	models, err := p.Store().ListModels(ctx, 10)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, cfg.Data.ModelPath, models[0].Info.Path)

	// Accuracy: fresh measurement lands in the history.
	eval, err := p.Accuracy(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, result.Eval.Rows, eval.Rows)

	points, err := p.Store().ListAccuracy(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, points, 2)

	// Backup and restore round the archive dir.
	name, err := p.Backup()
	require.NoError(t, err)
	restored, err := p.Restore("")
	require.NoError(t, err)
	assert.Equal(t, name, restored)

	// Every stage left a run record.
	runs, err := p.Store().ListRuns(ctx, model.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 3)
	for _, r := range runs {
		assert.Equal(t, model.RunStatusComplete, r.Status)
	}
}

func TestPipelineIngestFailureRecorded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p, _ := newTestPipeline(t, srv.URL)
	ctx := context.Background()

	_, err := p.Ingest(ctx, nil)
	require.Error(t, err)

	runs, err := p.Store().ListRuns(ctx, model.RunFilter{Kind: model.RunKindIngest})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
}

func TestPipelineIngestDeclined(t *testing.T) {
	p, _ := newTestPipeline(t, "http://127.0.0.1:0")
	_, err := p.Ingest(context.Background(), func(string) (bool, error) { return false, nil })
	require.Error(t, err)
}

func TestPipelinePrepareWithoutRaw(t *testing.T) {
	p, _ := newTestPipeline(t, "http://127.0.0.1:0")
	ctx := context.Background()

	_, err := p.Prepare(ctx)
	require.Error(t, err)

	runs, err := p.Store().ListRuns(ctx, model.RunFilter{Kind: model.RunKindDataset})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
}

func TestPipelineAccuracyWithoutModel(t *testing.T) {
	p, _ := newTestPipeline(t, "http://127.0.0.1:0")
	_, err := p.Accuracy(context.Background(), "")
	require.Error(t, err)
}
