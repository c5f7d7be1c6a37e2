package predictor

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadsafe/crash-cli/internal/dataset"
	"github.com/roadsafe/crash-cli/internal/features"
	"github.com/roadsafe/crash-cli/internal/trainer"
)

// trainTestModel fits a tiny separable model and saves it under dir.
func trainTestModel(t *testing.T, dir string) string {
	t.Helper()
	layout := dataset.Layout{RawDir: dir, PreprocessedDir: dir}

	write := func(xPath, yPath string, rows int) {
		xf, err := os.Create(xPath)
		require.NoError(t, err)
		yf, err := os.Create(yPath)
		require.NoError(t, err)
		xw := csv.NewWriter(xf)
		yw := csv.NewWriter(yf)
		require.NoError(t, xw.Write([]string{"vma", "hour"}))
		require.NoError(t, yw.Write([]string{"grav"}))
		for i := 0; i < rows; i++ {
			cls := i % 2
			v := 10.0 + float64(i)
			if cls == 1 {
				v = 200.0 + float64(i)
			}
			require.NoError(t, xw.Write([]string{
				strconv.FormatFloat(v, 'g', -1, 64),
				strconv.Itoa(i % 24),
			}))
			require.NoError(t, yw.Write([]string{strconv.Itoa(cls)}))
		}
		xw.Flush()
		yw.Flush()
		require.NoError(t, xf.Close())
		require.NoError(t, yf.Close())
	}
	write(layout.XTrain(), layout.YTrain(), 60)
	write(layout.XTest(), layout.YTest(), 10)

	res, err := trainer.Train(layout, trainer.Options{Trees: 20, Seed: 1})
	require.NoError(t, err)

	path := filepath.Join(dir, "trained_model.gob")
	require.NoError(t, res.Artifact.Save(path))
	return path
}

func TestPredictValidatesAndScores(t *testing.T) {
	dir := t.TempDir()
	p, err := Load(trainTestModel(t, dir))
	require.NoError(t, err)

	pred, err := p.Predict(map[string]float64{"vma": 240, "hour": 8})
	require.NoError(t, err)
	assert.Equal(t, 1, pred.Class)
	assert.Equal(t, "severe", pred.Label)
	assert.InDelta(t, 1.0, pred.Probabilities["severe"]+pred.Probabilities["not_severe"], 1e-9)
	assert.Equal(t, pred.Probabilities["severe"], pred.Confidence)

	pred, err = p.Predict(map[string]float64{"vma": 12, "hour": 8})
	require.NoError(t, err)
	assert.Equal(t, "not_severe", pred.Label)
}

func TestPredictRejectsMissingFields(t *testing.T) {
	dir := t.TempDir()
	p, err := Load(trainTestModel(t, dir))
	require.NoError(t, err)

	_, err = p.Predict(map[string]float64{"hour": 8})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vma")
}

func TestPredictFile(t *testing.T) {
	dir := t.TempDir()
	p, err := Load(trainTestModel(t, dir))
	require.NoError(t, err)

	path := filepath.Join(dir, "input.json")
	data, err := json.Marshal(map[string]float64{"vma": 230, "hour": 3})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	pred, err := p.PredictFile(path)
	require.NoError(t, err)
	assert.Equal(t, "severe", pred.Label)

	_, err = p.PredictFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLoadMissingModel(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.gob"))
	assert.Error(t, err)
}

func TestPromptValues(t *testing.T) {
	schema := features.Schema{Features: []features.Feature{
		{Name: "vma"},
		{Name: "atm", Optional: true, Default: 1},
	}}

	t.Run("accepts numbers and defaults", func(t *testing.T) {
		var out bytes.Buffer
		values, err := PromptValues(strings.NewReader("80\n\n"), &out, schema)
		require.NoError(t, err)
		assert.Equal(t, map[string]float64{"vma": 80, "atm": 1}, values)
		assert.Contains(t, out.String(), "vma: ")
	})

	t.Run("repeats on bad input", func(t *testing.T) {
		var out bytes.Buffer
		values, err := PromptValues(strings.NewReader("abc\n\n50\n2\n"), &out, schema)
		require.NoError(t, err)
		assert.Equal(t, 50.0, values["vma"])
		assert.Equal(t, 2.0, values["atm"])
		assert.Contains(t, out.String(), "not a number")
		assert.Contains(t, out.String(), "vma is required")
	})

	t.Run("comma decimals parse", func(t *testing.T) {
		var out bytes.Buffer
		values, err := PromptValues(strings.NewReader("48,85\n1\n"), &out, schema)
		require.NoError(t, err)
		assert.Equal(t, 48.85, values["vma"])
	})

	t.Run("truncated input fails", func(t *testing.T) {
		var out bytes.Buffer
		_, err := PromptValues(strings.NewReader("80\n"), &out, schema)
		assert.Error(t, err)
	})
}
