package features

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadsafe/crash-cli/internal/dataset"
	"github.com/roadsafe/crash-cli/internal/model"
)

func testObservation(id string, severity, vma int) model.Observation {
	return model.Observation{
		AccidentID: id,
		Severity:   severity,
		Place:      1,
		Catu:       1,
		Sexe:       2,
		Secu1:      1,
		YearAcc:    2021,
		VictimAge:  34,
		Catv:       7,
		Obsm:       2,
		Motor:      1,
		Catr:       3,
		Circ:       2,
		Surf:       1,
		Situ:       1,
		Vma:        vma,
		Jour:       12,
		Mois:       6,
		Lum:        1,
		Dep:        75,
		Com:        75101,
		Agg:        2,
		Inter:      1,
		Atm:        1,
		Col:        3,
		Lat:        48.85,
		Lon:        2.35,
		Hour:       17,
		NBVictims:  2,
		NBVehicles: 2,
	}
}

func TestBuildWritesMatricesAndManifest(t *testing.T) {
	dir := t.TempDir()
	layout := dataset.Layout{RawDir: dir, PreprocessedDir: dir}

	train := []model.Observation{
		testObservation("202100000001", 1, 50),
		testObservation("202100000002", 0, 80),
		testObservation("202100000003", 0, 30),
	}
	test := []model.Observation{
		testObservation("202100000004", 1, 110),
	}
	require.NoError(t, dataset.WriteObservations(layout.TrainObservations(), train))
	require.NoError(t, dataset.WriteObservations(layout.TestObservations(), test))

	m := &dataset.Manifest{
		Layout:     layout,
		Seed:       42,
		TrainCount: len(train),
		TestCount:  len(test),
		PreparedAt: time.Now(),
	}
	examplePath := filepath.Join(dir, "test_features.json")

	schema := DefaultSchema()
	require.NoError(t, Build(schema, m, examplePath))

	x, y, names, err := ReadMatrix(layout.XTrain(), layout.YTrain())
	require.NoError(t, err)
	assert.Equal(t, schema.Names(), names)
	require.Len(t, x, 3)
	assert.Equal(t, []int{1, 0, 0}, y)

	// vma is column 13 in the default schema.
	assert.Equal(t, 50.0, x[0][13])
	assert.Equal(t, 80.0, x[1][13])

	xTest, yTest, _, err := ReadMatrix(layout.XTest(), layout.YTest())
	require.NoError(t, err)
	require.Len(t, xTest, 1)
	assert.Equal(t, []int{1}, yTest)

	loaded, err := dataset.LoadManifest(layout)
	require.NoError(t, err)
	assert.Equal(t, schema.Names(), loaded.FeatureNames)

	example, err := LoadVector(examplePath)
	require.NoError(t, err)
	assert.Equal(t, 110.0, example["vma"])
	vec, err := schema.Vector(example)
	require.NoError(t, err)
	assert.Len(t, vec, 28)
}

func TestBuildFailsWhenObservationsMissing(t *testing.T) {
	dir := t.TempDir()
	m := &dataset.Manifest{Layout: dataset.Layout{RawDir: dir, PreprocessedDir: dir}}

	err := Build(DefaultSchema(), m, "")
	assert.Error(t, err)
}

func TestReadMatrixRejectsMismatchedRows(t *testing.T) {
	dir := t.TempDir()
	layout := dataset.Layout{RawDir: dir, PreprocessedDir: dir}

	obs := []model.Observation{testObservation("202100000001", 1, 50)}
	require.NoError(t, dataset.WriteObservations(layout.TrainObservations(), obs))
	m := &dataset.Manifest{Layout: layout}
	require.NoError(t, dataset.WriteObservations(layout.TestObservations(), obs))
	require.NoError(t, Build(DefaultSchema(), m, ""))

	_, _, _, err := ReadMatrix(layout.XTrain(), layout.YTest())
	assert.NoError(t, err) // both have one row

	_, _, _, err = ReadMatrix(layout.XTrain(), filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}
