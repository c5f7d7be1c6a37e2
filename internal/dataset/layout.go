// Package dataset prepares the preprocessed dataset from the raw crash-record
// files: it merges the four source families on accident number, cleans and
// filters the merged observations, and splits them deterministically into
// train and test sets.
package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// Layout is the explicit path contract between pipeline stages. It replaces
// the ambient shared path variables of earlier revisions: each stage receives
// a Layout and returns it (or an updated manifest) to the next stage.
type Layout struct {
	RawDir          string `json:"raw_dir"`
	PreprocessedDir string `json:"preprocessed_dir"`
}

// Raw source file paths.

func (l Layout) Characteristics() string { return filepath.Join(l.RawDir, "caracteristiques-2021.csv") }
func (l Layout) Locations() string       { return filepath.Join(l.RawDir, "lieux-2021.csv") }
func (l Layout) Users() string           { return filepath.Join(l.RawDir, "usagers-2021.csv") }
func (l Layout) Vehicles() string        { return filepath.Join(l.RawDir, "vehicules-2021.csv") }

// Preprocessed artifact paths.

func (l Layout) TrainObservations() string { return filepath.Join(l.PreprocessedDir, "obs_train.csv") }
func (l Layout) TestObservations() string  { return filepath.Join(l.PreprocessedDir, "obs_test.csv") }
func (l Layout) XTrain() string            { return filepath.Join(l.PreprocessedDir, "X_train.csv") }
func (l Layout) XTest() string             { return filepath.Join(l.PreprocessedDir, "X_test.csv") }
func (l Layout) YTrain() string            { return filepath.Join(l.PreprocessedDir, "y_train.csv") }
func (l Layout) YTest() string             { return filepath.Join(l.PreprocessedDir, "y_test.csv") }
func (l Layout) ManifestPath() string      { return filepath.Join(l.PreprocessedDir, "dataset.json") }

// Manifest records what the preparation run produced so downstream stages
// consume explicit state instead of guessing at directory contents.
type Manifest struct {
	Layout     Layout    `json:"layout"`
	Seed       int64     `json:"seed"`
	TrainCount int       `json:"train_count"`
	TestCount  int       `json:"test_count"`
	Dropped    int       `json:"dropped"`
	PreparedAt time.Time `json:"prepared_at"`
	// FeatureNames is filled in by the feature-building stage.
	FeatureNames []string `json:"feature_names,omitempty"`
}

// Save writes the manifest into the preprocessed directory.
func (m Manifest) Save() error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return eris.Wrap(err, "dataset: marshal manifest")
	}
	path := m.Layout.ManifestPath()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "dataset: write manifest %s", path)
	}
	return nil
}

// LoadManifest reads the manifest written by a previous preparation run.
func LoadManifest(l Layout) (*Manifest, error) {
	data, err := os.ReadFile(l.ManifestPath())
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read manifest %s (run the dataset stage first)", l.ManifestPath())
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "dataset: unmarshal manifest")
	}
	return &m, nil
}
