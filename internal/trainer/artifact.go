package trainer

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	randomforest "github.com/malaschitz/randomForest"
	"github.com/rotisserie/eris"

	"github.com/roadsafe/crash-cli/internal/model"
)

// Artifact is the persisted model: the fitted forest plus the metadata a
// consumer needs to validate input against it.
type Artifact struct {
	FeatureNames []string
	Classes      []string
	Trees        int
	Seed         int64
	TrainedAt    time.Time
	Accuracy     float64
	Forest       randomforest.Forest
}

// Info returns the artifact metadata for display.
func (a *Artifact) Info(path string) model.ModelInfo {
	return model.ModelInfo{
		Path:      path,
		TrainedAt: a.TrainedAt,
		Accuracy:  a.Accuracy,
		Trees:     a.Trees,
		Seed:      a.Seed,
		Features:  a.FeatureNames,
		Classes:   a.Classes,
	}
}

// Classify votes the forest on one schema-ordered vector. It returns the
// winning class index and the per-class probabilities.
func (a *Artifact) Classify(vec []float64) (int, []float64, error) {
	if len(vec) != len(a.FeatureNames) {
		return 0, nil, eris.Errorf("trainer: vector has %d features, model expects %d", len(vec), len(a.FeatureNames))
	}

	probs := a.Forest.Vote(vec)
	if len(probs) == 0 {
		return 0, nil, eris.New("trainer: model has no fitted trees")
	}

	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return best, probs, nil
}

// Save writes the artifact atomically: a rename either installs the whole
// file or leaves the previous model untouched.
func (a *Artifact) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "trainer: create model dir for %s", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*.gob")
	if err != nil {
		return eris.Wrap(err, "trainer: create temp model file")
	}
	tmpName := tmp.Name()

	if err := gob.NewEncoder(tmp).Encode(a); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return eris.Wrap(err, "trainer: encode model")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrap(err, "trainer: close temp model file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "trainer: install model %s", path)
	}
	return nil
}

// LoadArtifact reads a model written by Save.
func LoadArtifact(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "trainer: open model %s (train a model first)", path)
	}
	defer f.Close() //nolint:errcheck

	var a Artifact
	if err := gob.NewDecoder(f).Decode(&a); err != nil {
		return nil, eris.Wrapf(err, "trainer: decode model %s", path)
	}
	if len(a.FeatureNames) == 0 {
		return nil, eris.Errorf("trainer: model %s records no feature names", path)
	}
	return &a, nil
}
