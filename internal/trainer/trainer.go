// Package trainer fits the severity classifier on the built feature matrices
// and evaluates it on the held-out test split.
package trainer

import (
	"math/rand"
	"time"

	randomforest "github.com/malaschitz/randomForest"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/roadsafe/crash-cli/internal/dataset"
	"github.com/roadsafe/crash-cli/internal/features"
)

// Options control a training run.
type Options struct {
	// Trees is the forest size. Zero means 100.
	Trees int
	// Seed fixes the bootstrap and feature sampling so repeated trainings on
	// the same matrices produce identical forests.
	Seed int64
}

// Result is a finished training run: the artifact plus its test evaluation.
type Result struct {
	Artifact *Artifact
	Eval     Evaluation
}

// Train fits a random forest on the layout's train matrices and evaluates it
// on the test matrices. The two X files must share a feature order.
func Train(layout dataset.Layout, opts Options) (*Result, error) {
	if opts.Trees <= 0 {
		opts.Trees = 100
	}

	xTrain, yTrain, names, err := features.ReadMatrix(layout.XTrain(), layout.YTrain())
	if err != nil {
		return nil, err
	}
	xTest, yTest, testNames, err := features.ReadMatrix(layout.XTest(), layout.YTest())
	if err != nil {
		return nil, err
	}
	if err := sameOrder(names, testNames); err != nil {
		return nil, err
	}

	zap.L().Info("trainer: fitting",
		zap.Int("trees", opts.Trees),
		zap.Int("train_rows", len(xTrain)),
		zap.Int("features", len(names)),
	)
	started := time.Now()

	forest := fitForest(xTrain, yTrain, opts.Trees, opts.Seed)
	// The fitted trees are all inference needs. Dropping the training matrix
	// keeps the artifact small.
	forest.Data = randomforest.ForestData{}

	artifact := &Artifact{
		FeatureNames: names,
		Classes:      []string{"not_severe", "severe"},
		Trees:        opts.Trees,
		Seed:         opts.Seed,
		TrainedAt:    time.Now().UTC(),
		Forest:       forest,
	}

	eval, err := Evaluate(artifact, xTest, yTest)
	if err != nil {
		return nil, err
	}
	artifact.Accuracy = eval.Accuracy

	zap.L().Info("trainer: fitted",
		zap.Float64("accuracy", eval.Accuracy),
		zap.Duration("took", time.Since(started)),
	)
	return &Result{Artifact: artifact, Eval: eval}, nil
}

// fitForest grows the forest one tree at a time with the global source
// seeded first. The forest library samples bootstraps and candidate features
// from math/rand's global source and grows a whole forest's trees in
// parallel, so a single seeded Train call would still depend on goroutine
// interleaving. Sequential single-tree fits keep the draw order fixed.
func fitForest(x [][]float64, y []int, trees int, seed int64) randomforest.Forest {
	rand.Seed(seed) //nolint:staticcheck // the library reads the global source

	forest := randomforest.Forest{
		Data: randomforest.ForestData{X: x, Class: y},
	}
	forest.Train(1)
	for i := 1; i < trees; i++ {
		next := randomforest.Forest{
			Data: randomforest.ForestData{X: x, Class: y},
		}
		next.Train(1)
		forest.Trees = append(forest.Trees, next.Trees...)
	}
	forest.NTrees = len(forest.Trees)
	return forest
}

func sameOrder(train, test []string) error {
	if len(train) != len(test) {
		return eris.Errorf("trainer: train has %d features, test has %d", len(train), len(test))
	}
	for i := range train {
		if train[i] != test[i] {
			return eris.Errorf("trainer: feature order differs at column %d: %s vs %s", i, train[i], test[i])
		}
	}
	return nil
}

// Evaluation summarizes classifier performance on a labeled matrix.
type Evaluation struct {
	Accuracy float64 `json:"accuracy"`
	Rows     int     `json:"rows"`
	// Confusion is indexed [actual][predicted].
	Confusion [2][2]int `json:"confusion"`
}

// Evaluate scores the artifact against a labeled matrix.
func Evaluate(a *Artifact, x [][]float64, y []int) (Evaluation, error) {
	if len(x) == 0 {
		return Evaluation{}, eris.New("trainer: evaluation set is empty")
	}
	if len(x) != len(y) {
		return Evaluation{}, eris.Errorf("trainer: %d rows but %d labels", len(x), len(y))
	}

	eval := Evaluation{Rows: len(x)}
	correct := 0
	for i, vec := range x {
		pred, _, err := a.Classify(vec)
		if err != nil {
			return Evaluation{}, err
		}
		actual := y[i]
		if actual < 0 || actual > 1 {
			return Evaluation{}, eris.Errorf("trainer: label %d at row %d is not binary", actual, i)
		}
		eval.Confusion[actual][pred]++
		if pred == actual {
			correct++
		}
	}
	eval.Accuracy = float64(correct) / float64(len(x))
	return eval, nil
}
