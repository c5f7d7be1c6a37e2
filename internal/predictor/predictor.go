// Package predictor scores feature vectors against a trained model artifact.
package predictor

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/roadsafe/crash-cli/internal/features"
	"github.com/roadsafe/crash-cli/internal/model"
	"github.com/roadsafe/crash-cli/internal/trainer"
)

// Predictor wraps a loaded artifact with the schema it was trained against.
type Predictor struct {
	artifact *trainer.Artifact
	schema   features.Schema
	path     string
}

// Load reads the model artifact and reconstructs its feature schema from the
// recorded feature names.
func Load(modelPath string) (*Predictor, error) {
	artifact, err := trainer.LoadArtifact(modelPath)
	if err != nil {
		return nil, err
	}

	schema := features.Schema{Features: make([]features.Feature, len(artifact.FeatureNames))}
	for i, name := range artifact.FeatureNames {
		schema.Features[i] = features.Feature{Name: name}
	}

	return &Predictor{artifact: artifact, schema: schema, path: modelPath}, nil
}

// Info returns the loaded model's metadata.
func (p *Predictor) Info() model.ModelInfo {
	return p.artifact.Info(p.path)
}

// Schema returns the feature schema the model was trained with.
func (p *Predictor) Schema() features.Schema {
	return p.schema
}

// Predict validates the named values against the model's schema and votes
// the forest. Missing required fields fail before any scoring happens.
func (p *Predictor) Predict(values map[string]float64) (model.Prediction, error) {
	vec, err := p.schema.Vector(values)
	if err != nil {
		return model.Prediction{}, eris.Wrap(err, "predictor: invalid input")
	}

	class, probs, err := p.artifact.Classify(vec)
	if err != nil {
		return model.Prediction{}, err
	}

	pred := model.Prediction{
		Class:         class,
		Label:         p.label(class),
		Confidence:    probs[class],
		Probabilities: make(map[string]float64, len(probs)),
	}
	for i, prob := range probs {
		pred.Probabilities[p.label(i)] = prob
	}
	return pred, nil
}

// PredictFile scores a feature JSON file.
func (p *Predictor) PredictFile(path string) (model.Prediction, error) {
	values, err := features.LoadVector(path)
	if err != nil {
		return model.Prediction{}, err
	}
	return p.Predict(values)
}

func (p *Predictor) label(class int) string {
	if class >= 0 && class < len(p.artifact.Classes) {
		return p.artifact.Classes[class]
	}
	return strconv.Itoa(class)
}

// PromptValues reads one value per schema feature interactively. An empty
// answer for an optional feature takes its default; for a required feature
// the prompt repeats.
func PromptValues(r io.Reader, w io.Writer, schema features.Schema) (map[string]float64, error) {
	scanner := bufio.NewScanner(r)
	values := make(map[string]float64, len(schema.Features))

	for _, f := range schema.Features {
		for {
			fmt.Fprintf(w, "%s: ", f.Name)
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return nil, eris.Wrap(err, "predictor: read input")
				}
				return nil, eris.Errorf("predictor: input ended before %s", f.Name)
			}

			answer := strings.TrimSpace(scanner.Text())
			if answer == "" {
				if f.Optional {
					values[f.Name] = f.Default
					break
				}
				fmt.Fprintf(w, "%s is required\n", f.Name)
				continue
			}

			v, err := strconv.ParseFloat(strings.ReplaceAll(answer, ",", "."), 64)
			if err != nil {
				fmt.Fprintf(w, "not a number: %s\n", answer)
				continue
			}
			values[f.Name] = v
			break
		}
	}

	return values, nil
}
