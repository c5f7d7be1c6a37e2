package features

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/roadsafe/crash-cli/internal/dataset"
	"github.com/roadsafe/crash-cli/internal/model"
)

// Build derives the model-ready matrices from the prepared observation CSVs:
// X_train/X_test hold schema-ordered feature columns, y_train/y_test the
// binary target. It records the feature order in the manifest and writes an
// example feature JSON next to the model for the predict command.
func Build(schema Schema, m *dataset.Manifest, examplePath string) error {
	trainObs, err := dataset.ReadObservations(m.Layout.TrainObservations())
	if err != nil {
		return err
	}
	testObs, err := dataset.ReadObservations(m.Layout.TestObservations())
	if err != nil {
		return err
	}

	if err := writeMatrix(schema, trainObs, m.Layout.XTrain(), m.Layout.YTrain()); err != nil {
		return err
	}
	if err := writeMatrix(schema, testObs, m.Layout.XTest(), m.Layout.YTest()); err != nil {
		return err
	}

	m.FeatureNames = schema.Names()
	if err := m.Save(); err != nil {
		return err
	}

	if examplePath != "" && len(testObs) > 0 {
		if err := WriteExample(examplePath, schema, testObs[0]); err != nil {
			return err
		}
	}

	zap.L().Info("features: built",
		zap.Int("features", len(schema.Features)),
		zap.Int("train_rows", len(trainObs)),
		zap.Int("test_rows", len(testObs)),
	)
	return nil
}

// writeMatrix writes the feature matrix and target column for one split.
func writeMatrix(schema Schema, observations []model.Observation, xPath, yPath string) error {
	xFile, err := os.Create(xPath)
	if err != nil {
		return eris.Wrapf(err, "features: create %s", xPath)
	}
	xw := csv.NewWriter(xFile)

	yFile, err := os.Create(yPath)
	if err != nil {
		_ = xFile.Close()
		return eris.Wrapf(err, "features: create %s", yPath)
	}
	yw := csv.NewWriter(yFile)

	writeErr := func() error {
		if err := xw.Write(schema.Names()); err != nil {
			return eris.Wrap(err, "features: write X header")
		}
		if err := yw.Write([]string{"grav"}); err != nil {
			return eris.Wrap(err, "features: write y header")
		}

		for _, obs := range observations {
			vec, err := schema.Vector(obs.FeatureMap())
			if err != nil {
				return eris.Wrapf(err, "features: observation %s", obs.AccidentID)
			}
			row := make([]string, len(vec))
			for i, v := range vec {
				row[i] = strconv.FormatFloat(v, 'g', -1, 64)
			}
			if err := xw.Write(row); err != nil {
				return eris.Wrap(err, "features: write X row")
			}
			if err := yw.Write([]string{strconv.Itoa(obs.Severity)}); err != nil {
				return eris.Wrap(err, "features: write y row")
			}
		}

		xw.Flush()
		yw.Flush()
		if err := xw.Error(); err != nil {
			return eris.Wrap(err, "features: flush X")
		}
		return eris.Wrap(yw.Error(), "features: flush y")
	}()

	xCloseErr := xFile.Close()
	yCloseErr := yFile.Close()
	if writeErr != nil {
		return writeErr
	}
	if xCloseErr != nil {
		return eris.Wrapf(xCloseErr, "features: close %s", xPath)
	}
	return eris.Wrapf(yCloseErr, "features: close %s", yPath)
}

// ReadMatrix loads a feature matrix and target column written by Build.
func ReadMatrix(xPath, yPath string) (x [][]float64, y []int, names []string, err error) {
	xRows, err := readCSV(xPath)
	if err != nil {
		return nil, nil, nil, err
	}
	yRows, err := readCSV(yPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(xRows) < 2 || len(yRows) < 2 {
		return nil, nil, nil, eris.Errorf("features: %s or %s has no data rows", xPath, yPath)
	}
	if len(xRows) != len(yRows) {
		return nil, nil, nil, eris.Errorf("features: %s and %s row counts differ", xPath, yPath)
	}

	names = xRows[0]
	for i, row := range xRows[1:] {
		if len(row) != len(names) {
			return nil, nil, nil, eris.Errorf("features: %s row %d has %d columns, want %d", xPath, i+1, len(row), len(names))
		}
		vec := make([]float64, len(row))
		for j, s := range row {
			v, parseErr := strconv.ParseFloat(s, 64)
			if parseErr != nil {
				return nil, nil, nil, eris.Wrapf(parseErr, "features: %s row %d column %s", xPath, i+1, names[j])
			}
			vec[j] = v
		}
		x = append(x, vec)

		cls, parseErr := strconv.Atoi(yRows[i+1][0])
		if parseErr != nil {
			return nil, nil, nil, eris.Wrapf(parseErr, "features: %s row %d", yPath, i+1)
		}
		y = append(y, cls)
	}

	return x, y, names, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "features: open %s (run the features stage first)", path)
	}
	defer f.Close() //nolint:errcheck

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "features: read %s", path)
	}
	return rows, nil
}

// WriteExample writes one observation's feature map as the example JSON the
// predict command documents its input format with.
func WriteExample(path string, schema Schema, obs model.Observation) error {
	values := obs.FeatureMap()
	example := make(map[string]float64, len(schema.Features))
	for _, f := range schema.Features {
		example[f.Name] = values[f.Name]
	}

	data, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return eris.Wrap(err, "features: marshal example")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "features: write example %s", path)
	}
	return nil
}

// LoadVector reads a feature JSON file into a named value map.
func LoadVector(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "features: read feature file %s", path)
	}

	var values map[string]float64
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, eris.Wrapf(err, "features: parse feature file %s", path)
	}
	return values, nil
}
