package dataset

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/roadsafe/crash-cli/internal/model"
)

// observationHeader is the column order of the observation CSVs. The target
// column comes right after the key so the feature stage can skip both.
var observationHeader = []string{
	"accident_id", "grav",
	"place", "catu", "sexe", "secu1", "year_acc", "victim_age", "catv", "obsm",
	"motor", "catr", "circ", "surf", "situ", "vma", "jour", "mois", "lum",
	"dep", "com", "agg_", "int", "atm", "col", "lat", "long", "hour",
	"nb_victim", "nb_vehicules", "zone",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func observationRow(o model.Observation) []string {
	return []string{
		o.AccidentID, strconv.Itoa(o.Severity),
		strconv.Itoa(o.Place), strconv.Itoa(o.Catu), strconv.Itoa(o.Sexe),
		formatFloat(o.Secu1), strconv.Itoa(o.YearAcc), strconv.Itoa(o.VictimAge),
		strconv.Itoa(o.Catv), strconv.Itoa(o.Obsm), strconv.Itoa(o.Motor),
		strconv.Itoa(o.Catr), strconv.Itoa(o.Circ), strconv.Itoa(o.Surf),
		strconv.Itoa(o.Situ), strconv.Itoa(o.Vma), strconv.Itoa(o.Jour),
		strconv.Itoa(o.Mois), strconv.Itoa(o.Lum), strconv.Itoa(o.Dep),
		strconv.Itoa(o.Com), strconv.Itoa(o.Agg), strconv.Itoa(o.Inter),
		strconv.Itoa(o.Atm), strconv.Itoa(o.Col), formatFloat(o.Lat),
		formatFloat(o.Lon), strconv.Itoa(o.Hour), strconv.Itoa(o.NBVictims),
		strconv.Itoa(o.NBVehicles), o.Zone,
	}
}

// WriteObservations writes observations as a comma-delimited CSV with header.
func WriteObservations(path string, observations []model.Observation) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "dataset: create %s", path)
	}

	w := csv.NewWriter(f)
	if err := w.Write(observationHeader); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "dataset: write header")
	}
	for _, o := range observations {
		if err := w.Write(observationRow(o)); err != nil {
			_ = f.Close()
			return eris.Wrap(err, "dataset: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "dataset: flush")
	}
	return eris.Wrapf(f.Close(), "dataset: close %s", path)
}

// ReadObservations reads an observation CSV written by WriteObservations.
func ReadObservations(path string) ([]model.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s (run the dataset stage first)", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("dataset: %s is empty", path)
	}

	idx := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		idx[name] = i
	}
	get := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	observations := make([]model.Observation, 0, len(rows)-1)
	for _, row := range rows[1:] {
		observations = append(observations, model.Observation{
			AccidentID: get(row, "accident_id"),
			Severity:   parseInt(get(row, "grav"), 0),
			Place:      parseInt(get(row, "place"), 0),
			Catu:       parseInt(get(row, "catu"), 0),
			Sexe:       parseInt(get(row, "sexe"), 0),
			Secu1:      parseFloat(get(row, "secu1"), -1),
			YearAcc:    parseInt(get(row, "year_acc"), 0),
			VictimAge:  parseInt(get(row, "victim_age"), 0),
			Catv:       parseInt(get(row, "catv"), 0),
			Obsm:       parseInt(get(row, "obsm"), 0),
			Motor:      parseInt(get(row, "motor"), 0),
			Catr:       parseInt(get(row, "catr"), 0),
			Circ:       parseInt(get(row, "circ"), 0),
			Surf:       parseInt(get(row, "surf"), 0),
			Situ:       parseInt(get(row, "situ"), 0),
			Vma:        parseInt(get(row, "vma"), 0),
			Jour:       parseInt(get(row, "jour"), 0),
			Mois:       parseInt(get(row, "mois"), 0),
			Lum:        parseInt(get(row, "lum"), 0),
			Dep:        parseInt(get(row, "dep"), 0),
			Com:        parseInt(get(row, "com"), 0),
			Agg:        parseInt(get(row, "agg_"), 0),
			Inter:      parseInt(get(row, "int"), 0),
			Atm:        parseInt(get(row, "atm"), 0),
			Col:        parseInt(get(row, "col"), 0),
			Lat:        parseFloat(get(row, "lat"), 0),
			Lon:        parseFloat(get(row, "long"), 0),
			Hour:       parseInt(get(row, "hour"), 0),
			NBVictims:  parseInt(get(row, "nb_victim"), 0),
			NBVehicles: parseInt(get(row, "nb_vehicules"), 0),
			Zone:       get(row, "zone"),
		})
	}
	return observations, nil
}
