package dataset

import (
	"context"
	"os"

	"github.com/rotisserie/eris"

	"github.com/roadsafe/crash-cli/internal/fetcher"
)

// characteristic is the accident-level record from caracteristiques-*.csv.
type characteristic struct {
	Jour, Mois, An  int
	Hour            int
	Lum, Dep, Com   int
	Agg, Inter, Atm int
	Col             int
	Lat, Lon        float64
}

// location is the road-level record from lieux-*.csv.
type location struct {
	Catr, Circ, Surf, Situ, Vma int
}

// vehicle is the vehicle-level record from vehicules-*.csv.
type vehicle struct {
	Catv, Obsm, Motor int
}

// user is the victim-level record from usagers-*.csv. One observation is
// produced per user row.
type user struct {
	AccidentID string
	VehicleID  string
	Place      int
	Catu       int
	Grav       int
	Sexe       int
	AnNais     int
	Secu1      float64
}

// rowReader indexes CSV fields by header name so column order changes in the
// yearly exports do not break parsing.
type rowReader struct {
	idx map[string]int
}

func newRowReader(header []string) rowReader {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[normalizeField(name)] = i
	}
	return rowReader{idx: idx}
}

func (r rowReader) field(row []string, name string) string {
	i, ok := r.idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// forEachRow streams a semicolon-delimited raw file and calls fn per data row.
func forEachRow(ctx context.Context, path string, fn func(r rowReader, row []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "dataset: open %s (run ingest first)", path)
	}
	defer f.Close() //nolint:errcheck

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
		Delimiter: ';',
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var reader rowReader
	haveHeader := false
	for row := range rowCh {
		if !haveHeader {
			reader = newRowReader(<-headerCh)
			haveHeader = true
		}
		if err := fn(reader, row); err != nil {
			return err
		}
	}
	if !haveHeader {
		select {
		case h := <-headerCh:
			reader = newRowReader(h)
		default:
		}
	}

	for err := range errCh {
		if err != nil {
			return eris.Wrapf(err, "dataset: parse %s", path)
		}
	}
	return nil
}

// loadCharacteristics indexes the accident-level file by accident number.
func loadCharacteristics(ctx context.Context, path string) (map[string]characteristic, error) {
	out := make(map[string]characteristic)
	err := forEachRow(ctx, path, func(r rowReader, row []string) error {
		id := r.field(row, "Num_Acc")
		if id == "" {
			return nil
		}
		out[id] = characteristic{
			Jour:  parseInt(r.field(row, "jour"), 0),
			Mois:  parseInt(r.field(row, "mois"), 0),
			An:    parseInt(r.field(row, "an"), 0),
			Hour:  parseHour(r.field(row, "hrmn")),
			Lum:   parseInt(r.field(row, "lum"), 0),
			Dep:   parseDep(r.field(row, "dep")),
			Com:   parseInt(r.field(row, "com"), 0),
			Agg:   parseInt(r.field(row, "agg"), 0),
			Inter: parseInt(r.field(row, "int"), 0),
			Atm:   parseInt(r.field(row, "atm"), 0),
			Col:   parseInt(r.field(row, "col"), 0),
			Lat:   parseFloat(r.field(row, "lat"), 0),
			Lon:   parseFloat(r.field(row, "long"), 0),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, eris.Errorf("dataset: no accident records in %s", path)
	}
	return out, nil
}

// loadLocations indexes the road-level file by accident number.
func loadLocations(ctx context.Context, path string) (map[string]location, error) {
	out := make(map[string]location)
	err := forEachRow(ctx, path, func(r rowReader, row []string) error {
		id := r.field(row, "Num_Acc")
		if id == "" {
			return nil
		}
		out[id] = location{
			Catr: parseInt(r.field(row, "catr"), 0),
			Circ: parseInt(r.field(row, "circ"), 0),
			Surf: parseInt(r.field(row, "surf"), 0),
			Situ: parseInt(r.field(row, "situ"), 0),
			Vma:  parseInt(r.field(row, "vma"), 0),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// loadVehicles indexes the vehicle file by vehicle id and counts vehicles per
// accident.
func loadVehicles(ctx context.Context, path string) (map[string]vehicle, map[string]int, error) {
	byVehicle := make(map[string]vehicle)
	perAccident := make(map[string]int)
	err := forEachRow(ctx, path, func(r rowReader, row []string) error {
		accID := r.field(row, "Num_Acc")
		vehID := r.field(row, "id_vehicule")
		if accID == "" || vehID == "" {
			return nil
		}
		byVehicle[vehID] = vehicle{
			Catv:  parseInt(r.field(row, "catv"), 0),
			Obsm:  parseInt(r.field(row, "obsm"), 0),
			Motor: parseInt(r.field(row, "motor"), 0),
		}
		perAccident[accID]++
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return byVehicle, perAccident, nil
}

// loadUsers returns one victim record per row, in file order.
func loadUsers(ctx context.Context, path string) ([]user, error) {
	var out []user
	err := forEachRow(ctx, path, func(r rowReader, row []string) error {
		accID := r.field(row, "Num_Acc")
		if accID == "" {
			return nil
		}
		out = append(out, user{
			AccidentID: accID,
			VehicleID:  r.field(row, "id_vehicule"),
			Place:      parseInt(r.field(row, "place"), 0),
			Catu:       parseInt(r.field(row, "catu"), 0),
			Grav:       parseInt(r.field(row, "grav"), 1),
			Sexe:       parseInt(r.field(row, "sexe"), 0),
			AnNais:     parseInt(r.field(row, "an_nais"), 0),
			Secu1:      parseFloat(r.field(row, "secu1"), -1),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, eris.Errorf("dataset: no victim records in %s", path)
	}
	return out, nil
}
