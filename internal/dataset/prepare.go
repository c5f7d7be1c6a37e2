package dataset

import (
	"context"
	"math/rand/v2"
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/roadsafe/crash-cli/internal/model"
)

// ZoneTagger resolves a coordinate to an admin-zone code. Nil disables
// enrichment.
type ZoneTagger interface {
	Zone(lon, lat float64) string
}

// Options configures one preparation run.
type Options struct {
	Layout       Layout
	Seed         int64
	TestFraction float64
	Zones        ZoneTagger
}

// Prepare merges the four raw files into observations, cleans and filters
// them, splits train/test deterministically, writes the observation CSVs and
// the manifest, and returns the manifest for the next stage.
func Prepare(ctx context.Context, opts Options) (*Manifest, error) {
	if opts.TestFraction <= 0 || opts.TestFraction >= 1 {
		return nil, eris.Errorf("dataset: test fraction %v out of range (0,1)", opts.TestFraction)
	}

	log := zap.L().With(zap.String("raw_dir", opts.Layout.RawDir))
	log.Info("dataset: loading raw files")

	chars, err := loadCharacteristics(ctx, opts.Layout.Characteristics())
	if err != nil {
		return nil, err
	}
	locs, err := loadLocations(ctx, opts.Layout.Locations())
	if err != nil {
		return nil, err
	}
	vehicles, vehiclesPerAccident, err := loadVehicles(ctx, opts.Layout.Vehicles())
	if err != nil {
		return nil, err
	}
	users, err := loadUsers(ctx, opts.Layout.Users())
	if err != nil {
		return nil, err
	}

	// Victims per accident, for the nb_victim aggregate.
	victimsPerAccident := make(map[string]int, len(chars))
	for _, u := range users {
		victimsPerAccident[u.AccidentID]++
	}

	observations, dropped := merge(users, chars, locs, vehicles, vehiclesPerAccident, victimsPerAccident, opts.Zones)
	if len(observations) == 0 {
		return nil, eris.New("dataset: all records dropped during cleaning")
	}

	train, test := split(observations, opts.Seed, opts.TestFraction)

	if err := os.MkdirAll(opts.Layout.PreprocessedDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "dataset: create %s", opts.Layout.PreprocessedDir)
	}
	if err := WriteObservations(opts.Layout.TrainObservations(), train); err != nil {
		return nil, err
	}
	if err := WriteObservations(opts.Layout.TestObservations(), test); err != nil {
		return nil, err
	}

	m := &Manifest{
		Layout:     opts.Layout,
		Seed:       opts.Seed,
		TrainCount: len(train),
		TestCount:  len(test),
		Dropped:    dropped,
		PreparedAt: time.Now().UTC(),
	}
	if err := m.Save(); err != nil {
		return nil, err
	}

	log.Info("dataset: prepared",
		zap.Int("train", len(train)),
		zap.Int("test", len(test)),
		zap.Int("dropped", dropped),
	)
	return m, nil
}

// merge joins each victim row to its accident, road, and vehicle records.
// Victims whose accident record is missing or whose coordinate is out of
// bounds are dropped.
func merge(
	users []user,
	chars map[string]characteristic,
	locs map[string]location,
	vehicles map[string]vehicle,
	vehiclesPerAccident map[string]int,
	victimsPerAccident map[string]int,
	zones ZoneTagger,
) ([]model.Observation, int) {
	observations := make([]model.Observation, 0, len(users))
	dropped := 0

	for _, u := range users {
		ch, ok := chars[u.AccidentID]
		if !ok {
			dropped++
			continue
		}
		if !inMetropole(ch.Lon, ch.Lat) {
			dropped++
			continue
		}

		// Road and vehicle records may legitimately be missing; their zero
		// values mean "unknown" in the source coding.
		loc := locs[u.AccidentID]
		veh := vehicles[u.VehicleID]

		year := ch.An
		age := 0
		if u.AnNais > 0 && year >= u.AnNais {
			age = year - u.AnNais
		}

		obs := model.Observation{
			AccidentID: u.AccidentID,
			Severity:   binarizeSeverity(u.Grav),
			Place:      u.Place,
			Catu:       u.Catu,
			Sexe:       u.Sexe,
			Secu1:      u.Secu1,
			YearAcc:    year,
			VictimAge:  age,
			Catv:       veh.Catv,
			Obsm:       veh.Obsm,
			Motor:      veh.Motor,
			Catr:       loc.Catr,
			Circ:       loc.Circ,
			Surf:       loc.Surf,
			Situ:       loc.Situ,
			Vma:        loc.Vma,
			Jour:       ch.Jour,
			Mois:       ch.Mois,
			Lum:        ch.Lum,
			Dep:        ch.Dep,
			Com:        ch.Com,
			Agg:        ch.Agg,
			Inter:      ch.Inter,
			Atm:        ch.Atm,
			Col:        ch.Col,
			Lat:        ch.Lat,
			Lon:        ch.Lon,
			Hour:       ch.Hour,
			NBVictims:  victimsPerAccident[u.AccidentID],
			NBVehicles: vehiclesPerAccident[u.AccidentID],
		}
		if zones != nil {
			obs.Zone = zones.Zone(ch.Lon, ch.Lat)
		}
		observations = append(observations, obs)
	}

	return observations, dropped
}

// split shuffles observations with a seeded generator and cuts off the test
// fraction. The same seed over the same input yields the same split.
func split(observations []model.Observation, seed int64, testFraction float64) (train, test []model.Observation) {
	shuffled := make([]model.Observation, len(observations))
	copy(shuffled, observations)

	// Stable order before shuffling so the split does not depend on map
	// iteration upstream.
	sort.SliceStable(shuffled, func(i, j int) bool {
		if shuffled[i].AccidentID != shuffled[j].AccidentID {
			return shuffled[i].AccidentID < shuffled[j].AccidentID
		}
		return shuffled[i].Place < shuffled[j].Place
	})

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	testCount := int(float64(len(shuffled)) * testFraction)
	if testCount == 0 && len(shuffled) > 1 {
		testCount = 1
	}
	return shuffled[testCount:], shuffled[:testCount]
}
