// Package features turns cleaned observations into the fixed-order numeric
// vectors the classifier consumes. Building is deterministic and stateless:
// the same observation always yields the same vector.
package features

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Feature is one named column of the model input.
type Feature struct {
	Name string `yaml:"name"`
	// Optional features default to Default when absent from the input
	// instead of failing validation.
	Optional bool    `yaml:"optional,omitempty"`
	Default  float64 `yaml:"default,omitempty"`
}

// Schema is the ordered feature list. Order is part of the model contract:
// artifacts record the schema they were trained with.
type Schema struct {
	Features []Feature `yaml:"features"`
}

// DefaultSchema returns the built-in 28-feature schema matching the cleaned
// observation columns.
func DefaultSchema() Schema {
	names := []string{
		"place", "catu", "sexe", "secu1", "year_acc", "victim_age", "catv",
		"obsm", "motor", "catr", "circ", "surf", "situ", "vma", "jour", "mois",
		"lum", "dep", "com", "agg_", "int", "atm", "col", "lat", "long",
		"hour", "nb_victim", "nb_vehicules",
	}
	s := Schema{Features: make([]Feature, len(names))}
	for i, n := range names {
		s.Features[i] = Feature{Name: n}
	}
	return s
}

// LoadSchema reads a schema YAML file, or returns the default schema when
// path is empty.
func LoadSchema(path string) (Schema, error) {
	if path == "" {
		return DefaultSchema(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, eris.Wrapf(err, "features: read schema %s", path)
	}

	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, eris.Wrapf(err, "features: parse schema %s", path)
	}
	if len(s.Features) == 0 {
		return Schema{}, eris.Errorf("features: schema %s defines no features", path)
	}

	seen := make(map[string]bool, len(s.Features))
	for _, f := range s.Features {
		if f.Name == "" {
			return Schema{}, eris.Errorf("features: schema %s has an unnamed feature", path)
		}
		if seen[f.Name] {
			return Schema{}, eris.Errorf("features: schema %s repeats feature %q", path, f.Name)
		}
		seen[f.Name] = true
	}

	return s, nil
}

// Names returns the feature names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Features))
	for i, f := range s.Features {
		names[i] = f.Name
	}
	return names
}

// MissingFieldsError reports which required features a vector lacked.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "features: missing required fields: " + joinNames(e.Fields)
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

// Vector orders a named feature map into schema order. Required features
// that are absent produce a *MissingFieldsError naming every missing field.
func (s Schema) Vector(values map[string]float64) ([]float64, error) {
	vec := make([]float64, len(s.Features))
	var missing []string
	for i, f := range s.Features {
		v, ok := values[f.Name]
		if !ok {
			if f.Optional {
				v = f.Default
			} else {
				missing = append(missing, f.Name)
				continue
			}
		}
		vec[i] = v
	}
	if len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}
	return vec, nil
}
