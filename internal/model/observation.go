// Package model defines the domain types shared across the pipeline stages.
package model

// Observation is one cleaned crash record: the merge of the characteristics,
// location, user, and vehicle source files for a single victim, keyed by the
// national accident number.
type Observation struct {
	AccidentID string `json:"accident_id"`

	// Target: 1 = severe (hospitalized or killed), 0 = not severe.
	Severity int `json:"severity"`

	// Victim and vehicle attributes.
	Place     int     `json:"place"`
	Catu      int     `json:"catu"`
	Sexe      int     `json:"sexe"`
	Secu1     float64 `json:"secu1"`
	YearAcc   int     `json:"year_acc"`
	VictimAge int     `json:"victim_age"`
	Catv      int     `json:"catv"`
	Obsm      int     `json:"obsm"`
	Motor     int     `json:"motor"`

	// Road attributes.
	Catr int `json:"catr"`
	Circ int `json:"circ"`
	Surf int `json:"surf"`
	Situ int `json:"situ"`
	Vma  int `json:"vma"`

	// Accident context.
	Jour  int     `json:"jour"`
	Mois  int     `json:"mois"`
	Lum   int     `json:"lum"`
	Dep   int     `json:"dep"`
	Com   int     `json:"com"`
	Agg   int     `json:"agg_"`
	Inter int     `json:"int"`
	Atm   int     `json:"atm"`
	Col   int     `json:"col"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"long"`
	Hour  int     `json:"hour"`

	// Per-accident aggregates.
	NBVictims  int `json:"nb_victim"`
	NBVehicles int `json:"nb_vehicules"`

	// Zone is the optional admin-zone code from shapefile enrichment.
	Zone string `json:"zone,omitempty"`
}

// FeatureMap returns the observation as a named feature value map, the form
// consumed by the feature schema. Keys match the feature schema names.
func (o Observation) FeatureMap() map[string]float64 {
	return map[string]float64{
		"place":        float64(o.Place),
		"catu":         float64(o.Catu),
		"sexe":         float64(o.Sexe),
		"secu1":        o.Secu1,
		"year_acc":     float64(o.YearAcc),
		"victim_age":   float64(o.VictimAge),
		"catv":         float64(o.Catv),
		"obsm":         float64(o.Obsm),
		"motor":        float64(o.Motor),
		"catr":         float64(o.Catr),
		"circ":         float64(o.Circ),
		"surf":         float64(o.Surf),
		"situ":         float64(o.Situ),
		"vma":          float64(o.Vma),
		"jour":         float64(o.Jour),
		"mois":         float64(o.Mois),
		"lum":          float64(o.Lum),
		"dep":          float64(o.Dep),
		"com":          float64(o.Com),
		"agg_":         float64(o.Agg),
		"int":          float64(o.Inter),
		"atm":          float64(o.Atm),
		"col":          float64(o.Col),
		"lat":          o.Lat,
		"long":         o.Lon,
		"hour":         float64(o.Hour),
		"nb_victim":    float64(o.NBVictims),
		"nb_vehicules": float64(o.NBVehicles),
	}
}
