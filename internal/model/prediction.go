package model

import "time"

// Prediction is the outcome of scoring one feature vector against the
// current model artifact.
type Prediction struct {
	// Label is the predicted class name ("severe" or "not_severe").
	Label string `json:"label"`
	// Class is the numeric class the forest voted for.
	Class int `json:"class"`
	// Confidence is the vote share of the winning class, in [0,1].
	Confidence float64 `json:"confidence"`
	// Probabilities maps every class label to its vote share.
	Probabilities map[string]float64 `json:"probabilities"`
}

// ModelInfo describes a serialized model artifact.
type ModelInfo struct {
	Path      string    `json:"path"`
	TrainedAt time.Time `json:"trained_at"`
	Accuracy  float64   `json:"accuracy"`
	Trees     int       `json:"trees"`
	Seed      int64     `json:"seed"`
	Features  []string  `json:"features"`
	Classes   []string  `json:"classes"`
}
