// Package model loads fraud classifiers and serves predictions from them.
// Two backends exist: a logistic-regression artifact exported from the
// training pipeline, and a remote scoring service spoken to over HTTP.
package model

import (
	"context"
	"time"
)

// Prediction is one classifier verdict.
type Prediction struct {
	Fraud       bool
	Probability float64
}

// Info describes the currently loaded classifier.
type Info struct {
	Version      string    `json:"version"`
	Kind         string    `json:"kind"`
	Source       string    `json:"source"`
	FeatureCount int       `json:"feature_count"`
	LoadedAt     time.Time `json:"loaded_at"`
}

// Classifier scores one feature vector. Columns reports the schema the
// vector must follow, in order.
type Classifier interface {
	Predict(ctx context.Context, vector []float64) (Prediction, error)
	Columns() []string
	Info() Info
}
