package model

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"
)

// Artifact is the JSON export of a trained logistic-regression model:
// feature schema, standard-scaler parameters, and the fitted coefficients.
type Artifact struct {
	Version        string    `json:"version"`
	FeatureColumns []string  `json:"feature_columns"`
	ScalerMean     []float64 `json:"scaler_mean"`
	ScalerScale    []float64 `json:"scaler_scale"`
	Weights        []float64 `json:"weights"`
	Intercept      float64   `json:"intercept"`
	Threshold      float64   `json:"threshold"`
}

func (a *Artifact) validate() error {
	n := len(a.FeatureColumns)
	if n == 0 {
		return fmt.Errorf("artifact has no feature columns")
	}
	if len(a.Weights) != n {
		return fmt.Errorf("artifact has %d weights for %d columns", len(a.Weights), n)
	}
	if len(a.ScalerMean) != n || len(a.ScalerScale) != n {
		return fmt.Errorf("artifact scaler length %d/%d does not match %d columns",
			len(a.ScalerMean), len(a.ScalerScale), n)
	}
	return nil
}

// LogisticClassifier scores vectors with a standard-scaled logistic
// regression. It is immutable after construction and safe for concurrent use.
type LogisticClassifier struct {
	artifact Artifact
	source   string
	loadedAt time.Time
}

// NewLogistic builds a classifier from an in-memory artifact.
func NewLogistic(a Artifact, source string) (*LogisticClassifier, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	if a.Threshold <= 0 || a.Threshold >= 1 {
		a.Threshold = 0.5
	}
	return &LogisticClassifier{artifact: a, source: source, loadedAt: time.Now()}, nil
}

// LoadArtifact reads a model artifact from disk.
func LoadArtifact(path string) (*LogisticClassifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse model artifact %s: %w", path, err)
	}
	return NewLogistic(a, path)
}

func (c *LogisticClassifier) Predict(_ context.Context, vector []float64) (Prediction, error) {
	a := &c.artifact
	if len(vector) != len(a.Weights) {
		return Prediction{}, fmt.Errorf("vector length %d, model expects %d", len(vector), len(a.Weights))
	}
	z := a.Intercept
	for i, x := range vector {
		scale := a.ScalerScale[i]
		if scale == 0 {
			scale = 1
		}
		z += a.Weights[i] * (x - a.ScalerMean[i]) / scale
	}
	p := 1 / (1 + math.Exp(-z))
	return Prediction{Fraud: p >= a.Threshold, Probability: p}, nil
}

func (c *LogisticClassifier) Columns() []string {
	return c.artifact.FeatureColumns
}

func (c *LogisticClassifier) Info() Info {
	return Info{
		Version:      c.artifact.Version,
		Kind:         "logistic_artifact",
		Source:       c.source,
		FeatureCount: len(c.artifact.FeatureColumns),
		LoadedAt:     c.loadedAt,
	}
}

var _ Classifier = (*LogisticClassifier)(nil)
