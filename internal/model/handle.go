package model

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrNotReady is returned while no classifier has been loaded yet.
var ErrNotReady = errors.New("no model loaded")

// Handle is the swappable slot the scoring engine predicts through. Reload
// replaces the classifier and its schema in one atomic step, so in-flight
// predictions never see a vector built against one schema scored by another.
type Handle struct {
	current atomic.Pointer[Classifier]
}

func NewHandle() *Handle {
	return &Handle{}
}

// Swap installs c as the active classifier.
func (h *Handle) Swap(c Classifier) {
	h.current.Store(&c)
}

// Get returns the active classifier, or ErrNotReady before the first Swap.
func (h *Handle) Get() (Classifier, error) {
	p := h.current.Load()
	if p == nil {
		return nil, ErrNotReady
	}
	return *p, nil
}

// Ready reports whether a classifier is loaded.
func (h *Handle) Ready() bool {
	return h.current.Load() != nil
}

// Predict scores vector with the active classifier.
func (h *Handle) Predict(ctx context.Context, vector []float64) (Prediction, error) {
	c, err := h.Get()
	if err != nil {
		return Prediction{}, err
	}
	return c.Predict(ctx, vector)
}

// Info describes the active classifier.
func (h *Handle) Info() (Info, error) {
	c, err := h.Get()
	if err != nil {
		return Info{}, err
	}
	return c.Info(), nil
}
