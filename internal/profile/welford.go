package profile

// welford is an online mean/variance estimator (Welford's algorithm).
// Updates are O(1) and never recompute from stored history.
type welford struct {
	n    int64
	mean float64
	m2   float64
}

func (w *welford) observe(x float64) {
	w.n++
	delta := x - w.mean
	w.mean += delta / float64(w.n)
	w.m2 += delta * (x - w.mean)
}

// variance returns the population variance, clamped at zero so
// floating-point drift can never produce a negative value.
func (w *welford) variance() float64 {
	if w.n == 0 {
		return 0
	}
	v := w.m2 / float64(w.n)
	if v < 0 {
		return 0
	}
	return v
}
