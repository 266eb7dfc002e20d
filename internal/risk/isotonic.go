package risk

import (
	"encoding/json"
	"sort"
)

// Isotonic is a fitted, non-parametric monotonic calibrator: a sorted
// breakpoint table mapping raw model outputs to calibrated
// probabilities, interpolated piecewise-linearly between
// breakpoints and clipped at the boundaries. This mirrors
// sklearn.isotonic.IsotonicRegression's prediction behavior without
// requiring the fitting machinery, since the core only ever predicts
// with an already-fitted artifact.
type Isotonic struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// LoadIsotonic decodes a fitted isotonic calibrator from its artifact
// JSON representation.
func LoadIsotonic(data []byte) (*Isotonic, error) {
	var iso Isotonic
	if err := json.Unmarshal(data, &iso); err != nil {
		return nil, err
	}
	sort.Sort(isotonicByX(iso))
	return &iso, nil
}

type isotonicByX Isotonic

func (s isotonicByX) Len() int           { return len(s.X) }
func (s isotonicByX) Less(i, j int) bool { return s.X[i] < s.X[j] }
func (s isotonicByX) Swap(i, j int) {
	s.X[i], s.X[j] = s.X[j], s.X[i]
	s.Y[i], s.Y[j] = s.Y[j], s.Y[i]
}

// Predict maps a raw model score to a calibrated probability via
// piecewise-linear interpolation, clipping to the fitted range's
// endpoints outside [min(X), max(X)].
func (iso *Isotonic) Predict(x float64) float64 {
	n := len(iso.X)
	if n == 0 {
		return x
	}
	if x <= iso.X[0] {
		return iso.Y[0]
	}
	if x >= iso.X[n-1] {
		return iso.Y[n-1]
	}

	i := sort.SearchFloat64s(iso.X, x)
	if i < n && iso.X[i] == x {
		return iso.Y[i]
	}
	lo, hi := i-1, i
	span := iso.X[hi] - iso.X[lo]
	if span == 0 {
		return iso.Y[lo]
	}
	frac := (x - iso.X[lo]) / span
	return iso.Y[lo] + frac*(iso.Y[hi]-iso.Y[lo])
}
