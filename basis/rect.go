package basis

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Rect is a piecewise-constant filter.  Basis function k is one on the half-open
// interval [Edges[k], Edges[k+1]) and zero elsewhere, so the filter value on that
// interval is Weights[k].
type Rect struct {
	Edges   []float64
	Weights []float64
}

// NewRect returns a piecewise-constant filter.  The edges must be strictly increasing
// and there must be exactly one weight per interval.
func NewRect(edges, weights []float64) *Rect {

	if len(edges) != len(weights)+1 {
		msg := fmt.Sprintf("basis: %d edges cannot hold %d weights", len(edges), len(weights))
		panic(msg)
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			panic("basis: edges must be strictly increasing")
		}
	}

	return &Rect{
		Edges:   cloneFloats(edges),
		Weights: cloneFloats(weights),
	}
}

func (r *Rect) eval(k int, s float64) float64 {
	if s >= r.Edges[k] && s < r.Edges[k+1] {
		return 1
	}
	return 0
}

// value avoids looping over every bin when evaluating the weighted filter.
func (r *Rect) value(s float64) float64 {
	k := sort.SearchFloat64s(r.Edges, s)
	if k < len(r.Edges) && r.Edges[k] == s {
		k++
	}
	k--
	if k < 0 || k >= len(r.Weights) {
		return 0
	}
	return r.Weights[k]
}

// NBasis returns the number of intervals.
func (r *Rect) NBasis() int {
	return len(r.Weights)
}

// Coefs returns a copy of the interval values.
func (r *Rect) Coefs() []float64 {
	return cloneFloats(r.Weights)
}

// SetCoefs sets the interval values.
func (r *Rect) SetCoefs(w []float64) {
	if len(w) != len(r.Weights) {
		panic("basis: wrong number of coefficients")
	}
	copy(r.Weights, w)
}

// Interpolate evaluates the filter at the given lags.
func (r *Rect) Interpolate(lags []float64) []float64 {
	return interpolate(r.value, lags)
}

// ConvolveContinuous convolves the filter with the columns of stim.
func (r *Rect) ConvolveContinuous(t []float64, stim *mat.Dense) *mat.Dense {
	return convolveContinuous(r.value, t, stim)
}

// ConvolveBasisContinuous convolves the indicator of every interval with the columns of stim.
func (r *Rect) ConvolveBasisContinuous(t []float64, stim *mat.Dense) []*mat.Dense {
	out := make([]*mat.Dense, r.NBasis())
	for k := range out {
		out[k] = convolveContinuous(single(r.eval, k), t, stim)
	}
	return out
}

// ConvolveDiscrete sums the filter responses to the given spikes.
func (r *Rect) ConvolveDiscrete(t []float64, spikes SpikeTimes, ncells int) *mat.Dense {
	return convolveDiscrete(r.value, t, spikes, ncells)
}

// ConvolveBasisDiscrete sums the interval indicators triggered by the given spikes.
func (r *Rect) ConvolveBasisDiscrete(t []float64, spikes SpikeTimes, ncells int) []*mat.Dense {
	out := make([]*mat.Dense, r.NBasis())
	for k := range out {
		out[k] = convolveDiscrete(single(r.eval, k), t, spikes, ncells)
	}
	return out
}

func (r *Rect) clone() *Rect {
	return &Rect{
		Edges:   cloneFloats(r.Edges),
		Weights: cloneFloats(r.Weights),
	}
}

// CloneStimulus returns a deep copy as a StimulusFilter.
func (r *Rect) CloneStimulus() StimulusFilter {
	return r.clone()
}

// CloneHistory returns a deep copy as a HistoryFilter.
func (r *Rect) CloneHistory() HistoryFilter {
	return r.clone()
}
