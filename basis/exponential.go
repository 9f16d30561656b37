package basis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Exponential is a filter built from exponential decays,
//
//	f(s) = sum_k Weights[k] * exp(-s / Taus[k]),  s >= 0,
//
// and zero for negative lags.  It can be used both as a stimulus filter and as a
// spike-history filter.
type Exponential struct {
	Taus    []float64
	Weights []float64
}

// NewExponential returns an exponential filter with the given time constants and
// weights.  It panics if the lengths differ or a time constant is not positive.
func NewExponential(taus, weights []float64) *Exponential {

	if len(taus) != len(weights) {
		msg := fmt.Sprintf("basis: %d time constants but %d weights", len(taus), len(weights))
		panic(msg)
	}
	for _, tau := range taus {
		if tau <= 0 {
			panic("basis: time constants must be positive")
		}
	}

	return &Exponential{
		Taus:    cloneFloats(taus),
		Weights: cloneFloats(weights),
	}
}

func (e *Exponential) eval(k int, s float64) float64 {
	if s < 0 {
		return 0
	}
	return math.Exp(-s / e.Taus[k])
}

// NBasis returns the number of exponential components.
func (e *Exponential) NBasis() int {
	return len(e.Taus)
}

// Coefs returns a copy of the component weights.
func (e *Exponential) Coefs() []float64 {
	return cloneFloats(e.Weights)
}

// SetCoefs sets the component weights.
func (e *Exponential) SetCoefs(w []float64) {
	if len(w) != len(e.Taus) {
		panic("basis: wrong number of coefficients")
	}
	copy(e.Weights, w)
}

// Interpolate evaluates the filter at the given lags.
func (e *Exponential) Interpolate(lags []float64) []float64 {
	return interpolate(weighted(e.eval, e.Weights), lags)
}

// ConvolveContinuous convolves the filter with the columns of stim.
func (e *Exponential) ConvolveContinuous(t []float64, stim *mat.Dense) *mat.Dense {
	return convolveContinuous(weighted(e.eval, e.Weights), t, stim)
}

// ConvolveBasisContinuous convolves every exponential component with the columns of stim.
func (e *Exponential) ConvolveBasisContinuous(t []float64, stim *mat.Dense) []*mat.Dense {
	out := make([]*mat.Dense, e.NBasis())
	for k := range out {
		out[k] = convolveContinuous(single(e.eval, k), t, stim)
	}
	return out
}

// ConvolveDiscrete sums the filter responses to the given spikes.
func (e *Exponential) ConvolveDiscrete(t []float64, spikes SpikeTimes, ncells int) *mat.Dense {
	return convolveDiscrete(weighted(e.eval, e.Weights), t, spikes, ncells)
}

// ConvolveBasisDiscrete sums the responses of every component to the given spikes.
func (e *Exponential) ConvolveBasisDiscrete(t []float64, spikes SpikeTimes, ncells int) []*mat.Dense {
	out := make([]*mat.Dense, e.NBasis())
	for k := range out {
		out[k] = convolveDiscrete(single(e.eval, k), t, spikes, ncells)
	}
	return out
}

func (e *Exponential) clone() *Exponential {
	return &Exponential{
		Taus:    cloneFloats(e.Taus),
		Weights: cloneFloats(e.Weights),
	}
}

// CloneStimulus returns a deep copy as a StimulusFilter.
func (e *Exponential) CloneStimulus() StimulusFilter {
	return e.clone()
}

// CloneHistory returns a deep copy as a HistoryFilter.
func (e *Exponential) CloneHistory() HistoryFilter {
	return e.clone()
}
