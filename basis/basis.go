// Package basis provides the filter functions used to build the linear predictor of a
// point-process GLM.  A stimulus filter is convolved with a continuous stimulus, and a
// history filter is convolved with the spike train of each cell.  Both are linear
// combinations of a fixed set of basis functions, so the convolution of every basis
// function is available as well as the convolution of the weighted sum.
package basis

import (
	"encoding/gob"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// SpikeTimes lists spikes as parallel slices of times and cell indices.
type SpikeTimes struct {
	Times []float64
	Cells []int
}

// Len returns the number of spikes.
func (st SpikeTimes) Len() int {
	return len(st.Times)
}

// StimulusFilter is a filter that is convolved with a continuous stimulus.
type StimulusFilter interface {

	// NBasis is the number of basis functions.
	NBasis() int

	// Coefs returns a copy of the basis coefficients.
	Coefs() []float64

	// SetCoefs copies the given coefficients into the filter.
	SetCoefs([]float64)

	// ConvolveContinuous returns the convolution of the filter with each column of
	// stim, evaluated on the time grid t.  The result has the same shape as stim.
	ConvolveContinuous(t []float64, stim *mat.Dense) *mat.Dense

	// ConvolveBasisContinuous returns one convolution per basis function.
	ConvolveBasisContinuous(t []float64, stim *mat.Dense) []*mat.Dense

	// CloneStimulus returns a deep copy.
	CloneStimulus() StimulusFilter
}

// HistoryFilter is a filter that is triggered by spikes.
type HistoryFilter interface {

	// NBasis is the number of basis functions.
	NBasis() int

	// Coefs returns a copy of the basis coefficients.
	Coefs() []float64

	// SetCoefs copies the given coefficients into the filter.
	SetCoefs([]float64)

	// ConvolveDiscrete returns the sum of the filter responses to the spikes,
	// as a len(t) x ncells matrix.
	ConvolveDiscrete(t []float64, spikes SpikeTimes, ncells int) *mat.Dense

	// ConvolveBasisDiscrete returns one discrete convolution per basis function.
	ConvolveBasisDiscrete(t []float64, spikes SpikeTimes, ncells int) []*mat.Dense

	// Interpolate evaluates the filter at the given lags.  Negative lags give zero.
	Interpolate(lags []float64) []float64

	// CloneHistory returns a deep copy.
	CloneHistory() HistoryFilter
}

func init() {
	gob.Register(&Exponential{})
	gob.Register(&Rect{})
}

// basisFunc evaluates basis function k at lag s.
type basisFunc func(k int, s float64) float64

// convolveContinuous computes sum_{i<=j} f_k(t_j - t_i) stim_i dt for one basis function.
func convolveContinuous(fk func(float64) float64, t []float64, stim *mat.Dense) *mat.Dense {

	nt, ns := stim.Dims()
	if nt != len(t) {
		panic("basis: stimulus rows do not match the time grid")
	}
	dt := t[1] - t[0]

	// The filter only depends on the lag, which is a multiple of dt on a uniform grid.
	h := make([]float64, nt)
	for i := range h {
		h[i] = fk(t[i]-t[0]) * dt
	}

	out := mat.NewDense(nt, ns, nil)
	for c := 0; c < ns; c++ {
		for j := 0; j < nt; j++ {
			var v float64
			for i := 0; i <= j; i++ {
				v += h[j-i] * stim.At(i, c)
			}
			out.Set(j, c, v)
		}
	}

	return out
}

// convolveDiscrete adds f(t_j - t_s) for every spike s and every t_j >= t_s.
func convolveDiscrete(f func(float64) float64, t []float64, spikes SpikeTimes, ncells int) *mat.Dense {

	out := mat.NewDense(len(t), ncells, nil)
	for k, ts := range spikes.Times {
		c := spikes.Cells[k]
		for j := sort.SearchFloat64s(t, ts); j < len(t); j++ {
			out.Set(j, c, out.At(j, c)+f(t[j]-ts))
		}
	}

	return out
}

func weighted(bf basisFunc, w []float64) func(float64) float64 {
	return func(s float64) float64 {
		var v float64
		for k, wk := range w {
			v += wk * bf(k, s)
		}
		return v
	}
}

func single(bf basisFunc, k int) func(float64) float64 {
	return func(s float64) float64 {
		return bf(k, s)
	}
}

func interpolate(f func(float64) float64, lags []float64) []float64 {
	v := make([]float64, len(lags))
	for i, s := range lags {
		v[i] = f(s)
	}
	return v
}

func cloneFloats(x []float64) []float64 {
	if x == nil {
		return nil
	}
	y := make([]float64, len(x))
	copy(y, x)
	return y
}
