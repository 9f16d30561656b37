package glm

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Sample is a simulated realization of the process.  All matrices have one
// row per time bin and one column per cell.
type Sample struct {

	// The linear predictor
	U *mat.Dense

	// The rate
	R *mat.Dense

	// The emitted spikes
	Spikes *SpikeMask

	// The causal stimulus drive
	KappaConv *mat.Dense

	// The accumulated history drive
	EtaConv *mat.Dense
}

// Conditioned holds the linear predictor and rate that the model assigns to
// an observed spike pattern.
type Conditioned struct {
	U         *mat.Dense
	R         *mat.Dense
	KappaConv *mat.Dense
	EtaConv   *mat.Dense
}

// Sample simulates the process on the time grid t.  Cell c of the result is
// trial c % ntrials driven by stimulus column c / ntrials.  The stimulus may
// be nil.  Bins are simulated in order: a spike in bin j adds the history
// filter to bins j+1 onward before bin j+1 is drawn.  If rng is nil the
// global source of golang.org/x/exp/rand is used.
func (g *GLM) Sample(rng *rand.Rand, t []float64, stim *mat.Dense, ntrials int) (*Sample, error) {

	if err := checkGrid(t); err != nil {
		return nil, err
	}
	if ntrials < 1 {
		return nil, fmt.Errorf("%w: %d trials", ErrShape, ntrials)
	}
	ns, err := stimCols(t, stim)
	if err != nil {
		return nil, err
	}

	uniform := rand.Float64
	if rng != nil {
		uniform = rng.Float64
	}

	dt := Dt(t)
	nt := len(t)
	nc := ns * ntrials

	kconv := g.kappaDrive(t, stim, ns, ntrials)
	econv := mat.NewDense(nt, nc, nil)
	u := mat.NewDense(nt, nc, nil)
	r := mat.NewDense(nt, nc, nil)
	mask := NewSpikeMask(nt, nc)

	lags := make([]float64, nt)
	var spiked []int
	for j := 0; j < nt; j++ {

		urow := u.RawRowView(j)
		krow := kconv.RawRowView(j)
		erow := econv.RawRowView(j)
		for c := range urow {
			urow[c] = g.u0 + krow[c] + erow[c]
		}

		rrow := r.RawRowView(j)
		g.nl.Eval(urow, rrow)

		spiked = spiked[:0]
		for c, rate := range rrow {
			p := 1 - math.Exp(-rate*dt)
			if p > uniform() {
				mask.Set(j, c, true)
				spiked = append(spiked, c)
			}
		}

		if g.eta == nil || len(spiked) == 0 || j == nt-1 {
			continue
		}

		// The history filter starts at the next bin.
		lags = lags[:nt-j-1]
		for k := range lags {
			lags[k] = t[j+1+k] - t[j+1]
		}
		h := g.eta.Interpolate(lags)
		for _, c := range spiked {
			for k, v := range h {
				econv.Set(j+1+k, c, econv.At(j+1+k, c)+v)
			}
		}
	}

	g.logf("Simulated %d spikes in %d bins and %d cells\n", mask.Count(), nt, nc)

	return &Sample{
		U:         u,
		R:         r,
		Spikes:    mask,
		KappaConv: kconv,
		EtaConv:   econv,
	}, nil
}

// SampleConditioned evaluates the linear predictor and rate for an observed
// spike pattern, using the same causal conventions as Sample.  Nothing is
// drawn at random.
func (g *GLM) SampleConditioned(t []float64, mask *SpikeMask, stim *mat.Dense) (*Conditioned, error) {

	ntrials, err := checkObserved(t, mask, stim)
	if err != nil {
		return nil, err
	}

	nt, nc := mask.Dims()
	ns := nc / ntrials

	kconv := g.kappaDrive(t, stim, ns, ntrials)

	var econv *mat.Dense
	st := mask.SpikeTimes(t)
	if g.eta != nil && st.Len() > 0 {
		econv = g.eta.ConvolveDiscrete(t, st, nc)
	} else {
		econv = mat.NewDense(nt, nc, nil)
	}

	u := mat.NewDense(nt, nc, nil)
	u.Add(kconv, econv)
	u.Apply(func(_, _ int, v float64) float64 { return v + g.u0 }, u)

	r := mat.NewDense(nt, nc, nil)
	g.nl.Eval(u.RawMatrix().Data, r.RawMatrix().Data)

	return &Conditioned{
		U:         u,
		R:         r,
		KappaConv: kconv,
		EtaConv:   econv,
	}, nil
}
