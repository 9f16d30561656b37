package glm

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Design holds the canonical arguments of the likelihood: the bin width,
// the design matrix and the spike mask.  Row j*ncells + c of X is the
// covariate vector of cell c in time bin j.  Column 0 is the intercept,
// followed by one column per stimulus basis function and one column per
// history basis function.
type Design struct {
	Dt   float64
	X    *mat.Dense
	Mask *SpikeMask
}

// ObjectiveArgs is the argument set consumed by the training objectives.
type ObjectiveArgs = Design

// NumObs returns the number of (bin, cell) observations.
func (d *Design) NumObs() int {
	r, _ := d.X.Dims()
	return r
}

// stimCols checks the stimulus against the time grid and returns the
// number of stimulus columns, one when there is no stimulus.
func stimCols(t []float64, stim *mat.Dense) (int, error) {

	if stim == nil {
		return 1, nil
	}

	r, c := stim.Dims()
	if r != len(t) {
		return 0, fmt.Errorf("%w: stimulus has %d rows for %d time points", ErrShape, r, len(t))
	}

	return c, nil
}

// checkObserved validates an observed spike mask and returns the number
// of trials per stimulus column.
func checkObserved(t []float64, mask *SpikeMask, stim *mat.Dense) (int, error) {

	if err := checkGrid(t); err != nil {
		return 0, err
	}
	if mask == nil {
		return 0, fmt.Errorf("%w: no spike mask", ErrShape)
	}

	nt, nc := mask.Dims()
	if nt != len(t) {
		return 0, fmt.Errorf("%w: mask has %d bins for %d time points", ErrShape, nt, len(t))
	}

	ns, err := stimCols(t, stim)
	if err != nil {
		return 0, err
	}
	if nc == 0 || nc%ns != 0 {
		return 0, fmt.Errorf("%w: %d cells cannot be split over %d stimulus columns", ErrShape, nc, ns)
	}

	return nc / ns, nil
}

// delayed writes src into dst shifted down by one row, with the first row
// left at zero.  Cell c of dst reads column c/ntrials of src.
func delayed(dst, src *mat.Dense, ntrials int) {
	nt, _ := dst.Dims()
	for j := 1; j < nt; j++ {
		row := dst.RawRowView(j)
		for c := range row {
			row[c] = src.At(j-1, c/ntrials)
		}
	}
}

// kappaDrive returns the causal stimulus drive, broadcast over trials.
func (g *GLM) kappaDrive(t []float64, stim *mat.Dense, ns, ntrials int) *mat.Dense {

	drive := mat.NewDense(len(t), ns*ntrials, nil)
	if g.kappa == nil || stim == nil {
		return drive
	}

	delayed(drive, g.kappa.ConvolveContinuous(t, stim), ntrials)

	return drive
}

// Design builds the design matrix for an observed spike pattern.  The
// stimulus columns are shifted by one bin so the stimulus at bin j only
// affects later bins, and the history columns use the shifted spike times.
func (g *GLM) Design(t []float64, mask *SpikeMask, stim *mat.Dense) (*Design, error) {

	ntrials, err := checkObserved(t, mask, stim)
	if err != nil {
		return nil, err
	}

	nt, nc := mask.Dims()
	nk := g.nkappa()
	p := g.NumParams()

	X := mat.NewDense(nt*nc, p, nil)
	for i := 0; i < nt*nc; i++ {
		X.Set(i, 0, 1)
	}

	if g.kappa != nil && stim != nil {
		col := mat.NewDense(nt, nc, nil)
		for k, b := range g.kappa.ConvolveBasisContinuous(t, stim) {
			delayed(col, b, ntrials)
			for j := 0; j < nt; j++ {
				for c := 0; c < nc; c++ {
					X.Set(j*nc+c, 1+k, col.At(j, c))
				}
			}
		}
	}

	if g.eta != nil {
		st := mask.SpikeTimes(t)
		if st.Len() > 0 {
			for k, b := range g.eta.ConvolveBasisDiscrete(t, st, nc) {
				for j := 0; j < nt; j++ {
					for c := 0; c < nc; c++ {
						X.Set(j*nc+c, 1+nk+k, b.At(j, c))
					}
				}
			}
		}
	}

	return &Design{
		Dt:   Dt(t),
		X:    X,
		Mask: mask,
	}, nil
}
