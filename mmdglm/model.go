package mmdglm

import (
	"fmt"
	"math"

	"github.com/kshedden/pointglm/glm"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Params is the trainable view of the model parameters.
type Params struct {

	// The intercept u0
	B float64

	// Stimulus filter coefficients, nil without a stimulus filter
	KappaCoefs []float64

	// History filter coefficients, nil without a history filter
	EtaCoefs []float64
}

// Model is a point-process GLM whose parameters are trained by gradient
// descent.  The rate on a fixed design is r = f(X theta), so gradients with
// respect to the rate are carried back to theta by the chain rule.
type Model struct {
	glm  *glm.GLM
	view Params
}

// NewModel returns a trainable model backed by g.  The model updates the
// parameters of g whenever Apply is called.
func NewModel(g *glm.GLM) *Model {
	m := &Model{glm: g}
	m.view = split(g, g.Params())
	return m
}

func split(g *glm.GLM, theta []float64) Params {

	var p Params
	p.B = theta[0]

	nk := 0
	if g.Kappa() != nil {
		nk = g.Kappa().NBasis()
		p.KappaCoefs = append([]float64(nil), theta[1:1+nk]...)
	}
	if g.Eta() != nil {
		p.EtaCoefs = append([]float64(nil), theta[1+nk:]...)
	}

	return p
}

// GLM returns the underlying model.
func (m *Model) GLM() *glm.GLM {
	return m.glm
}

// View returns a copy of the trainable parameters.
func (m *Model) View() Params {
	return Params{
		B:          m.view.B,
		KappaCoefs: append([]float64(nil), m.view.KappaCoefs...),
		EtaCoefs:   append([]float64(nil), m.view.EtaCoefs...),
	}
}

// Params assembles the flat parameter vector [B, KappaCoefs, EtaCoefs].
func (m *Model) Params() []float64 {
	theta := make([]float64, 0, m.glm.NumParams())
	theta = append(theta, m.view.B)
	theta = append(theta, m.view.KappaCoefs...)
	theta = append(theta, m.view.EtaCoefs...)
	return theta
}

// Apply writes a flat parameter vector into the trainable view and the GLM.
func (m *Model) Apply(theta []float64) error {
	if err := m.glm.SetParams(theta); err != nil {
		return err
	}
	m.view = split(m.glm, theta)
	return nil
}

// Pass is the result of evaluating the rate on a fixed design.  R has one
// row per time bin and one column per cell.
type Pass struct {
	U *mat.Dense
	R *mat.Dense

	design *glm.Design
	deriv  []float64
}

// Forward computes u = X theta and r = f(u) at the current parameters.
func (m *Model) Forward(d *glm.Design) *Pass {

	nt, nc := d.Mask.Dims()
	theta := m.Params()

	u := mat.NewDense(nt, nc, nil)
	uv := mat.NewVecDense(nt*nc, u.RawMatrix().Data)
	uv.MulVec(d.X, mat.NewVecDense(len(theta), theta))

	r := mat.NewDense(nt, nc, nil)
	nl := m.glm.Nonlinearity()
	nl.Eval(u.RawMatrix().Data, r.RawMatrix().Data)

	deriv := make([]float64, nt*nc)
	nl.Deriv(u.RawMatrix().Data, deriv)

	return &Pass{
		U:      u,
		R:      r,
		design: d,
		deriv:  deriv,
	}
}

// Backward returns the gradient with respect to theta of a loss whose
// gradient with respect to the rate R is dr.
func (p *Pass) Backward(dr *mat.Dense) []float64 {

	nt, nc := p.R.Dims()
	if r, c := dr.Dims(); r != nt || c != nc {
		msg := fmt.Sprintf("mmdglm: rate gradient is %d x %d, rate is %d x %d", r, c, nt, nc)
		panic(msg)
	}

	du := make([]float64, nt*nc)
	for j := 0; j < nt; j++ {
		row := dr.RawRowView(j)
		for c, v := range row {
			du[j*nc+c] = v * p.deriv[j*nc+c]
		}
	}

	_, np := p.design.X.Dims()
	grad := make([]float64, np)
	gv := mat.NewVecDense(np, grad)
	gv.MulVec(p.design.X.T(), mat.NewVecDense(len(du), du))

	return grad
}

// nllEps keeps the logarithm finite in spiking bins with vanishing rate.
const nllEps = 1e-24

// negLogLike returns the discretized negative log-likelihood
//
//	-(sum over spikes of log(1 - exp(-dt r) + eps) - dt * sum over silent bins of r)
//
// and its gradient with respect to the rate.
func negLogLike(p *Pass) (float64, *mat.Dense) {

	d := p.design
	nt, nc := p.R.Dims()
	dr := mat.NewDense(nt, nc, nil)

	var nll float64
	for j := 0; j < nt; j++ {
		for c := 0; c < nc; c++ {
			r := p.R.At(j, c)
			if d.Mask.At(j, c) {
				e := math.Exp(-d.Dt * r)
				q := 1 - e + nllEps
				nll -= math.Log(q)
				dr.Set(j, c, -d.Dt*e/q)
			} else {
				nll += d.Dt * r
				dr.Set(j, c, d.Dt)
			}
		}
	}

	return nll, dr
}

// NegLogLike returns the negative log-likelihood of the observations in d and
// its gradient with respect to the parameters.
func (m *Model) NegLogLike(d *glm.Design) (float64, []float64) {
	p := m.Forward(d)
	nll, dr := negLogLike(p)
	return nll, p.Backward(dr)
}

// Batch is a set of realizations simulated from the current parameters,
// together with their design and rate.
type Batch struct {
	Sample *glm.Sample
	Design *glm.Design
	Pass   *Pass
}

// SampleBatch simulates n trials per stimulus column with the current
// parameters and evaluates the rate on the simulated spikes.  The spikes are
// fixed, so the rate is differentiable in the parameters through Pass.
func (m *Model) SampleBatch(rng *rand.Rand, t []float64, stim *mat.Dense, n int) (*Batch, error) {

	s, err := m.glm.Sample(rng, t, stim, n)
	if err != nil {
		return nil, err
	}

	d, err := m.glm.Design(t, s.Spikes, stim)
	if err != nil {
		return nil, err
	}

	return &Batch{
		Sample: s,
		Design: d,
		Pass:   m.Forward(d),
	}, nil
}
