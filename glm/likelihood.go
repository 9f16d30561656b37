package glm

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// bins holds the rate and its derivatives at every observation.
type bins struct {
	linpred []float64
	rate    []float64
	logr    []float64
	deriv   []float64
	deriv2  []float64
}

// evalBins computes the linear predictor X*theta and the rate terms.  If
// order is at least 1 the first derivative of the non-linearity is also
// computed, and if it is 2 the second derivative as well.
func (g *GLM) evalBins(theta []float64, d *Design, order int, b *bins) {

	n, p := d.X.Dims()
	if len(theta) != p {
		msg := fmt.Sprintf("glm: %d parameters for a design with %d columns", len(theta), p)
		panic(msg)
	}

	b.linpred = resize(b.linpred, n)
	b.rate = resize(b.rate, n)
	b.logr = resize(b.logr, n)

	lp := mat.NewVecDense(n, b.linpred)
	lp.MulVec(d.X, mat.NewVecDense(p, theta))

	g.nl.Eval(b.linpred, b.rate)
	g.nl.Log(b.linpred, b.logr)

	if order >= 1 {
		b.deriv = resize(b.deriv, n)
		g.nl.Deriv(b.linpred, b.deriv)
	}
	if order >= 2 {
		b.deriv2 = resize(b.deriv2, n)
		g.nl.Deriv2(b.linpred, b.deriv2)
	}
}

// LogLike returns the log-likelihood of the observations in d at the
// parameter vector theta.
func (g *GLM) LogLike(theta []float64, d *Design) float64 {

	var b bins
	g.evalBins(theta, d, 0, &b)

	var loglike float64
	for i, r := range b.rate {
		loglike += g.noise.LogLike(d.Mask.data[i], r, b.logr[i], d.Dt)
	}

	return loglike
}

// Score places the gradient of the log-likelihood at theta into score.
func (g *GLM) Score(theta []float64, d *Design, score []float64) {

	var b bins
	g.evalBins(theta, d, 1, &b)

	// Chain rule through the non-linearity
	fac := make([]float64, len(b.rate))
	for i, r := range b.rate {
		fac[i] = g.noise.Deriv(d.Mask.data[i], r, b.logr[i], d.Dt) * b.deriv[i]
	}

	zero(score)
	sv := mat.NewVecDense(len(score), score)
	sv.MulVec(d.X.T(), mat.NewVecDense(len(fac), fac))
}

// Hessian places the Hessian matrix of the log-likelihood at theta into
// hess, vectorized in row-major order.
func (g *GLM) Hessian(theta []float64, d *Design, hess []float64) {

	var b bins
	g.evalBins(theta, d, 2, &b)

	fac := make([]float64, len(b.rate))
	for i, r := range b.rate {
		spk := d.Mask.data[i]
		d1 := g.noise.Deriv(spk, r, b.logr[i], d.Dt)
		d2 := g.noise.Deriv2(spk, r, b.logr[i], d.Dt)
		fac[i] = d2*b.deriv[i]*b.deriv[i] + d1*b.deriv2[i]
	}

	// X' diag(fac) X
	var wx mat.Dense
	wx.Apply(func(i, _ int, v float64) float64 { return fac[i] * v }, d.X)

	_, p := d.X.Dims()
	hm := mat.NewDense(p, p, hess)
	hm.Mul(d.X.T(), &wx)
}

// GHLogLikelihood returns the negative log-likelihood at the current
// parameters of the model, along with its gradient and Hessian.
func (g *GLM) GHLogLikelihood(d *Design) (float64, []float64, []float64) {

	theta := g.Params()
	p := len(theta)

	negll := -g.LogLike(theta, d)

	grad := make([]float64, p)
	g.Score(theta, d, grad)
	floats.Scale(-1, grad)

	hess := make([]float64, p*p)
	g.Hessian(theta, d, hess)
	floats.Scale(-1, hess)

	return negll, grad, hess
}
