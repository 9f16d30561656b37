package mmd

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func dt(t []float64) float64 {
	return t[1] - t[0]
}

// MeanRate has a single feature, the integral of the rate over the
// recording, which is the expected spike count.
type MeanRate struct{}

// Features returns a 1 x n matrix of integrated rates.
func (MeanRate) Features(t []float64, r *mat.Dense) *mat.Dense {
	nt, n := r.Dims()
	phi := mat.NewDense(1, n, nil)
	for i := 0; i < n; i++ {
		phi.Set(0, i, mat.Sum(r.Slice(0, nt, i, i+1))*dt(t))
	}
	return phi
}

// Backward spreads the feature gradient over the time bins.
func (MeanRate) Backward(t []float64, r, g *mat.Dense) *mat.Dense {
	h := dt(t)
	var d mat.Dense
	d.Apply(func(_, i int, _ float64) float64 { return g.At(0, i) * h }, r)
	return &d
}

// RatePath uses the rate path itself as the feature vector, scaled so that
// inner products of features approximate integrals over time.
type RatePath struct{}

// Features returns the scaled rate paths.
func (RatePath) Features(t []float64, r *mat.Dense) *mat.Dense {
	var phi mat.Dense
	phi.Scale(math.Sqrt(dt(t)), r)
	return &phi
}

// Backward scales the feature gradient.
func (RatePath) Backward(t []float64, r, g *mat.Dense) *mat.Dense {
	var d mat.Dense
	d.Scale(math.Sqrt(dt(t)), g)
	return &d
}

// Linear is the kernel k(x, y) = integral of x(t) y(t) dt.
type Linear struct{}

// Gram returns r1' r2 dt.
func (Linear) Gram(t []float64, r1, r2 *mat.Dense) *mat.Dense {
	var k mat.Dense
	k.Mul(r1.T(), r2)
	k.Scale(dt(t), &k)
	return &k
}

// Backward returns r2 g' dt and r1 g dt.
func (Linear) Backward(t []float64, r1, r2, g *mat.Dense) (*mat.Dense, *mat.Dense) {
	h := dt(t)
	var d1, d2 mat.Dense
	d1.Mul(r2, g.T())
	d1.Scale(h, &d1)
	d2.Mul(r1, g)
	d2.Scale(h, &d2)
	return &d1, &d2
}

// Gaussian is the kernel exp(-D / (2 Sigma^2)), where D is the integrated
// squared difference between two rate paths.
type Gaussian struct {
	Sigma float64
}

func (k Gaussian) gram(t []float64, r1, r2 *mat.Dense) (*mat.Dense, [][]float64, [][]float64) {

	nt, n1 := r1.Dims()
	_, n2 := r2.Dims()
	h := dt(t)

	cols := func(r *mat.Dense, n int) [][]float64 {
		c := make([][]float64, n)
		for i := range c {
			c[i] = mat.Col(nil, i, r)
		}
		return c
	}
	c1 := cols(r1, n1)
	c2 := cols(r2, n2)

	diff := make([]float64, nt)
	s2 := k.Sigma * k.Sigma
	gm := mat.NewDense(n1, n2, nil)
	for i := 0; i < n1; i++ {
		for j := 0; j < n2; j++ {
			floats.SubTo(diff, c1[i], c2[j])
			gm.Set(i, j, math.Exp(-floats.Dot(diff, diff)*h/(2*s2)))
		}
	}

	return gm, c1, c2
}

// Gram returns the Gaussian kernel between the columns of r1 and r2.
func (k Gaussian) Gram(t []float64, r1, r2 *mat.Dense) *mat.Dense {
	gm, _, _ := k.gram(t, r1, r2)
	return gm
}

// Backward returns the gradients of a loss with respect to r1 and r2.
func (k Gaussian) Backward(t []float64, r1, r2, g *mat.Dense) (*mat.Dense, *mat.Dense) {

	gm, c1, c2 := k.gram(t, r1, r2)
	nt, n1 := r1.Dims()
	_, n2 := r2.Dims()
	h := dt(t)
	s2 := k.Sigma * k.Sigma

	d1 := mat.NewDense(nt, n1, nil)
	d2 := mat.NewDense(nt, n2, nil)
	for i := 0; i < n1; i++ {
		for j := 0; j < n2; j++ {
			// dk/dx = -k (x - y) dt / sigma^2
			w := g.At(i, j) * gm.At(i, j) * h / s2
			if w == 0 {
				continue
			}
			for l := 0; l < nt; l++ {
				v := w * (c1[i][l] - c2[j][l])
				d1.Set(l, i, d1.At(l, i)-v)
				d2.Set(l, j, d2.At(l, j)+v)
			}
		}
	}

	return d1, d2
}
