// Package mmd computes the maximum mean discrepancy between two samples of
// rate paths, together with its gradient with respect to every sample.
//
// Samples are held column-wise: a rate matrix has one row per time bin and
// one column per realization.  A discrepancy can be computed from explicit
// features (FeatureMap) or from a positive definite kernel (Kernel).  In both
// cases the unbiased estimator excludes the comparison of a realization with
// itself, while the biased estimator compares sample means.
package mmd

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// FeatureMap maps each realization to a feature vector.
type FeatureMap interface {

	// Features returns a matrix with one row per feature and one column per
	// realization in r.
	Features(t []float64, r *mat.Dense) *mat.Dense

	// Backward returns the gradient with respect to r of a loss whose
	// gradient with respect to the features is g.
	Backward(t []float64, r, g *mat.Dense) *mat.Dense
}

// Kernel compares realizations pairwise.
type Kernel interface {

	// Gram returns the matrix of kernel values between the columns of r1 and
	// the columns of r2.
	Gram(t []float64, r1, r2 *mat.Dense) *mat.Dense

	// Backward returns the gradients with respect to r1 and r2 of a loss
	// whose gradient with respect to the Gram matrix is g.
	Backward(t []float64, r1, r2, g *mat.Dense) (*mat.Dense, *mat.Dense)
}

// rowSums returns the sum of every row of x.
func rowSums(x *mat.Dense) []float64 {
	r, _ := x.Dims()
	s := make([]float64, r)
	for i := range s {
		s[i] = floats.Sum(x.RawRowView(i))
	}
	return s
}

// FeatureMMD returns the squared MMD between the samples whose features are
// the columns of phiX and phiY, and its gradients with respect to phiX and
// phiY.  The unbiased estimator needs at least two realizations per sample.
func FeatureMMD(phiX, phiY *mat.Dense, biased bool) (float64, *mat.Dense, *mat.Dense) {

	kx, n := phiX.Dims()
	ky, m := phiY.Dims()
	if kx != ky {
		msg := fmt.Sprintf("mmd: %d features against %d", kx, ky)
		panic(msg)
	}

	sx := rowSums(phiX)
	sy := rowSums(phiY)
	fn, fm := float64(n), float64(m)

	gx := mat.NewDense(kx, n, nil)
	gy := mat.NewDense(ky, m, nil)

	if biased {
		// Squared distance between the feature means
		diff := make([]float64, kx)
		floats.AddScaledTo(diff, floats.ScaleTo(make([]float64, kx), 1/fn, sx), -1/fm, sy)
		value := floats.Dot(diff, diff)
		gx.Apply(func(k, _ int, _ float64) float64 { return 2 * diff[k] / fn }, gx)
		gy.Apply(func(k, _ int, _ float64) float64 { return -2 * diff[k] / fm }, gy)
		return value, gx, gy
	}

	if n < 2 || m < 2 {
		panic("mmd: the unbiased estimator needs two realizations per sample")
	}

	nx := fn * (fn - 1)
	ny := fm * (fm - 1)
	nxy := fn * fm

	sqx := mat.Norm(phiX, 2)
	sqy := mat.Norm(phiY, 2)
	value := (floats.Dot(sx, sx)-sqx*sqx)/nx + (floats.Dot(sy, sy)-sqy*sqy)/ny - 2*floats.Dot(sx, sy)/nxy

	gx.Apply(func(k, i int, v float64) float64 {
		return 2*(sx[k]-v)/nx - 2*sy[k]/nxy
	}, phiX)
	gy.Apply(func(k, j int, v float64) float64 {
		return 2*(sy[k]-v)/ny - 2*sx[k]/nxy
	}, phiY)

	return value, gx, gy
}

// KernelMMD returns the squared MMD from the Gram matrices within the first
// sample (kxx), within the second sample (kyy) and between them (kxy), along
// with the gradients of the estimate with respect to each Gram matrix.  The
// unbiased estimator averages kxx and kyy over pairs i < j.
func KernelMMD(kxx, kyy, kxy *mat.Dense, biased bool) (float64, *mat.Dense, *mat.Dense, *mat.Dense) {

	n, _ := kxx.Dims()
	m, _ := kyy.Dims()

	dxy := mat.NewDense(n, m, nil)
	cross := -2 / float64(n*m)
	dxy.Apply(func(_, _ int, _ float64) float64 { return cross }, dxy)
	value := cross * mat.Sum(kxy)

	within := func(k *mat.Dense, n int) (float64, *mat.Dense) {
		d := mat.NewDense(n, n, nil)
		if biased {
			w := 1 / float64(n*n)
			d.Apply(func(_, _ int, _ float64) float64 { return w }, d)
			return w * mat.Sum(k), d
		}
		if n < 2 {
			panic("mmd: the unbiased estimator needs two realizations per sample")
		}
		w := 2 / float64(n*(n-1))
		var s float64
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				s += k.At(i, j)
				d.Set(i, j, w)
			}
		}
		return w * s, d
	}

	vx, dxx := within(kxx, n)
	vy, dyy := within(kyy, m)

	return value + vx + vy, dxx, dyy, dxy
}
