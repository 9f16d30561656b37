package glm

import (
	"fmt"
	"math"
	"testing"

	"github.com/kshedden/pointglm/basis"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// A test problem
type difftestprob struct {
	title  string
	nl     NonlinearityType
	noise  NoiseType
	kappa  bool
	eta    bool
	params [][]float64
}

var diffTests = []difftestprob{
	{
		title:  "Poisson exp",
		nl:     Exponential,
		noise:  Poisson,
		eta:    true,
		params: [][]float64{{0, 0}, {1, -1}, {0.5, 2}},
	},
	{
		title:  "Poisson exp stimulus",
		nl:     Exponential,
		noise:  Poisson,
		kappa:  true,
		eta:    true,
		params: [][]float64{{0, 0, 0, 0}, {1, 0.5, -0.5, -1}},
	},
	{
		title:  "Poisson softplus",
		nl:     Softplus,
		noise:  Poisson,
		kappa:  true,
		eta:    true,
		params: [][]float64{{0.5, 0, 0, 0}, {1, 0.5, -0.5, -1}, {2, 1, 1, 0.5}},
	},
	{
		title:  "Bernoulli exp",
		nl:     Exponential,
		noise:  Bernoulli,
		eta:    true,
		params: [][]float64{{0, 0}, {1, -1}, {2, 1}},
	},
	{
		title:  "Bernoulli exp stimulus",
		nl:     Exponential,
		noise:  Bernoulli,
		kappa:  true,
		eta:    true,
		params: [][]float64{{0, 0, 0, 0}, {1, 0.5, -0.5, -1}},
	},
	{
		title:  "Bernoulli softplus",
		nl:     Softplus,
		noise:  Bernoulli,
		kappa:  true,
		params: [][]float64{{0.5, 0, 0}, {1, 1, -1}},
	},
}

// diffData simulates a short recording that is shared by the derivative checks.
func diffData(prob difftestprob) (*GLM, *Design) {

	rng := rand.New(rand.NewSource(4231))
	t := timeGrid(300, 0.05)

	stim := mat.NewDense(len(t), 2, nil)
	for i := range t {
		stim.Set(i, 0, rng.NormFloat64())
		stim.Set(i, 1, rng.NormFloat64())
	}

	config := &Config{
		U0:           0.5,
		Nonlinearity: prob.nl,
		Noise:        prob.noise,
	}
	if prob.kappa {
		config.Kappa = basis.NewExponential([]float64{0.2, 1}, []float64{0.5, -0.5})
	}
	if prob.eta {
		config.Eta = basis.NewExponential([]float64{0.3}, []float64{-1})
	}

	g, err := New(config)
	if err != nil {
		panic(err)
	}

	if !prob.kappa {
		stim = nil
	}
	s, err := g.Sample(rng, t, stim, 3)
	if err != nil {
		panic(err)
	}
	d, err := g.Design(t, s.Spikes, stim)
	if err != nil {
		panic(err)
	}

	return g, d
}

func TestGrad(t *testing.T) {

	for _, prob := range diffTests {

		g, d := diffData(prob)

		loglike := func(x []float64) float64 {
			return g.LogLike(x, d)
		}

		p := len(prob.params[0])
		ngrad := make([]float64, p)
		score := make([]float64, p)

		for _, params := range prob.params {
			fd.Gradient(ngrad, loglike, params, &fd.Settings{Formula: fd.Central})
			g.Score(params, d, score)
			if !floats.EqualApprox(score, ngrad, 1e-5) {
				fmt.Printf("%s\n", prob.title)
				fmt.Printf("Numerical:  %v\n", ngrad)
				fmt.Printf("Analytical: %v\n", score)
				t.Fail()
			}
		}
	}
}

func TestHess(t *testing.T) {

	for _, prob := range diffTests {

		g, d := diffData(prob)

		loglike := func(x []float64) float64 {
			return g.LogLike(x, d)
		}

		p := len(prob.params[0])
		nhess := mat.NewSymDense(p, nil)
		hess := make([]float64, p*p)

		for _, params := range prob.params {
			fd.Hessian(nhess, loglike, params, nil)
			g.Hessian(params, d, hess)

			ok := true
			for i := 0; i < p; i++ {
				for j := 0; j < p; j++ {
					if !scalar.EqualWithinAbsOrRel(hess[i*p+j], nhess.At(i, j), 1e-3, 1e-3) {
						ok = false
					}
				}
			}
			if !ok {
				fmt.Printf("%s\n", prob.title)
				fmt.Printf("Numerical:  %v\n", mat.Formatted(nhess))
				fmt.Printf("Analytical: %v\n", hess)
				t.Fail()
			}
		}
	}
}

// The negative log-likelihood must match the closed forms of the exponential
// non-linearity.
func TestClosedForm(t *testing.T) {

	for _, noise := range []NoiseType{Poisson, Bernoulli} {

		prob := difftestprob{nl: Exponential, noise: noise, eta: true}
		g, d := diffData(prob)
		if err := g.SetParams([]float64{0.3, -0.7}); err != nil {
			t.Fatal(err)
		}

		n, _ := d.X.Dims()
		u := mat.NewVecDense(n, nil)
		u.MulVec(d.X, mat.NewVecDense(2, g.Params()))

		var want float64
		for i := 0; i < n; i++ {
			r := math.Exp(u.AtVec(i))
			switch {
			case noise == Poisson && d.Mask.data[i]:
				want -= u.AtVec(i) - d.Dt*r
			case noise == Poisson:
				want += d.Dt * r
			case d.Mask.data[i]:
				want -= math.Log(1 - math.Exp(-r*d.Dt))
			default:
				want += d.Dt * r
			}
		}

		negll, grad, hess := g.GHLogLikelihood(d)
		if !scalar.EqualWithinAbsOrRel(negll, want, 1e-10, 1e-10) {
			t.Errorf("%s: negative log-likelihood %f, want %f", g.Noise().Name, negll, want)
		}
		if len(grad) != 2 || len(hess) != 4 {
			t.Errorf("%s: wrong derivative dimensions", g.Noise().Name)
		}

		// The negative log-likelihood is convex for the exponential non-linearity.
		if hess[0] < 0 || hess[3] < 0 || hess[0]*hess[3]-hess[1]*hess[2] < -1e-8 {
			t.Errorf("%s: Hessian of the negative log-likelihood is not positive semi-definite", g.Noise().Name)
		}
	}
}
