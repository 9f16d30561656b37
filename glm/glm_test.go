package glm

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kshedden/pointglm/basis"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func timeGrid(n int, dt float64) []float64 {
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i) * dt
	}
	return t
}

func scalarClose(x, y, eps float64) bool {
	return math.Abs(x-y) <= eps
}

func mustNew(config *Config) *GLM {
	g, err := New(config)
	if err != nil {
		panic(err)
	}
	return g
}

// Without filters the process is homogeneous, with expected count r0*T.
func TestHomogeneous(t *testing.T) {

	rng := rand.New(rand.NewSource(993))
	g := mustNew(&Config{U0: math.Log(5)})

	tg := timeGrid(100000, 0.001)
	s, err := g.Sample(rng, tg, nil, 4)
	if err != nil {
		t.Fatal(err)
	}

	expected := 4 * g.R0() * 100
	if n := float64(s.Spikes.Count()); math.Abs(n-expected) > 0.1*expected {
		t.Errorf("got %.0f spikes, expected about %.0f", n, expected)
	}
}

func TestConcreteScenario(t *testing.T) {

	rng := rand.New(rand.NewSource(31))
	g := mustNew(&Config{U0: math.Log(0.1)})

	tg := timeGrid(100, 1)
	ntrials := 2000
	s, err := g.Sample(rng, tg, nil, ntrials)
	if err != nil {
		t.Fatal(err)
	}

	want := 1 - math.Exp(-0.1)
	nt, nc := s.R.Dims()
	for j := 0; j < nt; j++ {
		for c := 0; c < nc; c++ {
			p := 1 - math.Exp(-s.R.At(j, c)*Dt(tg))
			if !scalarClose(p, want, 1e-12) {
				t.Fatalf("bin %d cell %d: spike probability %f, want %f", j, c, p, want)
			}
		}
	}

	// The mean count per trial is 100 * (1 - exp(-0.1)), close to 10.
	mean := float64(s.Spikes.Count()) / float64(ntrials)
	if !scalarClose(mean, 100*want, 0.3) {
		t.Errorf("mean count %f, expected %f", mean, 100*want)
	}
}

func TestEtaConv(t *testing.T) {

	eta := basis.NewExponential([]float64{4}, []float64{-2})
	g := mustNew(&Config{U0: -1, Eta: eta})

	tg := timeGrid(40, 1)
	mask := NewSpikeMask(40, 1)
	mask.Set(5, 0, true)

	cd, err := g.SampleConditioned(tg, mask, nil)
	if err != nil {
		t.Fatal(err)
	}

	lags := make([]float64, 40-6)
	for k := range lags {
		lags[k] = tg[6+k] - tg[6]
	}
	h := eta.Interpolate(lags)

	for j := 0; j < 40; j++ {
		v := cd.EtaConv.At(j, 0)
		if j <= 5 && v != 0 {
			t.Errorf("bin %d: history drive %f before the spike has any effect", j, v)
		}
		if j > 5 && v != h[j-6] {
			t.Errorf("bin %d: history drive %f, want %f", j, v, h[j-6])
		}
	}
}

// Simulation and conditioned evaluation must agree on the simulated spikes.
func TestSampleConditioned(t *testing.T) {

	rng := rand.New(rand.NewSource(77))
	g := mustNew(&Config{
		U0:    1,
		Kappa: basis.NewRect([]float64{0, 0.5, 2}, []float64{1, -0.5}),
		Eta:   basis.NewExponential([]float64{0.2, 1}, []float64{-3, 0.5}),
	})

	tg := timeGrid(200, 0.1)
	stim := mat.NewDense(200, 2, nil)
	for i := 0; i < 200; i++ {
		stim.Set(i, 0, math.Sin(tg[i]))
		stim.Set(i, 1, rng.NormFloat64())
	}

	s, err := g.Sample(rng, tg, stim, 3)
	if err != nil {
		t.Fatal(err)
	}
	cd, err := g.SampleConditioned(tg, s.Spikes, stim)
	if err != nil {
		t.Fatal(err)
	}

	if !mat.EqualApprox(s.KappaConv, cd.KappaConv, 1e-12) {
		t.Errorf("stimulus drive differs")
	}
	if !mat.EqualApprox(s.EtaConv, cd.EtaConv, 1e-10) {
		t.Errorf("history drive differs")
	}
	if !mat.EqualApprox(s.U, cd.U, 1e-10) {
		t.Errorf("linear predictor differs")
	}
	if !mat.EqualApprox(s.R, cd.R, 1e-10) {
		t.Errorf("rate differs")
	}

	// The stimulus drive is zero in the first bin and broadcast over trials.
	for c := 0; c < 6; c++ {
		if s.KappaConv.At(0, c) != 0 {
			t.Errorf("stimulus drive in the first bin")
		}
		if s.KappaConv.At(50, c) != s.KappaConv.At(50, 3*(c/3)) {
			t.Errorf("trials of one stimulus column receive different drives")
		}
	}

	// The design matrix reproduces the linear predictor.
	d, err := g.Design(tg, s.Spikes, stim)
	if err != nil {
		t.Fatal(err)
	}
	n, p := d.X.Dims()
	u := mat.NewVecDense(n, nil)
	u.MulVec(d.X, mat.NewVecDense(p, g.Params()))
	if !floats.EqualApprox(u.RawVector().Data, cd.U.RawMatrix().Data, 1e-10) {
		t.Errorf("design matrix does not reproduce the linear predictor")
	}
}

// Changing spikes or stimulus after bin j must not change bins up to j.
func TestCausality(t *testing.T) {

	rng := rand.New(rand.NewSource(5))
	g := mustNew(&Config{
		Kappa: basis.NewExponential([]float64{0.5}, []float64{1}),
		Eta:   basis.NewExponential([]float64{1}, []float64{-1}),
	})

	tg := timeGrid(100, 0.1)
	stim := mat.NewDense(100, 1, nil)
	mask := NewSpikeMask(100, 2)
	for j := 0; j < 100; j++ {
		stim.Set(j, 0, rng.NormFloat64())
		mask.Set(j, 0, rng.Float64() < 0.2)
		mask.Set(j, 1, rng.Float64() < 0.2)
	}

	base, err := g.SampleConditioned(tg, mask, stim)
	if err != nil {
		t.Fatal(err)
	}

	for _, jc := range []int{0, 10, 50, 98} {
		mask2 := mask.Clone()
		stim2 := mat.DenseCopyOf(stim)
		for j := jc + 1; j < 100; j++ {
			mask2.Set(j, 0, !mask2.At(j, 0))
			mask2.Set(j, 1, true)
			stim2.Set(j, 0, 5)
		}

		alt, err := g.SampleConditioned(tg, mask2, stim2)
		if err != nil {
			t.Fatal(err)
		}
		for j := 0; j <= jc; j++ {
			for c := 0; c < 2; c++ {
				if base.U.At(j, c) != alt.U.At(j, c) || base.R.At(j, c) != alt.R.At(j, c) {
					t.Errorf("changes after bin %d alter bin %d", jc, j)
				}
			}
		}
	}
}

func TestParams(t *testing.T) {

	for _, kappa := range []bool{false, true} {
		for _, eta := range []bool{false, true} {

			config := &Config{U0: 0.3}
			want := []float64{0.3}
			if kappa {
				config.Kappa = basis.NewExponential([]float64{1, 2}, []float64{0.1, 0.2})
				want = append(want, 0.1, 0.2)
			}
			if eta {
				config.Eta = basis.NewRect([]float64{0, 1, 2, 3}, []float64{-1, -2, -3})
				want = append(want, -1, -2, -3)
			}
			g := mustNew(config)

			if !floats.Equal(g.Params(), want) {
				t.Errorf("params %v, want %v", g.Params(), want)
			}
			if len(g.ParamNames()) != g.NumParams() {
				t.Errorf("wrong number of parameter names")
			}

			theta := make([]float64, len(want))
			for i := range theta {
				theta[i] = float64(i) + 0.5
			}
			if err := g.SetParams(theta); err != nil {
				t.Fatal(err)
			}
			if !floats.Equal(g.Params(), theta) {
				t.Errorf("round trip: got %v, want %v", g.Params(), theta)
			}
			if err := g.SetParams(g.Params()); err != nil || !floats.Equal(g.Params(), theta) {
				t.Errorf("setting the current parameters changed the model")
			}

			// The filters of a clone are not shared.
			c := g.Clone()
			orig := g.Params()
			for i := range theta {
				theta[i] -= 10
			}
			if err := c.SetParams(theta); err != nil {
				t.Fatal(err)
			}
			if !floats.Equal(g.Params(), orig) {
				t.Errorf("clone shares state with the original")
			}

			err := g.SetParams(append(theta, 1))
			if !errors.Is(err, ErrShape) {
				t.Errorf("expected a shape error, got %v", err)
			}
		}
	}
}

func TestFaults(t *testing.T) {

	g := mustNew(&Config{Kappa: basis.NewExponential([]float64{1}, []float64{1})})
	tg := timeGrid(10, 1)

	_, err := g.Sample(nil, tg, mat.NewDense(9, 1, nil), 1)
	if !errors.Is(err, ErrShape) {
		t.Errorf("stimulus rows: %v", err)
	}
	_, err = g.Sample(nil, tg, nil, 0)
	if !errors.Is(err, ErrShape) {
		t.Errorf("zero trials: %v", err)
	}
	_, err = g.Sample(nil, tg[:1], nil, 1)
	if !errors.Is(err, ErrShape) {
		t.Errorf("short grid: %v", err)
	}
	_, err = g.SampleConditioned(tg, NewSpikeMask(10, 3), mat.NewDense(10, 2, nil))
	if !errors.Is(err, ErrShape) {
		t.Errorf("mask columns: %v", err)
	}
	_, err = g.Design(tg, NewSpikeMask(8, 2), nil)
	if !errors.Is(err, ErrShape) {
		t.Errorf("mask rows: %v", err)
	}

	_, err = New(&Config{Nonlinearity: 9})
	if !errors.Is(err, ErrConfig) {
		t.Errorf("non-linearity: %v", err)
	}
	_, err = New(&Config{Noise: 9})
	if !errors.Is(err, ErrConfig) {
		t.Errorf("noise: %v", err)
	}
	if _, err = ParseNonlinearity("tanh"); !errors.Is(err, ErrConfig) {
		t.Errorf("parse non-linearity: %v", err)
	}
	if _, err = ParseNoise("gaussian"); !errors.Is(err, ErrConfig) {
		t.Errorf("parse noise: %v", err)
	}
	if nl, err := ParseNonlinearity("log_exp"); err != nil || nl != Softplus {
		t.Errorf("log_exp should be the softplus non-linearity")
	}
}

func TestFit(t *testing.T) {

	rng := rand.New(rand.NewSource(2024))
	truth := mustNew(&Config{
		U0:  math.Log(20),
		Eta: basis.NewExponential([]float64{0.01, 0.05}, []float64{-4, 1}),
	})

	tg := timeGrid(5000, 0.001)
	s, err := truth.Sample(rng, tg, nil, 20)
	if err != nil {
		t.Fatal(err)
	}

	for _, noise := range []NoiseType{Poisson, Bernoulli} {

		g := mustNew(&Config{
			U0:    0,
			Eta:   basis.NewExponential([]float64{0.01, 0.05}, []float64{0, 0}),
			Noise: noise,
		})

		rslt, err := g.Fit(tg, s.Spikes, nil, nil)
		if err != nil {
			t.Fatal(err)
		}

		if len(rslt.Trace) < 2 {
			t.Fatalf("no Newton iterations were recorded")
		}
		for i := 1; i < len(rslt.Trace); i++ {
			if rslt.Trace[i] > rslt.Trace[i-1]+1e-9 {
				t.Errorf("the objective increased at iteration %d: %v", i, rslt.Trace)
			}
		}

		if !floats.Equal(g.Params(), rslt.Params()) {
			t.Errorf("fitted parameters were not written back into the model")
		}
		if !scalarClose(rslt.Params()[0], truth.U0(), 0.3) {
			t.Errorf("u0 estimate %f, true value %f", rslt.Params()[0], truth.U0())
		}
		if rslt.StdErr() == nil {
			t.Errorf("no standard errors")
		}

		// The maximum is a stationary point: a further Newton step would
		// move every parameter by a negligible fraction of its standard error.
		_, grad, hess := g.GHLogLikelihood(rslt.Model().(*Objective).design)
		p := len(grad)
		var step mat.VecDense
		if err := step.SolveVec(mat.NewDense(p, p, hess), mat.NewVecDense(p, grad)); err != nil {
			t.Fatal(err)
		}
		for j, se := range rslt.StdErr() {
			if math.Abs(step.AtVec(j)) > 1e-3*se {
				t.Errorf("Newton step %g for parameter %d with SE %g", step.AtVec(j), j, se)
			}
		}

		// The trace starts at the starting value, once.
		if rslt.Trace[0] == rslt.Trace[1] {
			t.Errorf("repeated starting value in the trace: %v", rslt.Trace)
		}

		sum := rslt.Summary().String()
		want := fmt.Sprintf("Iterations:    %d ", rslt.Optimize.Stats.MajorIterations)
		if !strings.Contains(sum, want) {
			t.Errorf("summary does not report %q:\n%s", want, sum)
		}
	}
}

func TestFitStimulus(t *testing.T) {

	rng := rand.New(rand.NewSource(8))
	kappa := basis.NewExponential([]float64{0.02}, []float64{20})
	truth := mustNew(&Config{U0: math.Log(10), Kappa: kappa})

	tg := timeGrid(4000, 0.001)
	stim := mat.NewDense(len(tg), 1, nil)
	for i := range tg {
		stim.Set(i, 0, 5*rng.NormFloat64())
	}
	s, err := truth.Sample(rng, tg, stim, 30)
	if err != nil {
		t.Fatal(err)
	}

	g := mustNew(&Config{Kappa: basis.NewExponential([]float64{0.02}, []float64{0})})
	rslt, err := g.Fit(tg, s.Spikes, stim, DefaultNewtonConfig())
	if err != nil {
		t.Fatal(err)
	}

	// The stimulus coefficient is identified with a wide margin.
	se := rslt.StdErr()
	if math.Abs(rslt.Params()[1]-20) > 5*se[1] {
		t.Errorf("kappa estimate %f (SE %f), true value 20", rslt.Params()[1], se[1])
	}
}

// A fit stopped far from the maximum reports non-convergence, and returns
// the partial results.
func TestFitIterationLimit(t *testing.T) {

	rng := rand.New(rand.NewSource(77))
	eta := basis.NewExponential([]float64{0.01, 0.05}, []float64{-4, 1})
	truth := mustNew(&Config{U0: math.Log(20), Eta: eta})
	tg := timeGrid(5000, 0.001)
	s, err := truth.Sample(rng, tg, nil, 20)
	if err != nil {
		t.Fatal(err)
	}

	g := mustNew(&Config{
		U0:  -5,
		Eta: basis.NewExponential([]float64{0.01, 0.05}, []float64{0, 0}),
	})
	config := DefaultNewtonConfig()
	config.Settings.MajorIterations = 1
	rslt, err := g.Fit(tg, s.Spikes, nil, config)
	if !errors.Is(err, ErrConvergence) {
		t.Fatalf("expected a convergence error, got %v", err)
	}
	if rslt == nil || len(rslt.Params()) != 3 {
		t.Fatalf("no partial results")
	}
	if !floats.Equal(g.Params(), rslt.Params()) {
		t.Errorf("partial parameters were not written back into the model")
	}

	obj := rslt.Model().(*Objective)
	if dec := obj.decrement(rslt.Params()); dec < 1 {
		t.Errorf("Newton decrement %g after one iteration from a distant start", dec)
	}
}

func TestPersist(t *testing.T) {

	g := mustNew(&Config{
		U0:           0.7,
		Kappa:        basis.NewRect([]float64{0, 1, 2}, []float64{3, 4}),
		Eta:          basis.NewExponential([]float64{1, 5}, []float64{-1, 0.5}),
		Nonlinearity: Softplus,
		Noise:        Bernoulli,
	})

	var buf bytes.Buffer
	if err := g.Save(&buf); err != nil {
		t.Fatal(err)
	}
	h, err := Load(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(g.Params(), h.Params()) {
		t.Errorf("loaded parameters %v, want %v", h.Params(), g.Params())
	}
	if h.Nonlinearity().TypeCode != Softplus || h.Noise().TypeCode != Bernoulli {
		t.Errorf("loaded model has the wrong non-linearity or noise")
	}

	fname := filepath.Join(t.TempDir(), "model.gob.gz")
	nofilter := mustNew(&Config{U0: -2})
	if err := nofilter.SaveFile(fname); err != nil {
		t.Fatal(err)
	}
	h, err = ReadFile(fname)
	if err != nil {
		t.Fatal(err)
	}
	if h.Kappa() != nil || h.Eta() != nil || h.U0() != -2 {
		t.Errorf("file round trip failed")
	}
}
