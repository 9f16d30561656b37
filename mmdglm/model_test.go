package mmdglm

import (
	"errors"
	"math"
	"testing"

	"github.com/kshedden/pointglm/basis"
	"github.com/kshedden/pointglm/glm"
	"github.com/kshedden/pointglm/mmd"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

func timeGrid(n int, dt float64) []float64 {
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i) * dt
	}
	return t
}

// randStim returns a white-noise stimulus with ns columns.
func randStim(rng *rand.Rand, nt, ns int) *mat.Dense {
	dist := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	stim := mat.NewDense(nt, ns, nil)
	for i := 0; i < nt; i++ {
		for j := 0; j < ns; j++ {
			stim.Set(i, j, dist.Rand())
		}
	}
	return stim
}

func mustGLM(config *glm.Config) *glm.GLM {
	g, err := glm.New(config)
	if err != nil {
		panic(err)
	}
	return g
}

// refractory returns a model with a stimulus filter and an inhibitory
// history filter.
func refractory(nl glm.NonlinearityType) *glm.GLM {
	return mustGLM(&glm.Config{
		U0:           math.Log(20),
		Kappa:        basis.NewExponential([]float64{0.05}, []float64{0.5}),
		Eta:          basis.NewExponential([]float64{0.01, 0.05}, []float64{-3, 0.5}),
		Nonlinearity: nl,
	})
}

func gradClose(t *testing.T, label string, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: gradient has length %d, want %d", label, len(got), len(want))
	}
	for i := range got {
		if math.Abs(got[i]-want[i]) > 1e-4*(1+math.Abs(want[i])) {
			t.Errorf("%s: gradient[%d] is %g, numerical %g", label, i, got[i], want[i])
		}
	}
}

func TestParamsApply(t *testing.T) {

	g := refractory(glm.Exponential)
	m := NewModel(g)

	theta := m.Params()
	if !floats.Equal(theta, g.Params()) {
		t.Fatalf("model parameters %v differ from GLM parameters %v", theta, g.Params())
	}

	v := m.View()
	if len(v.KappaCoefs) != 1 || len(v.EtaCoefs) != 2 {
		t.Fatalf("view has %d stimulus and %d history coefficients", len(v.KappaCoefs), len(v.EtaCoefs))
	}
	v.EtaCoefs[0] = 100
	if m.View().EtaCoefs[0] == 100 {
		t.Errorf("View returned the internal coefficients")
	}

	theta = []float64{1, 2, 3, 4}
	if err := m.Apply(theta); err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(m.Params(), theta) || !floats.Equal(g.Params(), theta) {
		t.Errorf("Apply did not update the parameters")
	}
	if m.View().B != 1 || m.View().KappaCoefs[0] != 2 || m.View().EtaCoefs[1] != 4 {
		t.Errorf("unexpected view %+v", m.View())
	}

	if err := m.Apply([]float64{1, 2}); !errors.Is(err, glm.ErrShape) {
		t.Errorf("expected a shape error, got %v", err)
	}
}

func TestNegLogLikeGrad(t *testing.T) {

	for _, nl := range []glm.NonlinearityType{glm.Exponential, glm.Softplus} {

		rng := rand.New(rand.NewSource(42))
		tg := timeGrid(200, 0.002)
		stim := randStim(rng, len(tg), 2)

		g := refractory(nl)
		s, err := g.Sample(rng, tg, stim, 3)
		if err != nil {
			t.Fatal(err)
		}

		m := NewModel(g)
		d, err := g.Design(tg, s.Spikes, stim)
		if err != nil {
			t.Fatal(err)
		}

		theta := []float64{2, 0.3, -1, 0.2}
		if err := m.Apply(theta); err != nil {
			t.Fatal(err)
		}
		_, grad := m.NegLogLike(d)

		f := func(x []float64) float64 {
			if err := m.Apply(x); err != nil {
				panic(err)
			}
			nll, _ := m.NegLogLike(d)
			return nll
		}
		ngrad := fd.Gradient(nil, f, theta, &fd.Settings{Formula: fd.Central, Step: 1e-6})

		gradClose(t, g.Nonlinearity().Name, grad, ngrad)
	}
}

func TestForwardAgreesWithGLM(t *testing.T) {

	rng := rand.New(rand.NewSource(7))
	tg := timeGrid(300, 0.001)
	stim := randStim(rng, len(tg), 1)

	g := refractory(glm.Softplus)
	s, err := g.Sample(rng, tg, stim, 4)
	if err != nil {
		t.Fatal(err)
	}

	cd, err := g.SampleConditioned(tg, s.Spikes, stim)
	if err != nil {
		t.Fatal(err)
	}

	m := NewModel(g)
	d, err := g.Design(tg, s.Spikes, stim)
	if err != nil {
		t.Fatal(err)
	}
	p := m.Forward(d)

	nt, nc := p.R.Dims()
	for j := 0; j < nt; j++ {
		for c := 0; c < nc; c++ {
			if math.Abs(p.R.At(j, c)-cd.R.At(j, c)) > 1e-8*(1+cd.R.At(j, c)) {
				t.Fatalf("bin %d cell %d: rate %f, conditioned rate %f", j, c, p.R.At(j, c), cd.R.At(j, c))
			}
		}
	}
}

// The gradient of the MMD with respect to the parameters, with both spike
// patterns held fixed, agrees with finite differences.
func TestDiscrepancyGrad(t *testing.T) {

	configs := []struct {
		name   string
		config *MMDConfig
	}{
		{"meanrate", &MMDConfig{Phi: mmd.MeanRate{}}},
		{"ratepath-biased", &MMDConfig{Phi: mmd.RatePath{}, Biased: true}},
		{"linear", &MMDConfig{Kernel: mmd.Linear{}}},
		{"gaussian", &MMDConfig{Kernel: mmd.Gaussian{Sigma: 3}}},
	}

	rng := rand.New(rand.NewSource(123))
	tg := timeGrid(100, 0.002)

	g := refractory(glm.Exponential)
	obs, err := g.Sample(rng, tg, nil, 5)
	if err != nil {
		t.Fatal(err)
	}

	// Simulate the other sample from different parameters so the
	// discrepancy is not zero.
	h := g.Clone()
	if err := h.SetParams([]float64{2.5, 0, -1, 0}); err != nil {
		t.Fatal(err)
	}
	sim, err := h.Sample(rng, tg, nil, 6)
	if err != nil {
		t.Fatal(err)
	}

	dd, err := g.Design(tg, obs.Spikes, nil)
	if err != nil {
		t.Fatal(err)
	}
	df, err := g.Design(tg, sim.Spikes, nil)
	if err != nil {
		t.Fatal(err)
	}

	m := NewModel(g)
	theta := []float64{3, 0, -2, 0.4}

	for _, c := range configs {

		loss := func(x []float64) float64 {
			if err := m.Apply(x); err != nil {
				panic(err)
			}
			v, _, _ := c.config.discrepancy(tg, m.Forward(dd).R, m.Forward(df).R)
			return v
		}

		if err := m.Apply(theta); err != nil {
			t.Fatal(err)
		}
		pd := m.Forward(dd)
		pf := m.Forward(df)
		_, drd, drf := c.config.discrepancy(tg, pd.R, pf.R)
		grad := pd.Backward(drd)
		floats.Add(grad, pf.Backward(drf))

		ngrad := fd.Gradient(nil, loss, theta, &fd.Settings{Formula: fd.Central, Step: 1e-6})
		gradClose(t, c.name, grad, ngrad)
	}
}

func TestSampleBatch(t *testing.T) {

	rng := rand.New(rand.NewSource(5))
	tg := timeGrid(100, 0.001)
	stim := randStim(rng, len(tg), 3)

	m := NewModel(refractory(glm.Exponential))
	b, err := m.SampleBatch(rng, tg, stim, 4)
	if err != nil {
		t.Fatal(err)
	}

	nt, nc := b.Pass.R.Dims()
	if nt != len(tg) || nc != 12 {
		t.Fatalf("batch rate is %d x %d, want %d x 12", nt, nc, len(tg))
	}

	// The rate of the batch is the rate of the simulation.
	for j := 0; j < nt; j++ {
		for c := 0; c < nc; c++ {
			if math.Abs(b.Pass.R.At(j, c)-b.Sample.R.At(j, c)) > 1e-8*(1+b.Sample.R.At(j, c)) {
				t.Fatalf("bin %d cell %d: rate %f, simulated rate %f", j, c, b.Pass.R.At(j, c), b.Sample.R.At(j, c))
			}
		}
	}
}
