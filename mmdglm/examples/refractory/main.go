/*
This example simulates a neuron driven by a white-noise stimulus, with a
strong refractory period after every spike.

The true model is first recovered by maximum likelihood using Newton's
method.  A second model, started from a history filter without any
refractoriness, is then trained by matching the rate paths of observed and
simulated spike trains through the maximum mean discrepancy, with the
likelihood added to the loss.  Spike count statistics are tracked during
training, and the training curves and spike rasters are plotted.
*/

package main

import (
	"fmt"
	"log"
	"math"
	"os"

	"github.com/kshedden/pointglm/basis"
	"github.com/kshedden/pointglm/glm"
	"github.com/kshedden/pointglm/mmd"
	"github.com/kshedden/pointglm/mmdglm"
	"github.com/kshedden/pointglm/optim"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot/vg"
)

const (
	dt      = 0.001
	nt      = 2000
	ntrials = 50
)

var (
	taus = []float64{0.005, 0.02, 0.1}
)

func grid() []float64 {
	t := make([]float64, nt)
	for i := range t {
		t[i] = float64(i) * dt
	}
	return t
}

func stimulus(rng *rand.Rand) *mat.Dense {
	dist := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	stim := mat.NewDense(nt, 1, nil)
	for i := 0; i < nt; i++ {
		stim.Set(i, 0, dist.Rand())
	}
	return stim
}

func newModel(u0 float64, eta []float64) *glm.GLM {
	g, err := glm.New(&glm.Config{
		U0:    u0,
		Kappa: basis.NewExponential([]float64{0.01}, []float64{0.3}),
		Eta:   basis.NewExponential(taus, eta),
	})
	if err != nil {
		panic(err)
	}
	return g
}

func fit(t []float64, spikes *glm.SpikeMask, stim *mat.Dense) {

	g := newModel(math.Log(10), []float64{0, 0, 0})

	config := glm.DefaultNewtonConfig()
	config.Log = log.New(os.Stderr, "", 0)
	rslt, err := g.Fit(t, spikes, stim, config)
	if err != nil {
		panic(err)
	}

	fmt.Println(rslt.Summary().String())
}

func train(t []float64, spikes *glm.SpikeMask, stim *mat.Dense, rng *rand.Rand) *mmdglm.History {

	m := mmdglm.NewModel(newModel(math.Log(20), []float64{0, 0, 0}))

	ac := optim.DefaultAdamConfig()
	ac.LR = 0.02
	opt := optim.NewAdam(m.Params(), ac)

	config := mmdglm.DefaultMMDConfig()
	config.Kernel = mmd.Gaussian{Sigma: 10}
	config.Stim = stim
	config.LogLikelihood = true
	config.LamMMD = 100
	config.NumEpochs = 100
	config.NBatch = 20
	config.NMetrics = 5
	config.Clip = 1000
	config.Metrics = mmdglm.SpikeCountMetrics(stim)
	config.Verbose = true
	config.Rand = rng

	hist, err := m.TrainMMD(t, spikes, opt, config)
	if err != nil {
		panic(err)
	}

	fmt.Printf("\nTrained parameters:\n")
	v := m.View()
	fmt.Printf("b:     %8.4f\n", v.B)
	fmt.Printf("kappa: %v\n", v.KappaCoefs)
	fmt.Printf("eta:   %v\n", v.EtaCoefs)

	// Save the trained model so it can be reloaded with glm.ReadFile.
	if err := m.GLM().SaveFile("trained.gob.gz"); err != nil {
		panic(err)
	}

	return hist
}

func plots(t []float64, spikes *glm.SpikeMask, hist *mmdglm.History) {

	hp := mmdglm.NewHistoryPlotter().Width(6).Height(4)
	hp.AddHistory(hist, "mmd+nll")
	hp.Add(hist.Metrics["count_mean_sim"], 5, "mean count (sim)")
	hp.Add(hist.Metrics["count_mean_obs"], 5, "mean count (obs)")
	if err := hp.Plot().Save("history.png"); err != nil {
		panic(err)
	}

	plt, err := mmdglm.SpikeRaster(t, spikes, "Observed spikes")
	if err != nil {
		panic(err)
	}
	if err := plt.Save(6*vg.Inch, 4*vg.Inch, "raster.png"); err != nil {
		panic(err)
	}
}

func main() {

	rng := rand.New(rand.NewSource(4325))
	t := grid()
	stim := stimulus(rng)

	truth := newModel(math.Log(20), []float64{-10, -2, 0.5})
	s, err := truth.Sample(rng, t, stim, ntrials)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Simulated %d spikes in %d trials\n\n", s.Spikes.Count(), ntrials)

	fit(t, s.Spikes, stim)
	hist := train(t, s.Spikes, stim, rng)
	plots(t, s.Spikes, hist)
}
