package mmdglm

import (
	"fmt"
	"log"

	"github.com/kshedden/pointglm/glm"
	"github.com/kshedden/pointglm/mmd"
	"github.com/kshedden/pointglm/optim"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MetricsFunc computes diagnostics during training.  The observed spikes are
// compared with the spikes simulated in the current epoch, which are nil for
// likelihood training.  Metrics never affect the training itself.
type MetricsFunc func(m *Model, t []float64, observed, simulated *glm.SpikeMask) map[string]float64

// History records the course of training.
type History struct {

	// The loss at every epoch
	Loss []float64

	// The negative log-likelihood at every epoch, if it is part of the loss
	NLL []float64

	// The metrics, recorded every NMetrics epochs.  Nil if no metrics
	// function was given.
	Metrics map[string][]float64
}

func (h *History) record(met map[string]float64) {
	if h.Metrics == nil {
		h.Metrics = make(map[string][]float64)
	}
	for k, v := range met {
		h.Metrics[k] = append(h.Metrics[k], v)
	}
}

// MMDConfig configures training by maximum mean discrepancy.
type MMDConfig struct {

	// Exactly one of Phi and Kernel must be set.
	Phi    mmd.FeatureMap
	Kernel mmd.Kernel

	// The stimulus, nil if there is none
	Stim *mat.Dense

	// If true, the negative log-likelihood of the observed spikes is added
	// to the loss.
	LogLikelihood bool

	// The weight of the MMD term in the loss
	LamMMD float64

	// Use the biased estimator of the MMD
	Biased bool

	// If positive, gradient elements are clipped to [-Clip, Clip].
	Clip float64

	// The number of epochs
	NumEpochs int

	// The number of trials simulated per stimulus column in every epoch
	NBatch int

	// Metrics are computed every NMetrics epochs.  The entry "mmd" is added
	// to them: the value of the estimator selected by Biased, for both the
	// feature and kernel forms, before scaling by LamMMD.
	Metrics  MetricsFunc
	NMetrics int

	// Show a progress bar
	Verbose bool

	// If not nil, the loss is logged at every epoch
	Log *log.Logger

	// The random source for simulation, nil for the global source
	Rand *rand.Rand
}

// DefaultMMDConfig returns a configuration without a feature map or kernel,
// which the caller must supply.
func DefaultMMDConfig() *MMDConfig {
	return &MMDConfig{
		LamMMD:    1,
		NumEpochs: 20,
		NBatch:    100,
		NMetrics:  25,
	}
}

func checkTraining(m *Model, opt optim.Optimizer, numEpochs, nMetrics int) error {
	if opt == nil {
		return fmt.Errorf("%w: no optimizer", glm.ErrConfig)
	}
	if len(opt.Params()) != m.glm.NumParams() {
		return fmt.Errorf("%w: optimizer holds %d parameters, model has %d", glm.ErrShape, len(opt.Params()), m.glm.NumParams())
	}
	if numEpochs < 0 {
		return fmt.Errorf("%w: %d epochs", glm.ErrConfig, numEpochs)
	}
	if nMetrics < 1 {
		return fmt.Errorf("%w: metrics every %d epochs", glm.ErrConfig, nMetrics)
	}
	return nil
}

// addScaled adds alpha*x to the matrix y, allocating y if it is nil.
func addScaled(y *mat.Dense, alpha float64, x *mat.Dense) *mat.Dense {
	var sx mat.Dense
	sx.Scale(alpha, x)
	if y == nil {
		return &sx
	}
	y.Add(y, &sx)
	return y
}

// discrepancy computes the MMD between the observed and simulated rates and
// its gradients with respect to both.
func (config *MMDConfig) discrepancy(t []float64, rd, rf *mat.Dense) (float64, *mat.Dense, *mat.Dense) {

	if config.Phi != nil {
		phiD := config.Phi.Features(t, rd)
		phiF := config.Phi.Features(t, rf)
		value, gd, gf := mmd.FeatureMMD(phiD, phiF, config.Biased)
		return value, config.Phi.Backward(t, rd, gd), config.Phi.Backward(t, rf, gf)
	}

	k := config.Kernel
	kdd := k.Gram(t, rd, rd)
	kff := k.Gram(t, rf, rf)
	kdf := k.Gram(t, rd, rf)
	value, ddd, dff, ddf := mmd.KernelMMD(kdd, kff, kdf, config.Biased)

	// Gram matrices of a sample with itself depend on it through both arguments.
	d1, d2 := k.Backward(t, rd, rd, ddd)
	dd := addScaled(d1, 1, d2)
	f1, f2 := k.Backward(t, rf, rf, dff)
	df := addScaled(f1, 1, f2)
	c1, c2 := k.Backward(t, rd, rf, ddf)
	dd = addScaled(dd, 1, c1)
	df = addScaled(df, 1, c2)

	return value, dd, df
}

// TrainMMD fits the model to observed spikes by minimizing the MMD between
// the observed rate paths and rate paths simulated from the current
// parameters, optionally adding the negative log-likelihood.  The optimizer
// owns the parameters; they are applied to the model after every step.
func (m *Model) TrainMMD(t []float64, mask *glm.SpikeMask, opt optim.Optimizer, config *MMDConfig) (*History, error) {

	if config == nil {
		config = DefaultMMDConfig()
	}
	if (config.Phi == nil) == (config.Kernel == nil) {
		return nil, fmt.Errorf("%w: exactly one of a feature map and a kernel is needed", glm.ErrConfig)
	}
	if config.NBatch < 2 {
		return nil, fmt.Errorf("%w: batches of %d trials", glm.ErrConfig, config.NBatch)
	}
	if err := checkTraining(m, opt, config.NumEpochs, config.NMetrics); err != nil {
		return nil, err
	}

	d, err := m.glm.Design(t, mask, config.Stim)
	if err != nil {
		return nil, err
	}
	if _, nd := mask.Dims(); nd < 2 {
		return nil, fmt.Errorf("%w: %d observed trials", glm.ErrShape, nd)
	}

	if err := m.Apply(opt.Params()); err != nil {
		return nil, err
	}

	var bar *progressbar.ProgressBar
	if config.Verbose {
		bar = progressbar.New(config.NumEpochs)
	}

	hist := &History{}
	for epoch := 0; epoch < config.NumEpochs; epoch++ {

		opt.ZeroGrad()
		grad := opt.Grad()

		pd := m.Forward(d)
		batch, err := m.SampleBatch(config.Rand, t, config.Stim, config.NBatch)
		if err != nil {
			return hist, err
		}

		value, drd, drf := config.discrepancy(t, pd.R, batch.Pass.R)
		loss := config.LamMMD * value
		drd.Scale(config.LamMMD, drd)
		drf.Scale(config.LamMMD, drf)

		if config.LogLikelihood {
			nll, dnll := negLogLike(pd)
			hist.NLL = append(hist.NLL, nll)
			loss += nll
			drd.Add(drd, dnll)
		}

		floats.Add(grad, pd.Backward(drd))
		floats.Add(grad, batch.Pass.Backward(drf))

		if config.Clip > 0 {
			optim.ClipValue(grad, config.Clip)
		}

		if config.Metrics != nil && epoch%config.NMetrics == 0 {
			met := config.Metrics(m, t, mask, batch.Sample.Spikes)
			if met == nil {
				met = make(map[string]float64)
			}
			met["mmd"] = value
			hist.record(met)
		}

		opt.Step()
		if err := m.Apply(opt.Params()); err != nil {
			return hist, err
		}

		hist.Loss = append(hist.Loss, loss)

		if config.Log != nil {
			config.Log.Printf("Epoch %d: loss %f, mmd %f\n", epoch, loss, value)
		}
		if bar != nil {
			bar.Describe(fmt.Sprintf("loss %.4f", loss))
			bar.Add(1)
		}
	}

	return hist, nil
}

// LikelihoodConfig configures training by the likelihood alone.
type LikelihoodConfig struct {

	// The stimulus, nil if there is none
	Stim *mat.Dense

	// The number of epochs
	NumEpochs int

	// If true, AlphaL2 times the sum of squared history coefficients is
	// added to the loss.
	L2      bool
	AlphaL2 float64

	// Metrics are computed every NMetrics epochs
	Metrics  MetricsFunc
	NMetrics int

	// Show a progress bar
	Verbose bool

	// If not nil, the loss is logged at every epoch
	Log *log.Logger
}

// DefaultLikelihoodConfig returns the default likelihood training configuration.
func DefaultLikelihoodConfig() *LikelihoodConfig {
	return &LikelihoodConfig{
		NumEpochs: 20,
		AlphaL2:   1,
		NMetrics:  10,
	}
}

// TrainLikelihood minimizes the negative log-likelihood of the observed
// spikes by gradient descent.  Nothing is simulated.  With the L2 penalty, the
// unpenalized negative log-likelihood is recorded as the metric "nll".
func (m *Model) TrainLikelihood(t []float64, mask *glm.SpikeMask, opt optim.Optimizer, config *LikelihoodConfig) (*History, error) {

	if config == nil {
		config = DefaultLikelihoodConfig()
	}
	if err := checkTraining(m, opt, config.NumEpochs, config.NMetrics); err != nil {
		return nil, err
	}

	d, err := m.glm.Design(t, mask, config.Stim)
	if err != nil {
		return nil, err
	}

	if err := m.Apply(opt.Params()); err != nil {
		return nil, err
	}

	// The history coefficients are at the end of the parameter vector.
	neta := len(m.view.EtaCoefs)
	np := m.glm.NumParams()

	var bar *progressbar.ProgressBar
	if config.Verbose {
		bar = progressbar.New(config.NumEpochs)
	}

	hist := &History{}
	for epoch := 0; epoch < config.NumEpochs; epoch++ {

		opt.ZeroGrad()
		grad := opt.Grad()

		nll, g := m.NegLogLike(d)
		floats.Add(grad, g)
		loss := nll

		if config.L2 && neta > 0 {
			eta := m.view.EtaCoefs
			loss += config.AlphaL2 * floats.Dot(eta, eta)
			floats.AddScaled(grad[np-neta:], 2*config.AlphaL2, eta)
		}

		if epoch%config.NMetrics == 0 && (config.Metrics != nil || config.L2) {
			var met map[string]float64
			if config.Metrics != nil {
				met = config.Metrics(m, t, mask, nil)
			}
			if met == nil {
				met = make(map[string]float64)
			}
			if config.L2 {
				met["nll"] = nll
			}
			hist.record(met)
		}

		opt.Step()
		if err := m.Apply(opt.Params()); err != nil {
			return hist, err
		}

		hist.Loss = append(hist.Loss, loss)

		if config.Log != nil {
			config.Log.Printf("Epoch %d: loss %f\n", epoch, loss)
		}
		if bar != nil {
			bar.Describe(fmt.Sprintf("loss %.4f", loss))
			bar.Add(1)
		}
	}

	return hist, nil
}
