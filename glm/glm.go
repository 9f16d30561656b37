package glm

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/kshedden/pointglm/basis"
)

var (
	// ErrConfig is returned for an invalid model or training configuration.
	ErrConfig = errors.New("glm: invalid configuration")

	// ErrShape is returned when the time grid, stimulus, spike mask or
	// parameter vector have inconsistent shapes.
	ErrShape = errors.New("glm: inconsistent shapes")

	// ErrConvergence is returned when the optimizer stops without converging.
	ErrConvergence = errors.New("glm: optimization did not converge")
)

// Config specifies a point-process GLM.
type Config struct {

	// The baseline value of the linear predictor
	U0 float64

	// The stimulus filter, may be nil
	Kappa basis.StimulusFilter

	// The spike-history filter, may be nil
	Eta basis.HistoryFilter

	// Maps the linear predictor to the rate
	Nonlinearity NonlinearityType

	// The observation model for the binned spikes
	Noise NoiseType

	// If not nil, progress messages are written here
	Log *log.Logger
}

// DefaultConfig returns a configuration for a homogeneous process with unit
// baseline rate, an exponential non-linearity and Poisson noise.
func DefaultConfig() *Config {
	return &Config{
		Nonlinearity: Exponential,
		Noise:        Poisson,
	}
}

// GLM is a point-process generalized linear model.  The linear predictor in
// each time bin is u0 plus the causal stimulus drive plus the accumulated
// responses of the history filter to earlier spikes of the same cell.
type GLM struct {
	u0    float64
	kappa basis.StimulusFilter
	eta   basis.HistoryFilter

	nl    *Nonlinearity
	noise *Noise

	log *log.Logger
}

// New returns a GLM built from the given configuration.  The filters are
// copied, so later changes to the configuration do not affect the model.
func New(config *Config) (*GLM, error) {

	if config == nil {
		config = DefaultConfig()
	}

	if config.Nonlinearity > Softplus {
		return nil, fmt.Errorf("%w: non-linearity code %d", ErrConfig, config.Nonlinearity)
	}
	if config.Noise > Bernoulli {
		return nil, fmt.Errorf("%w: noise code %d", ErrConfig, config.Noise)
	}

	g := &GLM{
		u0:    config.U0,
		nl:    NewNonlinearity(config.Nonlinearity),
		noise: NewNoise(config.Noise),
		log:   config.Log,
	}
	if config.Kappa != nil {
		g.kappa = config.Kappa.CloneStimulus()
	}
	if config.Eta != nil {
		g.eta = config.Eta.CloneHistory()
	}

	return g, nil
}

// U0 returns the baseline value of the linear predictor.
func (g *GLM) U0() float64 {
	return g.u0
}

// R0 returns exp(u0), the baseline rate for the exponential non-linearity.
func (g *GLM) R0() float64 {
	return math.Exp(g.u0)
}

// Kappa returns the stimulus filter owned by the model.
func (g *GLM) Kappa() basis.StimulusFilter {
	return g.kappa
}

// Eta returns the spike-history filter owned by the model.
func (g *GLM) Eta() basis.HistoryFilter {
	return g.eta
}

// Nonlinearity returns the non-linearity.
func (g *GLM) Nonlinearity() *Nonlinearity {
	return g.nl
}

// Noise returns the noise model.
func (g *GLM) Noise() *Noise {
	return g.noise
}

func (g *GLM) nkappa() int {
	if g.kappa == nil {
		return 0
	}
	return g.kappa.NBasis()
}

func (g *GLM) neta() int {
	if g.eta == nil {
		return 0
	}
	return g.eta.NBasis()
}

// NumParams returns the length of the parameter vector.
func (g *GLM) NumParams() int {
	return 1 + g.nkappa() + g.neta()
}

// ParamNames returns a label for each position of the parameter vector.
func (g *GLM) ParamNames() []string {
	names := []string{"u0"}
	for k := 0; k < g.nkappa(); k++ {
		names = append(names, fmt.Sprintf("kappa[%d]", k))
	}
	for k := 0; k < g.neta(); k++ {
		names = append(names, fmt.Sprintf("eta[%d]", k))
	}
	return names
}

// Params returns the parameter vector [u0, kappa coefficients, eta coefficients].
func (g *GLM) Params() []float64 {
	theta := make([]float64, 1, g.NumParams())
	theta[0] = g.u0
	if g.kappa != nil {
		theta = append(theta, g.kappa.Coefs()...)
	}
	if g.eta != nil {
		theta = append(theta, g.eta.Coefs()...)
	}
	return theta
}

// SetParams sets the model parameters from a vector laid out as in Params.
func (g *GLM) SetParams(theta []float64) error {

	if len(theta) != g.NumParams() {
		return fmt.Errorf("%w: %d parameters for a model with %d", ErrShape, len(theta), g.NumParams())
	}

	nk := g.nkappa()
	g.u0 = theta[0]
	if g.kappa != nil {
		g.kappa.SetCoefs(theta[1 : 1+nk])
	}
	if g.eta != nil {
		g.eta.SetCoefs(theta[1+nk:])
	}

	return nil
}

// Clone returns a deep copy of the model.
func (g *GLM) Clone() *GLM {
	c := &GLM{
		u0:    g.u0,
		nl:    g.nl,
		noise: g.noise,
		log:   g.log,
	}
	if g.kappa != nil {
		c.kappa = g.kappa.CloneStimulus()
	}
	if g.eta != nil {
		c.eta = g.eta.CloneHistory()
	}
	return c
}

func (g *GLM) logf(format string, args ...interface{}) {
	if g.log != nil {
		g.log.Printf(format, args...)
	}
}

// resize returns a float64 slice of length n, using the initial
// subslice of x if it is big enough.
func resize(x []float64, n int) []float64 {
	if cap(x) >= n {
		return x[0:n]
	}
	return make([]float64, n)
}

// zero sets all elements of the slice to 0
func zero(x []float64) {
	for i := range x {
		x[i] = 0
	}
}
