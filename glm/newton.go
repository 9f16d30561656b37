package glm

import (
	"fmt"
	"log"
	"math"

	"github.com/kshedden/pointglm/statmodel"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// NewtonConfig controls maximum likelihood fitting.
type NewtonConfig struct {

	// Settings for gonum's optimize package.  The Recorder field is
	// replaced during fitting.
	Settings *optimize.Settings

	// The optimization method, Newton's method by default.
	Method optimize.Method

	// Starting values, if nil the current parameters of the model are used.
	Start []float64

	// The gradient tolerance per observation.  Unless Settings gives a
	// GradientThreshold, the optimizer stops when the largest element of
	// the score is below GradTol times the number of observations.
	GradTol float64

	// If the optimizer fails at a point where the Newton decrement
	// g' H^-1 g is below DecrementTol*(1 + |F|), the point is accepted as
	// the maximum.  The log-likelihood is a sum over all bins, and near
	// the maximum its changes are lost in rounding before the gradient
	// reaches zero.
	DecrementTol float64

	// If not nil, the objective value is logged at every major iteration.
	Log *log.Logger
}

// DefaultNewtonConfig returns the default fitting configuration.
func DefaultNewtonConfig() *NewtonConfig {
	return &NewtonConfig{
		Settings: &optimize.Settings{
			MajorIterations: 100,
		},
		Method:       &optimize.Newton{},
		GradTol:      1e-8,
		DecrementTol: 1e-10,
	}
}

// Objective binds a model to a fixed design, giving a regression model with
// a log-likelihood, score and Hessian in the parameters alone.
type Objective struct {
	model  *GLM
	design *Design
}

// NewObjective returns the objective for the given model and design.
func NewObjective(g *GLM, d *Design) *Objective {
	return &Objective{model: g, design: d}
}

// NumParams returns the number of model parameters.
func (obj *Objective) NumParams() int {
	return obj.model.NumParams()
}

// NumObs returns the number of (bin, cell) observations.
func (obj *Objective) NumObs() int {
	return obj.design.NumObs()
}

// LogLike returns the log-likelihood at params.
func (obj *Objective) LogLike(params []float64) float64 {
	return obj.model.LogLike(params, obj.design)
}

// Score places the score at params into score.
func (obj *Objective) Score(params, score []float64) {
	obj.model.Score(params, obj.design, score)
}

// Hessian places the Hessian at params into hess.
func (obj *Objective) Hessian(params, hess []float64) {
	obj.model.Hessian(params, obj.design, hess)
}

// decrement returns the Newton decrement g' (-H)^-1 g of the log-likelihood
// at params, which is twice the increase predicted by a full Newton step.  It
// is +Inf if the negative Hessian is not positive definite.
func (obj *Objective) decrement(params []float64) float64 {

	p := obj.NumParams()
	score := make([]float64, p)
	obj.Score(params, score)
	hess := make([]float64, p*p)
	obj.Hessian(params, hess)

	nh := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			nh.SetSym(i, j, -hess[i*p+j])
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(nh); !ok {
		return math.Inf(1)
	}

	g := mat.NewVecDense(p, score)
	var step mat.VecDense
	if err := chol.SolveVecTo(&step, g); err != nil {
		return math.Inf(1)
	}

	return mat.Dot(g, &step)
}

// FitResults describes a maximum likelihood fit.
type FitResults struct {
	statmodel.BaseResults

	// The negative log-likelihood at the start and after every major iteration
	Trace []float64

	// The result returned by the optimizer
	Optimize *optimize.Result

	notes []string
}

// traceRecorder collects the objective value at every major iteration.
type traceRecorder struct {
	trace []float64
	log   *log.Logger
}

func (rec *traceRecorder) Init() error {
	return nil
}

func (rec *traceRecorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op != optimize.MajorIteration {
		return nil
	}
	rec.trace = append(rec.trace, loc.F)
	if rec.log != nil {
		rec.log.Printf("Newton iteration %d: negative log-likelihood %f\n", stats.MajorIterations, loc.F)
	}
	return nil
}

// Fit estimates the parameters by maximum likelihood.  The design matrix is
// built once from the observed spikes and the log-likelihood is maximized
// with its exact gradient and Hessian.  The fitted parameters are written
// back into the model.  If the optimizer stops without converging, the
// partial results are returned together with an error wrapping
// ErrConvergence.
func (g *GLM) Fit(t []float64, mask *SpikeMask, stim *mat.Dense, config *NewtonConfig) (*FitResults, error) {

	if config == nil {
		config = DefaultNewtonConfig()
	}

	d, err := g.Design(t, mask, stim)
	if err != nil {
		return nil, err
	}
	obj := NewObjective(g, d)
	p := obj.NumParams()

	start := g.Params()
	if config.Start != nil {
		if len(config.Start) != p {
			return nil, fmt.Errorf("%w: %d starting values for %d parameters", ErrShape, len(config.Start), p)
		}
		start = append([]float64(nil), config.Start...)
	}

	hbuf := make([]float64, p*p)
	prob := optimize.Problem{
		Func: func(x []float64) float64 {
			return -obj.LogLike(x)
		},
		Grad: func(grad, x []float64) {
			obj.Score(x, grad)
			floats.Scale(-1, grad)
		},
		Hess: func(hess *mat.SymDense, x []float64) {
			obj.Hessian(x, hbuf)
			for i := 0; i < p; i++ {
				for j := i; j < p; j++ {
					hess.SetSym(i, j, -hbuf[i*p+j])
				}
			}
		},
	}

	var settings optimize.Settings
	if config.Settings != nil {
		settings = *config.Settings
	}
	if settings.GradientThreshold == 0 && config.GradTol > 0 {
		settings.GradientThreshold = config.GradTol * float64(obj.NumObs())
	}
	rec := &traceRecorder{log: config.Log}
	settings.Recorder = rec

	method := config.Method
	if method == nil {
		method = &optimize.Newton{}
	}

	if config.Log != nil {
		config.Log.Printf("Fitting %d parameters to %d observations\n", p, obj.NumObs())
	}

	optrslt, err := optimize.Minimize(prob, start, &settings, method)
	if optrslt == nil {
		return nil, fmt.Errorf("%w: %v", ErrConvergence, err)
	}
	if err == nil {
		err = optrslt.Status.Err()
	}

	var notes []string
	if err != nil && config.DecrementTol > 0 {
		if dec := obj.decrement(optrslt.X); dec <= config.DecrementTol*(1+math.Abs(optrslt.F)) {
			msg := fmt.Sprintf("Optimizer stopped (%v) at Newton decrement %.2g", err, dec)
			if config.Log != nil {
				config.Log.Println(msg)
			}
			notes = append(notes, msg)
			err = nil
		}
	}

	params := append([]float64(nil), optrslt.X...)
	if serr := g.SetParams(params); serr != nil {
		return nil, serr
	}

	vcov, verr := statmodel.GetVcov(obj, params)
	if verr != nil && config.Log != nil {
		config.Log.Printf("No standard errors: %v\n", verr)
	}

	results := &FitResults{
		BaseResults: statmodel.NewBaseResults(obj, -optrslt.F, params, g.ParamNames(), vcov),
		Trace:       rec.trace,
		Optimize:    optrslt,
		notes:       notes,
	}

	if err != nil {
		return results, fmt.Errorf("%w: %v", ErrConvergence, err)
	}

	return results, nil
}

// FitSummary summarizes a maximum likelihood fit.
type FitSummary struct {
	results *FitResults

	// Messages that are appended to the table
	messages []string
}

// Summary returns a summary of the fit, which is printed with String.
func (rslt *FitResults) Summary() *FitSummary {
	return &FitSummary{results: rslt, messages: rslt.notes}
}

// String returns a table of the estimates and their standard errors.
func (fs *FitSummary) String() string {

	rslt := fs.results
	obj := rslt.Model().(*Objective)

	top := []string{
		fmt.Sprintf("Non-linearity: %s", obj.model.nl.Name),
		fmt.Sprintf("Noise:         %s", obj.model.noise.Name),
		fmt.Sprintf("Num obs:       %d", obj.NumObs()),
		fmt.Sprintf("Log-like:      %.4f", rslt.LogLike()),
		fmt.Sprintf("Iterations:    %d", rslt.Optimize.Stats.MajorIterations),
		fmt.Sprintf("Status:        %v", rslt.Optimize.Status),
	}

	sum := statmodel.CoefTable(rslt, "Point process GLM maximum likelihood fit", top)
	sum.Msg = append(sum.Msg, fs.messages...)

	return sum.String()
}
