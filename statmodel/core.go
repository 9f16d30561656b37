// Package statmodel holds the pieces shared by fitted models: a minimal interface for
// models whose log-likelihood can be differentiated, and a results value that derives
// standard errors, Z-scores and p-values from the observed information.
package statmodel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// RegFitter is a model whose log-likelihood, score and Hessian can be evaluated at a
// flat parameter vector.
type RegFitter interface {

	// Number of parameters in the model.
	NumParams() int

	// Number of observations (time bins times cells for a point process).
	NumObs() int

	// The log-likelihood function
	LogLike(params []float64) float64

	// The score vector
	Score(params, score []float64)

	// The Hessian matrix of the log-likelihood, vectorized row-major
	Hessian(params, hess []float64)
}

// BaseResultser is a fitted model that can produce results.
type BaseResultser interface {
	Model() RegFitter
	Names() []string
	LogLike() float64
	Params() []float64
	VCov() []float64
	StdErr() []float64
	ZScores() []float64
	PValues() []float64
}

// BaseResults contains the results after fitting a model to data.
type BaseResults struct {
	model   RegFitter
	loglike float64
	params  []float64
	xnames  []string
	vcov    []float64
	stderr  []float64
	zscores []float64
	pvalues []float64
}

// NewBaseResults returns a BaseResults corresponding to the given fitted model.
// vcov may be nil, in which case no inferential statistics are available.
func NewBaseResults(model RegFitter, loglike float64, params []float64, xnames []string, vcov []float64) BaseResults {

	if len(xnames) != len(params) {
		msg := fmt.Sprintf("statmodel: %d names for %d parameters", len(xnames), len(params))
		panic(msg)
	}

	return BaseResults{
		model:   model,
		loglike: loglike,
		params:  params,
		xnames:  xnames,
		vcov:    vcov,
	}
}

// Model produces the model value used to produce the results.
func (rslt *BaseResults) Model() RegFitter {
	return rslt.model
}

// Names returns the parameter names.
func (rslt *BaseResults) Names() []string {
	return rslt.xnames
}

// Params returns the point estimates.
func (rslt *BaseResults) Params() []float64 {
	return rslt.params
}

// VCov returns the sampling covariance matrix of the estimates, vectorized row-major.
func (rslt *BaseResults) VCov() []float64 {
	return rslt.vcov
}

// LogLike returns the log-likelihood at the estimates.
func (rslt *BaseResults) LogLike() float64 {
	return rslt.loglike
}

// StdErr returns the standard errors of the estimates.
func (rslt *BaseResults) StdErr() []float64 {

	if rslt.vcov == nil {
		return nil
	}
	if rslt.stderr != nil {
		return rslt.stderr
	}

	p := len(rslt.params)
	rslt.stderr = make([]float64, p)
	for i := range rslt.stderr {
		rslt.stderr[i] = math.Sqrt(rslt.vcov[i*p+i])
	}

	return rslt.stderr
}

// ZScores returns the estimates divided by their standard errors.
func (rslt *BaseResults) ZScores() []float64 {

	if rslt.vcov == nil {
		return nil
	}
	if rslt.zscores != nil {
		return rslt.zscores
	}

	se := rslt.StdErr()
	rslt.zscores = make([]float64, len(se))
	for i, s := range se {
		rslt.zscores[i] = rslt.params[i] / s
	}

	return rslt.zscores
}

// PValues returns two-sided p-values for the null hypothesis that each parameter
// is zero, using the normal approximation.
func (rslt *BaseResults) PValues() []float64 {

	if rslt.vcov == nil {
		return nil
	}
	if rslt.pvalues != nil {
		return rslt.pvalues
	}

	z := rslt.ZScores()
	rslt.pvalues = make([]float64, len(z))
	for i := range z {
		rslt.pvalues[i] = 2 * distuv.UnitNormal.CDF(-math.Abs(z[i]))
	}

	return rslt.pvalues
}

// GetVcov returns the inverse of the observed information at the given parameters.
func GetVcov(model RegFitter, params []float64) ([]float64, error) {

	p := model.NumParams()
	hess := make([]float64, p*p)
	model.Hessian(params, hess)

	// The information is the negative Hessian of the log-likelihood.
	info := mat.NewDense(p, p, hess)
	info.Scale(-1, info)

	vcov := make([]float64, p*p)
	vm := mat.NewDense(p, p, vcov)
	if err := vm.Inverse(info); err != nil {
		return nil, fmt.Errorf("statmodel: cannot invert the information matrix: %w", err)
	}

	return vcov, nil
}
