package glm

import (
	"fmt"
	"math"
)

// VecFunc is a function with two float64 array arguments.  The first
// argument is the input and the second receives the result.
type VecFunc func([]float64, []float64)

// NonlinearityType is used to specify the function mapping the linear
// predictor to the firing rate.
type NonlinearityType uint8

// Exponential, etc. indicate the different non-linearities.
const (
	Exponential NonlinearityType = iota
	Softplus
)

// Nonlinearity maps a linear predictor to a non-negative rate.
type Nonlinearity struct {
	Name string

	TypeCode NonlinearityType

	// Eval calculates the rate from the linear predictor.
	Eval VecFunc

	// Deriv calculates the derivative of the rate with respect to the
	// linear predictor.
	Deriv VecFunc

	// Deriv2 calculates the second derivative of the rate.
	Deriv2 VecFunc

	// Log calculates the logarithm of the rate directly from the linear
	// predictor, which is exact for the exponential non-linearity.
	Log VecFunc
}

// NewNonlinearity returns the non-linearity for the given type code.
func NewNonlinearity(nl NonlinearityType) *Nonlinearity {

	switch nl {
	case Exponential:
		return &expNonlinearity
	case Softplus:
		return &softplusNonlinearity
	default:
		msg := fmt.Sprintf("Non-linearity unknown: %v\n", nl)
		panic(msg)
	}
}

// ParseNonlinearity returns the type code for a non-linearity name.
// Recognized names are "exp", "log_exp" and "softplus".
func ParseNonlinearity(name string) (NonlinearityType, error) {

	switch name {
	case "exp":
		return Exponential, nil
	case "log_exp", "softplus":
		return Softplus, nil
	default:
		return 0, fmt.Errorf("%w: unknown non-linearity %q", ErrConfig, name)
	}
}

var expNonlinearity = Nonlinearity{
	Name:     "Exp",
	TypeCode: Exponential,
	Eval:     expFunc,
	Deriv:    expFunc,
	Deriv2:   expFunc,
	Log:      idFunc,
}

var softplusNonlinearity = Nonlinearity{
	Name:     "Softplus",
	TypeCode: Softplus,
	Eval:     softplusFunc,
	Deriv:    expitFunc,
	Deriv2:   expitDerivFunc,
	Log:      logSoftplusFunc,
}

func expFunc(x []float64, y []float64) {
	for i, v := range x {
		y[i] = math.Exp(v)
	}
}

func idFunc(x []float64, y []float64) {
	copy(y, x)
}

// softplus computes log(1 + exp(x)) without overflow.
func softplus(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}

func softplusFunc(x []float64, y []float64) {
	for i, v := range x {
		y[i] = softplus(v)
	}
}

func logSoftplusFunc(x []float64, y []float64) {
	for i, v := range x {
		y[i] = math.Log(softplus(v))
	}
}

func expit(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func expitFunc(x []float64, y []float64) {
	for i, v := range x {
		y[i] = expit(v)
	}
}

func expitDerivFunc(x []float64, y []float64) {
	for i, v := range x {
		p := expit(v)
		y[i] = p * (1 - p)
	}
}
