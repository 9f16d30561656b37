// Package optim implements first-order optimizers for training models by
// gradient descent.
//
// An optimizer owns the parameter vector.  A training step clears the
// gradient buffer, accumulates the gradient of the loss into it, steps, and
// copies the updated parameters back into the model:
//
//	opt := optim.NewAdam(model.Params(), optim.DefaultAdamConfig())
//	for epoch := 0; epoch < n; epoch++ {
//		opt.ZeroGrad()
//		floats.Add(opt.Grad(), gradient(opt.Params()))
//		opt.Step()
//		model.Apply(opt.Params())
//	}
package optim

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Optimizer updates a parameter vector from the gradient held in its buffer.
type Optimizer interface {

	// ZeroGrad clears the gradient buffer.
	ZeroGrad()

	// Grad returns the gradient buffer, which the caller fills before Step.
	Grad() []float64

	// Step updates the parameters using the current gradient.
	Step()

	// Params returns the parameters.  The slice is owned by the optimizer.
	Params() []float64

	// LR returns the learning rate.
	LR() float64
}

// SGDConfig configures stochastic gradient descent.
type SGDConfig struct {
	LR          float64
	Momentum    float64
	WeightDecay float64
}

// SGD is stochastic gradient descent with optional momentum.
type SGD struct {
	config SGDConfig
	params []float64
	grad   []float64
	vel    []float64
}

// NewSGD returns an SGD optimizer starting at a copy of params.
func NewSGD(params []float64, config SGDConfig) *SGD {
	return &SGD{
		config: config,
		params: append([]float64(nil), params...),
		grad:   make([]float64, len(params)),
		vel:    make([]float64, len(params)),
	}
}

// ZeroGrad clears the gradient buffer.
func (o *SGD) ZeroGrad() {
	zero(o.grad)
}

// Grad returns the gradient buffer.
func (o *SGD) Grad() []float64 {
	return o.grad
}

// Params returns the parameters.
func (o *SGD) Params() []float64 {
	return o.params
}

// LR returns the learning rate.
func (o *SGD) LR() float64 {
	return o.config.LR
}

// Step takes one descent step.
func (o *SGD) Step() {

	g := o.grad
	if o.config.WeightDecay != 0 {
		g = append([]float64(nil), o.grad...)
		floats.AddScaled(g, o.config.WeightDecay, o.params)
	}

	if o.config.Momentum == 0 {
		floats.AddScaled(o.params, -o.config.LR, g)
		return
	}

	floats.Scale(o.config.Momentum, o.vel)
	floats.Add(o.vel, g)
	floats.AddScaled(o.params, -o.config.LR, o.vel)
}

// AdamConfig configures the Adam optimizer.
type AdamConfig struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64
}

// DefaultAdamConfig returns the usual Adam settings with learning rate 1e-3.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LR:    1e-3,
		Beta1: 0.9,
		Beta2: 0.999,
		Eps:   1e-8,
	}
}

// Adam is the Adam optimizer, using bias-corrected estimates of the first
// and second moments of the gradient:
//
//	m = beta1*m + (1-beta1)*g
//	v = beta2*v + (1-beta2)*g^2
//	theta -= lr * mhat / (sqrt(vhat) + eps)
type Adam struct {
	config AdamConfig
	params []float64
	grad   []float64
	m      []float64
	v      []float64
	t      int
}

// NewAdam returns an Adam optimizer starting at a copy of params.
func NewAdam(params []float64, config AdamConfig) *Adam {
	n := len(params)
	return &Adam{
		config: config,
		params: append([]float64(nil), params...),
		grad:   make([]float64, n),
		m:      make([]float64, n),
		v:      make([]float64, n),
	}
}

// ZeroGrad clears the gradient buffer.
func (o *Adam) ZeroGrad() {
	zero(o.grad)
}

// Grad returns the gradient buffer.
func (o *Adam) Grad() []float64 {
	return o.grad
}

// Params returns the parameters.
func (o *Adam) Params() []float64 {
	return o.params
}

// LR returns the learning rate.
func (o *Adam) LR() float64 {
	return o.config.LR
}

// Step takes one Adam step.
func (o *Adam) Step() {

	o.t++
	c := o.config
	bias1 := 1 - math.Pow(c.Beta1, float64(o.t))
	bias2 := 1 - math.Pow(c.Beta2, float64(o.t))

	for i, g := range o.grad {
		if c.WeightDecay != 0 {
			g += c.WeightDecay * o.params[i]
		}
		o.m[i] = c.Beta1*o.m[i] + (1-c.Beta1)*g
		o.v[i] = c.Beta2*o.v[i] + (1-c.Beta2)*g*g
		mhat := o.m[i] / bias1
		vhat := o.v[i] / bias2
		o.params[i] -= c.LR * mhat / (math.Sqrt(vhat) + c.Eps)
	}
}

// ClipValue clips every element of g to [-c, c].
func ClipValue(g []float64, c float64) {
	for i, v := range g {
		switch {
		case v > c:
			g[i] = c
		case v < -c:
			g[i] = -c
		}
	}
}

func zero(x []float64) {
	for i := range x {
		x[i] = 0
	}
}
