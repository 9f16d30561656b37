package glm

import (
	"fmt"
	"math"
)

// NoiseType is the observation model used for the binned spike counts.
type NoiseType uint8

// Poisson and Bernoulli are the supported noise models.
const (
	Poisson NoiseType = iota
	Bernoulli
)

// BinFunc evaluates a per-bin quantity.  The arguments are the spike
// indicator, the rate, its logarithm and the bin width.
type BinFunc func(spike bool, r, logr, dt float64) float64

// Noise represents the likelihood of a single time bin as a function of
// the rate in that bin.
type Noise struct {

	// The name of the noise model
	Name string

	// The numeric code for the noise model
	TypeCode NoiseType

	// The log-likelihood of one bin
	LogLike BinFunc

	// The first derivative of the bin log-likelihood in the rate
	Deriv BinFunc

	// The second derivative of the bin log-likelihood in the rate
	Deriv2 BinFunc
}

// NewNoise returns the noise model for the given type code.
func NewNoise(noise NoiseType) *Noise {

	switch noise {
	case Poisson:
		return &poissonNoise
	case Bernoulli:
		return &bernoulliNoise
	default:
		msg := fmt.Sprintf("Noise unknown: %v\n", noise)
		panic(msg)
	}
}

// ParseNoise returns the type code for a noise model name, either
// "poisson" or "bernoulli".
func ParseNoise(name string) (NoiseType, error) {

	switch name {
	case "poisson":
		return Poisson, nil
	case "bernoulli":
		return Bernoulli, nil
	default:
		return 0, fmt.Errorf("%w: unknown noise model %q", ErrConfig, name)
	}
}

// The Poisson bin log-likelihood is log(r) - r*dt in spiking bins and
// -r*dt otherwise.
var poissonNoise = Noise{
	Name:     "Poisson",
	TypeCode: Poisson,
	LogLike: func(spike bool, r, logr, dt float64) float64 {
		if spike {
			return logr - dt*r
		}
		return -dt * r
	},
	Deriv: func(spike bool, r, logr, dt float64) float64 {
		if spike {
			return 1/r - dt
		}
		return -dt
	},
	Deriv2: func(spike bool, r, logr, dt float64) float64 {
		if spike {
			return -1 / (r * r)
		}
		return 0
	},
}

// The Bernoulli bin log-likelihood is log(1 - exp(-r*dt)) in spiking
// bins and -r*dt otherwise.
var bernoulliNoise = Noise{
	Name:     "Bernoulli",
	TypeCode: Bernoulli,
	LogLike: func(spike bool, r, logr, dt float64) float64 {
		if spike {
			return math.Log(-math.Expm1(-r * dt))
		}
		return -dt * r
	},
	Deriv: func(spike bool, r, logr, dt float64) float64 {
		if spike {
			return dt / math.Expm1(r*dt)
		}
		return -dt
	},
	Deriv2: func(spike bool, r, logr, dt float64) float64 {
		if spike {
			a := r * dt
			return -dt * dt / (math.Expm1(a) * -math.Expm1(-a))
		}
		return 0
	},
}
