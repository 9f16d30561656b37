/*
Package glm implements generalized linear models for point processes, such as
the spike trains of neurons recorded on a uniform time grid.

The linear predictor of cell c in time bin j is

	u[j, c] = u0 + (kappa * stim)[j-1] + sum over earlier spikes of eta(t[j] - t_spike)

where kappa is a stimulus filter and eta a spike-history filter, both taken
from package basis.  All terms are causal: the stimulus convolution is
delayed by one bin, and a spike emitted in bin j first affects bin j+1.  The
rate is r = f(u) for an exponential or softplus non-linearity f.

Models can be simulated (Sample), evaluated on observed spikes
(SampleConditioned, Design) and fitted by maximum likelihood with Newton's
method (Fit), under either a Poisson or a Bernoulli observation model for the
binned spikes.
*/
package glm
