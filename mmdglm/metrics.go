package mmdglm

import (
	"github.com/kshedden/pointglm/glm"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// spikeCounts returns the number of spikes of every cell.
func spikeCounts(mask *glm.SpikeMask) stats.Float64Data {
	_, nc := mask.Dims()
	counts := make(stats.Float64Data, nc)
	for c := range counts {
		counts[c] = float64(mask.CountCol(c))
	}
	return counts
}

// SpikeCountMetrics returns a metrics function comparing the spike counts per
// trial of the observed and simulated spikes: their means and variances, and
// the Fano factor of the simulated counts.  During likelihood training there
// are no simulated spikes, and the mean count expected under the model on the
// observed spikes is reported instead.
func SpikeCountMetrics(stim *mat.Dense) MetricsFunc {

	return func(m *Model, t []float64, observed, simulated *glm.SpikeMask) map[string]float64 {

		met := make(map[string]float64)

		obs := spikeCounts(observed)
		met["count_mean_obs"], _ = stats.Mean(obs)
		met["count_var_obs"], _ = stats.VarS(obs)

		if simulated != nil {
			sim := spikeCounts(simulated)
			mn, _ := stats.Mean(sim)
			va, _ := stats.VarS(sim)
			met["count_mean_sim"] = mn
			met["count_var_sim"] = va
			if mn > 0 {
				met["fano_sim"] = va / mn
			}
			return met
		}

		cd, err := m.GLM().SampleConditioned(t, observed, stim)
		if err != nil {
			return met
		}
		_, nc := observed.Dims()
		met["count_mean_model"] = mat.Sum(cd.R) * glm.Dt(t) / float64(nc)

		return met
	}
}
