package assess

import "fleetmind/internal/stats"

// priorFloor and priorCeil bound every stored prior and every posterior.
// Probabilities never pin to 0 or 1, so no prediction becomes
// unrecoverable.
const (
	priorFloor = 0.01
	priorCeil  = 0.99
)

// learningRate damps prior updates: the stored prior moves toward the
// posterior by this fraction each cycle instead of being replaced, so a
// single-cycle outlier cannot swing a long-run estimate.
const learningRate = 0.1

// Priors is the named map of learned probabilities. Owned by the
// engine's learned state; the Assessor reads and nudges it each cycle.
type Priors map[string]float64

// Get returns the stored prior, or def (clamped) when unseen.
func (p Priors) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return stats.Clamp(def, priorFloor, priorCeil)
}

// Update computes the Bayesian posterior for the observed likelihood
// and nudges the stored prior toward it. Returns the posterior.
func (p Priors) Update(key string, likelihood float64, def float64) float64 {
	prior := p.Get(key, def)
	posterior := BayesianUpdate(prior, likelihood)
	p[key] = stats.Clamp(prior+learningRate*(posterior-prior), priorFloor, priorCeil)
	return posterior
}

// Snapshot returns a copy safe to hand out.
func (p Priors) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// BayesianUpdate applies Bayes' rule with a binary evidence model:
//
//	posterior = (likelihood * prior) / (likelihood*prior + (1-likelihood)*(1-prior))
//
// Inputs are clamped so the result stays strictly inside (0, 1).
func BayesianUpdate(prior, likelihood float64) float64 {
	prior = stats.Clamp(prior, priorFloor, priorCeil)
	likelihood = stats.Clamp(likelihood, priorFloor, priorCeil)
	evidence := likelihood*prior + (1-likelihood)*(1-prior)
	if evidence == 0 {
		return prior
	}
	return stats.Clamp(likelihood*prior/evidence, priorFloor, priorCeil)
}
