package engine

import (
	"fleetmind/internal/assess"
	"fleetmind/internal/inform"
	"fleetmind/internal/plan"
	"fleetmind/internal/situation"
	"fleetmind/internal/supervise"
)

// Phase returns the engine's current position in the cycle.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// CycleCount returns how many cycles have been attempted, including
// discarded ones.
func (e *Engine) CycleCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cycleCount
}

// LatestSituation returns the most recent committed situation, or nil.
func (e *Engine) LatestSituation() *situation.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.situations) == 0 {
		return nil
	}
	return e.situations[len(e.situations)-1]
}

// LatestAssessment returns the most recent committed assessment, or nil.
func (e *Engine) LatestAssessment() *assess.Assessment {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.assessments) == 0 {
		return nil
	}
	return e.assessments[len(e.assessments)-1]
}

// LatestPlan returns the most recent committed plan, or nil.
func (e *Engine) LatestPlan() *plan.Plan {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.plans) == 0 {
		return nil
	}
	return e.plans[len(e.plans)-1]
}

// LatestReport returns the most recent supervision report, or nil.
func (e *Engine) LatestReport() *supervise.Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.reports) == 0 {
		return nil
	}
	return e.reports[len(e.reports)-1]
}

// Directives returns a copy of the bounded directive log, oldest first.
func (e *Engine) Directives() []inform.Directive {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]inform.Directive, len(e.directives))
	copy(out, e.directives)
	return out
}

// Priors returns a read-only snapshot of the learned probabilities.
// Blocks until any in-flight cycle completes.
func (e *Engine) Priors() map[string]float64 {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.state.Priors.Snapshot()
}

// OverallAccuracy returns correct/(correct+incorrect) over every
// resolved prediction still in the bounded list, or 0 when none have
// been resolved.
func (e *Engine) OverallAccuracy() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	correct, resolved := 0, 0
	for _, p := range e.predictions {
		switch p.Outcome {
		case assess.OutcomeCorrect:
			correct++
			resolved++
		case assess.OutcomeIncorrect:
			resolved++
		}
	}
	if resolved == 0 {
		return 0
	}
	return float64(correct) / float64(resolved)
}
