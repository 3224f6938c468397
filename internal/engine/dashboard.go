package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Dashboard renders a human-readable Markdown summary of the latest
// cycle: health, risk, formula, patterns, anomalies, the last plan,
// prediction accuracy, and the learned priors.
func (e *Engine) Dashboard() string {
	var b strings.Builder

	b.WriteString("# Fleet Intelligence Dashboard\n\n")
	fmt.Fprintf(&b, "- Cycle: %d\n", e.CycleCount())
	fmt.Fprintf(&b, "- Phase: %s\n", e.Phase())
	fmt.Fprintf(&b, "- Prediction accuracy: %.0f%%\n\n", e.OverallAccuracy()*100)

	sit := e.LatestSituation()
	asmt := e.LatestAssessment()
	if sit == nil || asmt == nil {
		b.WriteString("_No completed cycles yet._\n")
		return b.String()
	}

	b.WriteString("## Health\n\n")
	fmt.Fprintf(&b, "- Score: **%.0f/100** (%s)\n", asmt.HealthScore, asmt.HealthTrend)
	fmt.Fprintf(&b, "- Risk: **%s**\n", asmt.RiskLevel)
	for _, f := range asmt.RiskFactors {
		fmt.Fprintf(&b, "  - %s\n", f)
	}
	fmt.Fprintf(&b, "- Entropy: %.2f bits (%.0f%% of uniform)\n\n", asmt.Entropy, asmt.EntropyRatio*100)

	b.WriteString("## Fleet\n\n")
	fmt.Fprintf(&b, "- Agents: %d (%d active, %d idle, %.0f%% utilization)\n",
		sit.Pool.Total, sit.Pool.Active, sit.Pool.Idle, sit.Pool.Utilization)
	fmt.Fprintf(&b, "- Backlog: %d (queued %d, active %d)\n",
		sit.Workload.BacklogDepth, sit.Workload.Queued, sit.Workload.Active)
	fmt.Fprintf(&b, "- Velocity: %.2f items/min (EMA %.2f, %s)\n",
		sit.Velocity.ItemsPerMinute, sit.Velocity.ThroughputEMA, sit.Velocity.Trend)
	fmt.Fprintf(&b, "- Failure rate EMA: %.2f\n\n", sit.Velocity.FailureRateEMA)

	if f := asmt.Formula; f != nil {
		b.WriteString("## Formula\n\n")
		fmt.Fprintf(&b, "- Empirical: `%s` (unit %d)\n", f.Empirical.Notation, f.Empirical.Unit)
		fmt.Fprintf(&b, "- Molecular target: %d agents\n", f.Molecular.Total)
		fmt.Fprintf(&b, "- Fidelity: %.2f\n", f.Fidelity)
		fmt.Fprintf(&b, "- Recommendation: **%s**: %s\n\n", f.Recommendation.Verdict, f.Recommendation.Reason)
	}

	if len(sit.Patterns) > 0 {
		b.WriteString("## Patterns\n\n")
		for _, p := range sit.Patterns {
			fmt.Fprintf(&b, "- `%s` [%s, %.0f%%] %s\n", p.Type, p.Severity, p.Confidence*100, p.Detail)
		}
		b.WriteString("\n")
	}

	if len(asmt.Anomalies) > 0 {
		b.WriteString("## Anomalies\n\n")
		for _, a := range asmt.Anomalies {
			fmt.Fprintf(&b, "- `%s` [%s] %s observed %.2f expected %.2f (z=%.1f)\n",
				a.Type, a.Severity, a.Metric, a.Observed, a.Expected, a.ZScore)
		}
		b.WriteString("\n")
	}

	if p := e.LatestPlan(); p != nil && len(p.Actions) > 0 {
		b.WriteString("## Last Plan\n\n")
		if p.RequiresApproval {
			b.WriteString("_Held for approval._\n\n")
		}
		for _, a := range p.Actions {
			fmt.Fprintf(&b, "- [%s] `%s` %s\n", a.Priority, a.Type, a.Reason)
		}
		b.WriteString("\n")
	}

	if r := e.LatestReport(); r != nil {
		b.WriteString("## Supervision\n\n")
		fmt.Fprintf(&b, "- Validated: %d (%d correct, %.0f%% accuracy)\n", r.Validated, r.Correct, r.Accuracy*100)
		fmt.Fprintf(&b, "- Health delta: %+.1f\n", r.HealthDelta)
		fmt.Fprintf(&b, "- Directives: %d issued, %d acknowledged\n", r.DirectivesIssued, r.DirectivesAcknowledged)
		for _, f := range r.Feedback {
			fmt.Fprintf(&b, "  - %s\n", f)
		}
		b.WriteString("\n")
	}

	priors := e.Priors()
	if len(priors) > 0 {
		b.WriteString("## Learned Priors\n\n")
		keys := make([]string, 0, len(priors))
		for k := range priors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("| Prior | Probability |\n|---|---|\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "| %s | %.3f |\n", k, priors[k])
		}
	}

	return b.String()
}
