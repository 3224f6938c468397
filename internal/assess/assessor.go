// Package assess turns a situational picture into predictions,
// anomalies, a composite health score, a risk level, and a
// formula-driven pool recommendation. Prediction probabilities come
// from damped Bayesian updating against engine-owned priors; anomalies
// from Z-scores over the engine's EMA series.
package assess

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fleetmind/internal/fleet"
	"fleetmind/internal/formula"
	"fleetmind/internal/situation"
	"fleetmind/internal/stats"
)

// minZScoreObservations gates Z-score anomalies: below this many
// observations the historical mean is too noisy to flag against.
const minZScoreObservations = 5

// Assessor holds the sizing knobs; all learned state lives in the
// engine and is passed in per cycle.
type Assessor struct {
	minPool       int
	maxPool       int
	itemsPerAgent float64
	horizon       time.Duration
	logger        *zap.Logger
}

// NewAssessor creates an assessor. itemsPerAgent controls target pool
// sizing: target = ceil(backlogDepth / itemsPerAgent), clamped to
// [minPool, maxPool]. horizon is the prediction validation window.
func NewAssessor(minPool, maxPool int, itemsPerAgent float64, horizon time.Duration, logger *zap.Logger) *Assessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minPool < 1 {
		minPool = 1
	}
	if maxPool < minPool {
		maxPool = minPool + 19
	}
	if itemsPerAgent <= 0 {
		itemsPerAgent = 2
	}
	if horizon <= 0 {
		horizon = 10 * time.Minute
	}
	return &Assessor{
		minPool:       minPool,
		maxPool:       maxPool,
		itemsPerAgent: itemsPerAgent,
		horizon:       horizon,
		logger:        logger,
	}
}

// Input is everything Assess consumes for one cycle. Priors and the
// series are engine-owned learned state; Assess mutates the priors
// (damped updates) but only reads the series.
type Input struct {
	Now          time.Time
	Ctx          *situation.Context
	Events       []fleet.Event
	Agents       []fleet.Agent
	Jobs         []fleet.Job
	Priors       Priors
	Throughput   *stats.Series
	FailureRate  *stats.Series
	RecentHealth []float64 // newest last, for the health trend regression
}

// Assess builds the cycle's Assessment.
func (a *Assessor) Assess(in Input) *Assessment {
	out := &Assessment{At: in.Now}

	out.Anomalies = a.detectAnomalies(in)
	out.Predictions = a.predict(in)

	if result, err := formula.Compute(in.Jobs, in.Agents, a.targetSize(in.Ctx)); err != nil {
		// Empty backlog degrades gracefully: no formula this cycle.
		a.logger.Debug("formula skipped", zap.Error(err))
	} else {
		out.Formula = result
	}

	out.Entropy, out.EntropyRatio = roleEntropy(in.Ctx.Pool.ByRole)
	out.HealthScore = a.healthScore(in.Ctx, out.Anomalies)
	out.HealthTrend = healthTrend(in.RecentHealth)
	out.RiskLevel, out.RiskFactors = riskLevel(out.Anomalies, in.Ctx.Patterns)

	a.logger.Debug("assessment built",
		zap.Float64("health", out.HealthScore),
		zap.String("risk", string(out.RiskLevel)),
		zap.Int("predictions", len(out.Predictions)),
		zap.Int("anomalies", len(out.Anomalies)))
	return out
}

func (a *Assessor) targetSize(ctx *situation.Context) int {
	target := int(math.Ceil(float64(ctx.Workload.BacklogDepth) / a.itemsPerAgent))
	if target < a.minPool {
		target = a.minPool
	}
	if target > a.maxPool {
		target = a.maxPool
	}
	return target
}

// predict issues the cycle's predictions. Every probability is a
// Bayesian posterior; the stored prior is nudged, not replaced.
func (a *Assessor) predict(in Input) []*Prediction {
	preds := []*Prediction{}
	band := confidenceBand(in.Throughput.Len())

	completions := map[fleet.Role]int{}
	failures := map[fleet.Role]int{}
	crashes := map[fleet.Role]int{}
	for _, ev := range in.Events {
		switch ev.Type {
		case fleet.EventItemCompleted:
			completions[ev.Role]++
		case fleet.EventItemFailed:
			failures[ev.Role]++
		case fleet.EventAgentCrashed:
			crashes[ev.Role]++
		}
	}

	for _, r := range fleet.Roles() {
		if in.Ctx.Pool.ByRole[r] == 0 && in.Ctx.Workload.ByRole[r] == 0 {
			continue
		}

		likelihood := 0.5
		if n := completions[r] + failures[r]; n > 0 {
			likelihood = float64(completions[r]) / float64(n)
		}
		posterior := in.Priors.Update("role_success:"+string(r), likelihood, 0.5)
		preds = append(preds, &Prediction{
			ID:          uuid.NewString(),
			Type:        PredictionRoleSuccess,
			Role:        r,
			Probability: posterior,
			Band:        band,
			Horizon:     a.horizon,
			Basis:       fmt.Sprintf("%d completions, %d failures for %s this window", completions[r], failures[r], r),
			IssuedAt:    in.Now,
			Outcome:     OutcomePending,
		})

		crashLikelihood := 0.05
		if n := crashes[r] + completions[r]; n > 0 {
			crashLikelihood = float64(crashes[r]) / float64(n)
		}
		crashPosterior := in.Priors.Update("role_crash:"+string(r), crashLikelihood, 0.1)
		// Low crash posteriors are noise; only report real risk.
		if crashPosterior > 0.2 {
			preds = append(preds, &Prediction{
				ID:          uuid.NewString(),
				Type:        PredictionRoleCrash,
				Role:        r,
				Probability: crashPosterior,
				Band:        band,
				Horizon:     a.horizon,
				Basis:       fmt.Sprintf("%d crashes for %s this window", crashes[r], r),
				IssuedAt:    in.Now,
				Outcome:     OutcomePending,
			})
		}
	}

	util := in.Ctx.Pool.Utilization
	saturation := in.Priors.Update("fleet_saturation", stats.Clamp(util/100, 0.05, 0.95), 0.3)
	preds = append(preds, &Prediction{
		ID:          uuid.NewString(),
		Type:        PredictionFleetSaturation,
		Probability: saturation,
		Band:        band,
		Horizon:     a.horizon,
		Basis:       fmt.Sprintf("utilization at %.0f%%, saturation threshold 80%%", util),
		IssuedAt:    in.Now,
		Outcome:     OutcomePending,
	})

	totalC, totalF := 0, 0
	for _, r := range fleet.Roles() {
		totalC += completions[r]
		totalF += failures[r]
	}
	completionLikelihood := 0.5
	if totalC+totalF > 0 {
		completionLikelihood = float64(totalC) / float64(totalC+totalF)
	}
	completion := in.Priors.Update("job_completion", completionLikelihood, 0.6)
	preds = append(preds, &Prediction{
		ID:          uuid.NewString(),
		Type:        PredictionJobCompletion,
		Probability: completion,
		Band:        band,
		Horizon:     a.horizon,
		Basis:       fmt.Sprintf("%d completed, %d failed this window", totalC, totalF),
		IssuedAt:    in.Now,
		Outcome:     OutcomePending,
	})

	// Linear extrapolation: backlog drains at the throughput EMA.
	if ema := in.Ctx.Velocity.ThroughputEMA; ema > 0 && in.Ctx.Workload.BacklogDepth > 0 {
		est := time.Duration(float64(in.Ctx.Workload.BacklogDepth)/ema) * time.Minute
		preds = append(preds, &Prediction{
			ID:          uuid.NewString(),
			Type:        PredictionBacklogClearance,
			Probability: completion,
			Band:        band,
			Horizon:     est,
			Basis:       fmt.Sprintf("%d items at %.2f items/min", in.Ctx.Workload.BacklogDepth, ema),
			IssuedAt:    in.Now,
			Outcome:     OutcomePending,
		})
	}

	return preds
}

// confidenceBand narrows as the EMA series accumulates observations.
func confidenceBand(observations int) float64 {
	if observations > 10 {
		observations = 10
	}
	return math.Max(0.05, 0.25-0.02*float64(observations))
}

func (a *Assessor) detectAnomalies(in Input) []Anomaly {
	anomalies := []Anomaly{}

	if in.Throughput.Len() >= minZScoreObservations {
		if an, ok := zAnomaly(AnomalyThroughputDeviation, "throughput_ema", in.Throughput, in.Ctx.Velocity.ThroughputEMA); ok {
			anomalies = append(anomalies, an)
		}
	}
	if in.FailureRate.Len() >= minZScoreObservations {
		if an, ok := zAnomaly(AnomalyFailureRateSpike, "failure_rate_ema", in.FailureRate, in.Ctx.Velocity.FailureRateEMA); ok && an.ZScore > 0 {
			anomalies = append(anomalies, an)
		}
	}

	util := in.Ctx.Pool.Utilization
	if in.Ctx.Pool.Total > 2 {
		if util > 95 {
			anomalies = append(anomalies, Anomaly{
				Type:     AnomalyOverUtilization,
				Metric:   "utilization",
				Observed: util,
				Expected: 70,
				Severity: situation.SeverityCritical,
			})
		} else if util < 10 {
			anomalies = append(anomalies, Anomaly{
				Type:     AnomalyUnderUtilization,
				Metric:   "utilization",
				Observed: util,
				Expected: 70,
				Severity: situation.SeverityInfo,
			})
		}
	}

	return anomalies
}

// zAnomaly flags observed against the series' own history. Reported
// from |z| > 1.5 (info), warning past 2, critical past 3.
func zAnomaly(typ AnomalyType, metric string, s *stats.Series, observed float64) (Anomaly, bool) {
	z := s.ZScore(observed)
	abs := math.Abs(z)
	if abs <= 1.5 {
		return Anomaly{}, false
	}
	sev := situation.SeverityInfo
	switch {
	case abs > 3:
		sev = situation.SeverityCritical
	case abs > 2:
		sev = situation.SeverityWarning
	}
	return Anomaly{
		Type:     typ,
		Metric:   metric,
		Observed: observed,
		Expected: s.Mean(),
		StdDev:   s.StdDev(),
		ZScore:   z,
		Severity: sev,
	}, true
}

// healthScore composes the 0-100 score: anomaly and pattern penalties,
// a small trend bonus, failure-rate and utilization-distance penalties.
func (a *Assessor) healthScore(ctx *situation.Context, anomalies []Anomaly) float64 {
	score := 100.0

	for _, an := range anomalies {
		switch an.Severity {
		case situation.SeverityCritical:
			score -= 25
		case situation.SeverityWarning:
			score -= 10
		default:
			score -= 3
		}
	}

	for _, p := range ctx.Patterns {
		switch p.Severity {
		case situation.SeverityCritical:
			score -= 20
		case situation.SeverityWarning:
			score -= 8
		default:
			score -= 2
		}
	}

	switch ctx.Velocity.Trend {
	case situation.TrendAccelerating:
		score += 5
	case situation.TrendStable:
		score += 3
	}

	score -= ctx.Velocity.FailureRateEMA * 30
	score -= 0.2 * math.Abs(ctx.Pool.Utilization-70)

	return stats.Clamp(score, 0, 100)
}

// healthTrend regresses the recent health scores; a slope past ±1
// point per cycle is directional.
func healthTrend(recent []float64) HealthTrend {
	if len(recent) < 3 {
		return HealthStable
	}
	s := stats.FromValues(len(recent), recent)
	switch slope := s.Slope(); {
	case slope > 1:
		return HealthImproving
	case slope < -1:
		return HealthDegrading
	default:
		return HealthStable
	}
}

// riskLevel grades the cycle. Two critical findings make the whole
// cycle critical regardless of factor count.
func riskLevel(anomalies []Anomaly, patterns []situation.Pattern) (RiskLevel, []string) {
	factors := []string{}
	criticals := 0

	for _, an := range anomalies {
		if an.Severity == situation.SeverityCritical {
			criticals++
		}
		if an.Severity == situation.SeverityCritical || an.Severity == situation.SeverityWarning {
			factors = append(factors, fmt.Sprintf("%s anomaly on %s (z=%.1f)", an.Severity, an.Metric, an.ZScore))
		}
	}
	for _, p := range patterns {
		if p.Severity == situation.SeverityCritical {
			criticals++
		}
		if p.Severity == situation.SeverityCritical || p.Severity == situation.SeverityWarning {
			factors = append(factors, fmt.Sprintf("%s pattern %s", p.Severity, p.Type))
		}
	}

	switch {
	case criticals >= 2:
		return RiskCritical, factors
	case len(factors) >= 3:
		return RiskHigh, factors
	case len(factors) >= 1:
		return RiskModerate, factors
	default:
		return RiskLow, factors
	}
}

// roleEntropy returns the Shannon entropy of the pool's role
// distribution and its ratio against the uniform maximum over the
// fixed role set.
func roleEntropy(byRole map[fleet.Role]int) (entropy, ratio float64) {
	total := 0
	for _, c := range byRole {
		total += c
	}
	if total == 0 {
		return 0, 0
	}
	for _, c := range byRole {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	max := math.Log2(float64(len(fleet.Roles())))
	if max > 0 {
		ratio = entropy / max
	}
	return entropy, ratio
}
