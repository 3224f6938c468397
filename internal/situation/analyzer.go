// Package situation builds the per-cycle situational picture: three
// state vectors (pool, workload, velocity) plus detected temporal
// patterns, all derived from a time-windowed event slice and live
// pool/backlog snapshots.
package situation

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"fleetmind/internal/fleet"
	"fleetmind/internal/stats"
)

// Analyzer derives a Context each cycle. It is stateless itself; the
// EMA series it pushes into are owned by the engine's learned state.
type Analyzer struct {
	minObservations int
	emaAlpha        float64
	logger          *zap.Logger
}

// NewAnalyzer creates an analyzer. minObservations gates burst
// detection (and, downstream, Z-score anomalies); emaAlpha is the EMA
// smoothing factor.
func NewAnalyzer(minObservations int, emaAlpha float64, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minObservations < 1 {
		minObservations = 5
	}
	if emaAlpha <= 0 || emaAlpha > 1 {
		emaAlpha = 0.3
	}
	return &Analyzer{
		minObservations: minObservations,
		emaAlpha:        emaAlpha,
		logger:          logger,
	}
}

// Input is everything Analyze consumes for one cycle.
type Input struct {
	Now      time.Time
	Window   time.Duration
	Events   []fleet.Event
	Agents   []fleet.Agent
	Jobs     []fleet.Job
	Feedback []string

	// Bounded EMA input series owned by the engine. Analyze pushes the
	// window's throughput and failure rate into them.
	Throughput  *stats.Series
	FailureRate *stats.Series
}

// Analyze builds the cycle's Context.
func (a *Analyzer) Analyze(in Input) *Context {
	pool := a.poolVector(in.Agents, in.Events)
	work := a.workloadVector(in.Jobs)
	vel := a.velocityVector(in)

	ctx := &Context{
		At:         in.Now,
		Window:     in.Window,
		Pool:       pool,
		Workload:   work,
		Velocity:   vel,
		EventCount: len(in.Events),
		Staleness:  a.staleness(in),
		Feedback:   in.Feedback,
	}
	ctx.Patterns = a.detectPatterns(ctx, in.Events)

	a.logger.Debug("situation analyzed",
		zap.Int("events", ctx.EventCount),
		zap.Int("pool", pool.Total),
		zap.Int("backlog", work.BacklogDepth),
		zap.Float64("items_per_minute", vel.ItemsPerMinute),
		zap.Int("patterns", len(ctx.Patterns)))
	return ctx
}

func (a *Analyzer) poolVector(agents []fleet.Agent, events []fleet.Event) PoolVector {
	v := PoolVector{ByRole: map[fleet.Role]int{}}
	perfSum := 0.0
	for _, ag := range agents {
		if ag.State == fleet.AgentRetired {
			continue
		}
		v.Total++
		v.ByRole[ag.Role]++
		perfSum += ag.Performance
		if ag.State == fleet.AgentWorking {
			v.Active++
		} else {
			v.Idle++
		}
	}
	if v.Total > 0 {
		v.Utilization = float64(v.Active) / float64(v.Total) * 100
		v.AvgPerformance = perfSum / float64(v.Total)
	}

	crashes, completions := 0, 0
	for _, ev := range events {
		switch ev.Type {
		case fleet.EventAgentCrashed:
			crashes++
		case fleet.EventItemCompleted:
			completions++
		}
	}
	if crashes+completions > 0 {
		v.CrashRate = float64(crashes) / float64(crashes+completions)
	}
	return v
}

func (a *Analyzer) workloadVector(jobs []fleet.Job) WorkloadVector {
	v := WorkloadVector{ByRole: map[fleet.Role]int{}}
	var durSum time.Duration
	durN := 0
	for _, j := range jobs {
		v.Total++
		switch j.State {
		case fleet.JobQueued:
			v.Queued++
			v.ByRole[j.Role]++
		case fleet.JobActive:
			v.Active++
			v.ByRole[j.Role]++
		case fleet.JobCompleted:
			v.Completed++
			if j.Duration > 0 {
				durSum += j.Duration
				durN++
			}
		case fleet.JobFailed:
			v.Failed++
		}
	}
	if durN > 0 {
		v.AvgCompletionTime = durSum / time.Duration(durN)
	}
	v.BacklogDepth = v.Queued + v.Active
	return v
}

func (a *Analyzer) velocityVector(in Input) VelocityVector {
	completions, failures := 0, 0
	for _, ev := range in.Events {
		switch ev.Type {
		case fleet.EventItemCompleted:
			completions++
		case fleet.EventItemFailed:
			failures++
		}
	}

	minutes := in.Window.Minutes()
	if minutes <= 0 {
		minutes = 1
	}
	ipm := float64(completions) / minutes

	failureRate := 0.0
	if completions+failures > 0 {
		failureRate = float64(failures) / float64(completions+failures)
	}

	in.Throughput.Push(ipm)
	in.FailureRate.Push(failureRate)

	trend := TrendStable
	slope := in.Throughput.Slope()
	switch {
	case slope > 0.01:
		trend = TrendAccelerating
	case slope < -0.01:
		trend = TrendDecelerating
	}

	return VelocityVector{
		ItemsPerMinute: ipm,
		ThroughputEMA:  in.Throughput.EMA(a.emaAlpha),
		FailureRateEMA: in.FailureRate.EMA(a.emaAlpha),
		Trend:          trend,
	}
}

func (a *Analyzer) staleness(in Input) float64 {
	var newest time.Time
	for _, ev := range in.Events {
		if ev.At.After(newest) {
			newest = ev.At
		}
	}
	if newest.IsZero() {
		return in.Window.Seconds()
	}
	s := in.Now.Sub(newest).Seconds()
	if s < 0 {
		s = 0
	}
	return s
}

// detectPatterns runs the six independent detectors. Thresholds:
// burst fires above 3x the minimum-observation count, cascade_failure
// at three crashes in the window, bottleneck when a role holds over
// half the backlog with less than half that share of agents, and
// idle_excess when idle agents outnumber active two to one.
func (a *Analyzer) detectPatterns(ctx *Context, events []fleet.Event) []Pattern {
	patterns := []Pattern{}

	if ctx.EventCount > 3*a.minObservations {
		patterns = append(patterns, Pattern{
			Type:       PatternBurst,
			Confidence: 0.7,
			Severity:   SeverityInfo,
			Detail:     fmt.Sprintf("%d events in window, burst threshold %d", ctx.EventCount, 3*a.minObservations),
		})
	}

	if ctx.EventCount == 0 {
		patterns = append(patterns, Pattern{
			Type:       PatternDrought,
			Confidence: 0.6,
			Severity:   SeverityWarning,
			Detail:     "no events observed in the analysis window",
		})
	}

	crashes := 0
	for _, ev := range events {
		if ev.Type == fleet.EventAgentCrashed {
			crashes++
		}
	}
	if crashes >= 3 {
		patterns = append(patterns, Pattern{
			Type:       PatternCascadeFailure,
			Confidence: 0.85,
			Severity:   SeverityCritical,
			Detail:     fmt.Sprintf("%d agent crashes in one window", crashes),
		})
	}

	for _, r := range fleet.Roles() {
		if ctx.Workload.ByRole[r] > 0 && ctx.Pool.ByRole[r] == 0 {
			patterns = append(patterns, Pattern{
				Type:       PatternRoleStarvation,
				Role:       r,
				Confidence: 0.9,
				Severity:   SeverityWarning,
				Detail:     fmt.Sprintf("%d %s items queued with no %s agents", ctx.Workload.ByRole[r], r, r),
			})
		}
	}

	if ctx.Workload.BacklogDepth > 0 && ctx.Pool.Total > 0 {
		for _, r := range fleet.Roles() {
			backlogFrac := float64(ctx.Workload.ByRole[r]) / float64(ctx.Workload.BacklogDepth)
			agentFrac := float64(ctx.Pool.ByRole[r]) / float64(ctx.Pool.Total)
			if backlogFrac > 0.5 && agentFrac < backlogFrac/2 {
				patterns = append(patterns, Pattern{
					Type:       PatternBottleneck,
					Role:       r,
					Confidence: 0.75,
					Severity:   SeverityWarning,
					Detail:     fmt.Sprintf("%s holds %.0f%% of the backlog with %.0f%% of the agents", r, backlogFrac*100, agentFrac*100),
				})
			}
		}
	}

	if ctx.Pool.Idle > 2*ctx.Pool.Active && ctx.Pool.Idle > 3 {
		patterns = append(patterns, Pattern{
			Type:       PatternIdleExcess,
			Confidence: 0.7,
			Severity:   SeverityInfo,
			Detail:     fmt.Sprintf("%d idle agents against %d active", ctx.Pool.Idle, ctx.Pool.Active),
		})
	}

	return patterns
}
