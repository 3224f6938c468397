// Package engine owns the control loop: a five-phase cycle
// (understanding, assessing, planning, informing, monitoring) driven on
// a fixed interval, with all persistent learned state (Bayesian
// priors, EMA input series, bounded rolling histories) held in one
// place and mutated only by the cycle runner.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"fleetmind/internal/assess"
	"fleetmind/internal/config"
	"fleetmind/internal/fleet"
	"fleetmind/internal/inform"
	"fleetmind/internal/plan"
	"fleetmind/internal/situation"
	"fleetmind/internal/stats"
	"fleetmind/internal/supervise"
)

// Phase is the engine's position in the cycle state machine.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseUnderstanding Phase = "understanding"
	PhaseAssessing     Phase = "assessing"
	PhasePlanning      Phase = "planning"
	PhaseInforming     Phase = "informing"
	PhaseMonitoring    Phase = "monitoring"
)

// ErrCycleInFlight is returned when RunCycle is entered while a cycle
// is already running. The scheduler treats it as "skip this tick".
var ErrCycleInFlight = errors.New("cycle already in flight")

// Collaborators are the external systems the loop senses through and
// acts against. Ledger is optional; when set it backfills events the
// subscription missed.
type Collaborators struct {
	Pool       fleet.PoolManager
	Governance fleet.Governance
	Work       fleet.WorkStore
	Ledger     fleet.Ledger
}

// LearnedState is everything that persists across cycles: named
// Bayesian priors and the two bounded EMA input series.
type LearnedState struct {
	Priors      assess.Priors
	Throughput  *stats.Series
	FailureRate *stats.Series
}

// CycleReport aggregates one successful cycle's artifacts.
type CycleReport struct {
	Cycle       int                `json:"cycle"`
	At          time.Time          `json:"at"`
	Duration    time.Duration      `json:"duration"`
	Situation   *situation.Context `json:"situation"`
	Assessment  *assess.Assessment `json:"assessment"`
	Plan        *plan.Plan         `json:"plan"`
	Directives  []inform.Directive `json:"directives"`
	Supervision *supervise.Report  `json:"supervision"`
}

// Engine drives the loop.
type Engine struct {
	cfg    config.Config
	logger *zap.Logger
	collab Collaborators

	analyzer   *situation.Analyzer
	assessor   *assess.Assessor
	planner    *plan.Planner
	informer   *inform.Informer
	supervisor *supervise.Supervisor

	// runMu serializes cycles; held for a cycle's full duration.
	runMu sync.Mutex

	// mu guards the event buffer, feedback queue, phase, counters, and
	// committed histories. Learned state is only mutated under runMu.
	mu          sync.Mutex
	phase       Phase
	cycleCount  int
	state       LearnedState
	events      []fleet.Event
	feedback    []string
	lastDrain   time.Time
	situations  []*situation.Context
	assessments []*assess.Assessment
	plans       []*plan.Plan
	reports     []*supervise.Report
	directives  []inform.Directive
	predictions []*assess.Prediction

	stop     chan struct{}
	interval chan time.Duration
	wg       sync.WaitGroup
	started  bool
}

// New wires an engine from configuration and collaborators.
func New(cfg config.Config, collab Collaborators, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg,
		logger: logger,
		collab: collab,
		analyzer: situation.NewAnalyzer(
			cfg.Analysis.MinObservations, cfg.Analysis.EMAAlpha, logger),
		assessor: assess.NewAssessor(
			cfg.Sizing.MinPool, cfg.Sizing.MaxPool, cfg.Sizing.ItemsPerAgent,
			cfg.Sizing.PredictionHorizon, logger),
		planner:    plan.NewPlanner(logger),
		informer:   inform.NewInformer(collab.Pool, collab.Governance, logger),
		supervisor: supervise.NewSupervisor(logger),
		phase:      PhaseIdle,
		state: LearnedState{
			Priors:      assess.Priors{},
			Throughput:  stats.NewSeries(cfg.Histories.SeriesCap),
			FailureRate: stats.NewSeries(cfg.Histories.SeriesCap),
		},
		lastDrain: time.Now(),
		stop:      make(chan struct{}),
		interval:  make(chan time.Duration, 1),
	}
}

// Ingest buffers one event for the next cycle. Safe to call from the
// work-store's delivery goroutine.
func (e *Engine) Ingest(ev fleet.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

// AddFeedback queues an external feedback note for the next cycle's
// situation analysis.
func (e *Engine) AddFeedback(message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.feedback = append(e.feedback, message)
}

// RunCycle executes one full cycle. Returns ErrCycleInFlight when a
// cycle is already running. Any phase failure (including the cycle
// timeout) discards the cycle: no artifacts are committed, the phase
// returns to idle, and the cycle counter still advances.
func (e *Engine) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !e.runMu.TryLock() {
		return nil, ErrCycleInFlight
	}
	defer e.runMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Engine.CycleTimeout)
	defer cancel()

	e.mu.Lock()
	e.cycleCount++
	cycle := e.cycleCount
	e.mu.Unlock()

	start := time.Now()
	report, err := e.cycle(ctx, start, cycle)
	e.setPhase(PhaseIdle)
	if err != nil {
		e.logger.Warn("cycle discarded",
			zap.Int("cycle", cycle),
			zap.Error(err))
		return nil, err
	}

	report.Duration = time.Since(start)
	e.logger.Info("cycle complete",
		zap.Int("cycle", cycle),
		zap.Duration("duration", report.Duration),
		zap.Float64("health", report.Assessment.HealthScore),
		zap.String("risk", string(report.Assessment.RiskLevel)),
		zap.Int("directives", len(report.Directives)))
	return report, nil
}

// cycle runs the five phases in strict sequence. Nothing is committed
// to the histories until every phase has succeeded.
func (e *Engine) cycle(ctx context.Context, now time.Time, cycle int) (*CycleReport, error) {
	// Phase 1: understanding.
	e.setPhase(PhaseUnderstanding)
	events, feedback := e.drainEvents(now)
	agents := e.collab.Pool.ListAgents()
	jobs := e.collab.Work.ListJobs()

	sit := e.analyzer.Analyze(situation.Input{
		Now:         now,
		Window:      e.cfg.EffectiveWindow(),
		Events:      events,
		Agents:      agents,
		Jobs:        jobs,
		Feedback:    feedback,
		Throughput:  e.state.Throughput,
		FailureRate: e.state.FailureRate,
	})
	if err := e.checkpoint(ctx, PhaseUnderstanding); err != nil {
		return nil, err
	}

	// Phase 2: assessing.
	e.setPhase(PhaseAssessing)
	prevHealth := e.latestHealth()
	asmt := e.assessor.Assess(assess.Input{
		Now:          now,
		Ctx:          sit,
		Events:       events,
		Agents:       agents,
		Jobs:         jobs,
		Priors:       e.state.Priors,
		Throughput:   e.state.Throughput,
		FailureRate:  e.state.FailureRate,
		RecentHealth: e.recentHealth(10),
	})
	if err := e.checkpoint(ctx, PhaseAssessing); err != nil {
		return nil, err
	}

	// Phase 3: planning.
	e.setPhase(PhasePlanning)
	actionPlan := e.planner.Build(now, asmt, sit)
	if err := e.checkpoint(ctx, PhasePlanning); err != nil {
		return nil, err
	}

	// Phase 4: informing.
	e.setPhase(PhaseInforming)
	directives := e.informer.Inform(now, actionPlan)
	if err := e.checkpoint(ctx, PhaseInforming); err != nil {
		return nil, err
	}

	// Phase 5: monitoring.
	e.setPhase(PhaseMonitoring)
	pending := e.pendingPredictions()
	supReport := e.supervisor.Review(supervise.Input{
		Now:            now,
		Predictions:    pending,
		Ctx:            sit,
		PreviousHealth: prevHealth,
		CurrentHealth:  asmt.HealthScore,
		Directives:     directives,
	})
	if err := e.checkpoint(ctx, PhaseMonitoring); err != nil {
		return nil, err
	}

	report := &CycleReport{
		Cycle:       cycle,
		At:          now,
		Situation:   sit,
		Assessment:  asmt,
		Plan:        actionPlan,
		Directives:  directives,
		Supervision: supReport,
	}
	e.commit(report)
	return report, nil
}

// checkpoint aborts the cycle when the deadline or cancellation hits
// between phases.
func (e *Engine) checkpoint(ctx context.Context, after Phase) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cycle aborted after %s: %w", after, err)
	}
	return nil
}

// drainEvents atomically empties the event buffer and feedback queue,
// backfills from the ledger, and trims to the analysis window.
func (e *Engine) drainEvents(now time.Time) ([]fleet.Event, []string) {
	e.mu.Lock()
	events := e.events
	e.events = nil
	feedback := e.feedback
	e.feedback = nil
	since := e.lastDrain
	e.lastDrain = now
	e.mu.Unlock()

	if e.collab.Ledger != nil {
		seen := make(map[string]struct{}, len(events))
		for _, ev := range events {
			seen[ev.ID] = struct{}{}
		}
		for _, entry := range e.collab.Ledger.Since(since) {
			if _, ok := seen[entry.Event.ID]; ok {
				continue
			}
			events = append(events, entry.Event)
		}
	}

	cutoff := now.Add(-e.cfg.EffectiveWindow())
	windowed := events[:0]
	for _, ev := range events {
		if !ev.At.Before(cutoff) {
			windowed = append(windowed, ev)
		}
	}
	return windowed, feedback
}

func (e *Engine) setPhase(p Phase) {
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
}

// commit appends the cycle's artifacts and prunes every history to its
// cap, oldest first. Supervision feedback is queued for the next
// cycle's situation analysis.
func (e *Engine) commit(r *CycleReport) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.feedback = append(e.feedback, r.Supervision.Feedback...)
	e.situations = append(e.situations, r.Situation)
	e.assessments = append(e.assessments, r.Assessment)
	e.plans = append(e.plans, r.Plan)
	e.reports = append(e.reports, r.Supervision)
	e.directives = append(e.directives, r.Directives...)
	e.predictions = append(e.predictions, r.Assessment.Predictions...)

	cc := e.cfg.Histories.CycleCap
	if n := len(e.situations); n > cc {
		e.situations = e.situations[n-cc:]
	}
	if n := len(e.assessments); n > cc {
		e.assessments = e.assessments[n-cc:]
	}
	if n := len(e.plans); n > cc {
		e.plans = e.plans[n-cc:]
	}
	if n := len(e.reports); n > cc {
		e.reports = e.reports[n-cc:]
	}
	if n, dc := len(e.directives), e.cfg.Histories.DirectiveCap; n > dc {
		e.directives = e.directives[n-dc:]
	}
	if n, pc := len(e.predictions), e.cfg.Histories.PredictionCap; n > pc {
		e.predictions = e.predictions[n-pc:]
	}
}

func (e *Engine) latestHealth() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.assessments) == 0 {
		return 100
	}
	return e.assessments[len(e.assessments)-1].HealthScore
}

func (e *Engine) recentHealth(n int) []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := 0
	if len(e.assessments) > n {
		start = len(e.assessments) - n
	}
	out := make([]float64, 0, len(e.assessments)-start)
	for _, a := range e.assessments[start:] {
		out = append(out, a.HealthScore)
	}
	return out
}

// pendingPredictions returns the live prediction list. The Supervisor
// resolves entries in place; resolved entries are skipped on later
// cycles, so a prediction is graded exactly once.
func (e *Engine) pendingPredictions() []*assess.Prediction {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*assess.Prediction, len(e.predictions))
	copy(out, e.predictions)
	return out
}
