package situation

import (
	"testing"
	"time"

	"fleetmind/internal/fleet"
	"fleetmind/internal/stats"
)

func testInput(events []fleet.Event, agents []fleet.Agent, jobs []fleet.Job) Input {
	return Input{
		Now:         time.Now(),
		Window:      2 * time.Minute,
		Events:      events,
		Agents:      agents,
		Jobs:        jobs,
		Throughput:  stats.NewSeries(50),
		FailureRate: stats.NewSeries(50),
	}
}

func findPatterns(ctx *Context, typ PatternType) []Pattern {
	out := []Pattern{}
	for _, p := range ctx.Patterns {
		if p.Type == typ {
			out = append(out, p)
		}
	}
	return out
}

func TestCascadeFailurePattern(t *testing.T) {
	now := time.Now()
	events := []fleet.Event{
		{Type: fleet.EventAgentCrashed, Role: fleet.RoleBackend, At: now},
		{Type: fleet.EventAgentCrashed, Role: fleet.RoleBackend, At: now},
		{Type: fleet.EventAgentCrashed, Role: fleet.RoleFrontend, At: now},
	}
	a := NewAnalyzer(5, 0.3, nil)
	ctx := a.Analyze(testInput(events, nil, nil))

	got := findPatterns(ctx, PatternCascadeFailure)
	if len(got) != 1 {
		t.Fatalf("cascade_failure patterns = %d, want 1", len(got))
	}
	if got[0].Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", got[0].Confidence)
	}
	if got[0].Severity != SeverityCritical {
		t.Errorf("severity = %s, want critical", got[0].Severity)
	}
}

func TestTwoCrashesIsNotCascade(t *testing.T) {
	now := time.Now()
	events := []fleet.Event{
		{Type: fleet.EventAgentCrashed, At: now},
		{Type: fleet.EventAgentCrashed, At: now},
	}
	a := NewAnalyzer(5, 0.3, nil)
	ctx := a.Analyze(testInput(events, nil, nil))
	if len(findPatterns(ctx, PatternCascadeFailure)) != 0 {
		t.Error("two crashes should not trigger cascade_failure")
	}
}

func TestRoleStarvationPattern(t *testing.T) {
	jobs := []fleet.Job{
		{ID: "1", Role: fleet.RoleSecurity, State: fleet.JobQueued},
		{ID: "2", Role: fleet.RoleSecurity, State: fleet.JobQueued},
	}
	agents := []fleet.Agent{
		{ID: "a", Role: fleet.RoleBackend, State: fleet.AgentIdle},
	}
	a := NewAnalyzer(5, 0.3, nil)
	ctx := a.Analyze(testInput(nil, agents, jobs))

	got := findPatterns(ctx, PatternRoleStarvation)
	if len(got) != 1 {
		t.Fatalf("role_starvation patterns = %d, want exactly 1", len(got))
	}
	if got[0].Role != fleet.RoleSecurity {
		t.Errorf("starved role = %s, want security", got[0].Role)
	}
	if got[0].Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", got[0].Confidence)
	}
}

func TestDroughtPattern(t *testing.T) {
	a := NewAnalyzer(5, 0.3, nil)
	ctx := a.Analyze(testInput(nil, nil, nil))
	if len(findPatterns(ctx, PatternDrought)) != 1 {
		t.Error("zero events should trigger drought")
	}
	if ctx.Staleness != ctx.Window.Seconds() {
		t.Errorf("staleness = %v, want full window %v", ctx.Staleness, ctx.Window.Seconds())
	}
}

func TestBurstPattern(t *testing.T) {
	now := time.Now()
	events := []fleet.Event{}
	for i := 0; i < 16; i++ { // threshold is 3 * minObservations = 15
		events = append(events, fleet.Event{Type: fleet.EventItemQueued, At: now})
	}
	a := NewAnalyzer(5, 0.3, nil)
	ctx := a.Analyze(testInput(events, nil, nil))
	if len(findPatterns(ctx, PatternBurst)) != 1 {
		t.Error("16 events with minObservations=5 should trigger burst")
	}
}

func TestBottleneckPattern(t *testing.T) {
	jobs := []fleet.Job{}
	for i := 0; i < 6; i++ {
		jobs = append(jobs, fleet.Job{Role: fleet.RoleBackend, State: fleet.JobQueued})
	}
	jobs = append(jobs, fleet.Job{Role: fleet.RoleFrontend, State: fleet.JobQueued})
	agents := []fleet.Agent{
		{Role: fleet.RoleBackend, State: fleet.AgentWorking},
		{Role: fleet.RoleFrontend, State: fleet.AgentIdle},
		{Role: fleet.RoleFrontend, State: fleet.AgentIdle},
		{Role: fleet.RoleFrontend, State: fleet.AgentIdle},
		{Role: fleet.RoleFrontend, State: fleet.AgentIdle},
		{Role: fleet.RoleFrontend, State: fleet.AgentIdle},
		{Role: fleet.RoleFrontend, State: fleet.AgentIdle},
		{Role: fleet.RoleFrontend, State: fleet.AgentIdle},
	}
	// backend holds 6/7 of the backlog but 1/8 of the agents.
	a := NewAnalyzer(5, 0.3, nil)
	ctx := a.Analyze(testInput(nil, agents, jobs))
	got := findPatterns(ctx, PatternBottleneck)
	if len(got) != 1 || got[0].Role != fleet.RoleBackend {
		t.Errorf("bottleneck patterns = %v, want one on backend", got)
	}
}

func TestIdleExcessPattern(t *testing.T) {
	agents := []fleet.Agent{
		{Role: fleet.RoleGeneral, State: fleet.AgentWorking},
		{Role: fleet.RoleGeneral, State: fleet.AgentIdle},
		{Role: fleet.RoleGeneral, State: fleet.AgentIdle},
		{Role: fleet.RoleGeneral, State: fleet.AgentIdle},
		{Role: fleet.RoleGeneral, State: fleet.AgentIdle},
	}
	a := NewAnalyzer(5, 0.3, nil)
	ctx := a.Analyze(testInput(nil, agents, nil))
	if len(findPatterns(ctx, PatternIdleExcess)) != 1 {
		t.Error("4 idle vs 1 active should trigger idle_excess")
	}
}

func TestPoolVector(t *testing.T) {
	now := time.Now()
	agents := []fleet.Agent{
		{Role: fleet.RoleBackend, State: fleet.AgentWorking, Performance: 0.8},
		{Role: fleet.RoleBackend, State: fleet.AgentIdle, Performance: 0.6},
		{Role: fleet.RoleFrontend, State: fleet.AgentRetired, Performance: 0.1},
	}
	events := []fleet.Event{
		{Type: fleet.EventAgentCrashed, At: now},
		{Type: fleet.EventItemCompleted, At: now},
		{Type: fleet.EventItemCompleted, At: now},
		{Type: fleet.EventItemCompleted, At: now},
	}
	a := NewAnalyzer(5, 0.3, nil)
	ctx := a.Analyze(testInput(events, agents, nil))

	if ctx.Pool.Total != 2 {
		t.Errorf("Total = %d, want 2 (retired excluded)", ctx.Pool.Total)
	}
	if ctx.Pool.Utilization != 50 {
		t.Errorf("Utilization = %v, want 50", ctx.Pool.Utilization)
	}
	if ctx.Pool.CrashRate != 0.25 {
		t.Errorf("CrashRate = %v, want 0.25", ctx.Pool.CrashRate)
	}
}

func TestVelocityTrend(t *testing.T) {
	a := NewAnalyzer(5, 0.3, nil)
	in := testInput(nil, nil, nil)

	// Pre-load a rising throughput history.
	for i := 0; i < 10; i++ {
		in.Throughput.Push(float64(i))
	}
	now := time.Now()
	for i := 0; i < 20; i++ {
		in.Events = append(in.Events, fleet.Event{Type: fleet.EventItemCompleted, At: now})
	}
	ctx := a.Analyze(in)
	if ctx.Velocity.Trend != TrendAccelerating {
		t.Errorf("Trend = %s, want accelerating", ctx.Velocity.Trend)
	}
	if ctx.Velocity.ItemsPerMinute != 10 {
		t.Errorf("ItemsPerMinute = %v, want 10 (20 completions in 2m)", ctx.Velocity.ItemsPerMinute)
	}
}

func TestAnalyzePushesSeries(t *testing.T) {
	a := NewAnalyzer(5, 0.3, nil)
	in := testInput(nil, nil, nil)
	a.Analyze(in)
	if in.Throughput.Len() != 1 || in.FailureRate.Len() != 1 {
		t.Error("Analyze must push exactly one observation into each series")
	}
}
