// Package plan maps an assessment deterministically onto an ordered
// action plan. No new judgement happens here: every rule is a direct
// consequence of a formula recommendation, an anomaly, or a pattern.
package plan

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fleetmind/internal/assess"
	"fleetmind/internal/fleet"
	"fleetmind/internal/formula"
	"fleetmind/internal/situation"
)

// ActionType names a planned corrective action.
type ActionType string

const (
	ActionSpawn             ActionType = "spawn"
	ActionRetire            ActionType = "retire"
	ActionRebalanceFleet    ActionType = "rebalance_fleet"
	ActionAdjustConcurrency ActionType = "adjust_concurrency"
	ActionSendAlert         ActionType = "send_alert"
	ActionEscalateRisk      ActionType = "escalate_risk"
	ActionRedevelop         ActionType = "trigger_redevelopment"
)

// Priority orders actions within a plan.
type Priority string

const (
	PriorityLow       Priority = "low"
	PriorityNormal    Priority = "normal"
	PriorityHigh      Priority = "high"
	PriorityImmediate Priority = "immediate"
)

func priorityRank(p Priority) int {
	switch p {
	case PriorityImmediate:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	default:
		return 3
	}
}

// Per-type action parameters. Exactly one is set on each Action,
// matching its Type; no untyped parameter bags.

type SpawnParams struct {
	Role  fleet.Role `json:"role"`
	Count int        `json:"count"`
}

type RetireParams struct {
	Role  fleet.Role `json:"role,omitempty"`
	Count int        `json:"count"`
}

type RebalanceParams struct {
	Adjustments map[fleet.Role]int `json:"adjustments"`
}

type ConcurrencyParams struct {
	Direction string `json:"direction"` // raise or lower
	Amount    int    `json:"amount"`
}

type AlertParams struct {
	Message  string             `json:"message"`
	Severity situation.Severity `json:"severity"`
}

type EscalateParams struct {
	Reason string `json:"reason"`
}

type RedevelopParams struct {
	Metric string `json:"metric"`
	Reason string `json:"reason"`
}

// Action is one planned step.
type Action struct {
	ID       string     `json:"id"`
	Type     ActionType `json:"type"`
	Priority Priority   `json:"priority"`
	Reason   string     `json:"reason"`

	Spawn       *SpawnParams       `json:"spawn,omitempty"`
	Retire      *RetireParams      `json:"retire,omitempty"`
	Rebalance   *RebalanceParams   `json:"rebalance,omitempty"`
	Concurrency *ConcurrencyParams `json:"concurrency,omitempty"`
	Alert       *AlertParams       `json:"alert,omitempty"`
	Escalate    *EscalateParams    `json:"escalate,omitempty"`
	Redevelop   *RedevelopParams   `json:"redevelop,omitempty"`
}

// Plan is one cycle's ordered action list.
type Plan struct {
	ID               string           `json:"id"`
	At               time.Time        `json:"at"`
	Actions          []Action         `json:"actions"`
	RequiresApproval bool             `json:"requires_approval"`
	RiskLevel        assess.RiskLevel `json:"risk_level"`
}

// Planner builds plans. Stateless.
type Planner struct {
	logger *zap.Logger
}

func NewPlanner(logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{logger: logger}
}

// Build maps the assessment onto actions. Spawn needs from the formula
// recommendation and from starvation patterns are merged per role so a
// starving role is never spawned twice in one plan.
func (p *Planner) Build(now time.Time, asmt *assess.Assessment, ctx *situation.Context) *Plan {
	out := &Plan{
		ID:        uuid.NewString(),
		At:        now,
		RiskLevel: asmt.RiskLevel,
	}

	spawnNeeds := map[fleet.Role]spawnNeed{}

	if f := asmt.Formula; f != nil {
		rec := f.Recommendation
		switch rec.Verdict {
		case formula.ScaleUp:
			for role, delta := range rec.Deltas {
				if delta > 0 {
					mergeSpawn(spawnNeeds, role, delta, PriorityNormal, rec.Reason)
				}
			}
		case formula.ScaleDown:
			for role, delta := range rec.Deltas {
				if delta < 0 {
					out.Actions = append(out.Actions, Action{
						ID:       uuid.NewString(),
						Type:     ActionRetire,
						Priority: PriorityLow,
						Reason:   rec.Reason,
						Retire:   &RetireParams{Role: role, Count: -delta},
					})
				}
			}
		case formula.ScaleRebalance:
			out.Actions = append(out.Actions, Action{
				ID:        uuid.NewString(),
				Type:      ActionRebalanceFleet,
				Priority:  PriorityNormal,
				Reason:    rec.Reason,
				Rebalance: &RebalanceParams{Adjustments: rec.Deltas},
			})
		}
	}

	for _, an := range asmt.Anomalies {
		if an.Severity != situation.SeverityCritical {
			continue
		}
		switch an.Type {
		case assess.AnomalyFailureRateSpike:
			out.Actions = append(out.Actions, Action{
				ID:       uuid.NewString(),
				Type:     ActionRedevelop,
				Priority: PriorityHigh,
				Reason:   fmt.Sprintf("failure rate %.2f sits %.1f sigma above history", an.Observed, an.ZScore),
				Redevelop: &RedevelopParams{
					Metric: an.Metric,
					Reason: "sustained failure spike suggests a defective work template",
				},
			})
		case assess.AnomalyOverUtilization:
			out.Actions = append(out.Actions, Action{
				ID:       uuid.NewString(),
				Type:     ActionAdjustConcurrency,
				Priority: PriorityHigh,
				Reason:   fmt.Sprintf("utilization at %.0f%%", an.Observed),
				Concurrency: &ConcurrencyParams{
					Direction: "raise",
					Amount:    1,
				},
			})
		}
		out.Actions = append(out.Actions, Action{
			ID:       uuid.NewString(),
			Type:     ActionSendAlert,
			Priority: PriorityHigh,
			Reason:   fmt.Sprintf("critical anomaly: %s", an.Type),
			Alert: &AlertParams{
				Message:  fmt.Sprintf("critical %s: observed %.2f against expected %.2f", an.Type, an.Observed, an.Expected),
				Severity: situation.SeverityCritical,
			},
		})
	}

	for _, pat := range ctx.Patterns {
		switch pat.Type {
		case situation.PatternRoleStarvation:
			mergeSpawn(spawnNeeds, pat.Role, 1, PriorityHigh, pat.Detail)
		case situation.PatternCascadeFailure:
			out.Actions = append(out.Actions, Action{
				ID:       uuid.NewString(),
				Type:     ActionEscalateRisk,
				Priority: PriorityImmediate,
				Reason:   pat.Detail,
				Escalate: &EscalateParams{Reason: pat.Detail},
			})
		case situation.PatternIdleExcess:
			surplus := ctx.Pool.Idle - 2*ctx.Pool.Active
			if surplus < 1 {
				surplus = 1
			}
			out.Actions = append(out.Actions, Action{
				ID:       uuid.NewString(),
				Type:     ActionRetire,
				Priority: PriorityLow,
				Reason:   pat.Detail,
				Retire:   &RetireParams{Count: surplus},
			})
		}
	}

	for _, r := range fleet.Roles() {
		need, ok := spawnNeeds[r]
		if !ok {
			continue
		}
		out.Actions = append(out.Actions, Action{
			ID:       uuid.NewString(),
			Type:     ActionSpawn,
			Priority: need.priority,
			Reason:   need.reason,
			Spawn:    &SpawnParams{Role: r, Count: need.count},
		})
	}

	sort.SliceStable(out.Actions, func(i, j int) bool {
		return priorityRank(out.Actions[i].Priority) < priorityRank(out.Actions[j].Priority)
	})

	out.RequiresApproval = asmt.RiskLevel == assess.RiskCritical || hasEscalation(out.Actions)

	p.logger.Debug("plan built",
		zap.Int("actions", len(out.Actions)),
		zap.Bool("requires_approval", out.RequiresApproval))
	return out
}

type spawnNeed struct {
	count    int
	priority Priority
	reason   string
}

// mergeSpawn keeps the larger count and the more urgent priority for a
// role requested by more than one rule.
func mergeSpawn(needs map[fleet.Role]spawnNeed, role fleet.Role, count int, prio Priority, reason string) {
	cur, ok := needs[role]
	if !ok {
		needs[role] = spawnNeed{count: count, priority: prio, reason: reason}
		return
	}
	if count > cur.count {
		cur.count = count
	}
	if priorityRank(prio) < priorityRank(cur.priority) {
		cur.priority = prio
		cur.reason = reason
	}
	needs[role] = cur
}

func hasEscalation(actions []Action) bool {
	for _, a := range actions {
		if a.Type == ActionEscalateRisk {
			return true
		}
	}
	return false
}
