// Package inform converts planned actions into targeted directives.
// Only low-risk spawn actions are executed directly against the pool
// manager; everything else routes to governance or the owning
// subsystem as a directive. Spawn execution is fire-and-forget: a
// failed spawn is logged and otherwise invisible.
package inform

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fleetmind/internal/fleet"
	"fleetmind/internal/plan"
)

// Target names the subsystem a directive is addressed to.
type Target string

const (
	TargetPoolManager Target = "pool_manager"
	TargetGovernance  Target = "governance"
	TargetWorkGroup   Target = "work_group"
	TargetAlerting    Target = "alerting"
)

// Directive is one issued instruction. Appended to the engine's
// bounded directive log.
type Directive struct {
	ID           string    `json:"id"`
	ActionID     string    `json:"action_id"`
	Target       Target    `json:"target"`
	Summary      string    `json:"summary"`
	IssuedAt     time.Time `json:"issued_at"`
	AutoExecuted bool      `json:"auto_executed"`
	Acknowledged bool      `json:"acknowledged"`
}

// Informer issues directives against the collaborators.
type Informer struct {
	pool       fleet.PoolManager
	governance fleet.Governance
	logger     *zap.Logger
}

func NewInformer(pool fleet.PoolManager, governance fleet.Governance, logger *zap.Logger) *Informer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Informer{pool: pool, governance: governance, logger: logger}
}

// Inform executes the plan. If the plan requires approval nothing is
// executed: a summary goes to governance and a single approval-request
// directive is recorded.
func (in *Informer) Inform(now time.Time, p *plan.Plan) []Directive {
	if p.RequiresApproval {
		summary := approvalSummary(p)
		in.governance.Receive(summary)
		in.logger.Info("plan held for approval",
			zap.String("plan", p.ID),
			zap.Int("actions", len(p.Actions)))
		return []Directive{{
			ID:       uuid.NewString(),
			ActionID: p.ID,
			Target:   TargetGovernance,
			Summary:  summary,
			IssuedAt: now,
		}}
	}

	directives := make([]Directive, 0, len(p.Actions))
	for _, action := range p.Actions {
		directives = append(directives, in.issue(now, action))
	}
	return directives
}

func (in *Informer) issue(now time.Time, action plan.Action) Directive {
	d := Directive{
		ID:       uuid.NewString(),
		ActionID: action.ID,
		IssuedAt: now,
	}

	switch action.Type {
	case plan.ActionSpawn:
		d.Target = TargetPoolManager
		d.Summary = fmt.Sprintf("spawn %d %s agent(s): %s", action.Spawn.Count, action.Spawn.Role, action.Reason)
		// Immediate-priority spawns carry too much blast radius to
		// execute without a human in the loop.
		if action.Priority != plan.PriorityImmediate {
			in.executeSpawn(action)
			d.AutoExecuted = true
		} else {
			in.governance.Receive("status: " + d.Summary)
		}

	case plan.ActionRetire:
		// Retire is always a recommendation; the loop never kills
		// agents on its own.
		d.Target = TargetGovernance
		if action.Retire.Role != "" {
			d.Summary = fmt.Sprintf("recommend retiring %d %s agent(s): %s", action.Retire.Count, action.Retire.Role, action.Reason)
		} else {
			d.Summary = fmt.Sprintf("recommend retiring %d agent(s): %s", action.Retire.Count, action.Reason)
		}
		in.governance.Receive("status: " + d.Summary)

	case plan.ActionRebalanceFleet:
		d.Target = TargetPoolManager
		d.Summary = fmt.Sprintf("rebalance fleet %s: %s", describeAdjustments(action.Rebalance.Adjustments), action.Reason)
		in.governance.Receive("status: " + d.Summary)

	case plan.ActionAdjustConcurrency:
		d.Target = TargetWorkGroup
		d.Summary = fmt.Sprintf("%s concurrency by %d: %s", action.Concurrency.Direction, action.Concurrency.Amount, action.Reason)
		in.governance.Receive("status: " + d.Summary)

	case plan.ActionSendAlert:
		d.Target = TargetAlerting
		d.Summary = action.Alert.Message
		in.governance.Receive("status: " + d.Summary)

	case plan.ActionEscalateRisk:
		d.Target = TargetGovernance
		d.Summary = fmt.Sprintf("risk escalation: %s", action.Escalate.Reason)
		in.governance.Receive("status: " + d.Summary)

	case plan.ActionRedevelop:
		d.Target = TargetWorkGroup
		d.Summary = fmt.Sprintf("trigger redevelopment (%s): %s", action.Redevelop.Metric, action.Redevelop.Reason)
		in.governance.Receive("status: " + d.Summary)

	default:
		d.Target = TargetGovernance
		d.Summary = fmt.Sprintf("unhandled action type %s", action.Type)
		in.governance.Receive("status: " + d.Summary)
	}

	in.logger.Debug("directive issued",
		zap.String("target", string(d.Target)),
		zap.Bool("auto_executed", d.AutoExecuted),
		zap.String("summary", d.Summary))
	return d
}

// executeSpawn fires the spawn against the pool manager. Errors are
// logged and swallowed: the loop treats spawn as fire-and-forget.
func (in *Informer) executeSpawn(action plan.Action) {
	role := action.Spawn.Role
	for i := 0; i < action.Spawn.Count; i++ {
		name := fmt.Sprintf("fleet-%s-%s", role, uuid.NewString()[:8])
		if err := in.pool.Spawn(name, role, templateForRole(role)); err != nil {
			in.logger.Warn("spawn failed",
				zap.String("role", string(role)),
				zap.Error(err))
		}
	}
}

func templateForRole(role fleet.Role) string {
	return "worker-" + string(role)
}

func describeAdjustments(adjustments map[fleet.Role]int) string {
	parts := make([]string, 0, len(adjustments))
	for _, r := range fleet.Roles() {
		d, ok := adjustments[r]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s%+d", r, d))
	}
	return strings.Join(parts, " ")
}

func approvalSummary(p *plan.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "approval required: %d action(s) at %s risk\n", len(p.Actions), p.RiskLevel)
	for _, a := range p.Actions {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", a.Priority, a.Type, a.Reason)
	}
	return b.String()
}
