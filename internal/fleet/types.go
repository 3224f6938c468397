// Package fleet defines the shared vocabulary of the control loop:
// agents, roles, work items, events, and the collaborator interfaces
// the loop senses through and acts against.
package fleet

import (
	"time"
)

// Role categorizes both agents and work items. Work routing and fleet
// composition ratios are computed over the same fixed role set.
type Role string

const (
	RoleFrontend Role = "frontend"
	RoleBackend  Role = "backend"
	RoleSecurity Role = "security"
	RoleDevops   Role = "devops"
	RoleGeneral  Role = "general"
)

// Roles returns the fixed role set in stable order. Vector operations
// (fidelity, entropy) align over this set, with absent roles counted as zero.
func Roles() []Role {
	return []Role{RoleFrontend, RoleBackend, RoleSecurity, RoleDevops, RoleGeneral}
}

// Symbol returns the two-letter chemistry-style symbol used in formula
// notation (e.g. "Fr2Bk4").
func (r Role) Symbol() string {
	switch r {
	case RoleFrontend:
		return "Fr"
	case RoleBackend:
		return "Bk"
	case RoleSecurity:
		return "Sc"
	case RoleDevops:
		return "Dv"
	case RoleGeneral:
		return "Gn"
	default:
		return "??"
	}
}

// AgentState is the lifecycle state of a pool agent.
type AgentState string

const (
	AgentIdle    AgentState = "idle"
	AgentWorking AgentState = "working"
	AgentCrashed AgentState = "crashed"
	AgentRetired AgentState = "retired"
)

// Agent is one executing unit in the pool.
type Agent struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Role        Role       `json:"role"`
	State       AgentState `json:"state"`
	Performance float64    `json:"performance"` // rolling score, 0-1
	SpawnedAt   time.Time  `json:"spawned_at"`
}

// JobState is the lifecycle state of a work item.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Job is a unit of pending or finished work, tagged with the role that
// should execute it.
type Job struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Role        Role          `json:"role"`
	State       JobState      `json:"state"`
	AssignedTo  string        `json:"assigned_to,omitempty"`
	QueuedAt    time.Time     `json:"queued_at"`
	StartedAt   time.Time     `json:"started_at,omitempty"`
	CompletedAt time.Time     `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// EventType tags ledger events consumed by situation analysis.
type EventType string

const (
	EventItemQueued    EventType = "item_queued"
	EventItemStarted   EventType = "item_started"
	EventItemCompleted EventType = "item_completed"
	EventItemFailed    EventType = "item_failed"
	EventAgentSpawned  EventType = "agent_spawned"
	EventAgentCrashed  EventType = "agent_crashed"
	EventAgentRetired  EventType = "agent_retired"
)

// Event is one observable occurrence in the fleet.
type Event struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	Role    Role      `json:"role,omitempty"`
	AgentID string    `json:"agent_id,omitempty"`
	ItemID  string    `json:"item_id,omitempty"`
	At      time.Time `json:"at"`
}

// LedgerEntry pairs an event with the time the ledger recorded it.
type LedgerEntry struct {
	Event      Event     `json:"event"`
	RecordedAt time.Time `json:"recorded_at"`
}
