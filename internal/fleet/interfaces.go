package fleet

import "time"

// PoolManager is the collaborator that owns the live agent pool.
// Spawn is fire-and-forget from the loop's perspective: the Informer
// logs failures and moves on.
type PoolManager interface {
	ListAgents() []Agent
	Spawn(name string, role Role, template string) error
}

// Governance receives free-text status updates and approval requests.
// There is no structured acknowledgement protocol.
type Governance interface {
	Receive(message string)
}

// WorkStore exposes the backlog and delivers work events as they occur.
// Subscribe returns an unsubscribe function.
type WorkStore interface {
	ListJobs() []Job
	WorkItem(id string) (Job, bool)
	Subscribe(handler func(Event)) (cancel func())
}

// Ledger is the durable event record, queried by time window.
type Ledger interface {
	Since(t time.Time) []LedgerEntry
}
