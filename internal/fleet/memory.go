package fleet

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// In-memory collaborator implementations. Used by tests and by the CLI
// demo mode; a production deployment wires real adapters instead.

// MemoryPool is a mutex-guarded in-memory PoolManager.
type MemoryPool struct {
	mu     sync.RWMutex
	agents map[string]Agent

	// SpawnErr, when set, is returned by Spawn. Lets tests exercise the
	// fire-and-forget error path.
	SpawnErr error

	ledger *MemoryLedger
}

// NewMemoryPool creates an empty pool. If ledger is non-nil, spawn and
// retire transitions are recorded to it.
func NewMemoryPool(ledger *MemoryLedger) *MemoryPool {
	return &MemoryPool{
		agents: make(map[string]Agent),
		ledger: ledger,
	}
}

func (p *MemoryPool) ListAgents() []Agent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Agent, 0, len(p.agents))
	for _, a := range p.agents {
		if a.State != AgentRetired {
			out = append(out, a)
		}
	}
	return out
}

func (p *MemoryPool) Spawn(name string, role Role, template string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SpawnErr != nil {
		return p.SpawnErr
	}
	a := Agent{
		ID:          uuid.NewString(),
		Name:        name,
		Role:        role,
		State:       AgentIdle,
		Performance: 0.5,
		SpawnedAt:   time.Now(),
	}
	p.agents[a.ID] = a
	if p.ledger != nil {
		p.ledger.Record(Event{Type: EventAgentSpawned, Role: role, AgentID: a.ID, At: a.SpawnedAt})
	}
	return nil
}

// SetState transitions an agent, recording crashes to the ledger.
func (p *MemoryPool) SetState(agentID string, state AgentState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.agents[agentID]
	if !ok {
		return fmt.Errorf("unknown agent %s", agentID)
	}
	a.State = state
	p.agents[agentID] = a
	if state == AgentCrashed && p.ledger != nil {
		p.ledger.Record(Event{Type: EventAgentCrashed, Role: a.Role, AgentID: a.ID, At: time.Now()})
	}
	return nil
}

// MemoryGovernance records every message it receives.
type MemoryGovernance struct {
	mu       sync.Mutex
	messages []string
}

func NewMemoryGovernance() *MemoryGovernance {
	return &MemoryGovernance{}
}

func (g *MemoryGovernance) Receive(message string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messages = append(g.messages, message)
}

// Messages returns a copy of everything received so far.
func (g *MemoryGovernance) Messages() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.messages))
	copy(out, g.messages)
	return out
}

// MemoryWorkStore is a mutex-guarded in-memory WorkStore.
type MemoryWorkStore struct {
	mu       sync.RWMutex
	jobs     map[string]Job
	handlers map[int]func(Event)
	nextSub  int

	ledger *MemoryLedger
}

func NewMemoryWorkStore(ledger *MemoryLedger) *MemoryWorkStore {
	return &MemoryWorkStore{
		jobs:     make(map[string]Job),
		handlers: make(map[int]func(Event)),
		ledger:   ledger,
	}
}

func (w *MemoryWorkStore) ListJobs() []Job {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Job, 0, len(w.jobs))
	for _, j := range w.jobs {
		out = append(out, j)
	}
	return out
}

func (w *MemoryWorkStore) WorkItem(id string) (Job, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	j, ok := w.jobs[id]
	return j, ok
}

func (w *MemoryWorkStore) Subscribe(handler func(Event)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextSub
	w.nextSub++
	w.handlers[id] = handler
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.handlers, id)
	}
}

// Enqueue adds a queued job and emits item_queued.
func (w *MemoryWorkStore) Enqueue(title string, role Role) Job {
	j := Job{
		ID:       uuid.NewString(),
		Title:    title,
		Role:     role,
		State:    JobQueued,
		QueuedAt: time.Now(),
	}
	w.mu.Lock()
	w.jobs[j.ID] = j
	w.mu.Unlock()
	w.emit(Event{Type: EventItemQueued, Role: role, ItemID: j.ID, At: j.QueuedAt})
	return j
}

// Transition moves a job to the given state and emits the matching event.
func (w *MemoryWorkStore) Transition(jobID string, state JobState) error {
	w.mu.Lock()
	j, ok := w.jobs[jobID]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("unknown job %s", jobID)
	}
	now := time.Now()
	j.State = state
	switch state {
	case JobActive:
		j.StartedAt = now
	case JobCompleted, JobFailed:
		j.CompletedAt = now
		if !j.StartedAt.IsZero() {
			j.Duration = now.Sub(j.StartedAt)
		}
	}
	w.jobs[jobID] = j
	w.mu.Unlock()

	var typ EventType
	switch state {
	case JobActive:
		typ = EventItemStarted
	case JobCompleted:
		typ = EventItemCompleted
	case JobFailed:
		typ = EventItemFailed
	default:
		return nil
	}
	w.emit(Event{Type: typ, Role: j.Role, ItemID: j.ID, At: now})
	return nil
}

func (w *MemoryWorkStore) emit(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if w.ledger != nil {
		w.ledger.Record(ev)
	}
	w.mu.RLock()
	handlers := make([]func(Event), 0, len(w.handlers))
	for _, h := range w.handlers {
		handlers = append(handlers, h)
	}
	w.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}

// MemoryLedger is an append-only in-memory event record.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries []LedgerEntry
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

func (l *MemoryLedger) Record(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LedgerEntry{Event: ev, RecordedAt: time.Now()})
}

func (l *MemoryLedger) Since(t time.Time) []LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []LedgerEntry{}
	for _, e := range l.entries {
		if !e.RecordedAt.Before(t) {
			out = append(out, e)
		}
	}
	return out
}
