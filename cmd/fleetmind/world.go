package main

import (
	"context"
	"math/rand"
	"time"

	"fleetmind/internal/engine"
	"fleetmind/internal/fleet"
)

// demoWorld bundles the in-memory collaborators plus a driver that
// simulates agents working the backlog. It stands in for the real task
// queue and pool manager so the loop can be exercised end to end.
type demoWorld struct {
	Ledger *fleet.MemoryLedger
	Pool   *fleet.MemoryPool
	Gov    *fleet.MemoryGovernance
	Work   *fleet.MemoryWorkStore
}

func newDemoWorld() *demoWorld {
	ledger := fleet.NewMemoryLedger()
	return &demoWorld{
		Ledger: ledger,
		Pool:   fleet.NewMemoryPool(ledger),
		Gov:    fleet.NewMemoryGovernance(),
		Work:   fleet.NewMemoryWorkStore(ledger),
	}
}

func (w *demoWorld) collaborators() engine.Collaborators {
	return engine.Collaborators{
		Pool:       w.Pool,
		Governance: w.Gov,
		Work:       w.Work,
		Ledger:     w.Ledger,
	}
}

// seed queues an initial backlog skewed toward backend work.
func (w *demoWorld) seed() {
	backlog := []struct {
		title string
		role  fleet.Role
		n     int
	}{
		{"wire settings page", fleet.RoleFrontend, 2},
		{"extend ingest API", fleet.RoleBackend, 4},
		{"rotate signing keys", fleet.RoleSecurity, 1},
	}
	for _, b := range backlog {
		for i := 0; i < b.n; i++ {
			w.Work.Enqueue(b.title, b.role)
		}
	}
}

// drive simulates the fleet between cycles: queued jobs start when an
// idle agent of the right role exists, active jobs finish (mostly
// successfully), and new work trickles in.
func (w *demoWorld) drive(ctx context.Context, tick time.Duration) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	roles := fleet.Roles()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		idle := map[fleet.Role]int{}
		for _, a := range w.Pool.ListAgents() {
			if a.State == fleet.AgentIdle {
				idle[a.Role]++
			}
		}

		for _, j := range w.Work.ListJobs() {
			switch j.State {
			case fleet.JobQueued:
				if idle[j.Role] > 0 {
					idle[j.Role]--
					_ = w.Work.Transition(j.ID, fleet.JobActive)
				}
			case fleet.JobActive:
				if rng.Float64() < 0.6 {
					if rng.Float64() < 0.9 {
						_ = w.Work.Transition(j.ID, fleet.JobCompleted)
					} else {
						_ = w.Work.Transition(j.ID, fleet.JobFailed)
					}
				}
			}
		}

		if rng.Float64() < 0.5 {
			w.Work.Enqueue("follow-up work", roles[rng.Intn(len(roles))])
		}
	}
}
