package fleet

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryPoolSpawnAndList(t *testing.T) {
	ledger := NewMemoryLedger()
	pool := NewMemoryPool(ledger)

	require.NoError(t, pool.Spawn("fleet-backend-1", RoleBackend, "worker-backend"))
	require.NoError(t, pool.Spawn("fleet-frontend-1", RoleFrontend, "worker-frontend"))

	agents := pool.ListAgents()
	require.Len(t, agents, 2)
	for _, a := range agents {
		require.Equal(t, AgentIdle, a.State)
		require.NotEmpty(t, a.ID)
	}

	entries := ledger.Since(time.Time{})
	require.Len(t, entries, 2)
	require.Equal(t, EventAgentSpawned, entries[0].Event.Type)
}

func TestMemoryPoolSpawnErr(t *testing.T) {
	pool := NewMemoryPool(nil)
	pool.SpawnErr = errors.New("resource exhausted")
	require.Error(t, pool.Spawn("x", RoleGeneral, "worker-general"))
	require.Empty(t, pool.ListAgents())
}

func TestMemoryPoolRetiredExcluded(t *testing.T) {
	pool := NewMemoryPool(nil)
	require.NoError(t, pool.Spawn("a", RoleDevops, "worker-devops"))
	id := pool.ListAgents()[0].ID
	require.NoError(t, pool.SetState(id, AgentRetired))
	require.Empty(t, pool.ListAgents())
}

func TestMemoryPoolCrashRecordedToLedger(t *testing.T) {
	ledger := NewMemoryLedger()
	pool := NewMemoryPool(ledger)
	require.NoError(t, pool.Spawn("a", RoleSecurity, "worker-security"))
	id := pool.ListAgents()[0].ID
	require.NoError(t, pool.SetState(id, AgentCrashed))

	var crashed int
	for _, e := range ledger.Since(time.Time{}) {
		if e.Event.Type == EventAgentCrashed {
			crashed++
			require.Equal(t, RoleSecurity, e.Event.Role)
		}
	}
	require.Equal(t, 1, crashed)
}

func TestMemoryPoolSetStateUnknown(t *testing.T) {
	pool := NewMemoryPool(nil)
	require.Error(t, pool.SetState("nope", AgentWorking))
}

func TestMemoryGovernance(t *testing.T) {
	gov := NewMemoryGovernance()
	gov.Receive("first")
	gov.Receive("second")
	require.Equal(t, []string{"first", "second"}, gov.Messages())

	// Returned slice is a copy.
	gov.Messages()[0] = "mutated"
	require.Equal(t, "first", gov.Messages()[0])
}

func TestWorkStoreLifecycleEvents(t *testing.T) {
	ledger := NewMemoryLedger()
	work := NewMemoryWorkStore(ledger)

	var got []Event
	cancel := work.Subscribe(func(ev Event) { got = append(got, ev) })
	defer cancel()

	j := work.Enqueue("build the thing", RoleBackend)
	require.NoError(t, work.Transition(j.ID, JobActive))
	require.NoError(t, work.Transition(j.ID, JobCompleted))

	require.Len(t, got, 3)
	require.Equal(t, EventItemQueued, got[0].Type)
	require.Equal(t, EventItemStarted, got[1].Type)
	require.Equal(t, EventItemCompleted, got[2].Type)
	for _, ev := range got {
		require.NotEmpty(t, ev.ID)
		require.Equal(t, j.ID, ev.ItemID)
	}

	done, ok := work.WorkItem(j.ID)
	require.True(t, ok)
	require.Equal(t, JobCompleted, done.State)
	require.GreaterOrEqual(t, done.Duration, time.Duration(0))

	// Ledger mirrors every emitted event.
	require.Len(t, ledger.Since(time.Time{}), 3)
}

func TestWorkStoreUnsubscribe(t *testing.T) {
	work := NewMemoryWorkStore(nil)
	count := 0
	cancel := work.Subscribe(func(Event) { count++ })
	work.Enqueue("one", RoleGeneral)
	cancel()
	work.Enqueue("two", RoleGeneral)
	require.Equal(t, 1, count)
}

func TestWorkStoreTransitionUnknown(t *testing.T) {
	work := NewMemoryWorkStore(nil)
	require.Error(t, work.Transition("missing", JobActive))
}

func TestLedgerSinceFilters(t *testing.T) {
	ledger := NewMemoryLedger()
	ledger.Record(Event{Type: EventItemQueued, At: time.Now()})
	cut := time.Now().Add(time.Second)
	require.Empty(t, ledger.Since(cut))
	require.Len(t, ledger.Since(time.Time{}), 1)
}
