package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "state", "fleetmind.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSnapshotRoundtrip(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveSnapshot([]byte(`{"version":1,"cycle_count":4}`)))
	require.NoError(t, s.SaveSnapshot([]byte(`{"version":1,"cycle_count":5}`)))

	got, err := s.LatestSnapshot()
	require.NoError(t, err)
	require.JSONEq(t, `{"version":1,"cycle_count":5}`, string(got), "latest wins")
}

func TestLatestSnapshotEmpty(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LatestSnapshot()
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestDirectiveLog(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.RecordDirective(DirectiveRecord{
		ID: "d1", Target: "pool_manager", Summary: "spawn 2 backend agent(s)",
		AutoExecuted: true, IssuedAt: base,
	}))
	require.NoError(t, s.RecordDirective(DirectiveRecord{
		ID: "d2", Target: "governance", Summary: "recommend retiring 1 agent(s)",
		IssuedAt: base.Add(time.Second),
	}))

	got, err := s.RecentDirectives(10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "d2", got[0].ID, "newest first")
	require.Equal(t, "d1", got[1].ID)
	require.True(t, got[1].AutoExecuted)
	require.False(t, got[0].AutoExecuted)

	limited, err := s.RecentDirectives(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, "d2", limited[0].ID)
}

func TestRecordDirectiveIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	d := DirectiveRecord{ID: "d1", Target: "alerting", Summary: "failure spike", IssuedAt: time.Now()}
	require.NoError(t, s.RecordDirective(d))
	require.NoError(t, s.RecordDirective(d))

	got, err := s.RecentDirectives(10)
	require.NoError(t, err)
	require.Len(t, got, 1, "re-recording the same directive is a no-op")
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetmind.db")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveSnapshot([]byte(`{"version":1}`)))
	require.NoError(t, s.Close())

	s2, err := New(path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.LatestSnapshot()
	require.NoError(t, err)
	require.JSONEq(t, `{"version":1}`, string(got))
}
