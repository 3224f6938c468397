package engine

import (
	"encoding/json"
	"fmt"

	"fleetmind/internal/assess"
	"fleetmind/internal/stats"
)

// snapshotVersion is written into every serialized snapshot.
const snapshotVersion = 1

// snapshot is the persisted shape of the engine's learned state.
type snapshot struct {
	Version        int                `json:"version"`
	CycleCount     int                `json:"cycle_count"`
	Priors         map[string]float64 `json:"priors"`
	EMAThroughput  []float64          `json:"ema_throughput"`
	EMAFailureRate []float64          `json:"ema_failure_rate"`
}

// Serialize produces a versioned JSON snapshot of the learned state:
// cycle count, priors, and the two EMA input series. Blocks until any
// in-flight cycle completes.
func (e *Engine) Serialize() ([]byte, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := json.Marshal(snapshot{
		Version:        snapshotVersion,
		CycleCount:     e.cycleCount,
		Priors:         e.state.Priors.Snapshot(),
		EMAThroughput:  e.state.Throughput.Values(),
		EMAFailureRate: e.state.FailureRate.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("serialize engine state: %w", err)
	}
	return data, nil
}

// Restore replaces the learned state from a serialized snapshot.
// The version field is carried but not validated against the current
// schema; callers own migration concerns.
func (e *Engine) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("restore engine state: %w", err)
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cycleCount = snap.CycleCount
	e.state.Priors = assess.Priors{}
	for k, v := range snap.Priors {
		e.state.Priors[k] = stats.Clamp(v, 0.01, 0.99)
	}
	e.state.Throughput = stats.FromValues(e.cfg.Histories.SeriesCap, snap.EMAThroughput)
	e.state.FailureRate = stats.FromValues(e.cfg.Histories.SeriesCap, snap.EMAFailureRate)
	return nil
}
