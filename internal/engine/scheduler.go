package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Start launches the cycle scheduler: one goroutine firing RunCycle at
// the configured interval. A tick that lands while a cycle is still in
// flight is skipped, never queued. Start is idempotent.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.cfg.Engine.CycleInterval)
		defer ticker.Stop()

		e.logger.Info("scheduler started",
			zap.Duration("interval", e.cfg.Engine.CycleInterval))

		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stop:
				return
			case d := <-e.interval:
				ticker.Reset(d)
				e.logger.Info("cycle interval updated", zap.Duration("interval", d))
			case <-ticker.C:
				if _, err := e.RunCycle(ctx); err != nil {
					if errors.Is(err, ErrCycleInFlight) {
						e.logger.Debug("tick skipped, cycle in flight")
						continue
					}
					// Failed cycles are discarded, not fatal; the next
					// tick tries again.
					e.logger.Warn("scheduled cycle failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop halts the scheduler. A cycle already in progress is not
// interrupted; Stop returns once the scheduler goroutine exits.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	e.mu.Unlock()

	close(e.stop)
	e.wg.Wait()

	e.mu.Lock()
	e.stop = make(chan struct{})
	e.mu.Unlock()
	e.logger.Info("scheduler stopped")
}

// UpdateInterval changes the scheduler's tick interval. Used by the
// CLI's config hot-reload; a no-op if the scheduler is not running.
func (e *Engine) UpdateInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case e.interval <- d:
	default:
	}
}
