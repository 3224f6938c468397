package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fleetmind/internal/config"
	"fleetmind/internal/engine"
	"fleetmind/internal/store"
)

var demoTick time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control loop against the demo fleet",
	Long: `Starts the cycle scheduler against in-memory demo collaborators.
Learned state is restored from the snapshot store on startup and saved
on shutdown. Editing the config file while running hot-reloads the
cycle interval. Stop with Ctrl-C.`,
	RunE: runLoop,
}

func init() {
	runCmd.Flags().DurationVar(&demoTick, "demo-tick", 5*time.Second, "demo world simulation tick")
}

func runLoop(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	world := newDemoWorld()
	world.seed()

	eng := engine.New(cfg, world.collaborators(), logger)

	st, err := store.New(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	if snap, err := st.LatestSnapshot(); err == nil {
		if err := eng.Restore(snap); err != nil {
			logger.Warn("snapshot restore failed, starting fresh", zap.Error(err))
		} else {
			logger.Info("learned state restored", zap.Int("cycle", eng.CycleCount()))
		}
	} else if !errors.Is(err, store.ErrNoSnapshot) {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	unsubscribe := world.Work.Subscribe(eng.Ingest)
	defer unsubscribe()

	eng.Start(ctx)
	defer eng.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		world.drive(gctx, demoTick)
		return nil
	})
	g.Go(func() error {
		return watchConfig(gctx, eng)
	})
	g.Go(func() error {
		return persistDirectives(gctx, eng, st)
	})

	<-ctx.Done()
	logger.Info("shutting down")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("worker exited with error", zap.Error(err))
	}

	snap, err := eng.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}
	if err := st.SaveSnapshot(snap); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}
	logger.Info("learned state saved", zap.Int("cycle", eng.CycleCount()))
	return nil
}

// watchConfig hot-reloads the cycle interval when the config file
// changes. Other settings require a restart.
func watchConfig(ctx context.Context, eng *engine.Engine) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(cfgPath); err != nil {
		// No config file on disk; nothing to watch.
		logger.Debug("config watch disabled", zap.Error(err))
		<-ctx.Done()
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			fresh, err := config.Load(cfgPath)
			if err != nil {
				logger.Warn("config reload failed", zap.Error(err))
				continue
			}
			if fresh.Engine.CycleInterval != cfg.Engine.CycleInterval {
				cfg.Engine.CycleInterval = fresh.Engine.CycleInterval
				eng.UpdateInterval(fresh.Engine.CycleInterval)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// persistDirectives mirrors the engine's directive log into the store
// once a minute.
func persistDirectives(ctx context.Context, eng *engine.Engine, st *store.Store) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, d := range eng.Directives() {
				rec := store.DirectiveRecord{
					ID:           d.ID,
					Target:       string(d.Target),
					Summary:      d.Summary,
					AutoExecuted: d.AutoExecuted,
					IssuedAt:     d.IssuedAt,
				}
				if err := st.RecordDirective(rec); err != nil {
					logger.Warn("directive persist failed", zap.Error(err))
				}
			}
		}
	}
}
