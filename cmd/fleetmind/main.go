package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"fleetmind/internal/config"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	// Loaded per invocation
	cfg    config.Config
	logger *zap.Logger
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "fleetmind",
	Short: "fleetmind - autonomous fleet-intelligence control loop",
	Long: `fleetmind observes a pool of worker agents and a work backlog,
builds statistical state estimates, predicts near-future outcomes with
Bayesian updating, detects anomalies, and issues corrective directives -
a closed feedback loop that learns across cycles.

The fleet composition optimizer sizes the pool like a chemist writes
compounds: backlog role weights reduce to a smallest integer ratio and
scale to the target pool size by largest-remainder apportionment.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		zcfg := zap.NewProductionConfig()
		if lvl, lerr := zapcore.ParseLevel(cfg.Logging.Level); lerr == nil {
			zcfg.Level = zap.NewAtomicLevelAt(lvl)
		}
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "fleetmind.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cycleCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
