package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"fleetmind/internal/engine"
)

var cycleJSON bool

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run a single control-loop cycle and print the report",
	Long: `Executes one full cycle (understand, assess, plan, inform, monitor)
against the demo fleet, using the same code path as the scheduler, and
prints the cycle report.`,
	RunE: runSingleCycle,
}

func init() {
	cycleCmd.Flags().BoolVar(&cycleJSON, "json", false, "print the full report as JSON")
}

func runSingleCycle(cmd *cobra.Command, args []string) error {
	world := newDemoWorld()
	world.seed()

	eng := engine.New(cfg, world.collaborators(), logger)
	report, err := eng.RunCycle(cmd.Context())
	if err != nil {
		return fmt.Errorf("cycle failed: %w", err)
	}

	if cycleJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("cycle %d finished in %s\n", report.Cycle, report.Duration.Round(0))
	fmt.Printf("  health:     %.0f/100 (%s risk)\n", report.Assessment.HealthScore, report.Assessment.RiskLevel)
	if f := report.Assessment.Formula; f != nil {
		fmt.Printf("  formula:    %s -> %s\n", f.Empirical.Notation, f.Recommendation.Verdict)
	}
	fmt.Printf("  patterns:   %d\n", len(report.Situation.Patterns))
	fmt.Printf("  anomalies:  %d\n", len(report.Assessment.Anomalies))
	fmt.Printf("  actions:    %d (approval required: %v)\n", len(report.Plan.Actions), report.Plan.RequiresApproval)
	fmt.Printf("  directives: %d\n", len(report.Directives))
	return nil
}
