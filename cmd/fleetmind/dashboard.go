package main

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"fleetmind/internal/engine"
)

var dashboardRaw bool

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render the fleet dashboard after one demo cycle",
	Long: `Runs a single cycle against the demo fleet and renders the engine's
Markdown dashboard to the terminal.`,
	RunE: showDashboard,
}

func init() {
	dashboardCmd.Flags().BoolVar(&dashboardRaw, "raw", false, "print raw Markdown without terminal styling")
}

func showDashboard(cmd *cobra.Command, args []string) error {
	world := newDemoWorld()
	world.seed()

	eng := engine.New(cfg, world.collaborators(), logger)
	if _, err := eng.RunCycle(cmd.Context()); err != nil {
		return fmt.Errorf("cycle failed: %w", err)
	}

	md := eng.Dashboard()
	if dashboardRaw {
		fmt.Println(md)
		return nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return fmt.Errorf("failed to render dashboard: %w", err)
	}
	fmt.Print(out)
	return nil
}
