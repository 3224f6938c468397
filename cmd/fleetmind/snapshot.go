package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fleetmind/internal/store"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Export or import the persisted learned state",
}

var snapshotExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the latest stored snapshot to a file (or stdout)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.New(cfg.Storage.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()

		data, err := st.LatestSnapshot()
		if err != nil {
			return fmt.Errorf("failed to load snapshot: %w", err)
		}
		if len(args) == 0 {
			fmt.Println(string(data))
			return nil
		}
		if err := os.WriteFile(args[0], data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", args[0], err)
		}
		fmt.Printf("snapshot written to %s\n", args[0])
		return nil
	},
}

var snapshotImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load a snapshot file into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		st, err := store.New(cfg.Storage.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()

		if err := st.SaveSnapshot(data); err != nil {
			return fmt.Errorf("failed to save snapshot: %w", err)
		}
		fmt.Println("snapshot imported")
		return nil
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotExportCmd)
	snapshotCmd.AddCommand(snapshotImportCmd)
}
