package main

import (
	"fmt"

	"github.com/harunnryd/tollgate/internal/config"
	"github.com/harunnryd/tollgate/internal/store"

	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect and maintain handler state",
	Long:  `Inspect per-session handler state and remove stale records.`,
}

var stateShowCmd = &cobra.Command{
	Use:   "show <session>",
	Short: "Show every state record for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := outputFormatter(cmd)
		if err != nil {
			return err
		}

		st, err := store.New(cfg.Store.Dir)
		if err != nil {
			return fmt.Errorf("failed to open state store: %w", err)
		}
		records, err := st.List(args[0])
		if err != nil {
			return fmt.Errorf("failed to list state: %w", err)
		}

		output, err := f.FormatRecords(records)
		if err != nil {
			return fmt.Errorf("failed to format state: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), output)
		return nil
	},
}

var stateSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove stale state records",
	Long:  `Remove state records and orphaned temp files older than --max-age. Concurrent sweeps wait on a lock in the state directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		maxAgeFlag, _ := cmd.Flags().GetString("max-age")
		maxAge, err := config.DurationOrDefault(maxAgeFlag, cfg.Store.SweepMaxAge)
		if err != nil {
			return fmt.Errorf("invalid --max-age: %w", err)
		}
		if maxAge <= 0 {
			return fmt.Errorf("--max-age must be positive, got %s", maxAge)
		}

		st, err := store.New(cfg.Store.Dir)
		if err != nil {
			return fmt.Errorf("failed to open state store: %w", err)
		}

		result, err := st.Sweep(cmd.Context(), maxAge, store.FileLockConfigFrom(cfg.Store))
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d of %d files older than %s from %s\n", result.Removed, result.Scanned, maxAge, st.Dir())
		return nil
	},
}

func init() {
	stateShowCmd.Flags().StringP("output", "o", "table", "output format (table, json, yaml)")
	stateSweepCmd.Flags().String("max-age", "", "remove records not updated within this duration (default store.sweep_max_age)")
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateSweepCmd)
	rootCmd.AddCommand(stateCmd)
}
