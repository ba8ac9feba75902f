package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dyfetch/internal/history"
)

var flagHistoryLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previously resolved share links",
	Args:  cobra.NoArgs,
	RunE:  historyRun,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all history entries",
	Args:  cobra.NoArgs,
	RunE:  historyClearRun,
}

func init() {
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	historyCmd.AddCommand(historyClearCmd)
}

func historyRun(cmd *cobra.Command, args []string) error {
	store, err := history.OpenDefault()
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()

	entries, err := store.List(cmd.Context(), flagHistoryLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history entries found.")
		return nil
	}

	for _, line := range history.FormatForDisplay(entries) {
		fmt.Fprintln(out, line)
	}
	return nil
}

func historyClearRun(cmd *cobra.Command, args []string) error {
	store, err := history.OpenDefault()
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()

	n, err := store.Clear(cmd.Context())
	if err != nil {
		return err
	}
	logger.Debug().Int64("removed", n).Msg("History cleared")
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries.\n", n)
	return nil
}
