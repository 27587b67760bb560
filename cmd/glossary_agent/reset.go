package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset [term-id]",
	Short: "Return failed units to pending for a retry pass",
	Long: `Resets units in the failed phase back to pending so the next generate run
picks them up. The cost ledger is preserved. Without arguments, resets failed
units for every term; with a term ID, only that term's units.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReset,
}

var resetDatabaseURL string

func init() {
	resetCmd.Flags().StringVar(&resetDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	rootCmd.AddCommand(resetCmd)
}

func runReset(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	db, err := openStore(ctx, resetDatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	termID := ""
	if len(args) == 1 {
		termID = args[0]
		if _, found, err := db.GetTerm(ctx, termID); err != nil {
			return err
		} else if !found {
			return fmt.Errorf("term not found: %s", termID)
		}
	}

	count, err := db.ResetFailed(ctx, termID)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Reset %d failed unit(s) to pending\n", count)
	return nil
}
