package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/glossary-agent/internal/observability"
	"github.com/jonathan/glossary-agent/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status [term-id]",
	Short: "Show generation progress for all terms, or one term's units",
	Long: `Without arguments, prints a per-phase summary across all persisted units.
With a term ID, prints every unit for that term.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var statusDatabaseURL string

func init() {
	statusCmd.Flags().StringVar(&statusDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	db, err := openStore(ctx, statusDatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if len(args) == 1 {
		return printTermStatus(ctx, db, args[0])
	}
	return printOverallStatus(ctx, db)
}

func printTermStatus(ctx context.Context, db *store.DB, termID string) error {
	term, found, err := db.GetTerm(ctx, termID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("term not found: %s", termID)
	}

	units, err := db.ListByTerm(ctx, termID)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s (%s): %d units\n\n", term.Name, term.ID, len(units))
	printer := observability.NewPrinter(os.Stdout)
	for i := range units {
		printer.PrintUnit(&units[i])
	}
	return nil
}

func printOverallStatus(ctx context.Context, db *store.DB) error {
	terms, err := db.ListTerms(ctx)
	if err != nil {
		return err
	}

	byPhase := map[store.Phase]int{}
	var totalUnits int
	var totalCost float64
	for _, term := range terms {
		units, err := db.ListByTerm(ctx, term.ID)
		if err != nil {
			return err
		}
		for _, unit := range units {
			byPhase[unit.Phase]++
			totalCost += unit.CostUSD
			totalUnits++
		}
	}

	fmt.Fprintf(os.Stdout, "Terms: %d, persisted units: %d\n", len(terms), totalUnits)
	for _, phase := range []store.Phase{store.PhasePending, store.PhaseGenerated, store.PhaseEvaluated, store.PhaseImproving, store.PhaseFinal, store.PhaseFailed} {
		if n := byPhase[phase]; n > 0 {
			fmt.Fprintf(os.Stdout, "  %-10s %d\n", phase, n)
		}
	}
	fmt.Fprintf(os.Stdout, "Total spend: $%.4f\n", totalCost)
	return nil
}
