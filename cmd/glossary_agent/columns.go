package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/glossary-agent/internal/catalog"
)

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "List the column catalog",
	Long:  `Prints the column catalog, optionally filtered by tier or section.`,
	RunE:  runColumns,
}

var (
	columnsTier        string
	columnsSection     string
	columnsCatalogPath string
)

func init() {
	columnsCmd.Flags().StringVar(&columnsTier, "tier", "", "Only columns in this tier (essential, important, supplementary, advanced)")
	columnsCmd.Flags().StringVar(&columnsSection, "section", "", "Only columns in this section")
	columnsCmd.Flags().StringVar(&columnsCatalogPath, "catalog", "", "Path to a custom catalog YAML file")
	rootCmd.AddCommand(columnsCmd)
}

func runColumns(_ *cobra.Command, _ []string) error {
	registry, err := loadCatalog(columnsCatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	return printColumns(os.Stdout, registry, columnsTier, columnsSection)
}

func printColumns(out io.Writer, registry *catalog.Registry, tier, section string) error {
	filter := catalog.Filter{Section: section}
	if tier != "" {
		parsed, err := catalog.ParseTier(tier)
		if err != nil {
			return err
		}
		filter.Tier = parsed
	}

	columns := registry.ListColumns(filter)
	if len(columns) == 0 {
		return fmt.Errorf("no columns match the requested filter")
	}

	currentSection := ""
	for _, col := range columns {
		if col.Section != currentSection {
			currentSection = col.Section
			fmt.Fprintf(out, "\n%s\n", currentSection)
		}
		fmt.Fprintf(out, "  %-28s %-14s %s\n", col.ID, col.Tier, col.Title)
	}

	counts := registry.Counts()
	fmt.Fprintf(out, "\n%d of %d columns\n", len(columns), counts.Total)
	return nil
}
