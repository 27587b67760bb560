// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/glossary-agent/internal/batch"
	"github.com/jonathan/glossary-agent/internal/catalog"
	"github.com/jonathan/glossary-agent/internal/pipeline"
	"github.com/jonathan/glossary-agent/internal/store"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintCatalog outputs a summary of the loaded column catalog.
func (p *Printer) PrintCatalog(reg *catalog.Registry) {
	if reg == nil {
		return
	}

	counts := reg.Counts()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Columns:  %d\n", counts.Total))
	sb.WriteString(fmt.Sprintf("Sections: %d\n\n", len(reg.Sections())))

	for _, tier := range []catalog.Tier{catalog.TierEssential, catalog.TierImportant, catalog.TierSupplementary, catalog.TierAdvanced} {
		if n := counts.ByTier[tier]; n > 0 {
			sb.WriteString(fmt.Sprintf("  %-14s %d\n", tier, n))
		}
	}

	p.printBox("COLUMN CATALOG", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintEvent outputs a single progress line for one unit transition.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintEvent(event pipeline.ProgressEvent) {
	line := fmt.Sprintf("  %s/%s → %s", event.TermID, event.ColumnID, event.Phase)
	if event.QualityScore > 0 {
		line += fmt.Sprintf(" (score %d)", event.QualityScore)
	}
	if event.Error != "" {
		msg := event.Error
		if len(msg) > 40 {
			msg = msg[:37] + "..."
		}
		line += fmt.Sprintf(" [%s]", msg)
	}
	fmt.Fprintln(p.out, line)
}

// PrintUnit outputs a human-readable summary of one generation unit.
func (p *Printer) PrintUnit(unit *store.GenerationUnit) {
	if unit == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Term:    %s\n", unit.TermID))
	sb.WriteString(fmt.Sprintf("Column:  %s\n", unit.ColumnID))
	sb.WriteString(fmt.Sprintf("Phase:   %s\n", unit.Phase))
	if unit.QualityScore > 0 {
		sb.WriteString(fmt.Sprintf("Score:   %d/10\n", unit.QualityScore))
	}
	sb.WriteString(fmt.Sprintf("Tokens:  %d in / %d out\n", unit.TokensIn, unit.TokensOut))
	sb.WriteString(fmt.Sprintf("Cost:    $%.4f", unit.CostUSD))
	if unit.LastError != "" {
		msg := unit.LastError
		if len(msg) > 45 {
			msg = msg[:42] + "..."
		}
		sb.WriteString(fmt.Sprintf("\nError:   %s", msg))
	}

	p.printBox("GENERATION UNIT", sb.String())
}

// PrintBatchSummary outputs the final aggregate of a batch run.
func (p *Printer) PrintBatchSummary(run batch.Run) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Status:     %s\n", run.Status))
	sb.WriteString(fmt.Sprintf("Units:      %d total\n", run.TotalUnits))
	sb.WriteString(fmt.Sprintf("  completed %d, failed %d, skipped %d\n\n", run.Completed, run.Failed, run.Skipped))
	sb.WriteString(fmt.Sprintf("Tokens:     %d in / %d out\n", run.TokensIn, run.TokensOut))
	sb.WriteString(fmt.Sprintf("Cost:       $%.4f\n", run.TotalCost))

	if len(run.Tiers) > 0 {
		sb.WriteString("\nBy tier:\n")
		shown := 0
		for _, tier := range []catalog.Tier{catalog.TierEssential, catalog.TierImportant, catalog.TierSupplementary, catalog.TierAdvanced} {
			progress, ok := run.Tiers[tier]
			if !ok || shown >= maxItemsToShow {
				continue
			}
			sb.WriteString(fmt.Sprintf("  %-14s %d/%d\n", tier, progress.Completed, progress.Total))
			shown++
		}
	}

	if run.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("\nDuration:   %s", run.CompletedAt.Sub(run.StartedAt).Round(10*time.Millisecond)))
	}
	if run.Error != "" {
		sb.WriteString(fmt.Sprintf("\nError:      %s", run.Error))
	}

	p.printBox("BATCH SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}
