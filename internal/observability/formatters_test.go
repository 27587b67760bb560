package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/glossary-agent/internal/batch"
	"github.com/jonathan/glossary-agent/internal/catalog"
	"github.com/jonathan/glossary-agent/internal/pipeline"
	"github.com/jonathan/glossary-agent/internal/store"
)

func TestPrintBatchSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	completed := time.Now()
	p.PrintBatchSummary(batch.Run{
		Status:     batch.StatusCompleted,
		TotalUnits: 10,
		Completed:  8,
		Failed:     1,
		Skipped:    1,
		TokensIn:   1000,
		TokensOut:  500,
		TotalCost:  0.0123,
		Tiers: map[catalog.Tier]batch.TierProgress{
			catalog.TierEssential: {Completed: 5, Total: 5},
			catalog.TierImportant: {Completed: 3, Total: 5},
		},
		StartedAt:   completed.Add(-3 * time.Second),
		CompletedAt: &completed,
	})

	out := buf.String()
	assert.Contains(t, out, "BATCH SUMMARY")
	assert.Contains(t, out, "completed 8, failed 1, skipped 1")
	assert.Contains(t, out, "$0.0123")
	assert.Contains(t, out, "essential")
	assert.Contains(t, out, "5/5")
	assert.Contains(t, out, "Duration:")
}

func TestPrintUnit(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintUnit(&store.GenerationUnit{
		TermID:       "E1",
		ColumnID:     "intro_definition",
		Phase:        store.PhaseFinal,
		QualityScore: 9,
		TokensIn:     300,
		TokensOut:    150,
		CostUSD:      0.0021,
	})

	out := buf.String()
	assert.Contains(t, out, "GENERATION UNIT")
	assert.Contains(t, out, "intro_definition")
	assert.Contains(t, out, "9/10")
	assert.Contains(t, out, "300 in / 150 out")

	// Nil unit prints nothing.
	buf.Reset()
	p.PrintUnit(nil)
	assert.Empty(t, buf.String())
}

func TestPrintEvent(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintEvent(pipeline.ProgressEvent{
		TermID:       "E1",
		ColumnID:     "intro_definition",
		Phase:        store.PhaseEvaluated,
		QualityScore: 6,
	})
	assert.Contains(t, buf.String(), "E1/intro_definition")
	assert.Contains(t, buf.String(), "(score 6)")

	buf.Reset()
	p.PrintEvent(pipeline.ProgressEvent{
		TermID:   "E1",
		ColumnID: "intro_definition",
		Phase:    store.PhaseFailed,
		Error:    strings.Repeat("x", 60),
	})
	assert.Contains(t, buf.String(), "...")
}

func TestPrintCatalog(t *testing.T) {
	reg, err := catalog.LoadDefault()
	require.NoError(t, err)

	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.PrintCatalog(reg)

	out := buf.String()
	assert.Contains(t, out, "COLUMN CATALOG")
	assert.Contains(t, out, "Columns:  33")
	assert.Contains(t, out, "essential")
}

func TestBoxTruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.printBox("TITLE", strings.Repeat("a", 100))

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
}
