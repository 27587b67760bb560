// Package catalog provides the fixed column catalog: the set of content slots
// generated for every glossary term, grouped into sections and priority tiers.
package catalog

import (
	"fmt"
	"sort"
)

// Tier classifies a column by priority. Tiers drive per-tier progress
// reporting and let callers process the most important content first.
type Tier string

// Tier constants, ordered from most to least important.
const (
	TierEssential     Tier = "essential"
	TierImportant     Tier = "important"
	TierSupplementary Tier = "supplementary"
	TierAdvanced      Tier = "advanced"
)

// ParseTier converts a string into a Tier, rejecting unknown values.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierEssential, TierImportant, TierSupplementary, TierAdvanced:
		return Tier(s), nil
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

// ContentType describes the shape of the content a column holds.
type ContentType string

// ContentType constants define supported column content shapes.
const (
	ContentText       ContentType = "text"
	ContentMarkdown   ContentType = "markdown"
	ContentStructured ContentType = "structured"
	ContentList       ContentType = "list"
)

// ParseContentType converts a string into a ContentType, rejecting unknown values.
func ParseContentType(s string) (ContentType, error) {
	switch ContentType(s) {
	case ContentText, ContentMarkdown, ContentStructured, ContentList:
		return ContentType(s), nil
	}
	return "", fmt.Errorf("unknown content type %q", s)
}

// ColumnDefinition is one content slot in the catalog. Definitions are loaded
// once at startup and are read-only afterwards.
type ColumnDefinition struct {
	ID      string      // globally unique, stable identifier
	Title   string      // display name
	Section string      // parent section name
	Tier    Tier        // priority tier
	Type    ContentType // content shape
	Order   int         // position within the catalog
}

// Filter narrows a ListColumns call. Zero values match everything.
type Filter struct {
	Tier    Tier
	Section string
}

// Counts holds the fixed catalog totals, computed once at load time so
// concurrent progress readers never recount hundreds of columns.
type Counts struct {
	Total  int
	ByTier map[Tier]int
}

// Registry is an immutable, concurrently-readable view of the column catalog.
type Registry struct {
	columns []ColumnDefinition // in catalog order
	byID    map[string]*ColumnDefinition
	counts  Counts
}

// NewRegistry builds a Registry from a list of definitions. Column IDs must
// be unique; duplicates are a configuration error.
func NewRegistry(columns []ColumnDefinition) (*Registry, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}

	sorted := make([]ColumnDefinition, len(columns))
	copy(sorted, columns)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	r := &Registry{
		columns: sorted,
		byID:    make(map[string]*ColumnDefinition, len(sorted)),
		counts: Counts{
			Total:  len(sorted),
			ByTier: make(map[Tier]int, 4),
		},
	}

	for i := range r.columns {
		col := &r.columns[i]
		if col.ID == "" {
			return nil, fmt.Errorf("column at order %d has empty ID", col.Order)
		}
		if _, exists := r.byID[col.ID]; exists {
			return nil, fmt.Errorf("duplicate column ID %q", col.ID)
		}
		r.byID[col.ID] = col
		r.counts.ByTier[col.Tier]++
	}

	return r, nil
}

// GetColumn returns the definition for a column ID.
func (r *Registry) GetColumn(id string) (ColumnDefinition, error) {
	col, ok := r.byID[id]
	if !ok {
		return ColumnDefinition{}, &NotFoundError{ColumnID: id}
	}
	return *col, nil
}

// ListColumns returns catalog-ordered definitions matching the filter.
func (r *Registry) ListColumns(filter Filter) []ColumnDefinition {
	var out []ColumnDefinition
	for _, col := range r.columns {
		if filter.Tier != "" && col.Tier != filter.Tier {
			continue
		}
		if filter.Section != "" && col.Section != filter.Section {
			continue
		}
		out = append(out, col)
	}
	return out
}

// Counts returns the cached catalog totals.
func (r *Registry) Counts() Counts {
	return r.counts
}

// Sections returns the distinct section names in catalog order.
func (r *Registry) Sections() []string {
	var sections []string
	seen := make(map[string]bool)
	for _, col := range r.columns {
		if !seen[col.Section] {
			seen[col.Section] = true
			sections = append(sections, col.Section)
		}
	}
	return sections
}
