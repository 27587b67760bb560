// Package prompts provides the per-column prompt bundles used by the
// generation pipeline. Templates are stored as JSON files keyed by column
// content type and embedded at compile time.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/glossary-agent/internal/catalog"
)

//go:embed *.json
var promptFiles embed.FS

// Bundle is the template triple for one column: a generation template, an
// evaluation template, and an improvement template.
type Bundle struct {
	Generate string
	Evaluate string
	Improve  string
}

// Store resolves prompt bundles for catalog columns. Bundles are keyed by
// content type: all columns of one shape share templates, parameterized by
// term and column metadata at build time.
type Store struct {
	byType map[catalog.ContentType]Bundle
}

// phase template files embedded alongside this package.
const (
	generationFile  = "generation.json"
	evaluationFile  = "evaluation.json"
	improvementFile = "improvement.json"
)

// NewStore parses the embedded template files. Returns a ConfigurationError
// if any content type is missing a template in any phase file.
func NewStore() (*Store, error) {
	generate, err := loadPhaseFile(generationFile)
	if err != nil {
		return nil, err
	}
	evaluate, err := loadPhaseFile(evaluationFile)
	if err != nil {
		return nil, err
	}
	improve, err := loadPhaseFile(improvementFile)
	if err != nil {
		return nil, err
	}

	types := []catalog.ContentType{
		catalog.ContentText,
		catalog.ContentMarkdown,
		catalog.ContentStructured,
		catalog.ContentList,
	}

	store := &Store{byType: make(map[catalog.ContentType]Bundle, len(types))}
	for _, ct := range types {
		bundle := Bundle{
			Generate: generate[string(ct)],
			Evaluate: evaluate[string(ct)],
			Improve:  improve[string(ct)],
		}
		switch {
		case bundle.Generate == "":
			return nil, &ConfigurationError{File: generationFile, Key: string(ct)}
		case bundle.Evaluate == "":
			return nil, &ConfigurationError{File: evaluationFile, Key: string(ct)}
		case bundle.Improve == "":
			return nil, &ConfigurationError{File: improvementFile, Key: string(ct)}
		}
		store.byType[ct] = bundle
	}

	return store, nil
}

// Bundle returns the prompt bundle for a column definition.
func (s *Store) Bundle(col catalog.ColumnDefinition) (Bundle, error) {
	bundle, ok := s.byType[col.Type]
	if !ok {
		return Bundle{}, &ConfigurationError{Key: string(col.Type), Column: col.ID}
	}
	return bundle, nil
}

// ValidateCatalog confirms every column in the registry resolves to a bundle.
// Run at batch start so a misconfigured catalog fails before any work is
// dispatched.
func (s *Store) ValidateCatalog(reg *catalog.Registry) error {
	for _, col := range reg.ListColumns(catalog.Filter{}) {
		if _, err := s.Bundle(col); err != nil {
			return err
		}
	}
	return nil
}

// Format replaces template placeholders in the form {{.Key}} with values
// from data.
func Format(template string, data map[string]string) string {
	result := template
	for key, value := range data {
		placeholder := fmt.Sprintf("{{.%s}}", key)
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}

// loadPhaseFile reads one embedded phase file into a content-type → template map.
func loadPhaseFile(filename string) (map[string]string, error) {
	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}

	var templates map[string]string
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}
	return templates, nil
}
