package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// catalogFile is the YAML layout of a catalog definition.
type catalogFile struct {
	Sections []sectionDef `yaml:"sections"`
}

type sectionDef struct {
	Name    string      `yaml:"name"`
	Columns []columnDef `yaml:"columns"`
}

type columnDef struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	Tier  string `yaml:"tier"`
	Type  string `yaml:"type"`
}

// LoadDefault builds the Registry from the catalog embedded at compile time.
func LoadDefault() (*Registry, error) {
	return parseCatalog(defaultCatalog)
}

// LoadFile builds the Registry from a YAML catalog file, for deployments
// that override the built-in column set.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	reg, err := parseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}
	return reg, nil
}

func parseCatalog(data []byte) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}

	var columns []ColumnDefinition
	order := 0
	for _, section := range file.Sections {
		if section.Name == "" {
			return nil, fmt.Errorf("catalog section at index %d has no name", order)
		}
		for _, col := range section.Columns {
			tier, err := ParseTier(col.Tier)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col.ID, err)
			}
			contentType, err := ParseContentType(col.Type)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col.ID, err)
			}
			columns = append(columns, ColumnDefinition{
				ID:      col.ID,
				Title:   col.Title,
				Section: section.Name,
				Tier:    tier,
				Type:    contentType,
				Order:   order,
			})
			order++
		}
	}

	return NewRegistry(columns)
}
