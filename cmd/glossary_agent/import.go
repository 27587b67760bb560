package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/glossary-agent/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <terms.yaml>",
	Short: "Import glossary terms from a YAML file",
	Long: `Upserts terms into the store from a YAML file of the form:

  terms:
    - id: E1
      name: Gradient Descent
    - id: E2
      name: Attention

Existing terms with the same ID have their name updated.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var importDatabaseURL string

func init() {
	importCmd.Flags().StringVar(&importDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	rootCmd.AddCommand(importCmd)
}

type termsFile struct {
	Terms []struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"terms"`
}

// parseTermsFile reads and validates a terms YAML document.
func parseTermsFile(data []byte) ([]store.Term, error) {
	var file termsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse terms YAML: %w", err)
	}
	if len(file.Terms) == 0 {
		return nil, fmt.Errorf("terms file contains no terms")
	}

	seen := make(map[string]bool, len(file.Terms))
	terms := make([]store.Term, 0, len(file.Terms))
	for i, t := range file.Terms {
		if t.ID == "" || t.Name == "" {
			return nil, fmt.Errorf("term %d: id and name are required", i+1)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate term id %q", t.ID)
		}
		seen[t.ID] = true
		terms = append(terms, store.Term{ID: t.ID, Name: t.Name})
	}
	return terms, nil
}

func runImport(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read terms file: %w", err)
	}
	terms, err := parseTermsFile(data)
	if err != nil {
		return err
	}

	db, err := openStore(ctx, importDatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, term := range terms {
		if err := db.UpsertTerm(ctx, term); err != nil {
			return fmt.Errorf("failed to import term %s: %w", term.ID, err)
		}
	}

	fmt.Fprintf(os.Stdout, "Imported %d term(s)\n", len(terms))
	return nil
}
