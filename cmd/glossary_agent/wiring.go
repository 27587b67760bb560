package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonathan/glossary-agent/internal/catalog"
	"github.com/jonathan/glossary-agent/internal/store"
)

// openStore connects to Postgres and ensures the schema exists. The URL
// comes from the flag/config value or falls back to DATABASE_URL.
func openStore(ctx context.Context, databaseURL string) (*store.DB, error) {
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required (--db-url flag, config, or DATABASE_URL env var)")
	}

	db, err := store.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return db, nil
}

// loadCatalog loads the embedded default catalog or a custom YAML file.
func loadCatalog(path string) (*catalog.Registry, error) {
	if path == "" {
		return catalog.LoadDefault()
	}
	return catalog.LoadFile(path)
}

// resolveAPIKey returns the configured key or the GEMINI_API_KEY env var.
func resolveAPIKey(key string) (string, error) {
	if key == "" {
		key = os.Getenv("GEMINI_API_KEY")
	}
	if key == "" {
		return "", fmt.Errorf("API key is required (--api-key flag, config, or GEMINI_API_KEY env var)")
	}
	return key, nil
}
