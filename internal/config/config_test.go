package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{
		"api_key": "test-key",
		"database_url": "postgres://localhost/glossary",
		"mode": "full",
		"batch_size": 5,
		"quality_threshold": 8,
		"order": "bottomup",
		"verbose": true
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.APIKey)
	assert.Equal(t, "postgres://localhost/glossary", cfg.DatabaseURL)
	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, 5, cfg.BatchSize)
	assert.Equal(t, 8, cfg.QualityThreshold)
	assert.Equal(t, "bottomup", cfg.Order)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig("")
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "{not json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "empty config", cfg: Config{}},
		{name: "valid", cfg: Config{Mode: "evaluate", Order: "topdown", BatchSize: 10, QualityThreshold: 7}},
		{name: "negative batch size", cfg: Config{BatchSize: -1}, wantErr: "batch_size"},
		{name: "threshold too high", cfg: Config{QualityThreshold: 11}, wantErr: "quality_threshold"},
		{name: "bad mode", cfg: Config{Mode: "improve"}, wantErr: "mode"},
		{name: "bad order", cfg: Config{Order: "random"}, wantErr: "order"},
		{name: "bad port", cfg: Config{Port: 70000}, wantErr: "port"},
		{name: "missing catalog", cfg: Config{CatalogPath: "/nonexistent/catalog.yaml"}, wantErr: "catalog"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{Mode: "generate", BatchSize: 3}
	defaults := Config{
		Mode:             "full",
		Order:            "topdown",
		BatchSize:        10,
		QualityThreshold: 7,
		APIKey:           "default-key",
	}

	merged := cfg.MergeWithDefaults(defaults)
	assert.Equal(t, "generate", merged.Mode, "explicit value wins")
	assert.Equal(t, 3, merged.BatchSize)
	assert.Equal(t, "topdown", merged.Order, "empty value falls back")
	assert.Equal(t, 7, merged.QualityThreshold)
	assert.Equal(t, "default-key", merged.APIKey)
}
