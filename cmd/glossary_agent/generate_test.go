package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/glossary-agent/internal/batch"
	"github.com/jonathan/glossary-agent/internal/catalog"
	"github.com/jonathan/glossary-agent/internal/config"
	"github.com/jonathan/glossary-agent/internal/pipeline"
)

func TestBuildBatchOptionsDefaults(t *testing.T) {
	opts, err := buildBatchOptions(config.Config{}, true, false)
	require.NoError(t, err)

	assert.Equal(t, pipeline.ModeFullPipeline, opts.Mode)
	assert.Equal(t, 10, opts.BatchSize)
	assert.Equal(t, 7, opts.QualityThreshold)
	assert.Equal(t, 3, opts.MaxRetries)
	assert.True(t, opts.SkipExisting)
	assert.False(t, opts.Force)
	assert.Equal(t, batch.OrderTopDown, opts.Order)
}

func TestBuildBatchOptionsFromConfig(t *testing.T) {
	cfg := config.Config{
		Mode:             "generate",
		BatchSize:        4,
		QualityThreshold: 9,
		MaxRetries:       2,
		BatchDelayMS:     1500,
		Order:            "bottomup",
	}
	opts, err := buildBatchOptions(cfg, true, false)
	require.NoError(t, err)

	assert.Equal(t, pipeline.ModeGenerateOnly, opts.Mode)
	assert.Equal(t, 4, opts.BatchSize)
	assert.Equal(t, 9, opts.QualityThreshold)
	assert.Equal(t, 2, opts.MaxRetries)
	assert.Equal(t, 1500*time.Millisecond, opts.InterBatchDelay)
	assert.Equal(t, batch.OrderBottomUp, opts.Order)
}

func TestBuildBatchOptionsForce(t *testing.T) {
	// Force overrides the skip-existing default so the two never conflict.
	opts, err := buildBatchOptions(config.Config{}, true, true)
	require.NoError(t, err)
	assert.True(t, opts.Force)
	assert.False(t, opts.SkipExisting)
}

func TestBuildBatchOptionsErrors(t *testing.T) {
	_, err := buildBatchOptions(config.Config{Mode: "refine"}, true, false)
	assert.Error(t, err)

	_, err = buildBatchOptions(config.Config{BatchSize: 500}, true, false)
	assert.Error(t, err)
}

func TestBuildScope(t *testing.T) {
	scope, err := buildScope([]string{"E1", "E2"}, []string{"intro_definition"}, "essential", "Introduction")
	require.NoError(t, err)
	assert.Equal(t, []string{"E1", "E2"}, scope.TermIDs)
	assert.Equal(t, []string{"intro_definition"}, scope.ColumnIDs)
	assert.Equal(t, catalog.TierEssential, scope.Tier)
	assert.Equal(t, "Introduction", scope.Section)

	_, err = buildScope(nil, nil, "critical", "")
	assert.Error(t, err)
}
