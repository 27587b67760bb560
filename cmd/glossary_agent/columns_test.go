package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/glossary-agent/internal/catalog"
)

func TestPrintColumns(t *testing.T) {
	registry, err := catalog.LoadDefault()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printColumns(&buf, registry, "", ""))

	out := buf.String()
	assert.Contains(t, out, "Introduction")
	assert.Contains(t, out, "intro_definition")
	assert.Contains(t, out, "33 of 33 columns")
}

func TestPrintColumnsFiltered(t *testing.T) {
	registry, err := catalog.LoadDefault()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printColumns(&buf, registry, "essential", ""))
	assert.NotContains(t, buf.String(), "advanced")

	var empty bytes.Buffer
	err = printColumns(&empty, registry, "advanced", "Introduction")
	assert.Error(t, err, "no advanced columns in the Introduction section")

	err = printColumns(&empty, registry, "critical", "")
	assert.Error(t, err)
}

func TestParseTermsFile(t *testing.T) {
	terms, err := parseTermsFile([]byte(`
terms:
  - id: E1
    name: Gradient Descent
  - id: E2
    name: Attention
`))
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, "E1", terms[0].ID)
	assert.Equal(t, "Attention", terms[1].Name)
}

func TestParseTermsFileErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not yaml", data: `{{{`},
		{name: "empty", data: `terms: []`},
		{name: "missing name", data: "terms:\n  - id: E1"},
		{name: "duplicate id", data: "terms:\n  - id: E1\n    name: A\n  - id: E1\n    name: B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseTermsFile([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
