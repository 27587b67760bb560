package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/glossary-agent/internal/catalog"
)

func TestNewStore(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)

	// Every content type must resolve to a complete bundle.
	types := []catalog.ContentType{
		catalog.ContentText,
		catalog.ContentMarkdown,
		catalog.ContentStructured,
		catalog.ContentList,
	}
	for _, ct := range types {
		bundle, err := store.Bundle(catalog.ColumnDefinition{ID: "col", Type: ct})
		require.NoError(t, err, "content type %s", ct)
		assert.NotEmpty(t, bundle.Generate)
		assert.NotEmpty(t, bundle.Evaluate)
		assert.NotEmpty(t, bundle.Improve)
	}
}

func TestBundleUnknownContentType(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)

	_, err = store.Bundle(catalog.ColumnDefinition{ID: "weird", Type: catalog.ContentType("html")})
	require.Error(t, err)

	var confErr *ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "weird", confErr.Column)
}

func TestValidateCatalog(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)

	reg, err := catalog.LoadDefault()
	require.NoError(t, err)

	assert.NoError(t, store.ValidateCatalog(reg))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]string
		expected string
	}{
		{
			name:     "single placeholder",
			template: "Define {{.Term}}.",
			data:     map[string]string{"Term": "overfitting"},
			expected: "Define overfitting.",
		},
		{
			name:     "repeated placeholder",
			template: "{{.Term}} vs {{.Term}}",
			data:     map[string]string{"Term": "bias"},
			expected: "bias vs bias",
		},
		{
			name:     "missing key leaves placeholder",
			template: "{{.Term}} in {{.Section}}",
			data:     map[string]string{"Term": "dropout"},
			expected: "dropout in {{.Section}}",
		},
		{
			name:     "no placeholders",
			template: "static prompt",
			data:     map[string]string{"Term": "unused"},
			expected: "static prompt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format(tt.template, tt.data))
		})
	}
}

func TestEvaluationTemplatesRequestJSON(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)

	bundle, err := store.Bundle(catalog.ColumnDefinition{ID: "col", Type: catalog.ContentText})
	require.NoError(t, err)
	assert.Contains(t, bundle.Evaluate, `"score"`)
	assert.Contains(t, bundle.Evaluate, `"feedback"`)
}
