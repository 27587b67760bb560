package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain JSON untouched",
			input:    `{"score": 8, "feedback": "good"}`,
			expected: `{"score": 8, "feedback": "good"}`,
		},
		{
			name:     "json code fence",
			input:    "```json\n{\"score\": 8}\n```",
			expected: `{"score": 8}`,
		},
		{
			name:     "generic code fence",
			input:    "```\n{\"score\": 8}\n```",
			expected: `{"score": 8}`,
		},
		{
			name:     "surrounding whitespace",
			input:    "  \n{\"score\": 8}\n  ",
			expected: `{"score": 8}`,
		},
		{
			name:     "fence with language identifier line",
			input:    "```javascript\n{\"score\": 8}\n```",
			expected: `{"score": 8}`,
		},
		{
			name:     "single-line fence",
			input:    "```json{\"score\": 8}```",
			expected: `{"score": 8}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}
