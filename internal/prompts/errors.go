package prompts

import "fmt"

// ConfigurationError indicates a column cannot be served because its prompt
// templates are missing. This is a startup/batch-validation failure, never a
// mid-run failure.
type ConfigurationError struct {
	File   string // phase file with the missing key, if known
	Key    string // content-type key that failed to resolve
	Column string // column that triggered the lookup, if any
}

func (e *ConfigurationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("no prompt bundle for column %s (content type %s)", e.Column, e.Key)
	}
	return fmt.Sprintf("prompt file %s is missing template for %q", e.File, e.Key)
}
