package quality

import "fmt"

// maxSnippet truncates the offending response in error messages.
const maxSnippet = 120

// ParseError indicates a model response that violates the evaluation
// contract. Retrying the same request is unlikely to help, so units hitting
// this error fail immediately.
type ParseError struct {
	Response string
	Reason   string
}

func (e *ParseError) Error() string {
	snippet := e.Response
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet] + "..."
	}
	return fmt.Sprintf("malformed evaluation response: %s (content: %s)", e.Reason, snippet)
}
