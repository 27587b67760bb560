package llm

import "fmt"

// InvocationError indicates a transient provider failure (network error,
// timeout, provider-side error). Callers may retry with backoff.
type InvocationError struct {
	Model string
	Err   error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("model invocation failed (%s): %v", e.Model, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
