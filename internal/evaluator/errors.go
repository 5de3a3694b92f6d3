package evaluator

import "fmt"

// MalformedResponseError indicates the provider answered but its output could
// not be normalized into a DimensionResult. Retrying would most likely
// reproduce the same malformed output, so the evaluator never retries it.
type MalformedResponseError struct {
	Dimension string
	Reason    string
	Snippet   string
}

func (e *MalformedResponseError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("evaluator: malformed response for %s: %s (payload snippet: %s)", e.Dimension, e.Reason, e.Snippet)
	}
	return fmt.Sprintf("evaluator: malformed response for %s: %s", e.Dimension, e.Reason)
}

// ProviderUnavailableError indicates the provider could not produce a usable
// response within the retry budget or the per-dimension timeout.
type ProviderUnavailableError struct {
	Dimension string
	Attempts  int
	Err       error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("evaluator: provider unavailable for %s after %d attempt(s): %v", e.Dimension, e.Attempts, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}
