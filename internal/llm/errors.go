package llm

import "errors"

var (
	// ErrProviderUnavailable is returned when no text-generation backend is
	// configured; the gateway was constructed in a disabled state.
	ErrProviderUnavailable = errors.New("llm: no provider configured")

	// ErrProviderError wraps failures raised by the configured backend
	// (transport errors, non-2xx responses, empty completions).
	ErrProviderError = errors.New("llm: provider call failed")

	// ErrMalformedResponse is returned when backend output cannot be parsed
	// as JSON of the expected shape.
	ErrMalformedResponse = errors.New("llm: malformed response")
)
