package agent

import "fmt"

// ConnectionError wraps a room join failure. Fatal for the invocation;
// no retry happens at this layer.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("room connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProviderInitError wraps a required capability-provider construction
// failure (speech-to-text, language model, text-to-speech). Fatal.
type ProviderInitError struct {
	Provider string
	Err      error
}

func (e *ProviderInitError) Error() string {
	return fmt.Sprintf("%s provider init failed: %v", e.Provider, e.Err)
}

func (e *ProviderInitError) Unwrap() error { return e.Err }
