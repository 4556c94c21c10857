package assistant

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrThreadNotFound matches a ProviderError for a thread the provider no
	// longer knows about (deleted or expired).
	ErrThreadNotFound = errors.New("thread not found")

	// ErrMissingAPIKey is returned by NewOpenAIClient without credentials.
	ErrMissingAPIKey = errors.New("assistant API key is required")
)

// ProviderError is a failed call to the assistants API.
type ProviderError struct {
	Op         string
	StatusCode int    // 0 when no response was received
	Message    string // provider-supplied message, if any
	Err        error  // transport error, if any
}

func (e *ProviderError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("assistant %s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("assistant %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("assistant %s: status %d", e.Op, e.StatusCode)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrThreadNotFound) true for 404s.
func (e *ProviderError) Is(target error) bool {
	return target == ErrThreadNotFound && e.StatusCode == http.StatusNotFound
}
