// Package chat orchestrates one conversation turn between a user, the remote
// assistant and the conversation store.
package chat

import (
	"errors"
	"fmt"

	"github.com/ashureev/assistant-chat/internal/assistant"
)

// ErrInvalidRequest is returned when the identity or message is missing.
var ErrInvalidRequest = errors.New("invalid request")

// StoreError wraps a persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// PublicReason returns a reason string that is safe to show to end users.
// Provider and database details stay in the logs.
func PublicReason(err error) string {
	var perr *assistant.ProviderError
	var serr *StoreError
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return err.Error()
	case errors.As(err, &perr):
		return "the assistant service is unavailable, please try again later"
	case errors.As(err, &serr):
		return "conversation storage is unavailable, please try again later"
	default:
		return "internal error"
	}
}
