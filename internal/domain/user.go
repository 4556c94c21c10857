// Package domain contains core domain types for the assistant chat service.
package domain

import (
	"time"
)

// UserSession is the per-identity pointer to the remote conversation thread.
// There is at most one row per Identity; it is created on the first completed
// turn and updated (never deleted) on every turn after that.
type UserSession struct {
	Identity          string    `json:"email"`
	ThreadID          string    `json:"thread_id,omitempty"`
	LastInteractionAt time.Time `json:"last_interaction_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HasThread returns true if the session points at a remote thread.
func (s *UserSession) HasThread() bool {
	return s != nil && s.ThreadID != ""
}

// Elapsed returns the time since the last completed turn.
// A last interaction in the future yields a negative duration.
func (s *UserSession) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.LastInteractionAt)
}
