package chat

import (
	"time"

	"github.com/ashureev/assistant-chat/internal/domain"
)

// CooldownMode selects what an active cooldown does to a turn.
type CooldownMode string

const (
	// CooldownBlock refuses turns inside the cooldown window and reuses the
	// stored thread afterwards.
	CooldownBlock CooldownMode = "block"
	// CooldownReset answers every turn but starts a new thread once the
	// window has elapsed.
	CooldownReset CooldownMode = "reset"
)

// Policy decides whether a stored thread can be reused.
type Policy struct {
	Cooldown time.Duration
	Mode     CooldownMode
}

// Decision is the outcome of applying the policy to a session.
type Decision struct {
	ThreadID       string
	MustReset      bool
	WithinCooldown bool
	// RetryAt is when the cooldown ends; zero unless WithinCooldown.
	RetryAt time.Time
}

// Decide is a pure function of the session, the current time and the policy.
func (p Policy) Decide(session *domain.UserSession, now time.Time) Decision {
	if session == nil {
		return Decision{MustReset: true}
	}

	elapsed := session.Elapsed(now)
	d := Decision{ThreadID: session.ThreadID}

	switch p.Mode {
	case CooldownReset:
		d.MustReset = !session.HasThread() || elapsed >= p.Cooldown
	default:
		if elapsed < p.Cooldown {
			d.WithinCooldown = true
			d.RetryAt = session.LastInteractionAt.Add(p.Cooldown)
			return d
		}
		d.MustReset = !session.HasThread()
	}

	if d.MustReset {
		d.ThreadID = ""
	}
	return d
}
