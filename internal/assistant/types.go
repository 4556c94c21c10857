// Package assistant is a client for the OpenAI Assistants v2 thread/run API.
package assistant

import (
	"context"

	"github.com/ashureev/assistant-chat/internal/domain"
)

// Thread is a remote conversation context.
type Thread struct {
	ID string `json:"id"`
}

// RunError is the provider's reason for a failed run.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Run is a snapshot of a remote run.
type Run struct {
	ID        string
	Status    domain.RunStatus
	LastError *RunError
}

// RunParams selects what executes a run. AssistantID is sent when set;
// Model and Instructions override the assistant's defaults.
type RunParams struct {
	AssistantID  string
	Model        string
	Instructions string
}

// Message is a thread message flattened to its first text part.
type Message struct {
	ID        string
	Role      domain.Role
	Content   string
	RunID     string // empty for messages appended by hand
	CreatedAt int64
}

// Client is the narrow contract the chat engine needs from the provider.
type Client interface {
	CreateThread(ctx context.Context) (*Thread, error)
	AppendMessage(ctx context.Context, threadID string, role domain.Role, content string) error
	StartRun(ctx context.Context, threadID string, params RunParams) (*Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)
	// ListMessages returns the thread's messages, most recent first.
	ListMessages(ctx context.Context, threadID string) ([]Message, error)
}

// LatestAssistantMessage returns the first assistant message with text in a
// most-recent-first list. With a runID only that run's messages qualify, so
// replayed history (which has no run) is never taken as the reply; an empty
// runID accepts any.
func LatestAssistantMessage(msgs []Message, runID string) (Message, bool) {
	for _, m := range msgs {
		if m.Role != domain.RoleAssistant || m.Content == "" {
			continue
		}
		if runID != "" && m.RunID != runID {
			continue
		}
		return m, true
	}
	return Message{}, false
}
