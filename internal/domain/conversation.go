package domain

import (
	"time"
)

// Role identifies the author of a thread message.
type Role string

const (
	// RoleUser marks a message written by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by the assistant.
	RoleAssistant Role = "assistant"
)

// ConversationEntry is one completed turn in the append-only conversation log.
type ConversationEntry struct {
	ID               string    `json:"id"`
	Identity         string    `json:"email"`
	ThreadID         string    `json:"thread_id"`
	UserMessage      string    `json:"user_message"`
	AssistantMessage string    `json:"assistant_message,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Message is a role/content pair as appended to a remote thread.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Messages expands the entry into the thread messages it contributes:
// the user message, then the assistant message, each only if present.
func (e ConversationEntry) Messages() []Message {
	msgs := make([]Message, 0, 2)
	if e.UserMessage != "" {
		msgs = append(msgs, Message{Role: RoleUser, Content: e.UserMessage})
	}
	if e.AssistantMessage != "" {
		msgs = append(msgs, Message{Role: RoleAssistant, Content: e.AssistantMessage})
	}
	return msgs
}
