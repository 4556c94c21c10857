// Package api provides HTTP handlers for the assistant chat API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/assistant-chat/internal/chat"
	"github.com/ashureev/assistant-chat/internal/domain"
)

const defaultMaxBodySize = 1 << 20

// ChatService runs conversation turns.
type ChatService interface {
	Handle(ctx context.Context, req chat.Request) (*chat.Reply, error)
	History(ctx context.Context, email string) ([]domain.ConversationEntry, error)
}

// Handler serves the chat endpoints.
type Handler struct {
	svc         ChatService
	maxBodySize int64
	logger      *slog.Logger
}

// NewHandler creates a new Handler. A non-positive maxBodySize uses 1 MiB.
func NewHandler(svc ChatService, maxBodySize int64, logger *slog.Logger) *Handler {
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, maxBodySize: maxBodySize, logger: logger}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
