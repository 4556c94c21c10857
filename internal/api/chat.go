package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ashureev/assistant-chat/internal/chat"
	"github.com/ashureev/assistant-chat/internal/domain"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

type chatRequest struct {
	Email          string `json:"email"`
	Message        string `json:"message"`
	IncludeHistory *bool  `json:"include_history,omitempty"`
}

type chatResponse struct {
	Message  string                     `json:"message"`
	History  []domain.ConversationEntry `json:"history,omitempty"`
	Cooldown bool                       `json:"cooldown,omitempty"`
	RetryAt  *time.Time                 `json:"retry_at,omitempty"`
}

type historyResponse struct {
	Email   string                     `json:"email"`
	History []domain.ConversationEntry `json:"history"`
}

// RegisterRoutes registers the chat routes on r. Callers mount it under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.Chat)
	r.Get("/history", h.History)
}

// Chat runs one conversation turn.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reply, err := h.svc.Handle(r.Context(), chat.Request{
		Email:          req.Email,
		Message:        req.Message,
		IncludeHistory: req.IncludeHistory,
		RequestID:      chiMiddleware.GetReqID(r.Context()),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := chatResponse{
		Message:  reply.Message,
		History:  reply.History,
		Cooldown: reply.Cooldown,
	}
	if reply.Cooldown && !reply.RetryAt.IsZero() {
		retryAt := reply.RetryAt.UTC()
		resp.RetryAt = &retryAt
	}
	JSON(w, http.StatusOK, resp)
}

// History returns the conversation log for ?email=.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	entries, err := h.svc.History(r.Context(), email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.ConversationEntry{}
	}
	JSON(w, http.StatusOK, historyResponse{Email: email, History: entries})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, chat.ErrInvalidRequest) {
		Error(w, http.StatusBadRequest, chat.PublicReason(err))
		return
	}
	h.logger.Error("Chat request failed",
		"path", r.URL.Path,
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"error", err)
	Error(w, http.StatusInternalServerError, chat.PublicReason(err))
}
