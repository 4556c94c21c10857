//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/assistant-chat/internal/chat"
	"github.com/ashureev/assistant-chat/internal/domain"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

type fakeChatService struct {
	mu       sync.Mutex
	requests []chat.Request
	reply    *chat.Reply
	err      error
	history  []domain.ConversationEntry
}

func (f *fakeChatService) Handle(_ context.Context, req chat.Request) (*chat.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func (f *fakeChatService) History(_ context.Context, email string) ([]domain.ConversationEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", chat.ErrInvalidRequest)
	}
	return f.history, nil
}

func newTestRouter(svc ChatService, maxBody int64) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	h := NewHandler(svc, maxBody, nil)
	r.Route("/api", h.RegisterRoutes)
	return r
}

func postChat(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return got
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestChatReturnsReplyAndHistory(t *testing.T) {
	t.Parallel()
	svc := &fakeChatService{reply: &chat.Reply{
		Message:   "hi there",
		Completed: true,
		History: []domain.ConversationEntry{
			{ID: "e1", Identity: "a@x.com", ThreadID: "thread_1", UserMessage: "hello", AssistantMessage: "hi there"},
		},
	}}
	router := newTestRouter(svc, 0)

	w := postChat(t, router, `{"email":"a@x.com","message":"hello","include_history":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := decode(t, w)
	if got["message"] != "hi there" {
		t.Errorf("unexpected message %v", got["message"])
	}
	if _, ok := got["cooldown"]; ok {
		t.Error("cooldown should be omitted for a normal reply")
	}
	history, ok := got["history"].([]any)
	if !ok || len(history) != 1 {
		t.Fatalf("expected one history entry, got %v", got["history"])
	}

	req := svc.requests[0]
	if req.Email != "a@x.com" || req.Message != "hello" {
		t.Errorf("unexpected request %+v", req)
	}
	if req.IncludeHistory == nil || !*req.IncludeHistory {
		t.Error("include_history should be forwarded")
	}
	if req.RequestID == "" {
		t.Error("request id should be forwarded")
	}
}

func TestChatCooldownResponse(t *testing.T) {
	t.Parallel()
	retryAt := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	svc := &fakeChatService{reply: &chat.Reply{Message: "come back later", Cooldown: true, RetryAt: retryAt}}
	router := newTestRouter(svc, 0)

	w := postChat(t, router, `{"email":"a@x.com","message":"again"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	got := decode(t, w)
	if got["cooldown"] != true || got["message"] != "come back later" {
		t.Fatalf("unexpected body %v", got)
	}
	if got["retry_at"] != "2026-05-02T09:00:00Z" {
		t.Errorf("unexpected retry_at %v", got["retry_at"])
	}
}

func TestChatErrorMapping(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		code int
	}{
		{name: "invalid request", err: fmt.Errorf("%w: email and message are required", chat.ErrInvalidRequest), code: http.StatusBadRequest},
		{name: "store failure", err: &chat.StoreError{Op: "get session", Err: errors.New("disk I/O error")}, code: http.StatusInternalServerError},
		{name: "unknown", err: errors.New("boom"), code: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			router := newTestRouter(&fakeChatService{err: tt.err}, 0)

			w := postChat(t, router, `{"email":"a@x.com","message":"hello"}`)
			if w.Code != tt.code {
				t.Fatalf("Expected %d, got %d", tt.code, w.Code)
			}
			got := decode(t, w)
			reason, _ := got["error"].(string)
			if reason == "" {
				t.Fatal("expected a reason string")
			}
			if strings.Contains(reason, "disk I/O") {
				t.Errorf("internal detail leaked: %q", reason)
			}
		})
	}
}

func TestChatRejectsBadBodies(t *testing.T) {
	t.Parallel()
	svc := &fakeChatService{reply: &chat.Reply{Message: "unused"}}
	router := newTestRouter(svc, 64)

	if w := postChat(t, router, `{not json`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed JSON, got %d", w.Code)
	}

	big := fmt.Sprintf(`{"email":"a@x.com","message":%q}`, strings.Repeat("x", 200))
	if w := postChat(t, router, big); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413 for oversized body, got %d", w.Code)
	}

	if len(svc.requests) != 0 {
		t.Errorf("service should not be called, got %d calls", len(svc.requests))
	}
}

func TestHistoryEndpoint(t *testing.T) {
	t.Parallel()
	svc := &fakeChatService{history: []domain.ConversationEntry{
		{ID: "e1", Identity: "a@x.com", UserMessage: "hello"},
	}}
	router := newTestRouter(svc, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/history?email=a@x.com", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	got := decode(t, w)
	if history, ok := got["history"].([]any); !ok || len(history) != 1 {
		t.Fatalf("unexpected history %v", got["history"])
	}

	req = httptest.NewRequest(http.MethodGet, "/api/history", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 without email, got %d", w.Code)
	}
}

func TestHistoryEmptyIsArray(t *testing.T) {
	t.Parallel()
	router := newTestRouter(&fakeChatService{}, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/history?email=new@x.com", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), `"history":[]`) {
		t.Fatalf("expected empty array, got %s", w.Body.String())
	}
}
