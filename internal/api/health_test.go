package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		ping   error
		code   int
		status string
	}{
		{name: "healthy", code: http.StatusOK, status: "healthy"},
		{name: "database down", ping: errors.New("connection refused"), code: http.StatusServiceUnavailable, status: "degraded"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := chi.NewRouter()
			NewHealthHandler(pingerFunc(func(context.Context) error { return tt.ping }), 0).RegisterHealth(r)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != tt.code {
				t.Fatalf("Expected %d, got %d", tt.code, w.Code)
			}
			if got := decode(t, w); got["status"] != tt.status {
				t.Errorf("Expected status %q, got %v", tt.status, got["status"])
			}
		})
	}
}
