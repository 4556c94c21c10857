package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsRetryableDBError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "sqlite busy", err: errors.New("sqlite: step: SQLITE_BUSY"), want: true},
		{name: "sqlite locked wrapped", err: fmt.Errorf("upsert session: %w", errors.New("database is locked (5)")), want: true},
		{name: "postgres serialization", err: fmt.Errorf("append entry: %w", &pq.Error{Code: "40001"}), want: true},
		{name: "postgres deadlock", err: &pq.Error{Code: "40P01"}, want: true},
		{name: "postgres unique violation", err: &pq.Error{Code: "23505"}, want: false},
		{name: "other", err: errors.New("no such table: users"), want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsRetryableDBError(tt.err); got != tt.want {
				t.Errorf("IsRetryableDBError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
