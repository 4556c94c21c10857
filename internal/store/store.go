// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"fmt"

	"github.com/ashureev/assistant-chat/internal/config"
	"github.com/ashureev/assistant-chat/internal/domain"
)

// Repository persists user sessions and the conversation log.
type Repository interface {
	// GetSession retrieves the session for an identity.
	// Returns (nil, nil) when the identity has never completed a turn.
	GetSession(ctx context.Context, identity string) (*domain.UserSession, error)

	// UpsertSession creates or updates the session keyed by identity.
	UpsertSession(ctx context.Context, session *domain.UserSession) error

	// AppendEntry adds one turn to the conversation log.
	AppendEntry(ctx context.Context, entry *domain.ConversationEntry) error

	// ListEntries returns the identity's log ordered by timestamp ascending.
	ListEntries(ctx context.Context, identity string) ([]domain.ConversationEntry, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Open creates the repository selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (Repository, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return NewSQLite(cfg.Path)
	case config.DriverPostgres:
		return NewPostgres(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
