package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/assistant-chat/internal/domain"
	"github.com/ashureev/assistant-chat/internal/shared"
	"github.com/google/uuid"
)

const (
	writeMaxRetries    = 3
	writeRetryBaseWait = 50 * time.Millisecond
)

// dialect captures the few places SQLite and Postgres differ.
type dialect struct {
	name   string
	schema string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
}

func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlStore implements Repository on database/sql for any supported dialect.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	// SQLite allows a single writer; serializing writes in-process avoids
	// most SQLITE_BUSY round trips. Nil for Postgres.
	writeMu *sync.Mutex
}

func (s *sqlStore) initSchema() error {
	if _, err := s.db.Exec(s.dialect.schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetSession retrieves the session for an identity.
func (s *sqlStore) GetSession(ctx context.Context, identity string) (*domain.UserSession, error) {
	query := s.dialect.rebind(`
		SELECT email, thread_id, last_chat_time, created_at, updated_at
		FROM users WHERE email = ?`)

	var session domain.UserSession
	var threadID sql.NullString
	var lastChat, createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, identity).Scan(
		&session.Identity, &threadID, &lastChat, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.ThreadID = threadID.String
	session.LastInteractionAt = time.UnixMilli(lastChat)
	session.CreatedAt = time.UnixMilli(createdAt)
	session.UpdatedAt = time.UnixMilli(updatedAt)

	return &session, nil
}

// UpsertSession creates or updates the session keyed by identity.
// created_at is only written on insert.
func (s *sqlStore) UpsertSession(ctx context.Context, session *domain.UserSession) error {
	query := s.dialect.rebind(`
	INSERT INTO users (email, thread_id, last_chat_time, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(email) DO UPDATE SET
		thread_id = excluded.thread_id,
		last_chat_time = excluded.last_chat_time,
		updated_at = excluded.updated_at`)

	var threadID interface{}
	if session.ThreadID != "" {
		threadID = session.ThreadID
	}

	now := time.Now()
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	err := s.write(ctx, "upsert session", func() error {
		_, err := s.db.ExecContext(ctx, query,
			session.Identity, threadID, session.LastInteractionAt.UnixMilli(),
			createdAt.UnixMilli(), now.UnixMilli(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// AppendEntry adds one turn to the conversation log. A missing ID is
// generated; a zero timestamp is set to now.
func (s *sqlStore) AppendEntry(ctx context.Context, entry *domain.ConversationEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	query := s.dialect.rebind(`
	INSERT INTO conversations (id, email, thread_id, user_message, assistant_message, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`)

	var assistantMessage interface{}
	if entry.AssistantMessage != "" {
		assistantMessage = entry.AssistantMessage
	}

	err := s.write(ctx, "append entry", func() error {
		_, err := s.db.ExecContext(ctx, query,
			entry.ID, entry.Identity, entry.ThreadID,
			entry.UserMessage, assistantMessage, entry.Timestamp.UnixMilli(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

// ListEntries returns the identity's log ordered by timestamp ascending.
// Entries sharing a timestamp keep insertion order.
func (s *sqlStore) ListEntries(ctx context.Context, identity string) ([]domain.ConversationEntry, error) {
	query := s.dialect.rebind(`
		SELECT id, email, thread_id, user_message, assistant_message, created_at
		FROM conversations WHERE email = ?
		ORDER BY created_at ASC, seq ASC`)

	rows, err := s.db.QueryContext(ctx, query, identity)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close entry rows", "error", closeErr)
		}
	}()

	var entries []domain.ConversationEntry
	for rows.Next() {
		var entry domain.ConversationEntry
		var assistantMessage sql.NullString
		var createdAt int64

		if err := rows.Scan(
			&entry.ID, &entry.Identity, &entry.ThreadID,
			&entry.UserMessage, &assistantMessage, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}

		entry.AssistantMessage = assistantMessage.String
		entry.Timestamp = time.UnixMilli(createdAt)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

// write runs fn, retrying with exponential backoff while the database
// reports lock contention.
func (s *sqlStore) write(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := 0; i < writeMaxRetries; i++ {
		err = s.writeOnce(fn)
		if err == nil || !shared.IsRetryableDBError(err) || i == writeMaxRetries-1 {
			return err
		}

		delay := writeRetryBaseWait * time.Duration(1<<i) // 50ms, 100ms
		slog.Debug("Database contention, retrying write",
			"op", op,
			"driver", s.dialect.name,
			"attempt", i+1,
			"delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-timer.C:
		}
	}
	return err
}

func (s *sqlStore) writeOnce(fn func() error) error {
	if s.writeMu != nil {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}
	return fn()
}
