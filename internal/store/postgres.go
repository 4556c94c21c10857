package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS users (
		email TEXT PRIMARY KEY,
		thread_id TEXT,
		last_chat_time BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversations (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL,
		thread_id TEXT NOT NULL,
		user_message TEXT NOT NULL,
		assistant_message TEXT,
		created_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_email_created ON conversations(email, created_at, seq);
	`

// NewPostgres creates a Postgres-backed repository from a lib/pq connection
// string (URL or key=value form).
func NewPostgres(dsn string) (Repository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &sqlStore{
		db:      db,
		dialect: dialect{name: "postgres", schema: postgresSchema, numbered: true},
	}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}
