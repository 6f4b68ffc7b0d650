package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

// querier is the query surface shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// db resolves where a query runs: inside the transaction WithChatLock
// put into the context, or on the pool.
func (s *Store) db(ctx context.Context) querier {
	if q, ok := ctx.Value(txKey{}).(querier); ok {
		return q
	}
	return s.pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the tables if they do not exist yet. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			chat_id TEXT NOT NULL,
			chat_name TEXT,
			sender TEXT NOT NULL,
			text TEXT,
			timestamp TIMESTAMPTZ NOT NULL,
			is_transcribed BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_ts ON messages (chat_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS termine (
			id UUID PRIMARY KEY,
			message_id UUID REFERENCES messages(id),
			chat_id TEXT NOT NULL,
			title TEXT NOT NULL,
			datetime TIMESTAMPTZ NOT NULL,
			all_day BOOLEAN NOT NULL DEFAULT false,
			participants JSONB,
			category TEXT NOT NULL DEFAULT 'appointment',
			relevance TEXT NOT NULL DEFAULT 'shared',
			confidence DOUBLE PRECISION,
			location TEXT,
			caldav_uid TEXT,
			status TEXT NOT NULL DEFAULT 'unsynced',
			reminders JSONB,
			reasoning TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_termine_chat_dt ON termine (chat_id, datetime)`,
		`CREATE TABLE IF NOT EXISTS termin_feedback (
			id UUID PRIMARY KEY,
			termin_id UUID NOT NULL REFERENCES termine(id),
			action TEXT NOT NULL,
			correction JSONB,
			reason TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db(ctx).Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// WithChatLock runs fn inside a transaction holding the per-conversation
// advisory lock, so a duplicate check and its following insert are atomic
// with respect to other writers on the same chat.
func (s *Store) WithChatLock(ctx context.Context, chatID string, fn func(ctx context.Context) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, chatID); err != nil {
		return fmt.Errorf("chat lock: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, querier(tx))); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
