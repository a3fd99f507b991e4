package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresStore persists snapshots in a single-row-per-login table.
type PostgresStore struct {
	db *sqlx.DB
}

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS progression_snapshots (
	login      TEXT PRIMARY KEY,
	payload    BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgresStore connects, pings and ensures the snapshot table exists.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, snapshotSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure snapshot table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Save upserts the snapshot for the login.
func (s *PostgresStore) Save(ctx context.Context, login string, data []byte) error {
	const q = `
		INSERT INTO progression_snapshots (login, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (login) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`
	if _, err := s.db.ExecContext(ctx, q, login, data); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, or ErrSnapshotNotFound.
func (s *PostgresStore) Load(ctx context.Context, login string) ([]byte, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload,
		`SELECT payload FROM progression_snapshots WHERE login = $1`, login)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return payload, nil
}

// Delete removes the snapshot row. Missing rows are a no-op.
func (s *PostgresStore) Delete(ctx context.Context, login string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM progression_snapshots WHERE login = $1`, login); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
