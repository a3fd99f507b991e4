// Package persistence provides durable storage for progression snapshots.
// Backends share one interface so the simulator can run against a local
// file, Redis or Postgres without the core knowing which.
package persistence

import (
	"context"
	"errors"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a login.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore persists encoded progression snapshots keyed by student
// login. Payloads are opaque bytes; encoding belongs to the caller.
type SnapshotStore interface {
	Save(ctx context.Context, login string, data []byte) error
	Load(ctx context.Context, login string) ([]byte, error)
	Delete(ctx context.Context, login string) error
	Close() error
}
