package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps one JSON snapshot file per login under a base directory.
// Writes go through a temp file and rename so a crash mid-write never
// leaves a truncated snapshot behind.
type FileStore struct {
	dir string
}

// NewFileStore creates the base directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(login string) string {
	// Logins come from the intranet and are not trusted as path components.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, login)
	return filepath.Join(s.dir, safe+".json")
}

// Save writes the snapshot atomically.
func (s *FileStore) Save(_ context.Context, login string, data []byte) error {
	path := s.path(login)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, or ErrSnapshotNotFound.
func (s *FileStore) Load(_ context.Context, login string) ([]byte, error) {
	b, err := os.ReadFile(s.path(login))
	if os.IsNotExist(err) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return b, nil
}

// Delete removes the snapshot. Deleting an absent snapshot is a no-op.
func (s *FileStore) Delete(_ context.Context, login string) error {
	err := os.Remove(s.path(login))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }
