package load

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes snapshots to the local filesystem. Writes go to a
// temp file in the target directory first and are renamed into place,
// so readers never see a half-written snapshot.
type LocalStore struct{}

func NewLocalStore() (*LocalStore, error) {
	return &LocalStore{}, nil
}

func (s *LocalStore) Write(ctx context.Context, key string, data []byte) error {
	dir := filepath.Dir(key)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(key)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	// Rename is atomic on the same filesystem.
	if err := os.Rename(tmpName, key); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) URI(key string) string {
	abs, err := filepath.Abs(key)
	if err != nil {
		abs = key
	}
	return "file://" + abs
}

func (s *LocalStore) Close() error {
	return nil
}
