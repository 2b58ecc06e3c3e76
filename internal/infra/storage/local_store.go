package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// LocalStore cleans up orphaned uploads on local disk. Upload handling
// itself belongs to the file-storage collaborator; the billing core only
// drives retention.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// CleanupOrphaned deletes regular files older than the cutoff age.
func (s *LocalStore) CleanupOrphaned(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	deleted := 0

	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() || !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		deleted++
		return nil
	})
	if os.IsNotExist(err) {
		return 0, nil
	}
	return deleted, err
}
