// Package storage is the boundary to the file-storage collaborator. The
// billing core only delegates retention cleanup to it.
package storage

import (
	"context"
	"time"
)

// ArtifactStore cleans up uploaded artifacts no longer referenced by any
// record. The retention sweep calls it with a cutoff age.
type ArtifactStore interface {
	CleanupOrphaned(ctx context.Context, olderThan time.Duration) (deleted int, err error)
}
