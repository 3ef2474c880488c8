// Package load writes the validated report snapshot to its configured
// destination. Each run overwrites the previous snapshot; a write is
// published atomically so no partial file is ever observable.
package load

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/commercelake/reportfeed/internal/config"
)

// Store abstracts the snapshot destination.
type Store interface {
	// Write publishes data under key, replacing any prior object.
	Write(ctx context.Context, key string, data []byte) error

	// URI returns the canonical URI for the given key.
	// For local: file:///path, GCS: gs://bucket/path, S3: s3://bucket/path
	URI(key string) string

	// Close releases any resources.
	Close() error
}

// NewStore creates a storage backend based on configuration. An empty
// bucket URL selects the local filesystem; gs:// and s3:// bucket URLs
// select the matching blob backend.
func NewStore(cfg config.OutputConfig) (Store, error) {
	switch {
	case cfg.Bucket == "":
		return NewLocalStore()
	case strings.HasPrefix(cfg.Bucket, "gs://"), strings.HasPrefix(cfg.Bucket, "s3://"):
		return NewBlobStore(cfg.Bucket)
	default:
		return nil, fmt.Errorf("unsupported output bucket %q", cfg.Bucket)
	}
}

// ComputeChecksum computes a SHA256 checksum for the given data.
func ComputeChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}
