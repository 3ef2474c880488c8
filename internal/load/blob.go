package load

import (
	"context"
	"fmt"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver, used in tests
	_ "gocloud.dev/blob/gcsblob"  // GCS driver
	_ "gocloud.dev/blob/s3blob"   // S3 driver
)

// BlobStore writes snapshots to an object store bucket via gocloud.dev.
// Object stores publish objects atomically, so no temp-and-rename dance
// is needed here.
type BlobStore struct {
	bucket    *blob.Bucket
	bucketURL string
}

// NewBlobStore opens the bucket at the given URL (gs://name, s3://name,
// file:///dir). Credentials come from the environment (ADC for GCS, the
// standard AWS chain for S3).
func NewBlobStore(bucketURL string) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(context.Background(), bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return &BlobStore{bucket: bucket, bucketURL: bucketURL}, nil
}

func (s *BlobStore) Write(ctx context.Context, key string, data []byte) error {
	if err := s.bucket.WriteAll(ctx, key, data, nil); err != nil {
		return fmt.Errorf("write %s to %s: %w", key, s.bucketURL, err)
	}
	return nil
}

func (s *BlobStore) URI(key string) string {
	return strings.TrimSuffix(s.bucketURL, "/") + "/" + key
}

func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
