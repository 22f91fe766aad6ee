// Package gcs implements a Google Cloud Storage blob store. GCS object
// writes are atomic: the object becomes visible only when the writer
// closes successfully.
package gcs

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
)

// BlobStore writes image files to a GCS bucket.
type BlobStore struct {
	bucket     *storage.BucketHandle
	bucketName string
}

// New creates a GCS-backed blob store using application default credentials.
func New(ctx context.Context, bucketName string) (*BlobStore, error) {
	if strings.TrimSpace(bucketName) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &BlobStore{
		bucket:     client.Bucket(bucketName),
		bucketName: bucketName,
	}, nil
}

// WriteAtomic uploads data to path and returns the gs:// URI.
func (s *BlobStore) WriteAtomic(ctx context.Context, path string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	w := s.bucket.Object(path).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucketName, path), nil
}

// Delete removes the object at path.
func (s *BlobStore) Delete(ctx context.Context, path string) error {
	if err := s.bucket.Object(path).Delete(ctx); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
