package snapshot

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSSink writes artifacts to a Google Cloud Storage bucket. Authentication
// uses Application Default Credentials.
type GCSSink struct {
	client *storage.Client
	bucket string
}

// NewGCSSink creates a client and verifies the bucket is reachable, so a
// misconfigured destination fails at startup rather than after the harvest.
func NewGCSSink(ctx context.Context, bucket string) (*GCSSink, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check gcs bucket %s: %w", bucket, err)
	}
	return &GCSSink{client: client, bucket: bucket}, nil
}

// Write uploads the artifact, replacing any previous object of that name.
func (s *GCSSink) Write(ctx context.Context, name string, data []byte) error {
	wc := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	wc.ContentType = "application/json"
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("write gcs object %s: %w", name, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("finalize gcs object %s: %w", name, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *GCSSink) Close() error {
	return s.client.Close()
}
