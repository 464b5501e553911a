// Package snapshot serializes the full candidate sequence to a named
// destination for audit and debugging. The artifact is written wholesale on
// every run (overwrite, never append) and is independent of reconciliation.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/skillsync/harvester/internal/schema"
)

// Sink writes one named artifact.
type Sink interface {
	Write(ctx context.Context, name string, data []byte) error
}

// Writer marshals candidate records and hands them to a sink.
type Writer struct {
	sink   Sink
	name   string
	logger *zap.Logger
}

// NewWriter returns a writer that overwrites name through sink on each run.
func NewWriter(sink Sink, name string, logger *zap.Logger) *Writer {
	return &Writer{sink: sink, name: name, logger: logger}
}

// Write serializes records as indented JSON and writes the artifact.
func (w *Writer) Write(ctx context.Context, records []schema.Record) error {
	if records == nil {
		records = []schema.Record{}
	}
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := w.sink.Write(ctx, w.name, payload); err != nil {
		return fmt.Errorf("write snapshot %s: %w", w.name, err)
	}
	w.logger.Info("Snapshot written",
		zap.String("destination", w.name),
		zap.Int("records", len(records)),
		zap.Int("bytes", len(payload)))
	return nil
}

// gcsScheme prefixes destinations that live in a Google Cloud Storage
// bucket rather than on the local filesystem.
const gcsScheme = "gs://"

// SinkFor picks a sink implementation from the destination name: gs://
// destinations go to Cloud Storage, an empty name discards the artifact,
// anything else is a local file path.
func SinkFor(ctx context.Context, destination string) (Sink, string, error) {
	switch {
	case destination == "":
		return NoOpSink{}, "", nil
	case strings.HasPrefix(destination, gcsScheme):
		bucket, object, ok := strings.Cut(strings.TrimPrefix(destination, gcsScheme), "/")
		if !ok || bucket == "" || object == "" {
			return nil, "", fmt.Errorf("gcs destination %q must look like gs://bucket/object", destination)
		}
		sink, err := NewGCSSink(ctx, bucket)
		if err != nil {
			return nil, "", err
		}
		return sink, object, nil
	default:
		return FileSink{}, destination, nil
	}
}

// NoOpSink discards artifacts. Useful for dry runs.
type NoOpSink struct{}

// Write does nothing.
func (NoOpSink) Write(_ context.Context, _ string, _ []byte) error { return nil }
