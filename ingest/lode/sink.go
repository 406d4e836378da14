// Package lode persists ingest ops as records in a Lode dataset.
//
// Records are partitioned with a Hive layout of source/day/record_kind and
// encoded as JSON lines. Storage is the local filesystem or S3.
package lode

import (
	"context"
	"strings"
	"time"

	"github.com/auxoncorp/modality-dlt-plugin/ingest"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "modality-dlt"

// DeriveDay computes the partition day from the stream start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// SanitizeSource makes a source usable as a partition value. Characters
// outside [A-Za-z0-9._-] become '_', so "/var/log/a.dlt" is "_var_log_a.dlt".
func SanitizeSource(source string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, source)
}

// Config holds Lode sink configuration.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// Source is the partition key for the DLT source (file path or
	// host:port). It is passed through SanitizeSource.
	Source string
	// Day is the partition key derived from stream start (YYYY-MM-DD UTC).
	Day string
	// StreamID identifies the ingestion run; stored on every record.
	StreamID string
}

// Client abstracts the Lode storage client.
type Client interface {
	// WriteOps writes a batch of ops. Must preserve ordering within the batch.
	WriteOps(ctx context.Context, ops []ingest.Op) error

	// Close releases client resources.
	Close() error
}

// Sink is a Lode-backed ingest.Sink.
type Sink struct {
	client Client
}

// NewSink creates a new Lode sink.
func NewSink(client Client) *Sink {
	return &Sink{client: client}
}

// WriteOps implements ingest.Sink.
func (s *Sink) WriteOps(ctx context.Context, ops []ingest.Op) error {
	return s.client.WriteOps(ctx, ops)
}

// Close implements ingest.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}

var _ ingest.Sink = (*Sink)(nil)
