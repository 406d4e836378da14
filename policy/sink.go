package policy

import (
	"context"
	"sync"

	"github.com/auxoncorp/modality-dlt-plugin/ingest"
)

// StubSink is a test sink that accepts writes without persisting.
// Tracks write statistics for test assertions.
type StubSink struct {
	mu sync.Mutex

	// OpsWritten is the total count of ops written.
	OpsWritten int64
	// Batches is the number of WriteOps calls.
	Batches int64
	// Closed indicates whether Close was called.
	Closed bool

	// Written stores all written ops for inspection, in write order.
	Written []ingest.Op

	// ErrorOnWrite, if non-nil, is returned by WriteOps.
	ErrorOnWrite error
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// WriteOps records the ops without persisting.
func (s *StubSink) WriteOps(_ context.Context, ops []ingest.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}

	s.Batches++
	s.OpsWritten += int64(len(ops))
	s.Written = append(s.Written, ops...)
	return nil
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Closed = true
	return nil
}

// SetError sets the error returned by subsequent writes.
func (s *StubSink) SetError(err error) {
	s.mu.Lock()
	s.ErrorOnWrite = err
	s.mu.Unlock()
}

// Stats returns a snapshot of sink statistics.
func (s *StubSink) Stats() StubSinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StubSinkStats{
		OpsWritten: s.OpsWritten,
		Batches:    s.Batches,
		Closed:     s.Closed,
	}
}

// Ops returns a copy of the written ops.
func (s *StubSink) Ops() []ingest.Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ingest.Op(nil), s.Written...)
}

// StubSinkStats is a snapshot of StubSink statistics.
type StubSinkStats struct {
	OpsWritten int64
	Batches    int64
	Closed     bool
}

var _ ingest.Sink = (*StubSink)(nil)
