package ingest

import (
	"context"

	"github.com/auxoncorp/modality-dlt-plugin/metrics"
)

// InstrumentedSink wraps a Sink and records write metrics. Each WriteOps
// call increments sink write success or failure on the collector.
type InstrumentedSink struct {
	inner     Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteOps delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) WriteOps(ctx context.Context, ops []Op) error {
	err := s.inner.WriteOps(ctx, ops)
	if err != nil {
		s.collector.IncSinkWriteFailure()
	} else {
		s.collector.IncSinkWriteSuccess()
	}
	return err
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

// Verify InstrumentedSink implements Sink.
var _ Sink = (*InstrumentedSink)(nil)
