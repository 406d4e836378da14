package policy

import (
	"context"

	"github.com/auxoncorp/modality-dlt-plugin/ingest"
	"github.com/auxoncorp/modality-dlt-plugin/types"
)

// Strict implements synchronous, unbuffered delivery.
//
//   - No buffering: each call is written immediately as a batch of one
//   - Backpressure: the caller blocks on sink latency
//   - Sink errors are returned and end the stream
type Strict struct {
	sink  ingest.Sink
	tl    timelineStamper
	stats *statsRecorder
}

// NewStrict creates a strict policy writing to the given sink.
func NewStrict(sink ingest.Sink) *Strict {
	return &Strict{sink: sink, stats: newStatsRecorder()}
}

func (p *Strict) write(ctx context.Context, op ingest.Op) error {
	p.stats.incReceived()
	if err := p.sink.WriteOps(ctx, []ingest.Op{op}); err != nil {
		p.stats.incErrors()
		return err
	}
	p.stats.incWritten(1)
	return nil
}

// SwitchTimeline writes a switch op. The active timeline only changes once
// the sink has accepted it.
func (p *Strict) SwitchTimeline(ctx context.Context, id types.TimelineID) error {
	if err := p.write(ctx, p.tl.switchOp(id)); err != nil {
		return err
	}
	p.tl.active = id
	return nil
}

// SendTimelineAttrs writes a timeline attrs op for the active timeline.
func (p *Strict) SendTimelineAttrs(ctx context.Context, name string, attrs []types.Attr) error {
	return p.write(ctx, p.tl.attrsOp(name, attrs))
}

// SendEvent writes an event op for the active timeline.
func (p *Strict) SendEvent(ctx context.Context, name string, ordering uint64, attrs []types.Attr) error {
	return p.write(ctx, p.tl.eventOp(name, ordering, attrs))
}

// Flush is a no-op for strict policy (nothing is buffered).
func (p *Strict) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close closes the underlying sink.
func (p *Strict) Close() error {
	return p.sink.Close()
}

// Stats returns policy statistics.
func (p *Strict) Stats() Stats {
	return p.stats.snapshot()
}

// Verify Strict implements Policy.
var _ Policy = (*Strict)(nil)
