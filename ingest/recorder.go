package ingest

import (
	"context"
	"sync"

	"github.com/auxoncorp/modality-dlt-plugin/types"
)

// Recorder is an in-memory Client that records every call as an Op.
// It backs the inspect command and tests. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	ops    []Op
	active types.TimelineID
	closed bool

	// FailOn, if set, is consulted before each call is recorded. A non-nil
	// return fails the call without recording it.
	FailOn func(Op) error
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(op Op) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if op.Kind != OpSwitchTimeline {
		op.TimelineID = r.active
	}
	if r.FailOn != nil {
		if err := r.FailOn(op); err != nil {
			return err
		}
	}
	if op.Kind == OpSwitchTimeline {
		r.active = op.TimelineID
	}
	r.ops = append(r.ops, op)
	return nil
}

// SwitchTimeline records an OpSwitchTimeline.
func (r *Recorder) SwitchTimeline(_ context.Context, id types.TimelineID) error {
	return r.record(Op{Kind: OpSwitchTimeline, TimelineID: id})
}

// SendTimelineAttrs records an OpTimelineAttrs.
func (r *Recorder) SendTimelineAttrs(_ context.Context, name string, attrs []types.Attr) error {
	return r.record(Op{Kind: OpTimelineAttrs, Name: name, Attrs: attrs})
}

// SendEvent records an OpEvent.
func (r *Recorder) SendEvent(_ context.Context, name string, ordering uint64, attrs []types.Attr) error {
	return r.record(Op{Kind: OpEvent, Name: name, Ordering: ordering, Attrs: attrs})
}

// Flush is a no-op.
func (r *Recorder) Flush(context.Context) error { return nil }

// Close marks the recorder closed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Ops returns a copy of the recorded ops.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

// Count returns the number of recorded ops of kind k.
func (r *Recorder) Count(k OpKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, op := range r.ops {
		if op.Kind == k {
			n++
		}
	}
	return n
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

var _ Client = (*Recorder)(nil)
