// Package ingest defines the surface events are delivered through.
//
// A Client receives the three calls made while routing a DLT stream:
// switching the active timeline, declaring the active timeline's name and
// attributes, and sending an event on it. Delivery policies (package policy)
// implement Client by turning calls into Ops written to a Sink.
package ingest

import (
	"context"

	"github.com/auxoncorp/modality-dlt-plugin/types"
)

// Client is the ingest surface used by the stream router.
//
// Each call may block. Calls are issued by a single goroutine per stream;
// implementations need not be safe for concurrent use unless documented.
type Client interface {
	// SwitchTimeline makes id the active timeline for subsequent calls.
	SwitchTimeline(ctx context.Context, id types.TimelineID) error

	// SendTimelineAttrs declares the name and attributes of the active
	// timeline.
	SendTimelineAttrs(ctx context.Context, name string, attrs []types.Attr) error

	// SendEvent sends an event on the active timeline.
	SendEvent(ctx context.Context, name string, ordering uint64, attrs []types.Attr) error

	// Flush delivers anything buffered.
	Flush(ctx context.Context) error

	// Close flushes and releases resources.
	Close() error
}

// OpKind discriminates Ops.
type OpKind string

const (
	// OpSwitchTimeline switches the active timeline.
	OpSwitchTimeline OpKind = "switch_timeline"
	// OpTimelineAttrs declares timeline name and attributes.
	OpTimelineAttrs OpKind = "timeline_attrs"
	// OpEvent is an event on a timeline.
	OpEvent OpKind = "event"
)

// Op is one client call, stamped with the timeline it applies to.
type Op struct {
	Kind OpKind
	// TimelineID is the switched-to timeline for OpSwitchTimeline, and the
	// active timeline otherwise (zero if none is active).
	TimelineID types.TimelineID
	// Name is the timeline name (OpTimelineAttrs) or event name (OpEvent).
	Name string
	// Ordering is the event ordering (OpEvent only).
	Ordering uint64
	Attrs    []types.Attr
}

// Sink persists or forwards ops.
//
// Methods are batch-oriented to support both strict (batch of 1) and
// buffered policies.
type Sink interface {
	// WriteOps delivers a batch of ops. Must preserve order within the batch.
	// Returns error on failure; caller decides whether to retry or fail.
	WriteOps(ctx context.Context, ops []Op) error

	// Close releases any resources held by the sink.
	Close() error
}
