// Package adapter defines the completion notification boundary.
//
// Adapters publish stream completion notifications to downstream systems.
// The CLI owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"time"
)

// EventTypeStreamCompleted is the event_type of every StreamCompletedEvent.
const EventTypeStreamCompleted = "stream_completed"

// StreamCompletedEvent is the payload published when a stream finishes.
type StreamCompletedEvent struct {
	ProtocolVersion string `json:"protocol_version"`
	EventType       string `json:"event_type"` // always "stream_completed"
	StreamID        string `json:"stream_id,omitempty"`
	Mode            string `json:"mode"`   // network or file
	Source          string `json:"source"` // host:port or file path
	Outcome         string `json:"outcome"` // success, stopped, framing_error, etc.
	Message         string `json:"message,omitempty"`
	Timestamp       string `json:"timestamp"` // RFC 3339
	Messages        int64  `json:"messages"`
	Events          uint64 `json:"events"`
	Timelines       int    `json:"timelines"`
	BytesRead       int64  `json:"bytes_read"`
	DurationMs      int64  `json:"duration_ms"`
}

// Stamp fills EventType and, if unset, Timestamp.
func (e *StreamCompletedEvent) Stamp(now time.Time) {
	e.EventType = EventTypeStreamCompleted
	if e.Timestamp == "" {
		e.Timestamp = now.UTC().Format(time.RFC3339)
	}
}

// Adapter publishes stream completion events to a downstream system.
type Adapter interface {
	// Publish sends a stream completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *StreamCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// Backoff returns the delay before retry attempt i (1-based): 500ms
// doubling per attempt.
func Backoff(i int) time.Duration {
	return time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
}

// Wait blocks for the backoff before attempt i, or until ctx is done.
func Wait(ctx context.Context, i int) error {
	timer := time.NewTimer(Backoff(i))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
