// Package policy implements delivery policies: ingest.Client implementations
// that turn client calls into ops written to an ingest.Sink.
package policy

import (
	"sync"

	"github.com/auxoncorp/modality-dlt-plugin/ingest"
	"github.com/auxoncorp/modality-dlt-plugin/types"
)

// Policy is an ingest.Client with delivery statistics.
//
// Policies must not drop, reorder or alter ops. A sink failure is returned
// to the caller, which treats it as terminal for the stream.
type Policy interface {
	ingest.Client

	// Stats returns an atomic snapshot of policy metrics at a point in time.
	Stats() Stats
}

// Stats represents policy observability metrics.
type Stats struct {
	// OpsReceived is the total number of client calls received.
	OpsReceived int64
	// OpsWritten is the number of ops the sink accepted.
	OpsWritten int64
	// BufferedOps is the number of ops waiting to be written.
	BufferedOps int64
	// BufferSize is the estimated size of buffered ops in bytes.
	BufferSize int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// FlushTriggers counts flushes by trigger (buffered policy only).
	FlushTriggers map[FlushTrigger]int64
	// Errors is the count of sink write failures.
	Errors int64
}

// statsRecorder is an internal helper for thread-safe stats management.
// Policies call explicit methods to record mutations; the recorder does not
// infer or automate any policy decisions.
//
// Lock discipline:
//   - Strict uses the locking methods (incReceived, snapshot, etc.)
//   - Buffered uses the Locked methods only while holding Buffered.mu. This
//     keeps buffer state and stats counters consistent.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{}
}

func (r *statsRecorder) incReceived() {
	r.mu.Lock()
	r.stats.OpsReceived++
	r.mu.Unlock()
}

func (r *statsRecorder) incWritten(n int64) {
	r.mu.Lock()
	r.stats.OpsWritten += n
	r.mu.Unlock()
}

func (r *statsRecorder) incErrors() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// --- Locked methods for Buffered ---
// Caller must hold Buffered.mu.

func (r *statsRecorder) incReceivedLocked() {
	r.stats.OpsReceived++
}

func (r *statsRecorder) incWrittenLocked(n int64) {
	r.stats.OpsWritten += n
}

func (r *statsRecorder) incErrorsLocked() {
	r.stats.Errors++
}

func (r *statsRecorder) incFlushLocked(trigger FlushTrigger) {
	r.stats.FlushCount++
	if r.stats.FlushTriggers == nil {
		r.stats.FlushTriggers = make(map[FlushTrigger]int64)
	}
	r.stats.FlushTriggers[trigger]++
}

// snapshotLocked returns an atomic snapshot with the given buffer state.
func (r *statsRecorder) snapshotLocked(bufferedOps int, bufferSize int64) Stats {
	s := r.stats
	s.BufferedOps = int64(bufferedOps)
	s.BufferSize = bufferSize
	if r.stats.FlushTriggers != nil {
		s.FlushTriggers = make(map[FlushTrigger]int64, len(r.stats.FlushTriggers))
		for k, v := range r.stats.FlushTriggers {
			s.FlushTriggers[k] = v
		}
	}
	return s
}

// timelineStamper tracks the active timeline so ops can be stamped with
// the timeline they apply to.
type timelineStamper struct {
	active types.TimelineID
}

func (t *timelineStamper) switchOp(id types.TimelineID) ingest.Op {
	return ingest.Op{Kind: ingest.OpSwitchTimeline, TimelineID: id}
}

func (t *timelineStamper) attrsOp(name string, attrs []types.Attr) ingest.Op {
	return ingest.Op{Kind: ingest.OpTimelineAttrs, TimelineID: t.active, Name: name, Attrs: attrs}
}

func (t *timelineStamper) eventOp(name string, ordering uint64, attrs []types.Attr) ingest.Op {
	return ingest.Op{Kind: ingest.OpEvent, TimelineID: t.active, Name: name, Ordering: ordering, Attrs: attrs}
}

// estimateOpSize returns a rough size in bytes of an op for buffer limits.
func estimateOpSize(op ingest.Op) int64 {
	size := int64(64 + len(op.Name))
	for _, a := range op.Attrs {
		size += int64(len(a.Key)) + 16
		if s, ok := a.Value.(types.String); ok {
			size += int64(len(s))
		}
	}
	return size
}
