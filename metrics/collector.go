// Package metrics provides per-stream metrics collection.
//
// The Collector accumulates counters while a DLT stream is ingested. It is a
// leaf package with no internal dependencies. Delivery policy counters are
// absorbed from policy.Stats at stream completion rather than recorded live,
// avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Stream lifecycle
	StreamsStarted   int64
	StreamsCompleted int64
	StreamsFailed    int64

	// Framing
	FramesRead          int64
	BytesRead           int64
	FramingErrors       int64
	StorageHeaderErrors int64

	// Decoding
	MessagesInvalid  int64
	MessagesFiltered int64

	// Routing
	EventsSent       int64
	TimelinesCreated int64
	TimelineSwitches int64

	// Delivery (absorbed from policy.Stats at stream completion)
	OpsReceived int64
	OpsWritten  int64
	Flushes     int64

	// Sink
	SinkWriteSuccess int64
	SinkWriteFailure int64

	// Dimensions (informational, set at construction)
	Mode     string
	Policy   string
	Sink     string
	StreamID string
}

// Collector accumulates metrics during a single stream.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	streamsStarted   int64
	streamsCompleted int64
	streamsFailed    int64

	framesRead          int64
	bytesRead           int64
	framingErrors       int64
	storageHeaderErrors int64

	messagesInvalid  int64
	messagesFiltered int64

	eventsSent       int64
	timelinesCreated int64
	timelineSwitches int64

	// Set once via AbsorbPolicyStats
	opsReceived int64
	opsWritten  int64
	flushes     int64

	sinkWriteSuccess int64
	sinkWriteFailure int64

	mode     string
	policy   string
	sink     string
	streamID string
}

// NewCollector creates a Collector with dimension labels.
// mode is "network" or "file"; streamID is optional.
func NewCollector(mode, policy, sink, streamID string) *Collector {
	return &Collector{
		mode:     mode,
		policy:   policy,
		sink:     sink,
		streamID: streamID,
	}
}

func (c *Collector) inc(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Stream lifecycle ---

// IncStreamStarted records a stream start.
func (c *Collector) IncStreamStarted() {
	if c == nil {
		return
	}
	c.inc(&c.streamsStarted, 1)
}

// IncStreamCompleted records a stream that ended cleanly.
func (c *Collector) IncStreamCompleted() {
	if c == nil {
		return
	}
	c.inc(&c.streamsCompleted, 1)
}

// IncStreamFailed records a stream aborted by a fatal error.
func (c *Collector) IncStreamFailed() {
	if c == nil {
		return
	}
	c.inc(&c.streamsFailed, 1)
}

// --- Framing ---

// AddFrame records one frame of n bytes, including its storage header.
func (c *Collector) AddFrame(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesRead++
	c.bytesRead += int64(n)
	c.mu.Unlock()
}

// IncFramingErrors records a framing error.
func (c *Collector) IncFramingErrors() {
	if c == nil {
		return
	}
	c.inc(&c.framingErrors, 1)
}

// IncStorageHeaderErrors records an invalid storage header.
func (c *Collector) IncStorageHeaderErrors() {
	if c == nil {
		return
	}
	c.inc(&c.storageHeaderErrors, 1)
}

// --- Decoding ---

// IncMessagesInvalid records a message the decoder could not interpret.
func (c *Collector) IncMessagesInvalid() {
	if c == nil {
		return
	}
	c.inc(&c.messagesInvalid, 1)
}

// IncMessagesFiltered records a message dropped by the decoder filter.
func (c *Collector) IncMessagesFiltered() {
	if c == nil {
		return
	}
	c.inc(&c.messagesFiltered, 1)
}

// --- Routing ---

// IncEventsSent records an event handed to the ingest client.
func (c *Collector) IncEventsSent() {
	if c == nil {
		return
	}
	c.inc(&c.eventsSent, 1)
}

// IncTimelinesCreated records a newly announced timeline.
func (c *Collector) IncTimelinesCreated() {
	if c == nil {
		return
	}
	c.inc(&c.timelinesCreated, 1)
}

// IncTimelineSwitches records a switch of the active timeline.
func (c *Collector) IncTimelineSwitches() {
	if c == nil {
		return
	}
	c.inc(&c.timelineSwitches, 1)
}

// --- Sink ---
// Sink counters are per-call, not per-op. A single WriteOps call with N ops
// counts as 1 success.

// IncSinkWriteSuccess records a successful sink write (per-call).
func (c *Collector) IncSinkWriteSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.sinkWriteSuccess, 1)
}

// IncSinkWriteFailure records a failed sink write (per-call).
func (c *Collector) IncSinkWriteFailure() {
	if c == nil {
		return
	}
	c.inc(&c.sinkWriteFailure, 1)
}

// --- Delivery (absorbed from policy.Stats) ---

// AbsorbPolicyStats copies delivery counters from policy.Stats into the
// collector. Called once after stream completion with the final snapshot.
func (c *Collector) AbsorbPolicyStats(received, written, flushes int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.opsReceived = received
	c.opsWritten = written
	c.flushes = flushes
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		StreamsStarted:   c.streamsStarted,
		StreamsCompleted: c.streamsCompleted,
		StreamsFailed:    c.streamsFailed,

		FramesRead:          c.framesRead,
		BytesRead:           c.bytesRead,
		FramingErrors:       c.framingErrors,
		StorageHeaderErrors: c.storageHeaderErrors,

		MessagesInvalid:  c.messagesInvalid,
		MessagesFiltered: c.messagesFiltered,

		EventsSent:       c.eventsSent,
		TimelinesCreated: c.timelinesCreated,
		TimelineSwitches: c.timelineSwitches,

		OpsReceived: c.opsReceived,
		OpsWritten:  c.opsWritten,
		Flushes:     c.flushes,

		SinkWriteSuccess: c.sinkWriteSuccess,
		SinkWriteFailure: c.sinkWriteFailure,

		Mode:     c.mode,
		Policy:   c.policy,
		Sink:     c.sink,
		StreamID: c.streamID,
	}
}
