package policy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/auxoncorp/modality-dlt-plugin/ingest"
	"github.com/auxoncorp/modality-dlt-plugin/log"
	"github.com/auxoncorp/modality-dlt-plugin/types"
)

// FlushTrigger identifies which trigger caused a flush.
type FlushTrigger string

const (
	// FlushTriggerLimit indicates the op count or byte limit was reached.
	FlushTriggerLimit FlushTrigger = "limit"
	// FlushTriggerInterval indicates an interval-based flush.
	FlushTriggerInterval FlushTrigger = "interval"
	// FlushTriggerExplicit indicates a Flush or Close call.
	FlushTriggerExplicit FlushTrigger = "explicit"
)

// BufferedConfig configures a Buffered policy.
type BufferedConfig struct {
	// MaxOps flushes once this many ops are buffered.
	// Zero means no count limit.
	MaxOps int

	// MaxBytes flushes once the estimated buffer size reaches this many
	// bytes. Zero means no byte limit.
	MaxBytes int64

	// FlushInterval flushes buffered ops periodically.
	// Zero disables interval flushes.
	FlushInterval time.Duration

	// Logger is an optional logger for policy observability.
	// If nil, no logging is emitted.
	Logger *log.Logger
}

// DefaultBufferedConfig returns sensible defaults for buffered policy.
func DefaultBufferedConfig() BufferedConfig {
	return BufferedConfig{
		MaxOps:   1000,
		MaxBytes: 4 * 1024 * 1024, // 4 MB
	}
}

// ErrInvalidConfig is returned when BufferedConfig is invalid.
var ErrInvalidConfig = errors.New("invalid config: at least one of MaxOps, MaxBytes or FlushInterval must be set")

// Buffered implements batched delivery.
//
//   - No drops: every op is written, in call order
//   - Bounded buffer: a full buffer is flushed before the call returns
//   - Flush on limit, on interval, on Flush and on Close
//   - On flush failure the batch is kept and the error returned; ops written
//     before the failure are not rolled back
//
// Thread safety:
//   - mu guards buffer state and stats
//   - flushMu serializes flushes from the caller and the interval goroutine
type Buffered struct {
	sink   ingest.Sink
	config BufferedConfig
	logger *log.Logger

	mu          sync.Mutex
	tl          timelineStamper
	buffer      []ingest.Op
	bufferBytes int64
	stats       *statsRecorder

	flushMu sync.Mutex

	stopCh  chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

// NewBuffered creates a buffered policy.
// Returns error if config is invalid.
func NewBuffered(sink ingest.Sink, config BufferedConfig) (*Buffered, error) {
	if config.MaxOps <= 0 && config.MaxBytes <= 0 && config.FlushInterval <= 0 {
		return nil, ErrInvalidConfig
	}

	p := &Buffered{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buffer: make([]ingest.Op, 0, max(config.MaxOps, 64)),
		stats:  newStatsRecorder(),
		stopCh: make(chan struct{}),
	}

	if config.FlushInterval > 0 {
		p.wg.Add(1)
		go p.intervalLoop()
	}

	return p, nil
}

// add buffers op and flushes if a limit is reached.
func (p *Buffered) add(ctx context.Context, op ingest.Op) error {
	p.mu.Lock()
	p.stats.incReceivedLocked()
	p.buffer = append(p.buffer, op)
	p.bufferBytes += estimateOpSize(op)
	full := (p.config.MaxOps > 0 && len(p.buffer) >= p.config.MaxOps) ||
		(p.config.MaxBytes > 0 && p.bufferBytes >= p.config.MaxBytes)
	p.mu.Unlock()

	if full {
		return p.flush(ctx, FlushTriggerLimit)
	}
	return nil
}

// SwitchTimeline buffers a switch op and makes id the active timeline.
func (p *Buffered) SwitchTimeline(ctx context.Context, id types.TimelineID) error {
	p.mu.Lock()
	op := p.tl.switchOp(id)
	p.tl.active = id
	p.mu.Unlock()
	return p.add(ctx, op)
}

// SendTimelineAttrs buffers a timeline attrs op for the active timeline.
func (p *Buffered) SendTimelineAttrs(ctx context.Context, name string, attrs []types.Attr) error {
	p.mu.Lock()
	op := p.tl.attrsOp(name, attrs)
	p.mu.Unlock()
	return p.add(ctx, op)
}

// SendEvent buffers an event op for the active timeline.
func (p *Buffered) SendEvent(ctx context.Context, name string, ordering uint64, attrs []types.Attr) error {
	p.mu.Lock()
	op := p.tl.eventOp(name, ordering, attrs)
	p.mu.Unlock()
	return p.add(ctx, op)
}

// Flush writes all buffered ops to the sink.
func (p *Buffered) Flush(ctx context.Context) error {
	return p.flush(ctx, FlushTriggerExplicit)
}

// flush swaps the buffer under mu, writes outside mu, and restores the
// batch ahead of any newer ops on failure.
func (p *Buffered) flush(ctx context.Context, trigger FlushTrigger) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	p.stats.incFlushLocked(trigger)
	batch := p.buffer
	if len(batch) == 0 {
		p.mu.Unlock()
		return nil
	}
	p.buffer = make([]ingest.Op, 0, max(p.config.MaxOps, 64))
	p.bufferBytes = 0
	p.mu.Unlock()

	if err := p.sink.WriteOps(ctx, batch); err != nil {
		p.mu.Lock()
		p.stats.incErrorsLocked()
		p.buffer = append(batch, p.buffer...)
		p.recalculateBufferBytes()
		p.mu.Unlock()
		p.logFlushFailure(trigger, len(batch), err)
		return err
	}

	p.mu.Lock()
	p.stats.incWrittenLocked(int64(len(batch)))
	p.mu.Unlock()
	p.logFlush(trigger, len(batch))
	return nil
}

// Close stops the interval goroutine, flushes remaining ops and closes the
// sink. A flush failure is returned together with any close error.
func (p *Buffered) Close() error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.stopCh)
	}
	p.mu.Unlock()
	p.wg.Wait()

	flushErr := p.Flush(context.Background())
	return errors.Join(flushErr, p.sink.Close())
}

// Stats returns policy statistics.
// The buffer mutex is held while taking the snapshot, so counters and
// buffer size are captured from the same point in time.
func (p *Buffered) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats.snapshotLocked(len(p.buffer), p.bufferBytes)
}

// intervalLoop triggers flushes on the configured interval.
func (p *Buffered) intervalLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			hasData := len(p.buffer) > 0
			p.mu.Unlock()

			if hasData {
				// A failed interval flush keeps its batch; the next call
				// or explicit flush reports the error.
				_ = p.flush(context.Background(), FlushTriggerInterval)
			}
		case <-p.stopCh:
			return
		}
	}
}

// recalculateBufferBytes recomputes bufferBytes. Caller must hold mu.
func (p *Buffered) recalculateBufferBytes() {
	var total int64
	for _, op := range p.buffer {
		total += estimateOpSize(op)
	}
	p.bufferBytes = total
}

// --- Logging helpers ---

func (p *Buffered) logFlush(trigger FlushTrigger, ops int) {
	if p.logger == nil {
		return
	}
	p.logger.Debug("buffered flush", map[string]any{
		"trigger": string(trigger),
		"ops":     ops,
		"policy":  "buffered",
	})
}

func (p *Buffered) logFlushFailure(trigger FlushTrigger, ops int, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("flush failed", ingest.ErrorFields(err, map[string]any{
		"trigger": string(trigger),
		"ops":     ops,
		"policy":  "buffered",
	}))
}

// Verify Buffered implements Policy.
var _ Policy = (*Buffered)(nil)
