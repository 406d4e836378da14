package runtime

import (
	"context"
	"io"
	"time"

	"github.com/auxoncorp/modality-dlt-plugin/convert"
	"github.com/auxoncorp/modality-dlt-plugin/dlt"
	"github.com/auxoncorp/modality-dlt-plugin/ingest"
	"github.com/auxoncorp/modality-dlt-plugin/log"
	"github.com/auxoncorp/modality-dlt-plugin/metrics"
	"github.com/auxoncorp/modality-dlt-plugin/policy"
)

// flushTimeout bounds the final flush, which runs even after cancellation.
const flushTimeout = 30 * time.Second

// StreamConfig configures a single stream ingestion.
type StreamConfig struct {
	// Mode selects network or file framing.
	Mode Mode
	// Source is the file path or host:port; informational.
	Source string
	// Input is the buffered DLT byte stream.
	Input io.Reader
	// Policy delivers client calls to the sink. It is flushed and closed
	// when the stream ends.
	Policy policy.Policy
	// Keys selects the timeline key components.
	Keys convert.KeyConfig
	// Filter, if set, drops messages it rejects.
	Filter *dlt.Filter
	// Logger is optional.
	Logger *log.Logger
	// Collector is optional.
	Collector *metrics.Collector
}

// StreamResult summarizes a finished stream.
type StreamResult struct {
	Mode      Mode
	Source    string
	Outcome   *Outcome
	Err       error
	Duration  time.Duration
	Messages  int64
	Events    uint64
	Timelines int
	BytesRead int64
	Policy    policy.Stats
}

// RunStream ingests one stream to completion: it runs the ingestion loop,
// flushes and closes the policy, and absorbs policy stats into the
// collector. The outcome is reported in the result rather than as an error.
func RunStream(ctx context.Context, cfg StreamConfig) *StreamResult {
	start := time.Now()
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	cfg.Collector.IncStreamStarted()

	logger.Info("starting stream", map[string]any{
		"mode":   string(cfg.Mode),
		"source": cfg.Source,
	})

	sender := NewSender(cfg.Policy, cfg.Keys, logger, cfg.Collector)
	engine := NewIngestionEngine(cfg.Input, cfg.Mode, &dlt.Decoder{Filter: cfg.Filter}, sender, logger, cfg.Collector)
	ingErr := engine.Run(ctx)

	// Flush even when canceled so buffered events are not lost.
	flushCtx, flushCancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	flushErr := cfg.Policy.Flush(flushCtx)
	flushCancel()
	if flushErr != nil {
		logger.Error("policy flush failed", ingest.ErrorFields(flushErr, nil))
	}
	if err := cfg.Policy.Close(); err != nil && flushErr == nil {
		logger.Error("policy close failed", ingest.ErrorFields(err, nil))
		flushErr = err
	}

	stats := cfg.Policy.Stats()
	cfg.Collector.AbsorbPolicyStats(stats.OpsReceived, stats.OpsWritten, stats.FlushCount)

	outcome := DetermineOutcome(ingErr, flushErr)
	if outcome.ExitCode() == ExitCodeSuccess {
		cfg.Collector.IncStreamCompleted()
	} else {
		cfg.Collector.IncStreamFailed()
	}

	result := &StreamResult{
		Mode:      cfg.Mode,
		Source:    cfg.Source,
		Outcome:   outcome,
		Err:       ingErr,
		Duration:  time.Since(start),
		Messages:  engine.Messages(),
		Events:    sender.Ordering(),
		Timelines: sender.Timelines(),
		BytesRead: engine.BytesRead(),
		Policy:    stats,
	}
	if result.Err == nil {
		result.Err = flushErr
	}

	logger.Info("stream finished", map[string]any{
		"outcome":   string(outcome.Status),
		"messages":  result.Messages,
		"events":    result.Events,
		"timelines": result.Timelines,
		"duration":  result.Duration.String(),
	})
	return result
}
