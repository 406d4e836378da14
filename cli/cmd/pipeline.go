package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/auxoncorp/modality-dlt-plugin/adapter"
	"github.com/auxoncorp/modality-dlt-plugin/adapter/redis"
	"github.com/auxoncorp/modality-dlt-plugin/adapter/webhook"
	"github.com/auxoncorp/modality-dlt-plugin/cli/config"
	"github.com/auxoncorp/modality-dlt-plugin/ingest"
	"github.com/auxoncorp/modality-dlt-plugin/ingest/lode"
	natssink "github.com/auxoncorp/modality-dlt-plugin/ingest/nats"
	"github.com/auxoncorp/modality-dlt-plugin/ingest/wire"
	"github.com/auxoncorp/modality-dlt-plugin/iox"
	"github.com/auxoncorp/modality-dlt-plugin/log"
	"github.com/auxoncorp/modality-dlt-plugin/metrics"
	"github.com/auxoncorp/modality-dlt-plugin/policy"
	"github.com/auxoncorp/modality-dlt-plugin/runtime"
	"github.com/auxoncorp/modality-dlt-plugin/types"
)

// notifyTimeout bounds completion notification, including retries.
const notifyTimeout = 30 * time.Second

// buildSink connects the configured sink backend.
func buildSink(ctx context.Context, opts *options, logger *log.Logger, start time.Time) (ingest.Sink, error) {
	switch opts.sink {
	case sinkWire:
		codec, err := wire.ParseCodec(opts.wire.Codec)
		if err != nil {
			return nil, err
		}
		cfg := wire.Config{
			URL:         opts.wire.URL,
			Token:       opts.wire.Token,
			Codec:       codec,
			DialTimeout: opts.wire.DialTimeout.Duration,
			Logger:      logger,
		}
		if opts.wire.InsecureSkipVerify {
			//nolint:gosec // explicitly requested for self-signed ingest servers
			cfg.TLSConfig = &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS12}
		}
		return wire.Dial(ctx, cfg)

	case sinkLode:
		client, err := buildLodeClient(ctx, opts, start)
		if err != nil {
			return nil, err
		}
		logger.Info("writing to lode dataset", map[string]any{
			"backend": opts.lode.Backend,
			"path":    opts.lode.Path,
		})
		return lode.NewSink(client), nil

	case sinkNATS:
		codec, err := wire.ParseCodec(opts.nats.Codec)
		if err != nil {
			return nil, err
		}
		return natssink.Connect(ctx, natssink.Config{
			URL:           opts.nats.URL,
			Stream:        opts.nats.Stream,
			SubjectPrefix: opts.nats.SubjectPrefix,
			StreamID:      opts.streamID,
			Codec:         codec,
			Logger:        logger,
		})

	case sinkStub:
		return policy.NewStubSink(), nil

	default:
		return nil, fmt.Errorf("unknown sink %q", opts.sink)
	}
}

func buildLodeClient(ctx context.Context, opts *options, start time.Time) (lode.Client, error) {
	cfg := lode.Config{
		Dataset:  opts.lode.Dataset,
		Source:   opts.source,
		Day:      lode.DeriveDay(start),
		StreamID: opts.streamID,
	}
	switch opts.lode.Backend {
	case "", "fs":
		return lode.NewLodeClient(cfg, opts.lode.Path)
	case "s3":
		bucket, prefix := lode.ParseS3Path(opts.lode.Path)
		return lode.NewLodeS3Client(ctx, cfg, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       opts.lode.Region,
			Endpoint:     opts.lode.Endpoint,
			UsePathStyle: opts.lode.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("invalid lode backend %q (must be fs or s3)", opts.lode.Backend)
	}
}

// buildPolicy wraps sink in the configured delivery policy.
func buildPolicy(p config.PolicyConfig, sink ingest.Sink, logger *log.Logger) (policy.Policy, error) {
	switch p.Name {
	case policyStrict:
		return policy.NewStrict(sink), nil
	case policyBuffered:
		return policy.NewBuffered(sink, policy.BufferedConfig{
			MaxOps:        p.MaxOps,
			MaxBytes:      p.MaxBytes,
			FlushInterval: p.FlushInterval.Duration,
			Logger:        logger,
		})
	default:
		return nil, fmt.Errorf("unknown policy %q", p.Name)
	}
}

// openPipeline connects the sink, instruments it, and wraps it in the
// policy. On error nothing is left open.
func openPipeline(ctx context.Context, opts *options, logger *log.Logger, collector *metrics.Collector) (policy.Policy, error) {
	sink, err := buildSink(ctx, opts, logger, time.Now())
	if err != nil {
		return nil, err
	}
	pol, err := buildPolicy(opts.policy, ingest.NewInstrumentedSink(sink, collector), logger)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}
	return pol, nil
}

// buildAdapter returns the completion adapter, or nil if none is configured.
func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case adapterWebhook:
		retries := webhook.DefaultRetries
		if cfg.Retries != nil {
			retries = *cfg.Retries
		}
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	case adapterRedis:
		retries := redis.DefaultRetries
		if cfg.Retries != nil {
			retries = *cfg.Retries
		}
		return redis.New(redis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter %q", cfg.Type)
	}
}

// completionEvent describes a finished stream for adapters.
func completionEvent(opts *options, result *runtime.StreamResult) *adapter.StreamCompletedEvent {
	return &adapter.StreamCompletedEvent{
		ProtocolVersion: types.ProtocolVersion,
		StreamID:        opts.streamID,
		Mode:            string(result.Mode),
		Source:          result.Source,
		Outcome:         string(result.Outcome.Status),
		Message:         result.Outcome.Message,
		Messages:        result.Messages,
		Events:          result.Events,
		Timelines:       result.Timelines,
		BytesRead:       result.BytesRead,
		DurationMs:      result.Duration.Milliseconds(),
	}
}

// publishCompletion notifies the configured adapter. Failures are logged
// and never change the exit code.
func publishCompletion(ctx context.Context, opts *options, result *runtime.StreamResult, logger *log.Logger) {
	a, err := buildAdapter(opts.adapter)
	if err != nil {
		logger.Error("invalid completion adapter", map[string]any{"error": err.Error()})
		return
	}
	if a == nil {
		return
	}
	defer iox.DiscardClose(a)

	// The stream context is usually canceled by now on signal stop.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	event := completionEvent(opts, result)
	event.Stamp(time.Now())
	if err := a.Publish(ctx, event); err != nil {
		logger.Error("completion notification failed", map[string]any{
			"adapter": opts.adapter.Type,
			"error":   err.Error(),
		})
		return
	}
	logger.Debug("completion notification sent", map[string]any{"adapter": opts.adapter.Type})
}

// exitFor converts a stream outcome into the command's return value.
func exitFor(result *runtime.StreamResult) error {
	code := result.Outcome.ExitCode()
	if code == runtime.ExitCodeSuccess {
		return nil
	}
	return cli.Exit(result.Outcome.Message, code)
}

// usageError reports invalid arguments or configuration.
func usageError(err error) error {
	return cli.Exit(err.Error(), runtime.ExitCodeUsage)
}

// sinkSetupError reports a sink backend that could not be opened.
func sinkSetupError(err error) error {
	if errors.Is(err, policy.ErrInvalidConfig) {
		return usageError(err)
	}
	return cli.Exit(fmt.Sprintf("sink setup failed: %v", err), runtime.ExitCodeSink)
}
