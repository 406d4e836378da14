package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/auxoncorp/modality-dlt-plugin/iox"
	"github.com/auxoncorp/modality-dlt-plugin/log"
	"github.com/auxoncorp/modality-dlt-plugin/metrics"
	"github.com/auxoncorp/modality-dlt-plugin/runtime"
	"github.com/auxoncorp/modality-dlt-plugin/source"
)

// CollectCommand returns the collect command.
// Collect connects to a DLT server over TCP and ingests its message stream
// until the connection ends or the process is interrupted.
//
// Exit codes:
//   - 0: stopped by signal, stream flushed
//   - 1: invalid configuration or DLT server unreachable
//   - 2: framing error, including the server closing the connection
//   - 3: sink failure
func CollectCommand() *cli.Command {
	return &cli.Command{
		Name:  "collect",
		Usage: "Collect DLT messages from a DLT server over TCP",
		Flags: concatFlags(
			networkFlags(),
			[]cli.Flag{
				&cli.StringFlag{
					Name:  "metrics-addr",
					Usage: "Serve Prometheus metrics at /metrics on this address (e.g. :9464)",
				},
			},
			configFlags(),
			timelineFlags(),
			filterFlags(),
			sinkFlags(),
			policyFlags(),
			adapterFlags(),
		),
		Action: collectAction,
	}
}

func collectAction(c *cli.Context) error {
	if c.NArg() > 0 {
		return cli.Exit(fmt.Sprintf("unexpected arguments: %v", c.Args().Slice()), runtime.ExitCodeUsage)
	}
	opts, err := resolveOptions(c, runtime.ModeNetwork, "")
	if err != nil {
		return usageError(err)
	}

	logger := newLogger(opts)
	defer iox.DiscardErr(logger.Sync)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector(string(opts.mode), opts.policy.Name, opts.sink, opts.streamID)
	if addr := c.String("metrics-addr"); addr != "" {
		_, shutdown, err := serveMetrics(addr, collector, logger)
		if err != nil {
			return usageError(err)
		}
		defer shutdown()
	}

	pol, err := openPipeline(ctx, opts, logger, collector)
	if err != nil {
		return sinkSetupError(err)
	}

	conn, err := source.Dial(ctx, opts.host, opts.port)
	if err != nil {
		_ = pol.Close()
		return cli.Exit(err.Error(), runtime.ExitCodeUsage)
	}
	defer iox.DiscardClose(conn)
	logger.Info("connected to DLT server", map[string]any{"addr": opts.source})

	result := runtime.RunStream(ctx, runtime.StreamConfig{
		Mode:      opts.mode,
		Source:    opts.source,
		Input:     conn,
		Policy:    pol,
		Keys:      opts.keys,
		Filter:    opts.filter,
		Logger:    logger,
		Collector: collector,
	})

	if result.Outcome.Status == runtime.OutcomeStopped {
		logger.Sugar().Infof("collector stopped after %d messages on %d timelines", result.Messages, result.Timelines)
	}

	publishCompletion(ctx, opts, result, logger)
	return exitFor(result)
}

// serveMetrics exposes collector on addr until shutdown is called.
// Returns the bound address, which differs from addr for port 0.
func serveMetrics(addr string, collector *metrics.Collector, logger *log.Logger) (string, func(), error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewExporter(collector)); err != nil {
		return "", nil, fmt.Errorf("register metrics: %w", err)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", map[string]any{"error": err.Error()})
		}
	}()
	bound := ln.Addr().String()
	logger.Info("serving metrics", map[string]any{"addr": bound})

	return bound, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
