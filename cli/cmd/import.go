package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/auxoncorp/modality-dlt-plugin/cli/render"
	"github.com/auxoncorp/modality-dlt-plugin/iox"
	"github.com/auxoncorp/modality-dlt-plugin/metrics"
	"github.com/auxoncorp/modality-dlt-plugin/runtime"
	"github.com/auxoncorp/modality-dlt-plugin/source"
)

// ImportSummary is the rendered result of an import.
type ImportSummary struct {
	Source    string `json:"source"`
	StreamID  string `json:"stream_id"`
	Outcome   string `json:"outcome"`
	Message   string `json:"message"`
	Messages  int64  `json:"messages"`
	Events    uint64 `json:"events"`
	Timelines int    `json:"timelines"`
	BytesRead int64  `json:"bytes_read"`
	Duration  string `json:"duration"`
}

// ImportCommand returns the import command.
// Import reads a stored DLT file (optionally zstd or LZ4 compressed)
// and ingests every message in it.
//
// Exit codes:
//   - 0: file imported
//   - 1: invalid arguments or unreadable file
//   - 2: framing or storage header error
//   - 3: sink failure
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import a stored DLT file",
		ArgsUsage: "<file>",
		Flags: concatFlags(
			OutputFlags(),
			[]cli.Flag{
				&cli.StringFlag{
					Name:  "report",
					Usage: "Write a JSON import report to this path ('-' for stderr)",
				},
			},
			configFlags(),
			timelineFlags(),
			filterFlags(),
			sinkFlags(),
			policyFlags(),
			adapterFlags(),
		),
		Action: importAction,
	}
}

func importAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("import requires exactly one <file> argument", runtime.ExitCodeUsage)
	}
	path := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return usageError(err)
	}
	opts, err := resolveOptions(c, runtime.ModeFile, path)
	if err != nil {
		return usageError(err)
	}

	f, err := source.OpenFile(path)
	if err != nil {
		return usageError(err)
	}
	defer iox.DiscardClose(f)

	logger := newLogger(opts)
	defer iox.DiscardErr(logger.Sync)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector(string(opts.mode), opts.policy.Name, opts.sink, opts.streamID)
	pol, err := openPipeline(ctx, opts, logger, collector)
	if err != nil {
		return sinkSetupError(err)
	}

	result := runtime.RunStream(ctx, runtime.StreamConfig{
		Mode:      opts.mode,
		Source:    opts.source,
		Input:     f,
		Policy:    pol,
		Keys:      opts.keys,
		Filter:    opts.filter,
		Logger:    logger,
		Collector: collector,
	})

	if reportPath := c.String("report"); reportPath != "" {
		report := runtime.BuildImportReport(result, collector.Snapshot(), opts.policy.Name)
		if err := runtime.WriteImportReport(report, reportPath); err != nil {
			logger.Error("failed to write import report", map[string]any{
				"path":  reportPath,
				"error": err.Error(),
			})
		}
	}

	publishCompletion(ctx, opts, result, logger)

	if err := r.Render(importSummary(opts, result)); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return exitFor(result)
}

func importSummary(opts *options, result *runtime.StreamResult) ImportSummary {
	return ImportSummary{
		Source:    result.Source,
		StreamID:  opts.streamID,
		Outcome:   string(result.Outcome.Status),
		Message:   result.Outcome.Message,
		Messages:  result.Messages,
		Events:    result.Events,
		Timelines: result.Timelines,
		BytesRead: result.BytesRead,
		Duration:  result.Duration.String(),
	}
}
