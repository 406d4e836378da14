package cmd

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/auxoncorp/modality-dlt-plugin/cli/render"
	"github.com/auxoncorp/modality-dlt-plugin/cli/tui"
	"github.com/auxoncorp/modality-dlt-plugin/dlt"
	"github.com/auxoncorp/modality-dlt-plugin/ingest"
	"github.com/auxoncorp/modality-dlt-plugin/iox"
	"github.com/auxoncorp/modality-dlt-plugin/log"
	"github.com/auxoncorp/modality-dlt-plugin/runtime"
	"github.com/auxoncorp/modality-dlt-plugin/source"
	"github.com/auxoncorp/modality-dlt-plugin/types"
)

// InspectRow is one client call produced by converting a DLT file.
type InspectRow struct {
	Timeline string         `json:"timeline"`
	Kind     string         `json:"kind"`
	Ordering *uint64        `json:"ordering,omitempty"`
	Name     string         `json:"name,omitempty"`
	Attrs    map[string]any `json:"attrs,omitempty"`
}

// InspectCommand returns the inspect command.
// Inspect converts a stored DLT file without sending anything and renders
// the resulting timeline switches, timeline declarations and events.
// It is read-only. --tui browses the same rows interactively.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the timelines and events a DLT file converts to",
		ArgsUsage: "<file>",
		Flags: concatFlags(
			TUIReadOnlyFlags(),
			[]cli.Flag{
				&cli.IntFlag{
					Name:  "limit",
					Usage: "Show at most this many rows (0 for all)",
				},
				&cli.StringFlag{
					Name:    "config",
					Aliases: []string{"c"},
					Usage:   "Path to YAML config file (timeline and filter settings)",
				},
				&cli.StringFlag{
					Name:  "env-file",
					Usage: "Load environment variables from this file",
				},
			},
			timelineFlags(),
			filterFlags(),
		),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("inspect requires exactly one <file> argument", runtime.ExitCodeUsage)
	}
	path := c.Args().First()
	if c.Int("limit") < 0 {
		return cli.Exit("--limit must not be negative", runtime.ExitCodeUsage)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return usageError(err)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return usageError(err)
	}
	filter, err := resolveFilter(c, cfg)
	if err != nil {
		return usageError(err)
	}

	f, err := source.OpenFile(path)
	if err != nil {
		return usageError(err)
	}
	defer iox.DiscardClose(f)

	// Invalid messages are still worth seeing while inspecting.
	logger := log.New(log.StreamMeta{Mode: string(runtime.ModeFile), Source: path}, os.Stderr, zapcore.WarnLevel)
	defer iox.DiscardErr(logger.Sync)

	rec := ingest.NewRecorder()
	sender := runtime.NewSender(rec, resolveKeys(c, cfg), logger, nil)
	engine := runtime.NewIngestionEngine(f, runtime.ModeFile, &dlt.Decoder{Filter: filter}, sender, logger, nil)
	runErr := engine.Run(c.Context)

	rows := inspectRows(rec.Ops(), c.Int("limit"))
	if c.Bool("tui") {
		if err := r.RenderTUI(tui.ViewInspect, tui.InspectData{Title: path, Rows: viewerRows(rows)}); err != nil {
			return fmt.Errorf("tui: %w", err)
		}
	} else if err := r.Render(rows); err != nil {
		return fmt.Errorf("render ops: %w", err)
	}
	if runErr != nil {
		outcome := runtime.DetermineOutcome(runErr, nil)
		return cli.Exit(outcome.Message, outcome.ExitCode())
	}
	return nil
}

// inspectRows flattens recorded ops into rows, naming each timeline by its
// declared name. limit <= 0 keeps every row.
func inspectRows(ops []ingest.Op, limit int) []InspectRow {
	names := make(map[types.TimelineID]string)
	for _, op := range ops {
		if op.Kind == ingest.OpTimelineAttrs {
			names[op.TimelineID] = op.Name
		}
	}

	if limit > 0 && len(ops) > limit {
		ops = ops[:limit]
	}
	rows := make([]InspectRow, 0, len(ops))
	for _, op := range ops {
		row := InspectRow{
			Timeline: names[op.TimelineID],
			Kind:     string(op.Kind),
		}
		if row.Timeline == "" {
			row.Timeline = op.TimelineID.String()
		}
		if op.Kind != ingest.OpSwitchTimeline {
			row.Name = op.Name
		}
		if op.Kind == ingest.OpEvent {
			ordering := op.Ordering
			row.Ordering = &ordering
		}
		if len(op.Attrs) > 0 {
			row.Attrs = make(map[string]any, len(op.Attrs))
			for _, a := range op.Attrs {
				row.Attrs[string(a.Key)] = types.Native(a.Value)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// viewerRows formats rows for the interactive viewer, attributes sorted by
// key.
func viewerRows(rows []InspectRow) []tui.Row {
	out := make([]tui.Row, 0, len(rows))
	for _, r := range rows {
		vr := tui.Row{Timeline: r.Timeline, Kind: r.Kind, Name: r.Name}
		if r.Ordering != nil {
			vr.Ordering = strconv.FormatUint(*r.Ordering, 10)
		}
		for _, k := range slices.Sorted(maps.Keys(r.Attrs)) {
			vr.Attrs = append(vr.Attrs, tui.Attr{Key: k, Value: fmt.Sprint(r.Attrs[k])})
		}
		out = append(out, vr)
	}
	return out
}
