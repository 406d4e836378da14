// Package cmd provides CLI commands for the modality-dlt binary.
package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/auxoncorp/modality-dlt-plugin/source"
)

// Shared flags for commands that render output.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for read-only commands (inspect).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Browse the output interactively (inspect only)",
	}
)

// OutputFlags returns the shared flags for commands that render output.
func OutputFlags() []cli.Flag {
	return []cli.Flag{FormatFlag, NoColorFlag}
}

// TUIReadOnlyFlags returns the output flags plus --tui.
func TUIReadOnlyFlags() []cli.Flag {
	return append(OutputFlags(), TUIFlag)
}

// configFlags locate configuration and tune logging.
func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a modality-dlt.yaml config file",
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "Load environment variables from this file (default .env if present)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Minimum log level: debug, info, warn, error",
			Value: "info",
		},
		&cli.StringFlag{
			Name:  "stream-id",
			Usage: "Identifier for this ingestion run (default: random)",
		},
	}
}

// timelineFlags select the timeline key components.
func timelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "timeline-from-ecu-id", Usage: "Include the ECU id in the timeline key", Value: true},
		&cli.BoolFlag{Name: "timeline-from-session-id", Usage: "Include the session id in the timeline key", Value: true},
		&cli.BoolFlag{Name: "timeline-from-application-id", Usage: "Include the application id in the timeline key"},
		&cli.BoolFlag{Name: "timeline-from-context-id", Usage: "Include the context id in the timeline key"},
	}
}

// filterFlags configure the decoder filter.
func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "min-log-level", Usage: "Drop log messages less severe than: fatal, error, warn, info, debug, verbose"},
		&cli.StringSliceFlag{Name: "app-id", Usage: "Accept only these application ids (repeatable)"},
		&cli.StringSliceFlag{Name: "context-id", Usage: "Accept only these context ids (repeatable)"},
		&cli.StringSliceFlag{Name: "ecu-id", Usage: "Accept only these ECU ids (repeatable)"},
	}
}

// sinkFlags select and configure the ingest backend.
func sinkFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "sink",
			Usage: "Ingest backend: wire, lode, nats or stub",
			Value: sinkWire,
		},
		// Ingest protocol
		&cli.StringFlag{Name: "ingest-url", Usage: "Ingest server URL (modality-ingest[-tls]://host[:port])"},
		&cli.StringFlag{Name: "auth-token", Usage: "Ingest auth token"},
		&cli.StringFlag{Name: "codec", Usage: "Wire codec: msgpack or cbor", Value: "msgpack"},
		&cli.DurationFlag{Name: "dial-timeout", Usage: "Ingest connection timeout"},
		&cli.BoolFlag{Name: "insecure-skip-verify", Usage: "Skip TLS certificate verification"},
		// Lode
		&cli.StringFlag{Name: "lode-dataset", Usage: "Lode dataset id"},
		&cli.StringFlag{Name: "lode-backend", Usage: "Lode storage backend: fs or s3", Value: "fs"},
		&cli.StringFlag{Name: "lode-path", Usage: "Lode storage path (fs: directory, s3: bucket/prefix)"},
		&cli.StringFlag{Name: "lode-s3-region", Usage: "AWS region for the S3 backend"},
		&cli.StringFlag{Name: "lode-s3-endpoint", Usage: "Custom S3 endpoint (MinIO, R2)"},
		&cli.BoolFlag{Name: "lode-s3-path-style", Usage: "Use path-style S3 addressing"},
		// NATS
		&cli.StringFlag{Name: "nats-url", Usage: "NATS server URL"},
		&cli.StringFlag{Name: "nats-stream", Usage: "JetStream stream name"},
		&cli.StringFlag{Name: "nats-subject-prefix", Usage: "Subject prefix for published ops"},
	}
}

// policyFlags select the delivery policy.
func policyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "policy", Usage: "Delivery policy: strict or buffered", Value: policyStrict},
		&cli.IntFlag{Name: "max-ops", Usage: "Flush after this many buffered ops (buffered policy)"},
		&cli.Int64Flag{Name: "max-bytes", Usage: "Flush after this many buffered bytes (buffered policy)"},
		&cli.DurationFlag{Name: "flush-interval", Usage: "Flush buffered ops periodically (buffered policy)"},
	}
}

// adapterFlags configure the completion notification.
func adapterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "adapter", Usage: "Completion notification: webhook or redis"},
		&cli.StringFlag{Name: "adapter-url", Usage: "Webhook URL or Redis URL"},
		&cli.StringFlag{Name: "adapter-channel", Usage: "Redis channel"},
	}
}

// networkFlags locate the DLT server.
func networkFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "host", Usage: "DLT server host", Value: source.DefaultHost},
		&cli.IntFlag{Name: "port", Usage: "DLT server port", Value: source.DefaultPort},
	}
}

func concatFlags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
