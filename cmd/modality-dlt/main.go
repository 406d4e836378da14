// Package main provides the modality-dlt CLI entrypoint.
//
// Usage:
//
//	modality-dlt <command> [options]
//
// Exit codes for collect and import:
//   - 0: success, or stopped by signal with the stream flushed
//   - 1: invalid arguments or configuration
//   - 2: framing or storage header error
//   - 3: sink failure
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/auxoncorp/modality-dlt-plugin/cli/cmd"
	"github.com/auxoncorp/modality-dlt-plugin/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "modality-dlt",
		Usage:          "Ingest AUTOSAR DLT logs into Modality",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.CollectCommand(),
			cmd.ImportCommand(),
			cmd.InspectCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already exited for every error it sees.
		os.Exit(1)
	}
}

// exitErrHandler prints the error, if it has a real message, and exits with
// the code carried by cli.Exit.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	code, msg := exitStatus(err)
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(code)
}

// exitStatus maps a command error to an exit code and the message to print.
// Errors that do not carry a code exit 1.
func exitStatus(err error) (int, string) {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		// cli.Exit("", N).Error() is "exit status N"; nothing worth printing.
		if msg == fmt.Sprintf("exit status %d", code) {
			msg = ""
		}
		return code, msg
	}
	return 1, fmt.Sprintf("Error: %v", err)
}
