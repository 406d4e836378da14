package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/auxoncorp/modality-dlt-plugin/metrics"
)

// ImportReport is the structured JSON report written by --report.
type ImportReport struct {
	Mode       Mode          `json:"mode"`
	Source     string        `json:"source"`
	Outcome    OutcomeStatus `json:"outcome"`
	Message    string        `json:"message"`
	ExitCode   int           `json:"exit_code"`
	DurationMs int64         `json:"duration_ms"`
	Messages   int64         `json:"messages"`
	Events     uint64        `json:"events"`
	Timelines  int           `json:"timelines"`
	BytesRead  int64         `json:"bytes_read"`

	Policy  *ReportPolicy     `json:"policy"`
	Metrics *metrics.Snapshot `json:"metrics"`
}

// ReportPolicy holds policy stats in the report.
type ReportPolicy struct {
	Name          string           `json:"name"`
	OpsReceived   int64            `json:"ops_received"`
	OpsWritten    int64            `json:"ops_written"`
	Flushes       int64            `json:"flushes"`
	Errors        int64            `json:"errors"`
	FlushTriggers map[string]int64 `json:"flush_triggers,omitempty"`
}

// BuildImportReport composes a report from a stream result and metrics
// snapshot.
func BuildImportReport(result *StreamResult, snap metrics.Snapshot, policyName string) *ImportReport {
	report := &ImportReport{
		Mode:       result.Mode,
		Source:     result.Source,
		Outcome:    result.Outcome.Status,
		Message:    result.Outcome.Message,
		ExitCode:   result.Outcome.ExitCode(),
		DurationMs: result.Duration.Milliseconds(),
		Messages:   result.Messages,
		Events:     result.Events,
		Timelines:  result.Timelines,
		BytesRead:  result.BytesRead,
		Policy: &ReportPolicy{
			Name:        policyName,
			OpsReceived: result.Policy.OpsReceived,
			OpsWritten:  result.Policy.OpsWritten,
			Flushes:     result.Policy.FlushCount,
			Errors:      result.Policy.Errors,
		},
		Metrics: &snap,
	}
	if len(result.Policy.FlushTriggers) > 0 {
		report.Policy.FlushTriggers = make(map[string]int64, len(result.Policy.FlushTriggers))
		for trigger, n := range result.Policy.FlushTriggers {
			report.Policy.FlushTriggers[string(trigger)] = n
		}
	}
	return report
}

// WriteImportReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteImportReport(report *ImportReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := writeReportTo(report, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return f.Close()
}

func writeReportTo(report *ImportReport, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
