package runtime

import "fmt"

// OutcomeStatus classifies how a stream ended.
type OutcomeStatus string

const (
	// OutcomeSuccess indicates the stream was ingested completely.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeStopped indicates the stream was canceled, e.g. by a signal.
	OutcomeStopped OutcomeStatus = "stopped"
	// OutcomeFramingError indicates a framing failure.
	OutcomeFramingError OutcomeStatus = "framing_error"
	// OutcomeStorageHeaderError indicates a storage header failure.
	OutcomeStorageHeaderError OutcomeStatus = "storage_header_error"
	// OutcomeSinkError indicates the ingest client or its flush failed.
	OutcomeSinkError OutcomeStatus = "sink_error"
)

// Process exit codes.
const (
	ExitCodeSuccess = 0 // stream ingested or stopped on request
	ExitCodeUsage   = 1 // invalid arguments or configuration
	ExitCodeFraming = 2 // framing or storage header error
	ExitCodeSink    = 3 // ingest client failure
)

// Outcome is the final status of a stream.
type Outcome struct {
	Status  OutcomeStatus `json:"status"`
	Message string        `json:"message"`
}

// DetermineOutcome maps the ingestion error (nil on success) and the final
// flush error to an outcome. Ingestion errors take precedence.
func DetermineOutcome(ingErr, flushErr error) *Outcome {
	switch {
	case ingErr == nil && flushErr == nil:
		return &Outcome{Status: OutcomeSuccess, Message: "stream ingested successfully"}
	case ingErr == nil:
		return &Outcome{Status: OutcomeSinkError, Message: fmt.Sprintf("final flush failed: %v", flushErr)}
	case IsCanceledError(ingErr):
		if flushErr != nil {
			return &Outcome{Status: OutcomeSinkError, Message: fmt.Sprintf("final flush failed after stop: %v", flushErr)}
		}
		return &Outcome{Status: OutcomeStopped, Message: "stream stopped"}
	case IsStorageHeaderError(ingErr):
		return &Outcome{Status: OutcomeStorageHeaderError, Message: ingErr.Error()}
	case IsSinkError(ingErr):
		return &Outcome{Status: OutcomeSinkError, Message: ingErr.Error()}
	default:
		return &Outcome{Status: OutcomeFramingError, Message: ingErr.Error()}
	}
}

// ExitCode returns the process exit code for the outcome.
func (o *Outcome) ExitCode() int {
	switch o.Status {
	case OutcomeSuccess, OutcomeStopped:
		return ExitCodeSuccess
	case OutcomeFramingError, OutcomeStorageHeaderError:
		return ExitCodeFraming
	case OutcomeSinkError:
		return ExitCodeSink
	default:
		return ExitCodeUsage
	}
}
