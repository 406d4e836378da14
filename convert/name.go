package convert

import "github.com/auxoncorp/modality-dlt-plugin/dlt"

// EventName returns the event kind of msg. The extended header message type
// takes precedence over the payload shape.
func EventName(msg *dlt.Message) string {
	if ext := msg.Extended; ext != nil {
		switch ext.MessageType.(type) {
		case dlt.LogMessage:
			return "log"
		case dlt.AppTraceMessage:
			return "application_trace"
		case dlt.NetworkTraceMessage:
			return "network_trace"
		case dlt.ControlMessage:
			return "control"
		default:
			return "unknown"
		}
	}

	switch msg.Payload.(type) {
	case dlt.VerbosePayload:
		return "verbose"
	case dlt.NonVerbosePayload:
		return "non_verbose"
	case dlt.ControlPayload:
		return "control"
	default:
		return "unknown"
	}
}
