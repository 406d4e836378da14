package dlt

import "fmt"

// Message type (MSTP) values.
const (
	mstpLog          = 0x0
	mstpAppTrace     = 0x1
	mstpNetworkTrace = 0x2
	mstpControl      = 0x3
)

// MessageType is the closed set of extended header message types.
// Implementations: LogMessage, AppTraceMessage, NetworkTraceMessage,
// ControlMessage, UnknownMessage.
type MessageType interface {
	isMessageType()
}

// LogMessage is MSTP=log with its log level.
type LogMessage struct{ Level LogLevel }

// AppTraceMessage is MSTP=application trace with its trace type.
type AppTraceMessage struct{ Type AppTraceType }

// NetworkTraceMessage is MSTP=network trace with its trace type.
type NetworkTraceMessage struct{ Type NetworkTraceType }

// ControlMessage is MSTP=control with its direction.
type ControlMessage struct{ Type ControlType }

// UnknownMessage carries a reserved MSTP value.
type UnknownMessage struct {
	Kind uint8
	Info uint8
}

func (LogMessage) isMessageType()          {}
func (AppTraceMessage) isMessageType()     {}
func (NetworkTraceMessage) isMessageType() {}
func (ControlMessage) isMessageType()      {}
func (UnknownMessage) isMessageType()      {}

func decodeMessageType(mstp, mtin uint8) MessageType {
	switch mstp {
	case mstpLog:
		return LogMessage{Level: LogLevel(mtin)}
	case mstpAppTrace:
		return AppTraceMessage{Type: AppTraceType(mtin)}
	case mstpNetworkTrace:
		return NetworkTraceMessage{Type: NetworkTraceType(mtin)}
	case mstpControl:
		return ControlMessage{Type: ControlType(mtin)}
	default:
		return UnknownMessage{Kind: mstp, Info: mtin}
	}
}

// encodeMessageType returns the MSTP and MTIN for t.
func encodeMessageType(t MessageType) (mstp, mtin uint8) {
	switch mt := t.(type) {
	case LogMessage:
		return mstpLog, uint8(mt.Level)
	case AppTraceMessage:
		return mstpAppTrace, uint8(mt.Type)
	case NetworkTraceMessage:
		return mstpNetworkTrace, uint8(mt.Type)
	case ControlMessage:
		return mstpControl, uint8(mt.Type)
	case UnknownMessage:
		return mt.Kind, mt.Info
	default:
		panic(fmt.Sprintf("dlt: unhandled message type %T", t))
	}
}

// LogLevel is the MTIN of a log message.
type LogLevel uint8

// Log levels.
const (
	LogFatal   LogLevel = 1
	LogError   LogLevel = 2
	LogWarn    LogLevel = 3
	LogInfo    LogLevel = 4
	LogDebug   LogLevel = 5
	LogVerbose LogLevel = 6
)

func (l LogLevel) String() string {
	switch l {
	case LogFatal:
		return "fatal"
	case LogError:
		return "error"
	case LogWarn:
		return "warn"
	case LogInfo:
		return "info"
	case LogDebug:
		return "debug"
	case LogVerbose:
		return "verbose"
	default:
		return "invalid"
	}
}

// ParseLogLevel parses a level name as produced by LogLevel.String.
func ParseLogLevel(s string) (LogLevel, error) {
	for l := LogFatal; l <= LogVerbose; l++ {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown log level %q (must be fatal, error, warn, info, debug or verbose)", s)
}

// AppTraceType is the MTIN of an application trace message.
type AppTraceType uint8

// Application trace types.
const (
	TraceVariable    AppTraceType = 1
	TraceFunctionIn  AppTraceType = 2
	TraceFunctionOut AppTraceType = 3
	TraceState       AppTraceType = 4
	TraceVFB         AppTraceType = 5
)

func (t AppTraceType) String() string {
	switch t {
	case TraceVariable:
		return "variable"
	case TraceFunctionIn:
		return "function_in"
	case TraceFunctionOut:
		return "function_out"
	case TraceState:
		return "state"
	case TraceVFB:
		return "vfb"
	default:
		return "invalid"
	}
}

// NetworkTraceType is the MTIN of a network trace message.
type NetworkTraceType uint8

// Network trace types. Values 7 through 15 are user defined.
const (
	TraceIPC      NetworkTraceType = 1
	TraceCAN      NetworkTraceType = 2
	TraceFlexRay  NetworkTraceType = 3
	TraceMOST     NetworkTraceType = 4
	TraceEthernet NetworkTraceType = 5
	TraceSomeIP   NetworkTraceType = 6
)

func (t NetworkTraceType) String() string {
	switch {
	case t == TraceIPC:
		return "ipc"
	case t == TraceCAN:
		return "can"
	case t == TraceFlexRay:
		return "flexray"
	case t == TraceMOST:
		return "most"
	case t == TraceEthernet:
		return "ethernet"
	case t == TraceSomeIP:
		return "someip"
	case t >= 7 && t <= 15:
		return "user_defined"
	default:
		return "invalid"
	}
}

// ControlType is the MTIN of a control message.
type ControlType uint8

// Control message directions.
const (
	ControlRequest  ControlType = 1
	ControlResponse ControlType = 2
)

func (t ControlType) String() string {
	switch t {
	case ControlRequest:
		return "request"
	case ControlResponse:
		return "response"
	default:
		return "unknown"
	}
}
