package convert

import (
	"math"
	"strconv"

	"github.com/auxoncorp/modality-dlt-plugin/dlt"
	"github.com/auxoncorp/modality-dlt-plugin/types"
)

// attrSet accumulates attributes in order, keeping the first value per key.
type attrSet struct {
	attrs []types.Attr
	seen  map[types.AttrKey]struct{}
}

func (s *attrSet) add(key types.AttrKey, v types.AttrVal) {
	if v == nil {
		return
	}
	if _, dup := s.seen[key]; dup {
		return
	}
	if s.seen == nil {
		s.seen = make(map[types.AttrKey]struct{})
	}
	s.seen[key] = struct{}{}
	s.attrs = append(s.attrs, types.Attr{Key: key, Value: v})
}

// EventAttrs converts msg into its event attributes: header fields, then
// extended header fields, then payload. Keys are unique; values that have
// no attribute representation are omitted.
func EventAttrs(msg *dlt.Message) []types.Attr {
	var s attrSet

	h := msg.Header
	if h.EcuID != nil {
		s.add("event.ecu_id", types.String(*h.EcuID))
	}
	if h.SessionID != nil {
		s.add("event.session_id", types.Int(*h.SessionID))
	}
	if ns, ok := h.TimestampNanos(); ok {
		s.add("event.timestamp", types.Timestamp(ns))
	}

	if ext := msg.Extended; ext != nil {
		s.add("event.application_id", types.String(ext.ApplicationID))
		s.add("event.context_id", types.String(ext.ContextID))
		switch mt := ext.MessageType.(type) {
		case dlt.LogMessage:
			s.add("event.log_level", types.String(mt.Level.String()))
		case dlt.AppTraceMessage:
			s.add("event.trace_type", types.String(mt.Type.String()))
		case dlt.NetworkTraceMessage:
			s.add("event.trace_type", types.String(mt.Type.String()))
		case dlt.ControlMessage:
			s.add("event.control_type", types.String(mt.Type.String()))
		case dlt.UnknownMessage:
		}
	}

	switch p := msg.Payload.(type) {
	case dlt.VerbosePayload:
		if len(p.Args) == 1 && p.Args[0].Name == "" {
			s.add("event.payload", convertValue(p.Args[0].Value))
			break
		}
		for i, arg := range p.Args {
			key := types.AttrKey("event.payload." + strconv.Itoa(i))
			if arg.Name != "" {
				key = types.AttrKey("event.payload." + arg.Name)
			}
			s.add(key, convertValue(arg.Value))
		}
	case dlt.NonVerbosePayload:
		s.add("event.payload_type", types.String("non_verbose"))
		s.add("event.message_id", types.Int(p.MessageID))
	case dlt.ControlPayload:
		s.add("event.payload_type", types.String("control"))
		s.add("event.control_type", types.String(p.Type.String()))
		if p.ServiceID != nil {
			s.add("event.control.service_id", types.Int(*p.ServiceID))
		}
	}

	return s.attrs
}

// convertValue maps an argument value to an attribute value, or nil when it
// cannot be represented.
func convertValue(v dlt.Value) types.AttrVal {
	switch x := v.(type) {
	case dlt.BoolValue:
		return types.Bool(x)
	case dlt.SignedValue:
		return types.Int(x.V)
	case dlt.UnsignedValue:
		if x.V <= math.MaxInt64 {
			return types.Int(int64(x.V))
		}
		return types.BigInt(types.Int128{Lo: x.V})
	case dlt.Int128Value:
		return types.BigInt(types.Int128{Hi: x.Hi, Lo: x.Lo})
	case dlt.Uint128Value:
		if x.Hi > math.MaxInt64 {
			return nil
		}
		return types.BigInt(types.Int128{Hi: int64(x.Hi), Lo: x.Lo})
	case dlt.FloatValue:
		return types.Float(x.V)
	case dlt.StringValue:
		return types.String(x)
	case dlt.RawValue:
		return nil
	default:
		return nil
	}
}
