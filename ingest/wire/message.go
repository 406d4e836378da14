// Package wire implements the TCP ingest protocol sink.
//
// Every message is a frame: a 4-byte big-endian length followed by the
// message encoded with a Codec. A connection starts with an auth exchange,
// after which the client streams switch_timeline, timeline_attrs and event
// messages.
package wire

import (
	"fmt"

	"github.com/auxoncorp/modality-dlt-plugin/ingest"
	"github.com/auxoncorp/modality-dlt-plugin/types"
)

// Message types.
const (
	TypeAuth           = "auth"
	TypeAuthResponse   = "auth_response"
	TypeSwitchTimeline = string(ingest.OpSwitchTimeline)
	TypeTimelineAttrs  = string(ingest.OpTimelineAttrs)
	TypeEvent          = string(ingest.OpEvent)
)

// Message is the payload of one frame. Fields are used per Type.
type Message struct {
	Type string `msgpack:"type" cbor:"type" json:"type"`

	// auth
	Token string `msgpack:"token,omitempty" cbor:"token,omitempty" json:"token,omitempty"`
	// Protocol is the client protocol version (auth).
	Protocol string `msgpack:"protocol,omitempty" cbor:"protocol,omitempty" json:"protocol,omitempty"`

	// auth_response
	OK   bool   `msgpack:"ok,omitempty" cbor:"ok,omitempty" json:"ok,omitempty"`
	Text string `msgpack:"message,omitempty" cbor:"message,omitempty" json:"message,omitempty"`

	// switch_timeline, timeline_attrs, event
	TimelineID string             `msgpack:"timeline_id,omitempty" cbor:"timeline_id,omitempty" json:"timeline_id,omitempty"`
	Name       string             `msgpack:"name,omitempty" cbor:"name,omitempty" json:"name,omitempty"`
	Ordering   uint64             `msgpack:"ordering" cbor:"ordering" json:"ordering"`
	Attrs      []types.AttrRecord `msgpack:"attrs,omitempty" cbor:"attrs,omitempty" json:"attrs,omitempty"`
}

// FromOp converts an op to its message.
func FromOp(op ingest.Op) *Message {
	m := &Message{
		Type:     string(op.Kind),
		Name:     op.Name,
		Ordering: op.Ordering,
		Attrs:    types.EncodeAttrs(op.Attrs),
	}
	if !op.TimelineID.IsZero() {
		m.TimelineID = op.TimelineID.String()
	}
	return m
}

// ToOp converts a switch_timeline, timeline_attrs or event message back to
// an op.
func (m *Message) ToOp() (ingest.Op, error) {
	switch m.Type {
	case TypeSwitchTimeline, TypeTimelineAttrs, TypeEvent:
	default:
		return ingest.Op{}, fmt.Errorf("message type %q is not an op", m.Type)
	}

	op := ingest.Op{Kind: ingest.OpKind(m.Type), Name: m.Name, Ordering: m.Ordering}
	if m.TimelineID != "" {
		id, err := types.ParseTimelineID(m.TimelineID)
		if err != nil {
			return ingest.Op{}, err
		}
		op.TimelineID = id
	}
	if len(m.Attrs) > 0 {
		attrs, err := types.DecodeAttrs(m.Attrs)
		if err != nil {
			return ingest.Op{}, err
		}
		op.Attrs = attrs
	}
	return op, nil
}
