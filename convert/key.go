// Package convert maps decoded DLT messages onto timelines and event
// attributes.
package convert

import (
	"strconv"
	"strings"

	"github.com/auxoncorp/modality-dlt-plugin/dlt"
	"github.com/auxoncorp/modality-dlt-plugin/types"
)

// KeyConfig selects which message fields identify a timeline.
type KeyConfig struct {
	EcuID         bool `yaml:"ecu_id"`
	SessionID     bool `yaml:"session_id"`
	ApplicationID bool `yaml:"application_id"`
	ContextID     bool `yaml:"context_id"`
}

// DefaultKeyConfig groups messages by ECU and session.
func DefaultKeyConfig() KeyConfig {
	return KeyConfig{EcuID: true, SessionID: true}
}

// component is an optional key component. Present and empty differ from
// absent.
type component struct {
	set bool
	v   string
}

func some(v string) component { return component{set: true, v: v} }

// TimelineKey is the comparable identity of a timeline.
type TimelineKey struct {
	ecu     component
	session component
	app     component
	ctx     component
}

// KeyFor derives the timeline key of msg. Components that are disabled, or
// that msg does not carry, are absent.
func (c KeyConfig) KeyFor(msg *dlt.Message) TimelineKey {
	var k TimelineKey
	if c.EcuID && msg.Header.EcuID != nil {
		k.ecu = some(*msg.Header.EcuID)
	}
	if c.SessionID && msg.Header.SessionID != nil {
		k.session = some(strconv.FormatUint(uint64(*msg.Header.SessionID), 10))
	}
	if ext := msg.Extended; ext != nil {
		if c.ApplicationID {
			k.app = some(ext.ApplicationID)
		}
		if c.ContextID {
			k.ctx = some(ext.ContextID)
		}
	}
	return k
}

// EcuID returns the ECU component.
func (k TimelineKey) EcuID() (string, bool) { return k.ecu.v, k.ecu.set }

// SessionID returns the session component as a decimal string.
func (k TimelineKey) SessionID() (string, bool) { return k.session.v, k.session.set }

// ApplicationID returns the application component.
func (k TimelineKey) ApplicationID() (string, bool) { return k.app.v, k.app.set }

// ContextID returns the context component.
func (k TimelineKey) ContextID() (string, bool) { return k.ctx.v, k.ctx.set }

// Name joins the present ECU, application and context components with ".".
// A present but empty component still takes its place. A key with none
// present is "unnamed".
func (k TimelineKey) Name() string {
	parts := make([]string, 0, 3)
	for _, c := range []component{k.ecu, k.app, k.ctx} {
		if c.set {
			parts = append(parts, c.v)
		}
	}
	if len(parts) == 0 {
		return "unnamed"
	}
	return strings.Join(parts, ".")
}

// Attrs returns one timeline.* attribute per present component.
func (k TimelineKey) Attrs() []types.Attr {
	var attrs []types.Attr
	if k.ecu.set {
		attrs = append(attrs, types.Attr{Key: "timeline.ecu_id", Value: types.String(k.ecu.v)})
	}
	if k.session.set {
		// The session component is always a formatted uint32.
		sid, _ := strconv.ParseInt(k.session.v, 10, 64)
		attrs = append(attrs, types.Attr{Key: "timeline.session_id", Value: types.Int(sid)})
	}
	if k.app.set {
		attrs = append(attrs, types.Attr{Key: "timeline.application_id", Value: types.String(k.app.v)})
	}
	if k.ctx.set {
		attrs = append(attrs, types.Attr{Key: "timeline.context_id", Value: types.String(k.ctx.v)})
	}
	return attrs
}

func (k TimelineKey) String() string {
	var b strings.Builder
	for i, c := range []component{k.ecu, k.session, k.app, k.ctx} {
		if i > 0 {
			b.WriteByte('/')
		}
		if c.set {
			b.WriteString(strconv.Quote(c.v))
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// TimelineDescriptor is what a new timeline is announced with.
type TimelineDescriptor struct {
	Name  string
	Attrs []types.Attr
}

// Descriptor returns the announcement for k.
func (k TimelineKey) Descriptor() TimelineDescriptor {
	return TimelineDescriptor{Name: k.Name(), Attrs: k.Attrs()}
}
