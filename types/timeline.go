package types

import "github.com/google/uuid"

// TimelineID is the opaque identity of a timeline, minted once per distinct
// timeline key for the lifetime of a process run.
type TimelineID uuid.UUID

// NewTimelineID allocates a fresh random timeline identity.
func NewTimelineID() TimelineID {
	return TimelineID(uuid.New())
}

// ParseTimelineID parses the canonical UUID string form.
func ParseTimelineID(s string) (TimelineID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return TimelineID{}, err
	}
	return TimelineID(id), nil
}

// String returns the canonical UUID string form.
func (id TimelineID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether id is the zero value (never allocated).
func (id TimelineID) IsZero() bool {
	return id == TimelineID{}
}

// MarshalText implements encoding.TextMarshaler.
func (id TimelineID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *TimelineID) UnmarshalText(data []byte) error {
	parsed, err := ParseTimelineID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
