package dlt

// Filter drops messages before conversion. A zero Filter passes everything.
//
// Each configured rule must pass. Rules that need a field the message does
// not carry (e.g. an app id filter on a message without extended header)
// reject the message.
type Filter struct {
	// MinLogLevel, if non-zero, drops log messages less severe than it.
	// Non-log messages are unaffected.
	MinLogLevel LogLevel
	// AppIDs, if non-empty, is the set of accepted application ids.
	AppIDs []string
	// ContextIDs, if non-empty, is the set of accepted context ids.
	ContextIDs []string
	// EcuIDs, if non-empty, is the set of accepted ECU ids.
	EcuIDs []string
}

// IsZero reports whether f has no rules.
func (f *Filter) IsZero() bool {
	return f == nil || (f.MinLogLevel == 0 && len(f.AppIDs) == 0 && len(f.ContextIDs) == 0 && len(f.EcuIDs) == 0)
}

// Accept reports whether msg passes every configured rule.
func (f *Filter) Accept(msg *Message) bool {
	if f.IsZero() {
		return true
	}

	if len(f.EcuIDs) > 0 {
		if msg.Header.EcuID == nil || !contains(f.EcuIDs, *msg.Header.EcuID) {
			return false
		}
	}

	ext := msg.Extended
	if len(f.AppIDs) > 0 && (ext == nil || !contains(f.AppIDs, ext.ApplicationID)) {
		return false
	}
	if len(f.ContextIDs) > 0 && (ext == nil || !contains(f.ContextIDs, ext.ContextID)) {
		return false
	}

	if f.MinLogLevel != 0 && ext != nil {
		if lm, ok := ext.MessageType.(LogMessage); ok && lm.Level > f.MinLogLevel {
			return false
		}
	}
	return true
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
