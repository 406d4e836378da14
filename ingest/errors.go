package ingest

import (
	"errors"
	"maps"
)

// kindError is implemented by sink errors that carry a classification.
type kindError interface {
	error
	ErrorKind() string
}

// ErrorKind returns the classification of the first error in err's chain
// that has one, or "" if none does.
func ErrorKind(err error) string {
	var ke kindError
	if errors.As(err, &ke) {
		return ke.ErrorKind()
	}
	return ""
}

// ErrorFields returns log fields describing err, with its classification
// under "error_kind" when it has one. extra is copied into the result.
func ErrorFields(err error, extra map[string]any) map[string]any {
	fields := make(map[string]any, len(extra)+2)
	maps.Copy(fields, extra)
	fields["error"] = err.Error()
	if kind := ErrorKind(err); kind != "" {
		fields["error_kind"] = kind
	}
	return fields
}
