package lode

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for storage failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrPermissionDenied indicates a local permission failure (EACCES).
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound indicates the target path/resource does not exist (ENOENT, 404).
	ErrNotFound = errors.New("not found")

	// ErrDiskFull indicates storage is out of space (ENOSPC).
	ErrDiskFull = errors.New("no space left on device")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrThrottled indicates rate limiting (429, SlowDown).
	ErrThrottled = errors.New("rate limited")

	// ErrAuth indicates authentication failure (no credentials, expired token).
	ErrAuth = errors.New("authentication failed")

	// ErrAccessDenied indicates authorization failure (valid creds but no permission).
	ErrAccessDenied = errors.New("access denied")

	// ErrNetwork indicates a network-level failure (connection refused, DNS).
	ErrNetwork = errors.New("network error")

	// errUnclassified marks storage errors matching no known pattern.
	errUnclassified = errors.New("storage error")
)

// StorageError wraps an underlying error with storage classification.
// It preserves the original error in the chain for inspection via errors.As.
type StorageError struct {
	// Kind is the sentinel error for classification (e.g., ErrPermissionDenied).
	Kind error
	// Op is the operation that failed ("write", "read", "init").
	Op string
	// Path is the storage path involved, if any.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ErrorKind returns the classification as a log field value, such as
// "storage_disk_full" or "storage_throttled".
func (e *StorageError) ErrorKind() string {
	return "storage_" + kindName(e.Kind)
}

// Is reports whether the error matches the target sentinel.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

func wrap(op string, err error, path string) error {
	if err == nil {
		return nil
	}
	return &StorageError{Kind: classifyError(err), Op: op, Path: path, Err: err}
}

// WrapWriteError classifies and wraps a write operation error.
// Returns nil if err is nil.
func WrapWriteError(err error, path string) error { return wrap("write", err, path) }

// WrapReadError classifies and wraps a read operation error.
// Returns nil if err is nil.
func WrapReadError(err error, path string) error { return wrap("read", err, path) }

// WrapInitError classifies and wraps a client initialization error.
// Returns nil if err is nil.
func WrapInitError(err error, dataset string) error { return wrap("init", err, dataset) }

// classifyRule maps error message fragments to a sentinel.
type classifyRule struct {
	kind     error
	name     string
	patterns []string
}

// classifyRules are tried in order; the first rule with a matching pattern
// wins.
var classifyRules = []classifyRule{
	{ErrAccessDenied, "access_denied", []string{"accessdenied", "forbidden", "403"}},
	{ErrPermissionDenied, "permission_denied", []string{"permission denied", "eacces", "access denied"}},
	{ErrNotFound, "not_found", []string{"no such file", "does not exist", "not found", "enoent", "404", "nosuchkey"}},
	{ErrDiskFull, "disk_full", []string{"no space left", "disk full", "enospc", "quota exceeded"}},
	{ErrTimeout, "timeout", []string{"timeout", "timed out", "deadline exceeded"}},
	{ErrThrottled, "throttled", []string{"slowdown", "rate exceeded", "throttl", "429", "toomanyrequests"}},
	{ErrAuth, "auth", []string{
		"nocredentialproviders", "credentials", "invalidaccesskeyid",
		"signaturedoesnotmatch", "expiredtoken", "401", "unauthorized",
	}},
	{ErrNetwork, "network", []string{"connection refused", "no route to host", "network unreachable", "dns", "dial tcp"}},
}

// classifyError determines the sentinel for err from its type and message.
func classifyError(err error) error {
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range classifyRules {
		for _, p := range rule.patterns {
			if strings.Contains(msg, p) {
				return rule.kind
			}
		}
	}
	return errUnclassified
}

// kindName returns the log name of a classification sentinel.
func kindName(kind error) string {
	for _, rule := range classifyRules {
		if rule.kind == kind {
			return rule.name
		}
	}
	return "unclassified"
}
