// Package frame splits a DLT byte stream into message spans.
//
// DLT carries no out-of-band length prefix. The span of a message is derived
// from its first byte (HTYP), which fixes the header length, and from the
// LEN field of the standard header. Stored files additionally prefix every
// message with a 16-byte storage header.
package frame

import (
	"errors"
	"fmt"
	"io"

	"github.com/auxoncorp/modality-dlt-plugin/dlt"
	"github.com/auxoncorp/modality-dlt-plugin/iox"
)

// ErrConnectionClosed is reported when a live DLT connection ends at a frame
// boundary. A collector is expected to run until stopped, so this is an
// error rather than a clean end of input.
var ErrConnectionClosed = errors.New("frame: connection closed by peer")

// ErrorKind classifies framing errors.
type ErrorKind int

const (
	// ErrorShortRead indicates the stream ended or failed inside a frame.
	ErrorShortRead ErrorKind = iota
	// ErrorMalformedHeader indicates a standard header whose length fields
	// are inconsistent.
	ErrorMalformedHeader
	// ErrorStorageHeader indicates a truncated storage header or one without
	// the DLT\x01 pattern.
	ErrorStorageHeader
	// ErrorTrailingBytes indicates a frame that decoded without consuming
	// every byte of its span.
	ErrorTrailingBytes
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorShortRead:
		return "short_read"
	case ErrorMalformedHeader:
		return "malformed_header"
	case ErrorStorageHeader:
		return "storage_header"
	case ErrorTrailingBytes:
		return "trailing_bytes"
	default:
		return "unknown"
	}
}

// Error is a framing error at a stream offset.
type Error struct {
	Kind ErrorKind
	// Offset is the stream offset of the frame (or storage header) start.
	Offset int64
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("frame at offset %d: %s: %v", e.Offset, e.Msg, e.Err)
	}
	return fmt.Sprintf("frame at offset %d: %s", e.Offset, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsStorageHeaderError returns true if err is a storage header framing error.
func IsStorageHeaderError(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == ErrorStorageHeader
}

// TrailingBytes returns the error for a span that decoded with n bytes left
// over. offset is the span's stream offset.
func TrailingBytes(n int, offset int64) *Error {
	return &Error{
		Kind:   ErrorTrailingBytes,
		Offset: offset,
		Msg:    fmt.Sprintf("%d bytes left after decoding message", n),
	}
}

// Reader reads DLT frames from a stream.
type Reader struct {
	r *iox.CountingReader
	// start is the offset of the frame or storage header being read.
	start int64
}

// NewReader creates a frame reader over r. r should be buffered; the reader
// issues several small reads per frame.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: iox.NewCountingReader(r)}
}

// Offset returns the number of bytes consumed from the stream.
func (r *Reader) Offset() int64 {
	return r.r.Count()
}

// FrameOffset returns the stream offset at which the last frame or storage
// header started.
func (r *Reader) FrameOffset() int64 {
	return r.start
}

// ReadFrame reads a single DLT message span.
//
// Errors:
//   - io.EOF: stream ended cleanly before the first byte of a frame
//   - *Error with Kind=ErrorShortRead: the stream ended or failed mid-frame
//   - *Error with Kind=ErrorMalformedHeader: LEN is smaller than the headers
func (r *Reader) ReadFrame() ([]byte, error) {
	r.start = r.r.Count()

	var htyp [1]byte
	if _, err := io.ReadFull(r.r, htyp[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, r.shortRead("failed to read header type", err)
	}

	headersLen := dlt.HeadersLength(htyp[0])
	headers := make([]byte, headersLen)
	headers[0] = htyp[0]
	if _, err := io.ReadFull(r.r, headers[1:]); err != nil {
		return nil, r.shortRead("failed to read headers", err)
	}

	hdr, err := dlt.ParseStandardHeader(headers)
	if err != nil {
		return nil, &Error{
			Kind:   ErrorMalformedHeader,
			Offset: r.start,
			Msg:    "invalid standard header",
			Err:    err,
		}
	}

	span := make([]byte, int(hdr.OverallLength))
	copy(span, headers)
	if _, err := io.ReadFull(r.r, span[headersLen:]); err != nil {
		return nil, r.shortRead(fmt.Sprintf("failed to read %d byte payload", hdr.PayloadLength()), err)
	}

	return span, nil
}

// SkipStorageHeader reads and validates the storage header preceding a
// message in a stored file.
//
// Errors:
//   - io.EOF: stream ended cleanly before the first byte of the header
//   - *Error with Kind=ErrorStorageHeader: truncated header or bad pattern
func (r *Reader) SkipStorageHeader() (*dlt.StorageHeader, error) {
	r.start = r.r.Count()

	var buf [dlt.StorageHeaderLength]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &Error{
			Kind:   ErrorStorageHeader,
			Offset: r.start,
			Msg:    "truncated storage header",
			Err:    err,
		}
	}

	sh, err := dlt.ParseStorageHeader(buf[:])
	if err != nil {
		return nil, &Error{
			Kind:   ErrorStorageHeader,
			Offset: r.start,
			Msg:    "invalid storage header",
			Err:    err,
		}
	}
	return sh, nil
}

func (r *Reader) shortRead(msg string, err error) *Error {
	return &Error{
		Kind:   ErrorShortRead,
		Offset: r.start,
		Msg:    msg,
		Err:    err,
	}
}
