package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/auxoncorp/modality-dlt-plugin/dlt"
	"github.com/auxoncorp/modality-dlt-plugin/frame"
	"github.com/auxoncorp/modality-dlt-plugin/ingest"
	"github.com/auxoncorp/modality-dlt-plugin/log"
	"github.com/auxoncorp/modality-dlt-plugin/metrics"
)

// Mode selects how a DLT stream is framed.
type Mode string

const (
	// ModeNetwork reads back-to-back messages from a live connection.
	ModeNetwork Mode = "network"
	// ModeFile reads (storage header, message) pairs from a stored file.
	ModeFile Mode = "file"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNetwork, ModeFile:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q (must be network or file)", s)
	}
}

// IngestionError classifies ingestion errors for outcome determination.
type IngestionError struct {
	// Kind indicates which stage of the pipeline failed.
	Kind IngestionErrorKind
	// Err is the underlying error.
	Err error
}

// IngestionErrorKind classifies ingestion errors.
type IngestionErrorKind int

const (
	// IngestionErrorFraming indicates a truncated or malformed message, or a
	// closed network connection.
	IngestionErrorFraming IngestionErrorKind = iota
	// IngestionErrorStorageHeader indicates a missing or invalid storage
	// header in file mode.
	IngestionErrorStorageHeader
	// IngestionErrorSink indicates the ingest client failed.
	IngestionErrorSink
	// IngestionErrorCanceled indicates context cancellation.
	IngestionErrorCanceled
)

func (k IngestionErrorKind) String() string {
	switch k {
	case IngestionErrorFraming:
		return "framing"
	case IngestionErrorStorageHeader:
		return "storage_header"
	case IngestionErrorSink:
		return "sink"
	case IngestionErrorCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

func (e *IngestionError) Error() string {
	return e.Err.Error()
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

func isKind(err error, kind IngestionErrorKind) bool {
	var ingErr *IngestionError
	if errors.As(err, &ingErr) {
		return ingErr.Kind == kind
	}
	return false
}

// IsFramingError returns true if the error is a framing error.
func IsFramingError(err error) bool { return isKind(err, IngestionErrorFraming) }

// IsStorageHeaderError returns true if the error is a storage header error.
func IsStorageHeaderError(err error) bool { return isKind(err, IngestionErrorStorageHeader) }

// IsSinkError returns true if the error is an ingest client failure.
func IsSinkError(err error) bool { return isKind(err, IngestionErrorSink) }

// IsCanceledError returns true if the error is due to context cancellation.
func IsCanceledError(err error) bool { return isKind(err, IngestionErrorCanceled) }

// IngestionEngine reads, decodes and routes one DLT stream.
//
// Processing is strictly sequential: read a frame, decode it, route it and
// send it before reading the next. Framing errors are fatal; there is no
// resynchronization.
type IngestionEngine struct {
	reader    *frame.Reader
	mode      Mode
	decoder   *dlt.Decoder
	sender    *Sender
	logger    *log.Logger
	collector *metrics.Collector
	messages  int64
}

// NewIngestionEngine creates a new ingestion engine. r should be buffered.
func NewIngestionEngine(
	r io.Reader,
	mode Mode,
	decoder *dlt.Decoder,
	sender *Sender,
	logger *log.Logger,
	collector *metrics.Collector,
) *IngestionEngine {
	if logger == nil {
		logger = log.Nop()
	}
	return &IngestionEngine{
		reader:    frame.NewReader(r),
		mode:      mode,
		decoder:   decoder,
		sender:    sender,
		logger:    logger,
		collector: collector,
	}
}

// Run runs the ingestion loop until end of input or a fatal error.
// Returns:
//   - nil: file ended cleanly at a storage header boundary
//   - *IngestionError with Kind=IngestionErrorFraming: frame error, including
//     a network connection closed by the peer
//   - *IngestionError with Kind=IngestionErrorStorageHeader: bad storage header
//   - *IngestionError with Kind=IngestionErrorSink: ingest client failure
//   - *IngestionError with Kind=IngestionErrorCanceled: context canceled
func (e *IngestionEngine) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return e.canceled(err)
		}

		if e.mode == ModeFile {
			if _, err := e.reader.SkipStorageHeader(); err != nil {
				if errors.Is(err, io.EOF) {
					e.logger.Info("Finished importing", map[string]any{
						"messages": e.messages,
						"events":   e.sender.Ordering(),
						"bytes":    e.reader.Offset(),
					})
					return nil
				}
				if ctx.Err() != nil {
					return e.canceled(ctx.Err())
				}
				e.logger.Error("storage header error", map[string]any{
					"offset": e.reader.FrameOffset(),
					"error":  err.Error(),
				})
				e.collector.IncStorageHeaderErrors()
				return &IngestionError{
					Kind: IngestionErrorStorageHeader,
					Err:  fmt.Errorf("storage header error: %w", err),
				}
			}
		}

		span, err := e.reader.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return e.canceled(ctx.Err())
			}
			return e.framingError(e.endOfStream(err))
		}
		e.collector.AddFrame(len(span))

		parsed, rest, err := e.decoder.Decode(span)
		if err != nil {
			return e.framingError(&frame.Error{
				Kind:   frame.ErrorMalformedHeader,
				Offset: e.reader.FrameOffset(),
				Msg:    "undecodable headers",
				Err:    err,
			})
		}
		if len(rest) > 0 {
			return e.framingError(frame.TrailingBytes(len(rest), e.reader.FrameOffset()))
		}
		e.messages++

		if err := e.sender.Handle(ctx, parsed); err != nil {
			if ctx.Err() != nil {
				return e.canceled(ctx.Err())
			}
			e.logger.Error("ingest client failed", ingest.ErrorFields(err, map[string]any{
				"ordering": e.sender.Ordering(),
			}))
			return &IngestionError{
				Kind: IngestionErrorSink,
				Err:  fmt.Errorf("sink failure: %w", err),
			}
		}
	}
}

// endOfStream maps a clean end of input inside the framing loop to the
// error it represents in the current mode.
func (e *IngestionEngine) endOfStream(err error) error {
	if !errors.Is(err, io.EOF) {
		return err
	}
	if e.mode == ModeNetwork {
		return frame.ErrConnectionClosed
	}
	return &frame.Error{
		Kind:   frame.ErrorShortRead,
		Offset: e.reader.FrameOffset(),
		Msg:    "storage header not followed by a message",
		Err:    io.ErrUnexpectedEOF,
	}
}

func (e *IngestionEngine) framingError(err error) error {
	e.logger.Error("frame error", map[string]any{
		"offset": e.reader.FrameOffset(),
		"error":  err.Error(),
	})
	e.collector.IncFramingErrors()
	return &IngestionError{
		Kind: IngestionErrorFraming,
		Err:  fmt.Errorf("frame error: %w", err),
	}
}

func (e *IngestionEngine) canceled(err error) error {
	return &IngestionError{Kind: IngestionErrorCanceled, Err: err}
}

// Messages returns the number of messages decoded, including invalid and
// filtered ones.
func (e *IngestionEngine) Messages() int64 {
	return e.messages
}

// BytesRead returns the number of stream bytes consumed.
func (e *IngestionEngine) BytesRead() int64 {
	return e.reader.Offset()
}
