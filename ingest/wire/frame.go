package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a payload decoding error.
	FrameErrorDecode
)

// FrameError represents a frame encoding or decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFrameError returns true if err is a *FrameError of the given kind.
func IsFrameError(err error, kind FrameErrorKind) bool {
	var fe *FrameError
	return errors.As(err, &fe) && fe.Kind == kind
}

// WriteFrame writes payload with its 4-byte big-endian length prefix.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads a single length-prefixed frame and returns its payload.
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit
func ReadFrame(r io.Reader) ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}
	return payload, nil
}

// WriteMessage encodes m with codec and writes it as one frame.
func WriteMessage(w io.Writer, codec Codec, m *Message) error {
	payload, err := codec.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", m.Type, err)
	}
	return WriteFrame(w, payload)
}

// ReadMessage reads one frame and decodes it with codec.
func ReadMessage(r io.Reader, codec Codec) (*Message, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	var m Message
	if err := codec.Unmarshal(payload, &m); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("failed to decode %s message", codec.Name()),
			Err:  err,
		}
	}
	return &m, nil
}
