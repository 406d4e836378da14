// Package dlt decodes AUTOSAR DLT (Diagnostic Log and Trace) messages.
//
// Decoding works on complete byte spans. Determining the span of a message
// in a stream is the job of package frame, which only relies on
// HeadersLength and ParseStandardHeader from this package.
//
// All standard header fields are big-endian. Payload fields use the byte
// order selected by the MSBF bit of the header type byte.
package dlt

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Header type (HTYP) bits.
const (
	htypUseExtendedHeader = 0x01
	htypMSBF              = 0x02
	htypWithEcuID         = 0x04
	htypWithSessionID     = 0x08
	htypWithTimestamp     = 0x10
	htypVersionShift      = 5
	htypVersionMask       = 0x07
)

// Header sizes in bytes.
const (
	// StandardHeaderMinLength covers HTYP, MCNT and LEN.
	StandardHeaderMinLength = 4
	// EcuIDLength is the size of the optional ECU id field.
	EcuIDLength = 4
	// SessionIDLength is the size of the optional session id field.
	SessionIDLength = 4
	// TimestampLength is the size of the optional timestamp field.
	TimestampLength = 4
	// ExtendedHeaderLength is the size of the extended header.
	ExtendedHeaderLength = 10
)

// ErrShortHeader is returned when a buffer is too small to hold the headers
// announced by its header type byte.
var ErrShortHeader = errors.New("dlt: buffer shorter than announced headers")

// ErrMalformedHeader is returned when the standard header is structurally
// inconsistent, e.g. its overall length is smaller than its own headers.
var ErrMalformedHeader = errors.New("dlt: malformed standard header")

// HeadersLength returns the combined length of the standard header and, if
// announced, the extended header. It is a pure function of the header type
// byte, which is the first byte of every message.
func HeadersLength(htyp byte) int {
	n := StandardHeaderMinLength
	if htyp&htypWithEcuID != 0 {
		n += EcuIDLength
	}
	if htyp&htypWithSessionID != 0 {
		n += SessionIDLength
	}
	if htyp&htypWithTimestamp != 0 {
		n += TimestampLength
	}
	if htyp&htypUseExtendedHeader != 0 {
		n += ExtendedHeaderLength
	}
	return n
}

// standardHeaderLength is HeadersLength without the extended header.
func standardHeaderLength(htyp byte) int {
	return HeadersLength(htyp &^ htypUseExtendedHeader)
}

// StandardHeader is the decoded DLT standard header.
type StandardHeader struct {
	// Version is the protocol version from HTYP.
	Version uint8
	// BigEndian is the MSBF flag: payload data is big-endian.
	BigEndian bool
	// HasExtendedHeader is the UEH flag.
	HasExtendedHeader bool
	// MessageCounter is MCNT.
	MessageCounter uint8
	// OverallLength is LEN: headers plus payload, in bytes.
	OverallLength uint16
	// EcuID is the optional ECU identifier (WEID).
	EcuID *string
	// SessionID is the optional session identifier (WSID).
	SessionID *uint32
	// Timestamp is the optional timestamp in 0.1 ms units (WTMS).
	Timestamp *uint32

	htyp byte
}

// HeadersLength returns the combined header length for this message.
func (h *StandardHeader) HeadersLength() int {
	return HeadersLength(h.htyp)
}

// PayloadLength returns the payload size announced by the header.
func (h *StandardHeader) PayloadLength() int {
	return int(h.OverallLength) - h.HeadersLength()
}

// TimestampNanos converts the 0.1 ms timestamp to nanoseconds.
func (h *StandardHeader) TimestampNanos() (uint64, bool) {
	if h.Timestamp == nil {
		return 0, false
	}
	return uint64(*h.Timestamp) * 100_000, true
}

// ParseStandardHeader decodes the standard header at the start of buf.
// buf must hold at least the standard header announced by its first byte;
// the extended header and payload are not inspected.
func ParseStandardHeader(buf []byte) (*StandardHeader, error) {
	if len(buf) < StandardHeaderMinLength {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortHeader, len(buf), StandardHeaderMinLength)
	}

	htyp := buf[0]
	stdLen := standardHeaderLength(htyp)
	if len(buf) < stdLen {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortHeader, len(buf), stdLen)
	}

	h := &StandardHeader{
		Version:           (htyp >> htypVersionShift) & htypVersionMask,
		BigEndian:         htyp&htypMSBF != 0,
		HasExtendedHeader: htyp&htypUseExtendedHeader != 0,
		MessageCounter:    buf[1],
		OverallLength:     binary.BigEndian.Uint16(buf[2:4]),
		htyp:              htyp,
	}

	if int(h.OverallLength) < HeadersLength(htyp) {
		return nil, fmt.Errorf("%w: overall length %d smaller than headers length %d",
			ErrMalformedHeader, h.OverallLength, HeadersLength(htyp))
	}

	offset := StandardHeaderMinLength
	if htyp&htypWithEcuID != 0 {
		ecu := idString(buf[offset : offset+EcuIDLength])
		h.EcuID = &ecu
		offset += EcuIDLength
	}
	if htyp&htypWithSessionID != 0 {
		sid := binary.BigEndian.Uint32(buf[offset : offset+SessionIDLength])
		h.SessionID = &sid
		offset += SessionIDLength
	}
	if htyp&htypWithTimestamp != 0 {
		ts := binary.BigEndian.Uint32(buf[offset : offset+TimestampLength])
		h.Timestamp = &ts
	}

	return h, nil
}

// ExtendedHeader is the decoded DLT extended header.
type ExtendedHeader struct {
	// Verbose is the VERB flag of MSIN.
	Verbose bool
	// ArgumentCount is NOAR.
	ArgumentCount uint8
	// MessageType combines MSTP and MTIN.
	MessageType MessageType
	// ApplicationID is APID.
	ApplicationID string
	// ContextID is CTID.
	ContextID string
}

// parseExtendedHeader decodes the 10-byte extended header at buf.
func parseExtendedHeader(buf []byte) (*ExtendedHeader, error) {
	if len(buf) < ExtendedHeaderLength {
		return nil, fmt.Errorf("%w: extended header needs %d bytes, have %d", ErrShortHeader, ExtendedHeaderLength, len(buf))
	}
	msin := buf[0]
	return &ExtendedHeader{
		Verbose:       msin&0x01 != 0,
		ArgumentCount: buf[1],
		MessageType:   decodeMessageType((msin>>1)&0x07, (msin>>4)&0x0F),
		ApplicationID: idString(buf[2:6]),
		ContextID:     idString(buf[6:10]),
	}, nil
}

// idString decodes a fixed-size, NUL-padded identifier.
func idString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
