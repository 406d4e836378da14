package dlt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// StorageHeaderLength is the size of the header preceding each message in a
// stored DLT file.
const StorageHeaderLength = 16

// StoragePattern is the magic at the start of every storage header.
var StoragePattern = []byte{'D', 'L', 'T', 0x01}

// ErrStoragePattern is returned when a storage header does not start with
// StoragePattern.
var ErrStoragePattern = errors.New("dlt: storage header pattern mismatch")

// StorageHeader is the decoded file storage header.
type StorageHeader struct {
	// Seconds since the epoch when the message was stored.
	Seconds uint32
	// Microseconds within Seconds.
	Microseconds int32
	// EcuID is the ECU id recorded by the logger.
	EcuID string
}

// ParseStorageHeader decodes a 16-byte storage header.
func ParseStorageHeader(buf []byte) (*StorageHeader, error) {
	if len(buf) < StorageHeaderLength {
		return nil, fmt.Errorf("%w: storage header needs %d bytes, have %d", ErrShortHeader, StorageHeaderLength, len(buf))
	}
	if !bytes.Equal(buf[:4], StoragePattern) {
		return nil, fmt.Errorf("%w: got % x", ErrStoragePattern, buf[:4])
	}
	return &StorageHeader{
		Seconds:      binary.LittleEndian.Uint32(buf[4:8]),
		Microseconds: int32(binary.LittleEndian.Uint32(buf[8:12])),
		EcuID:        idString(buf[12:16]),
	}, nil
}

// Encode returns the 16-byte wire form of h.
func (h *StorageHeader) Encode() []byte {
	buf := make([]byte, StorageHeaderLength)
	copy(buf, StoragePattern)
	binary.LittleEndian.PutUint32(buf[4:8], h.Seconds)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.Microseconds))
	copy(buf[12:16], h.EcuID)
	return buf
}
