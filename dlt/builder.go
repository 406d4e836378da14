package dlt

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MessageBuilder assembles DLT messages. It is used to produce fixtures and
// synthetic streams; the zero value builds a bare version-1 standard header
// with an empty non-verbose payload.
type MessageBuilder struct {
	bigEndian bool
	counter   uint8
	ecuID     *string
	sessionID *uint32
	timestamp *uint32

	ext     *ExtendedHeader
	verbose bool
	args    []Argument
	payload []byte
}

// NewMessage returns an empty builder.
func NewMessage() *MessageBuilder {
	return &MessageBuilder{}
}

// BigEndian sets MSBF so payload fields are written big-endian.
func (b *MessageBuilder) BigEndian() *MessageBuilder {
	b.bigEndian = true
	return b
}

// Counter sets MCNT.
func (b *MessageBuilder) Counter(n uint8) *MessageBuilder {
	b.counter = n
	return b
}

// EcuID sets WEID and the ECU id.
func (b *MessageBuilder) EcuID(id string) *MessageBuilder {
	b.ecuID = &id
	return b
}

// SessionID sets WSID and the session id.
func (b *MessageBuilder) SessionID(id uint32) *MessageBuilder {
	b.sessionID = &id
	return b
}

// Timestamp sets WTMS and the timestamp in 0.1 ms units.
func (b *MessageBuilder) Timestamp(ts uint32) *MessageBuilder {
	b.timestamp = &ts
	return b
}

// Extended adds an extended header with the given type and ids.
func (b *MessageBuilder) Extended(mt MessageType, appID, ctxID string) *MessageBuilder {
	verbose := b.ext != nil && b.ext.Verbose
	b.ext = &ExtendedHeader{
		Verbose:       verbose,
		MessageType:   mt,
		ApplicationID: appID,
		ContextID:     ctxID,
	}
	return b
}

// Log is shorthand for Extended with a log message type.
func (b *MessageBuilder) Log(level LogLevel, appID, ctxID string) *MessageBuilder {
	return b.Extended(LogMessage{Level: level}, appID, ctxID)
}

// Verbose marks the message verbose and sets its arguments. NOAR is derived
// from the argument count. It adds a log/info extended header if none is set.
func (b *MessageBuilder) Verbose(args ...Argument) *MessageBuilder {
	if b.ext == nil {
		b.Log(LogInfo, "", "")
	}
	b.ext.Verbose = true
	b.verbose = true
	b.args = args
	b.payload = nil
	return b
}

// NonVerbose sets a message id payload.
func (b *MessageBuilder) NonVerbose(messageID uint32, data []byte) *MessageBuilder {
	if b.ext != nil {
		b.ext.Verbose = false
	}
	b.verbose = false
	b.args = nil
	b.payload = append(b.order().AppendUint32(nil, messageID), data...)
	return b
}

// Control sets a control payload with the given service id. It adds a
// request control extended header if none is set.
func (b *MessageBuilder) Control(serviceID uint32, data []byte) *MessageBuilder {
	if b.ext == nil {
		b.Extended(ControlMessage{Type: ControlRequest}, "", "")
	}
	b.NonVerbose(serviceID, data)
	return b
}

// RawPayload sets the payload bytes verbatim. The VERB flag is left as is
// and NOAR is written as zero.
func (b *MessageBuilder) RawPayload(p []byte) *MessageBuilder {
	b.verbose = false
	b.args = nil
	b.payload = p
	return b
}

func (b *MessageBuilder) order() endian {
	return byteOrder(b.bigEndian)
}

// Encode returns the wire form of the message.
func (b *MessageBuilder) Encode() ([]byte, error) {
	htyp := byte(1 << htypVersionShift)
	if b.ext != nil {
		htyp |= htypUseExtendedHeader
	}
	if b.bigEndian {
		htyp |= htypMSBF
	}
	if b.ecuID != nil {
		htyp |= htypWithEcuID
	}
	if b.sessionID != nil {
		htyp |= htypWithSessionID
	}
	if b.timestamp != nil {
		htyp |= htypWithTimestamp
	}

	payload := b.payload
	if b.verbose {
		var err error
		payload, err = encodeArguments(b.args, b.order())
		if err != nil {
			return nil, err
		}
		if len(b.args) > math.MaxUint8 {
			return nil, fmt.Errorf("dlt: %d arguments exceed NOAR", len(b.args))
		}
	}

	total := HeadersLength(htyp) + len(payload)
	if total > math.MaxUint16 {
		return nil, fmt.Errorf("dlt: message of %d bytes exceeds maximum length", total)
	}

	buf := make([]byte, 0, total)
	buf = append(buf, htyp, b.counter)
	buf = binary.BigEndian.AppendUint16(buf, uint16(total))
	if b.ecuID != nil {
		buf = appendID(buf, *b.ecuID)
	}
	if b.sessionID != nil {
		buf = binary.BigEndian.AppendUint32(buf, *b.sessionID)
	}
	if b.timestamp != nil {
		buf = binary.BigEndian.AppendUint32(buf, *b.timestamp)
	}
	if b.ext != nil {
		mstp, mtin := encodeMessageType(b.ext.MessageType)
		msin := (mtin&0x0F)<<4 | (mstp&0x07)<<1
		if b.ext.Verbose {
			msin |= 0x01
		}
		buf = append(buf, msin, uint8(len(b.args)))
		buf = appendID(buf, b.ext.ApplicationID)
		buf = appendID(buf, b.ext.ContextID)
	}
	return append(buf, payload...), nil
}

// MustEncode is Encode for fixtures known to be valid. It panics on error.
func (b *MessageBuilder) MustEncode() []byte {
	buf, err := b.Encode()
	if err != nil {
		panic(err)
	}
	return buf
}

// appendID writes a 4-byte NUL-padded identifier, truncating longer ids.
func appendID(buf []byte, id string) []byte {
	var field [4]byte
	copy(field[:], id)
	return append(buf, field[:]...)
}

func encodeArguments(args []Argument, order endian) ([]byte, error) {
	var buf []byte
	for i, arg := range args {
		var err error
		buf, err = appendArgument(buf, arg, order)
		if err != nil {
			return nil, fmt.Errorf("dlt: argument %d: %w", i, err)
		}
	}
	return buf, nil
}

func tyle(bits uint8) uint32 {
	switch bits {
	case 8:
		return 1
	case 16:
		return 2
	case 32:
		return 3
	case 64:
		return 4
	case 128:
		return 5
	default:
		return 0
	}
}

func appendArgument(buf []byte, arg Argument, order endian) ([]byte, error) {
	var ti uint32
	if arg.Name != "" {
		ti |= tiVari
	}

	appendNameUnit := func(buf []byte) []byte {
		if arg.Name == "" {
			return buf
		}
		buf = order.AppendUint16(buf, uint16(len(arg.Name)+1))
		buf = order.AppendUint16(buf, uint16(len(arg.Unit)+1))
		buf = append(buf, arg.Name...)
		buf = append(buf, 0)
		buf = append(buf, arg.Unit...)
		return append(buf, 0)
	}
	appendName := func(buf []byte) []byte {
		if arg.Name == "" {
			return buf
		}
		buf = order.AppendUint16(buf, uint16(len(arg.Name)+1))
		buf = append(buf, arg.Name...)
		return append(buf, 0)
	}

	switch v := arg.Value.(type) {
	case BoolValue:
		buf = order.AppendUint32(buf, ti|tiBool|1)
		buf = appendName(buf)
		if v {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil

	case SignedValue:
		if tyle(v.Bits) == 0 || v.Bits == 128 {
			return nil, fmt.Errorf("invalid signed width %d", v.Bits)
		}
		buf = order.AppendUint32(buf, ti|tiSint|tyle(v.Bits))
		buf = appendNameUnit(buf)
		return appendUint(buf, uint64(v.V), v.Bits, order), nil

	case UnsignedValue:
		if tyle(v.Bits) == 0 || v.Bits == 128 {
			return nil, fmt.Errorf("invalid unsigned width %d", v.Bits)
		}
		buf = order.AppendUint32(buf, ti|tiUint|tyle(v.Bits))
		buf = appendNameUnit(buf)
		return appendUint(buf, v.V, v.Bits, order), nil

	case Int128Value:
		buf = order.AppendUint32(buf, ti|tiSint|tyle(128))
		buf = appendNameUnit(buf)
		return append128(buf, uint64(v.Hi), v.Lo, order), nil

	case Uint128Value:
		buf = order.AppendUint32(buf, ti|tiUint|tyle(128))
		buf = appendNameUnit(buf)
		return append128(buf, v.Hi, v.Lo, order), nil

	case FloatValue:
		buf = order.AppendUint32(buf, ti|tiFloat|tyle(v.Bits))
		buf = appendNameUnit(buf)
		switch v.Bits {
		case 32:
			return order.AppendUint32(buf, math.Float32bits(float32(v.V))), nil
		case 64:
			return order.AppendUint64(buf, math.Float64bits(v.V)), nil
		default:
			return nil, fmt.Errorf("invalid float width %d", v.Bits)
		}

	case StringValue:
		buf = order.AppendUint32(buf, ti|tiString|tiScodUTF8<<tiScodShift)
		buf = order.AppendUint16(buf, uint16(len(v)+1))
		buf = appendName(buf)
		buf = append(buf, v...)
		return append(buf, 0), nil

	case RawValue:
		buf = order.AppendUint32(buf, ti|tiRaw)
		buf = order.AppendUint16(buf, uint16(len(v)))
		buf = appendName(buf)
		return append(buf, v...), nil

	default:
		return nil, fmt.Errorf("unsupported value %T", arg.Value)
	}
}

func appendUint(buf []byte, v uint64, bits uint8, order endian) []byte {
	switch bits {
	case 8:
		return append(buf, byte(v))
	case 16:
		return order.AppendUint16(buf, uint16(v))
	case 32:
		return order.AppendUint32(buf, uint32(v))
	default:
		return order.AppendUint64(buf, v)
	}
}

func append128(buf []byte, hi, lo uint64, order endian) []byte {
	if order == binary.BigEndian {
		buf = order.AppendUint64(buf, hi)
		return order.AppendUint64(buf, lo)
	}
	buf = order.AppendUint64(buf, lo)
	return order.AppendUint64(buf, hi)
}
