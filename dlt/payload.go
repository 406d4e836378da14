package dlt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Type info bits of a verbose argument.
const (
	tiLengthMask = 0x0000000F
	tiBool       = 0x00000010
	tiSint       = 0x00000020
	tiUint       = 0x00000040
	tiFloat      = 0x00000080
	tiArray      = 0x00000100
	tiString     = 0x00000200
	tiRaw        = 0x00000400
	tiVari       = 0x00000800
	tiFixp       = 0x00001000
	tiTrai       = 0x00002000
	tiStruct     = 0x00004000
	tiScodShift  = 15
	tiScodUTF8   = 0x1
)

// errPayloadTruncated is returned when an argument runs past the payload.
var errPayloadTruncated = errors.New("payload truncated")

// Payload is the closed set of payload shapes.
// Implementations: VerbosePayload, NonVerbosePayload, ControlPayload.
type Payload interface {
	isPayload()
}

// VerbosePayload is a self-describing list of typed arguments.
type VerbosePayload struct {
	Args []Argument
}

// NonVerbosePayload is a message id followed by data that can only be
// interpreted with an external message catalog.
type NonVerbosePayload struct {
	MessageID uint32
	Data      []byte
}

// ControlPayload is the payload of a control message.
type ControlPayload struct {
	Type ControlType
	// ServiceID is the leading service id, absent if the payload is shorter
	// than four bytes.
	ServiceID *uint32
	Data      []byte
}

func (VerbosePayload) isPayload()    {}
func (NonVerbosePayload) isPayload() {}
func (ControlPayload) isPayload()    {}

// Argument is one verbose payload argument.
type Argument struct {
	// Name is the VARI name; empty when the argument is unnamed.
	Name string
	// Unit is the VARI unit of numeric arguments.
	Unit string
	// Value is the decoded argument value.
	Value Value
}

// Value is the closed set of verbose argument values.
// Implementations: BoolValue, SignedValue, UnsignedValue, Int128Value,
// Uint128Value, FloatValue, StringValue, RawValue.
type Value interface {
	isValue()
}

// BoolValue is a BOOL argument.
type BoolValue bool

// SignedValue is a SINT argument of 8, 16, 32 or 64 bits.
type SignedValue struct {
	Bits uint8
	V    int64
}

// UnsignedValue is a UINT argument of 8, 16, 32 or 64 bits.
type UnsignedValue struct {
	Bits uint8
	V    uint64
}

// Int128Value is a 128-bit SINT argument, Hi*2^64 + Lo.
type Int128Value struct {
	Hi int64
	Lo uint64
}

// Uint128Value is a 128-bit UINT argument, Hi*2^64 + Lo.
type Uint128Value struct {
	Hi uint64
	Lo uint64
}

// FloatValue is a FLOA argument of 32 or 64 bits.
type FloatValue struct {
	Bits uint8
	V    float64
}

// StringValue is a STRG argument.
type StringValue string

// RawValue is a RAWD argument.
type RawValue []byte

func (BoolValue) isValue()     {}
func (SignedValue) isValue()   {}
func (UnsignedValue) isValue() {}
func (Int128Value) isValue()   {}
func (Uint128Value) isValue()  {}
func (FloatValue) isValue()    {}
func (StringValue) isValue()   {}
func (RawValue) isValue()      {}

// parsePayload decodes the payload region according to the headers. It
// returns the number of bytes the payload occupies; only a verbose payload
// can end before buf does.
func parsePayload(buf []byte, bigEndian bool, ext *ExtendedHeader) (Payload, int, error) {
	order := byteOrder(bigEndian)

	if ext != nil && ext.Verbose {
		args, n, err := parseArguments(buf, order, int(ext.ArgumentCount))
		if err != nil {
			return nil, 0, err
		}
		return VerbosePayload{Args: args}, n, nil
	}

	if ext != nil {
		if ctrl, ok := ext.MessageType.(ControlMessage); ok {
			p := ControlPayload{Type: ctrl.Type, Data: buf}
			if len(buf) >= 4 {
				sid := order.Uint32(buf[:4])
				p.ServiceID = &sid
			}
			return p, len(buf), nil
		}
	}

	if len(buf) < 4 {
		return nil, 0, fmt.Errorf("non-verbose payload of %d bytes has no message id", len(buf))
	}
	return NonVerbosePayload{MessageID: order.Uint32(buf[:4]), Data: buf[4:]}, len(buf), nil
}

// endian reads and appends fixed-size integers in one byte order.
type endian interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

func byteOrder(bigEndian bool) endian {
	if bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// argReader is a cursor over a verbose payload.
type argReader struct {
	buf   []byte
	off   int
	order binary.ByteOrder
}

func (r *argReader) take(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", errPayloadTruncated, n, r.off, len(r.buf)-r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *argReader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r *argReader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

func (r *argReader) cstring(n int) (string, error) {
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	return idString(b), nil
}

// parseArguments reads count arguments from buf and reports how many bytes
// they used.
func parseArguments(buf []byte, order binary.ByteOrder, count int) ([]Argument, int, error) {
	r := &argReader{buf: buf, order: order}
	args := make([]Argument, 0, count)
	for i := range count {
		arg, err := r.argument()
		if err != nil {
			return nil, 0, fmt.Errorf("argument %d: %w", i, err)
		}
		args = append(args, arg)
	}
	return args, r.off, nil
}

func (r *argReader) argument() (Argument, error) {
	ti, err := r.u32()
	if err != nil {
		return Argument{}, err
	}

	if ti&(tiArray|tiStruct) != 0 {
		return Argument{}, fmt.Errorf("unsupported argument type info 0x%08x (array/struct)", ti)
	}

	if ti&tiTrai != 0 {
		n, err := r.u16()
		if err != nil {
			return Argument{}, err
		}
		if _, err := r.take(int(n)); err != nil {
			return Argument{}, err
		}
	}

	vari := ti&tiVari != 0
	bits, err := typeLengthBits(ti & tiLengthMask)

	switch {
	case ti&tiBool != 0:
		return r.boolArg(vari)
	case ti&(tiSint|tiUint) != 0:
		if err != nil {
			return Argument{}, err
		}
		return r.intArg(ti, bits, vari)
	case ti&tiFloat != 0:
		if err != nil {
			return Argument{}, err
		}
		return r.floatArg(bits, vari)
	case ti&tiString != 0:
		return r.stringArg(vari)
	case ti&tiRaw != 0:
		return r.rawArg(vari)
	default:
		return Argument{}, fmt.Errorf("unsupported argument type info 0x%08x", ti)
	}
}

// typeLengthBits maps TYLE to a width in bits.
func typeLengthBits(tyle uint32) (uint8, error) {
	switch tyle {
	case 1:
		return 8, nil
	case 2:
		return 16, nil
	case 3:
		return 32, nil
	case 4:
		return 64, nil
	case 5:
		return 128, nil
	default:
		return 0, fmt.Errorf("unsupported type length %d", tyle)
	}
}

// nameOnly reads the VARI name used by bool, string and raw arguments.
func (r *argReader) nameOnly() (string, error) {
	n, err := r.u16()
	if err != nil {
		return "", err
	}
	return r.cstring(int(n))
}

// nameAndUnit reads the VARI name and unit used by numeric arguments.
func (r *argReader) nameAndUnit() (string, string, error) {
	nameLen, err := r.u16()
	if err != nil {
		return "", "", err
	}
	unitLen, err := r.u16()
	if err != nil {
		return "", "", err
	}
	name, err := r.cstring(int(nameLen))
	if err != nil {
		return "", "", err
	}
	unit, err := r.cstring(int(unitLen))
	if err != nil {
		return "", "", err
	}
	return name, unit, nil
}

func (r *argReader) boolArg(vari bool) (Argument, error) {
	var arg Argument
	if vari {
		name, err := r.nameOnly()
		if err != nil {
			return Argument{}, err
		}
		arg.Name = name
	}
	b, err := r.take(1)
	if err != nil {
		return Argument{}, err
	}
	arg.Value = BoolValue(b[0] != 0)
	return arg, nil
}

func (r *argReader) intArg(ti uint32, bits uint8, vari bool) (Argument, error) {
	var arg Argument
	if vari {
		name, unit, err := r.nameAndUnit()
		if err != nil {
			return Argument{}, err
		}
		arg.Name, arg.Unit = name, unit
	}

	if ti&tiFixp != 0 {
		// Quantization (f32) and offset (width depends on TYLE). The raw value
		// is reported unscaled.
		offsetLen := 4
		switch bits {
		case 64:
			offsetLen = 8
		case 128:
			offsetLen = 16
		}
		if _, err := r.take(4 + offsetLen); err != nil {
			return Argument{}, err
		}
	}

	b, err := r.take(int(bits) / 8)
	if err != nil {
		return Argument{}, err
	}

	signed := ti&tiSint != 0
	switch bits {
	case 8:
		if signed {
			arg.Value = SignedValue{Bits: 8, V: int64(int8(b[0]))}
		} else {
			arg.Value = UnsignedValue{Bits: 8, V: uint64(b[0])}
		}
	case 16:
		v := r.order.Uint16(b)
		if signed {
			arg.Value = SignedValue{Bits: 16, V: int64(int16(v))}
		} else {
			arg.Value = UnsignedValue{Bits: 16, V: uint64(v)}
		}
	case 32:
		v := r.order.Uint32(b)
		if signed {
			arg.Value = SignedValue{Bits: 32, V: int64(int32(v))}
		} else {
			arg.Value = UnsignedValue{Bits: 32, V: uint64(v)}
		}
	case 64:
		v := r.order.Uint64(b)
		if signed {
			arg.Value = SignedValue{Bits: 64, V: int64(v)}
		} else {
			arg.Value = UnsignedValue{Bits: 64, V: v}
		}
	case 128:
		hi, lo := split128(b, r.order)
		if signed {
			arg.Value = Int128Value{Hi: int64(hi), Lo: lo}
		} else {
			arg.Value = Uint128Value{Hi: hi, Lo: lo}
		}
	}
	return arg, nil
}

// split128 returns the high and low 64-bit halves of a 16-byte integer.
func split128(b []byte, order binary.ByteOrder) (hi, lo uint64) {
	if order == binary.BigEndian {
		return order.Uint64(b[:8]), order.Uint64(b[8:])
	}
	return order.Uint64(b[8:]), order.Uint64(b[:8])
}

func (r *argReader) floatArg(bits uint8, vari bool) (Argument, error) {
	var arg Argument
	if vari {
		name, unit, err := r.nameAndUnit()
		if err != nil {
			return Argument{}, err
		}
		arg.Name, arg.Unit = name, unit
	}

	switch bits {
	case 32:
		v, err := r.u32()
		if err != nil {
			return Argument{}, err
		}
		arg.Value = FloatValue{Bits: 32, V: float64(math.Float32frombits(v))}
	case 64:
		b, err := r.take(8)
		if err != nil {
			return Argument{}, err
		}
		arg.Value = FloatValue{Bits: 64, V: math.Float64frombits(r.order.Uint64(b))}
	default:
		return Argument{}, fmt.Errorf("unsupported float width %d", bits)
	}
	return arg, nil
}

func (r *argReader) stringArg(vari bool) (Argument, error) {
	n, err := r.u16()
	if err != nil {
		return Argument{}, err
	}
	var arg Argument
	if vari {
		name, err := r.nameOnly()
		if err != nil {
			return Argument{}, err
		}
		arg.Name = name
	}
	s, err := r.cstring(int(n))
	if err != nil {
		return Argument{}, err
	}
	arg.Value = StringValue(s)
	return arg, nil
}

func (r *argReader) rawArg(vari bool) (Argument, error) {
	n, err := r.u16()
	if err != nil {
		return Argument{}, err
	}
	var arg Argument
	if vari {
		name, err := r.nameOnly()
		if err != nil {
			return Argument{}, err
		}
		arg.Name = name
	}
	b, err := r.take(int(n))
	if err != nil {
		return Argument{}, err
	}
	arg.Value = RawValue(append([]byte(nil), b...))
	return arg, nil
}
