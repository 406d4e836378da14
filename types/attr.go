package types

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
)

// AttrKey is a dotted attribute name, e.g. "event.log_level" or "timeline.ecu_id".
type AttrKey string

// Attr is a single named attribute value.
type Attr struct {
	Key   AttrKey
	Value AttrVal
}

// AttrVal is the closed set of attribute value variants understood by the
// ingest backends. The unexported marker method seals the set; every type
// switch over AttrVal handles String, Int, BigInt, Float, Bool and Timestamp.
type AttrVal interface {
	// TypeName is the wire discriminator for the variant.
	TypeName() string
	attrVal()
}

// String is a UTF-8 string attribute.
type String string

// Int is a signed 64-bit integer attribute.
type Int int64

// BigInt is a signed 128-bit integer attribute.
type BigInt Int128

// Float is a 64-bit floating point attribute.
type Float float64

// Bool is a boolean attribute.
type Bool bool

// Timestamp is an absolute or relative time in nanoseconds.
type Timestamp uint64

// Wire discriminators for AttrVal variants.
const (
	TypeString    = "string"
	TypeInt       = "int"
	TypeBigInt    = "bigint"
	TypeFloat     = "float"
	TypeBool      = "bool"
	TypeTimestamp = "timestamp"
)

func (String) TypeName() string    { return TypeString }
func (Int) TypeName() string       { return TypeInt }
func (BigInt) TypeName() string    { return TypeBigInt }
func (Float) TypeName() string     { return TypeFloat }
func (Bool) TypeName() string      { return TypeBool }
func (Timestamp) TypeName() string { return TypeTimestamp }

func (String) attrVal()    {}
func (Int) attrVal()       {}
func (BigInt) attrVal()    {}
func (Float) attrVal()     {}
func (Bool) attrVal()      {}
func (Timestamp) attrVal() {}

// Int128 is a two's complement signed 128-bit integer.
// The value is Hi*2^64 + Lo.
type Int128 struct {
	Hi int64
	Lo uint64
}

// MaxInt128 is 2^127 - 1.
var MaxInt128 = Int128{Hi: math.MaxInt64, Lo: math.MaxUint64}

// Int128FromInt64 sign-extends v.
func Int128FromInt64(v int64) Int128 {
	hi := int64(0)
	if v < 0 {
		hi = -1
	}
	return Int128{Hi: hi, Lo: uint64(v)}
}

// Big returns v as a big.Int.
func (v Int128) Big() *big.Int {
	b := big.NewInt(v.Hi)
	b.Lsh(b, 64)
	return b.Add(b, new(big.Int).SetUint64(v.Lo))
}

// String formats v in base 10.
func (v Int128) String() string {
	return v.Big().String()
}

// ParseInt128 parses a base 10 string into an Int128.
func ParseInt128(s string) (Int128, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Int128{}, fmt.Errorf("invalid 128-bit integer %q", s)
	}
	if b.BitLen() > 127 && !(b.Sign() < 0 && b.BitLen() == 128 && b.TrailingZeroBits() == 127) {
		return Int128{}, fmt.Errorf("integer %q overflows 128 bits", s)
	}

	// Reduce to two's complement 128-bit representation.
	mod := new(big.Int).Lsh(big.NewInt(1), 128)
	u := new(big.Int).Mod(b, mod)
	lo := new(big.Int).And(u, new(big.Int).SetUint64(math.MaxUint64)).Uint64()
	hi := new(big.Int).Rsh(u, 64).Uint64()
	return Int128{Hi: int64(hi), Lo: lo}, nil
}

// Native returns the attribute value as a plain Go value suitable for
// JSON, msgpack or CBOR encoding. BigInt is rendered as a base 10 string
// since none of those encodings carry 128-bit integers.
func Native(v AttrVal) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case BigInt:
		return Int128(val).String()
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Timestamp:
		return uint64(val)
	default:
		panic(fmt.Sprintf("types: unhandled attribute value %T", v))
	}
}

// FormatAttrVal renders a value for human consumption.
func FormatAttrVal(v AttrVal) string {
	switch val := v.(type) {
	case String:
		return strconv.Quote(string(val))
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case BigInt:
		return Int128(val).String()
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case Bool:
		return strconv.FormatBool(bool(val))
	case Timestamp:
		return strconv.FormatUint(uint64(val), 10) + "ns"
	default:
		return fmt.Sprintf("%v", v)
	}
}
