package wire

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes frame payloads.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Msgpack is the default codec.
var Msgpack Codec = msgpackCodec{}

// CBOR encodes payloads with Core Deterministic Encoding.
var CBOR Codec = newCBORCodec()

type msgpackCodec struct{}

func (msgpackCodec) Name() string                       { return "msgpack" }
func (msgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() cborCodec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wire: CBOR encoder initialization failed: " + err.Error())
	}
	dec, err := cbor.DecOptions{
		// Attribute values decode into any; keep maps string-keyed.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("wire: CBOR decoder initialization failed: " + err.Error())
	}
	return cborCodec{enc: enc, dec: dec}
}

func (cborCodec) Name() string                         { return "cbor" }
func (c cborCodec) Marshal(v any) ([]byte, error)      { return c.enc.Marshal(v) }
func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }

// ParseCodec returns the codec with the given name.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", "msgpack":
		return Msgpack, nil
	case "cbor":
		return CBOR, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (must be msgpack or cbor)", name)
	}
}
