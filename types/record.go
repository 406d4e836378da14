package types

import (
	"fmt"
	"math"
)

// AttrRecord is the serialized form of an Attr shared by every ingest
// backend (wire frames, Lode records, NATS messages).
type AttrRecord struct {
	Key   string `json:"key" msgpack:"key" cbor:"key" yaml:"key"`
	Type  string `json:"type" msgpack:"type" cbor:"type" yaml:"type"`
	Value any    `json:"value" msgpack:"value" cbor:"value" yaml:"value"`
}

// EncodeAttrs converts attributes to their serialized form, preserving order.
func EncodeAttrs(attrs []Attr) []AttrRecord {
	records := make([]AttrRecord, 0, len(attrs))
	for _, a := range attrs {
		records = append(records, AttrRecord{
			Key:   string(a.Key),
			Type:  a.Value.TypeName(),
			Value: Native(a.Value),
		})
	}
	return records
}

// DecodeAttrs converts serialized attributes back to typed attributes.
// Numeric values may arrive as any Go numeric type depending on the codec
// (msgpack and CBOR use the smallest encoding that fits).
func DecodeAttrs(records []AttrRecord) ([]Attr, error) {
	attrs := make([]Attr, 0, len(records))
	for _, r := range records {
		v, err := decodeValue(r.Type, r.Value)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", r.Key, err)
		}
		attrs = append(attrs, Attr{Key: AttrKey(r.Key), Value: v})
	}
	return attrs, nil
}

func decodeValue(typeName string, raw any) (AttrVal, error) {
	switch typeName {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("string value has type %T", raw)
		}
		return String(s), nil
	case TypeInt:
		i, err := toInt64(raw)
		if err != nil {
			return nil, err
		}
		return Int(i), nil
	case TypeBigInt:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("bigint value has type %T", raw)
		}
		v, err := ParseInt128(s)
		if err != nil {
			return nil, err
		}
		return BigInt(v), nil
	case TypeFloat:
		switch f := raw.(type) {
		case float64:
			return Float(f), nil
		case float32:
			return Float(f), nil
		default:
			i, err := toInt64(raw)
			if err != nil {
				return nil, err
			}
			return Float(i), nil
		}
	case TypeBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("bool value has type %T", raw)
		}
		return Bool(b), nil
	case TypeTimestamp:
		i, err := toUint64(raw)
		if err != nil {
			return nil, err
		}
		return Timestamp(i), nil
	default:
		return nil, fmt.Errorf("unknown attribute type %q", typeName)
	}
}

func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return toInt64(uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d overflows int64", v)
		}
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("integer value has type %T", raw)
	}
}

func toUint64(raw any) (uint64, error) {
	switch v := raw.(type) {
	case uint64:
		return v, nil
	case uint:
		return uint64(v), nil
	case uint8:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint32:
		return uint64(v), nil
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("negative timestamp %v", v)
		}
		return uint64(v), nil
	default:
		i, err := toInt64(raw)
		if err != nil {
			return 0, err
		}
		if i < 0 {
			return 0, fmt.Errorf("negative timestamp %d", i)
		}
		return uint64(i), nil
	}
}
