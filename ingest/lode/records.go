package lode

import (
	"fmt"
	"strconv"

	"github.com/auxoncorp/modality-dlt-plugin/ingest"
	"github.com/auxoncorp/modality-dlt-plugin/types"
)

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"source", "day", "record_kind"}

// toOpRecordMap converts an op to a map for Lode storage.
// Lode HiveLayout requires records as map[string]any.
func toOpRecordMap(op ingest.Op, seq int64, cfg Config) map[string]any {
	m := map[string]any{
		"record_kind": string(op.Kind), // partition key
		"seq":         seq,
		"stream_id":   cfg.StreamID,
		"source":      cfg.Source,
		"day":         cfg.Day,
	}
	if !op.TimelineID.IsZero() {
		m["timeline_id"] = op.TimelineID.String()
	}
	switch op.Kind {
	case ingest.OpTimelineAttrs:
		m["name"] = op.Name
		m["attrs"] = attrMaps(op.Attrs)
	case ingest.OpEvent:
		m["name"] = op.Name
		m["ordering"] = strconv.FormatUint(op.Ordering, 10)
		m["attrs"] = attrMaps(op.Attrs)
	}
	return m
}

func attrMaps(attrs []types.Attr) []map[string]any {
	out := make([]map[string]any, 0, len(attrs))
	for _, r := range types.EncodeAttrs(attrs) {
		// Integers are stored as decimal strings: JSON numbers lose
		// precision above 2^53.
		v := r.Value
		switch n := v.(type) {
		case int64:
			v = strconv.FormatInt(n, 10)
		case uint64:
			v = strconv.FormatUint(n, 10)
		}
		out = append(out, map[string]any{"key": r.Key, "type": r.Type, "value": v})
	}
	return out
}

// fromOpRecordMap converts a stored record back to an op.
func fromOpRecordMap(m map[string]any) (ingest.Op, error) {
	kind := ingest.OpKind(toString(m["record_kind"]))
	switch kind {
	case ingest.OpSwitchTimeline, ingest.OpTimelineAttrs, ingest.OpEvent:
	default:
		return ingest.Op{}, fmt.Errorf("unknown record kind %q", kind)
	}

	op := ingest.Op{Kind: kind, Name: toString(m["name"])}
	if s := toString(m["timeline_id"]); s != "" {
		id, err := types.ParseTimelineID(s)
		if err != nil {
			return ingest.Op{}, err
		}
		op.TimelineID = id
	}
	if s := toString(m["ordering"]); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return ingest.Op{}, fmt.Errorf("invalid ordering %q: %w", s, err)
		}
		op.Ordering = n
	}

	raw, _ := m["attrs"].([]any)
	records := make([]types.AttrRecord, 0, len(raw))
	for _, item := range raw {
		am, ok := item.(map[string]any)
		if !ok {
			return ingest.Op{}, fmt.Errorf("attribute record has type %T", item)
		}
		r := types.AttrRecord{Key: toString(am["key"]), Type: toString(am["type"]), Value: am["value"]}
		if s, ok := r.Value.(string); ok {
			var err error
			switch r.Type {
			case types.TypeInt:
				r.Value, err = strconv.ParseInt(s, 10, 64)
			case types.TypeTimestamp:
				r.Value, err = strconv.ParseUint(s, 10, 64)
			}
			if err != nil {
				return ingest.Op{}, fmt.Errorf("attribute %q: invalid %s %q", r.Key, r.Type, s)
			}
		}
		records = append(records, r)
	}
	if len(records) > 0 {
		attrs, err := types.DecodeAttrs(records)
		if err != nil {
			return ingest.Op{}, err
		}
		op.Attrs = attrs
	}
	return op, nil
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
