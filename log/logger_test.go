package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestLogger_StreamContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(StreamMeta{Mode: "file", Source: "trace.dlt", StreamID: "s-1"}, &buf, zapcore.DebugLevel)

	l.Info("Finished importing", map[string]any{"messages": 2})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Unmarshal failed: %v (%s)", err, buf.String())
	}
	if entry["message"] != "Finished importing" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
	if entry["mode"] != "file" || entry["source"] != "trace.dlt" || entry["stream_id"] != "s-1" {
		t.Errorf("context fields = %v", entry)
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["messages"] != float64(2) {
		t.Errorf("fields = %v", entry["fields"])
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("timestamp missing")
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(StreamMeta{}, &buf, zapcore.WarnLevel)

	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	l.Warn("shown", nil)
	l.Sugar().Errorf("shown %d", 2)

	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("entries below level were written: %s", buf.String())
	}
	if n := strings.Count(buf.String(), "shown"); n != 2 {
		t.Errorf("shown entries = %d, want 2", n)
	}
}

func TestParseLevel(t *testing.T) {
	if l, err := ParseLevel("warn"); err != nil || l != zapcore.WarnLevel {
		t.Errorf("ParseLevel(warn) = %v, %v", l, err)
	}
	if _, err := ParseLevel("chatty"); err == nil {
		t.Error("expected error for unknown level")
	}
}
