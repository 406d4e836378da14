package frame

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/auxoncorp/modality-dlt-plugin/dlt"
)

func sampleMessage(ecu string, counter uint8) []byte {
	return dlt.NewMessage().
		EcuID(ecu).
		SessionID(1).
		Timestamp(uint32(counter) * 10).
		Counter(counter).
		Log(dlt.LogInfo, "APP1", "CTX1").
		Verbose(dlt.Argument{Value: dlt.StringValue("hello")}).
		MustEncode()
}

func TestReader_ReadsBackToBackFrames(t *testing.T) {
	m1 := sampleMessage("ECU1", 0)
	m2 := dlt.NewMessage().NonVerbose(7, []byte{1, 2, 3}).MustEncode()
	stream := append(append([]byte{}, m1...), m2...)

	r := NewReader(bytes.NewReader(stream))

	got1, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame 1 failed: %v", err)
	}
	if !bytes.Equal(got1, m1) {
		t.Errorf("frame 1 = %x, want %x", got1, m1)
	}

	got2, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame 2 failed: %v", err)
	}
	if !bytes.Equal(got2, m2) {
		t.Errorf("frame 2 = %x, want %x", got2, m2)
	}
	if r.FrameOffset() != int64(len(m1)) {
		t.Errorf("FrameOffset = %d, want %d", r.FrameOffset(), len(m1))
	}

	if _, err := r.ReadFrame(); err != io.EOF {
		t.Errorf("ReadFrame at end = %v, want io.EOF", err)
	}
	if r.Offset() != int64(len(stream)) {
		t.Errorf("Offset = %d, want %d", r.Offset(), len(stream))
	}
}

func TestReader_HeaderOnlyFrame(t *testing.T) {
	// HTYP with no optional fields and LEN=4: a frame of headers only.
	stream := []byte{0x20, 0x00, 0x00, 0x04}
	got, err := NewReader(bytes.NewReader(stream)).ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("len = %d, want 4", len(got))
	}
}

func TestReader_Errors(t *testing.T) {
	full := sampleMessage("ECU1", 0)

	tests := []struct {
		name   string
		stream []byte
		kind   ErrorKind
	}{
		{"truncated headers", full[:3], ErrorShortRead},
		{"truncated payload", full[:len(full)-1], ErrorShortRead},
		{"length below headers", []byte{0x25, 0x00, 0x00, 0x05, 'E', 'C', 'U', '1', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, ErrorMalformedHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader(tt.stream)).ReadFrame()
			var fe *Error
			if !errors.As(err, &fe) {
				t.Fatalf("error = %v, want *Error", err)
			}
			if fe.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", fe.Kind, tt.kind)
			}
		})
	}
}

func TestReader_SkipStorageHeader(t *testing.T) {
	sh := &dlt.StorageHeader{Seconds: 10, Microseconds: 20, EcuID: "ECU1"}
	msg := sampleMessage("ECU1", 0)
	stream := append(sh.Encode(), msg...)

	r := NewReader(bytes.NewReader(stream))
	got, err := r.SkipStorageHeader()
	if err != nil {
		t.Fatalf("SkipStorageHeader failed: %v", err)
	}
	if *got != *sh {
		t.Errorf("storage header = %+v, want %+v", got, sh)
	}

	frame, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(frame, msg) {
		t.Error("frame after storage header does not match")
	}

	if _, err := r.SkipStorageHeader(); err != io.EOF {
		t.Errorf("SkipStorageHeader at end = %v, want io.EOF", err)
	}
}

func TestReader_SkipStorageHeader_Errors(t *testing.T) {
	good := (&dlt.StorageHeader{EcuID: "ECU1"}).Encode()
	bad := append([]byte{}, good...)
	bad[0] = 'X'

	for name, stream := range map[string][]byte{
		"truncated":   good[:10],
		"bad pattern": bad,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader(stream)).SkipStorageHeader()
			if !IsStorageHeaderError(err) {
				t.Errorf("error = %v, want storage header error", err)
			}
		})
	}
}

func TestTrailingBytes(t *testing.T) {
	err := TrailingBytes(3, 128)
	if err.Kind != ErrorTrailingBytes || err.Offset != 128 {
		t.Errorf("TrailingBytes = %+v", err)
	}
}

// Any well-formed sequence of messages is split exactly at message
// boundaries, regardless of which optional header fields are present.
func TestProperty_FrameSpans(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("each frame is exactly headers plus payload", prop.ForAll(
		func(flags []uint8, payloadLens []uint8) bool {
			n := min(len(flags), len(payloadLens))
			var stream bytes.Buffer
			var want [][]byte
			for i := range n {
				b := dlt.NewMessage()
				if flags[i]&0x01 != 0 {
					b.EcuID("ECU1")
				}
				if flags[i]&0x02 != 0 {
					b.SessionID(uint32(i))
				}
				if flags[i]&0x04 != 0 {
					b.Timestamp(uint32(i))
				}
				if flags[i]&0x08 != 0 {
					b.Log(dlt.LogInfo, "APP", "CTX")
				}
				if flags[i]&0x10 != 0 {
					b.BigEndian()
				}
				b.RawPayload(make([]byte, payloadLens[i]))
				msg := b.MustEncode()
				want = append(want, msg)
				stream.Write(msg)
			}

			r := NewReader(bufio.NewReader(&stream))
			for _, w := range want {
				got, err := r.ReadFrame()
				if err != nil || !bytes.Equal(got, w) {
					return false
				}
			}
			_, err := r.ReadFrame()
			return err == io.EOF
		},
		gen.SliceOf(gen.UInt8()),
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

func FuzzReadFrame(f *testing.F) {
	f.Add(sampleMessage("ECU1", 0))
	f.Add([]byte{0x20, 0x00, 0x00, 0x04})
	f.Add([]byte{0x3F, 0x00, 0x00, 0x00})

	f.Fuzz(func(t *testing.T, data []byte) {
		r := NewReader(bytes.NewReader(data))
		for {
			span, err := r.ReadFrame()
			if err != nil {
				var fe *Error
				if err != io.EOF && !errors.As(err, &fe) {
					t.Fatalf("unexpected error type %T: %v", err, err)
				}
				return
			}
			if len(span) < dlt.HeadersLength(span[0]) {
				t.Fatalf("span of %d bytes shorter than its headers", len(span))
			}
			var d dlt.Decoder
			_, _, _ = d.Decode(span)
		}
	})
}

func FuzzSkipStorageHeader(f *testing.F) {
	f.Add((&dlt.StorageHeader{EcuID: "ECU1"}).Encode())
	f.Add([]byte("DLT"))

	f.Fuzz(func(t *testing.T, data []byte) {
		sh, err := NewReader(bytes.NewReader(data)).SkipStorageHeader()
		if err == nil && sh == nil {
			t.Fatal("nil header without error")
		}
		if err == nil && !bytes.HasPrefix(data, dlt.StoragePattern) {
			t.Fatal("accepted header without pattern")
		}
	})
}
