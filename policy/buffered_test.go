package policy_test

import (
	"errors"
	"testing"
	"time"

	"github.com/auxoncorp/modality-dlt-plugin/ingest"
	"github.com/auxoncorp/modality-dlt-plugin/policy"
	"github.com/auxoncorp/modality-dlt-plugin/types"
)

func TestNewBuffered_InvalidConfig(t *testing.T) {
	_, err := policy.NewBuffered(policy.NewStubSink(), policy.BufferedConfig{})
	if !errors.Is(err, policy.ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestBuffered_FlushesAtMaxOps(t *testing.T) {
	sink := policy.NewStubSink()
	pol, err := policy.NewBuffered(sink, policy.BufferedConfig{MaxOps: 3})
	if err != nil {
		t.Fatalf("NewBuffered failed: %v", err)
	}
	ctx := t.Context()

	for i := range uint64(2) {
		if err := pol.SendEvent(ctx, "log", i, nil); err != nil {
			t.Fatalf("SendEvent failed: %v", err)
		}
	}
	if sink.Stats().Batches != 0 {
		t.Fatalf("Batches = %d before limit, want 0", sink.Stats().Batches)
	}
	if pol.Stats().BufferedOps != 2 {
		t.Errorf("BufferedOps = %d, want 2", pol.Stats().BufferedOps)
	}

	if err := pol.SendEvent(ctx, "log", 2, nil); err != nil {
		t.Fatalf("SendEvent failed: %v", err)
	}
	if s := sink.Stats(); s.Batches != 1 || s.OpsWritten != 3 {
		t.Errorf("sink stats = %+v, want 1 batch of 3", s)
	}

	stats := pol.Stats()
	if stats.FlushTriggers[policy.FlushTriggerLimit] != 1 {
		t.Errorf("FlushTriggers[limit] = %d, want 1", stats.FlushTriggers[policy.FlushTriggerLimit])
	}
	if stats.BufferedOps != 0 {
		t.Errorf("BufferedOps = %d, want 0", stats.BufferedOps)
	}
}

func TestBuffered_FlushesAtMaxBytes(t *testing.T) {
	sink := policy.NewStubSink()
	pol, err := policy.NewBuffered(sink, policy.BufferedConfig{MaxBytes: 1})
	if err != nil {
		t.Fatalf("NewBuffered failed: %v", err)
	}

	if err := pol.SendEvent(t.Context(), "log", 0, nil); err != nil {
		t.Fatalf("SendEvent failed: %v", err)
	}
	if sink.Stats().OpsWritten != 1 {
		t.Errorf("OpsWritten = %d, want 1", sink.Stats().OpsWritten)
	}
}

func TestBuffered_PreservesOrderAndStampsTimelines(t *testing.T) {
	sink := policy.NewStubSink()
	pol, err := policy.NewBuffered(sink, policy.DefaultBufferedConfig())
	if err != nil {
		t.Fatalf("NewBuffered failed: %v", err)
	}
	ctx := t.Context()
	a, b := types.NewTimelineID(), types.NewTimelineID()

	calls := []func() error{
		func() error { return pol.SwitchTimeline(ctx, a) },
		func() error { return pol.SendTimelineAttrs(ctx, "A", nil) },
		func() error { return pol.SendEvent(ctx, "log", 0, nil) },
		func() error { return pol.SwitchTimeline(ctx, b) },
		func() error { return pol.SendEvent(ctx, "log", 1, nil) },
	}
	for i, call := range calls {
		if err := call(); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
	if err := pol.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	ops := sink.Ops()
	want := []struct {
		kind ingest.OpKind
		tl   types.TimelineID
	}{
		{ingest.OpSwitchTimeline, a},
		{ingest.OpTimelineAttrs, a},
		{ingest.OpEvent, a},
		{ingest.OpSwitchTimeline, b},
		{ingest.OpEvent, b},
	}
	if len(ops) != len(want) {
		t.Fatalf("len(ops) = %d, want %d", len(ops), len(want))
	}
	for i, w := range want {
		if ops[i].Kind != w.kind || ops[i].TimelineID != w.tl {
			t.Errorf("ops[%d] = %s/%s, want %s/%s", i, ops[i].Kind, ops[i].TimelineID, w.kind, w.tl)
		}
	}
}

func TestBuffered_FailedFlushKeepsBatch(t *testing.T) {
	sink := policy.NewStubSink()
	pol, err := policy.NewBuffered(sink, policy.BufferedConfig{MaxOps: 100})
	if err != nil {
		t.Fatalf("NewBuffered failed: %v", err)
	}
	ctx := t.Context()

	if err := pol.SendEvent(ctx, "log", 0, nil); err != nil {
		t.Fatalf("SendEvent failed: %v", err)
	}

	sink.SetError(errors.New("unavailable"))
	if err := pol.Flush(ctx); err == nil {
		t.Fatal("expected flush error")
	}
	if pol.Stats().BufferedOps != 1 {
		t.Errorf("BufferedOps = %d, want 1 after failed flush", pol.Stats().BufferedOps)
	}

	if err := pol.SendEvent(ctx, "log", 1, nil); err != nil {
		t.Fatalf("SendEvent failed: %v", err)
	}
	sink.SetError(nil)
	if err := pol.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	ops := sink.Ops()
	if len(ops) != 2 || ops[0].Ordering != 0 || ops[1].Ordering != 1 {
		t.Errorf("ops = %+v, want orderings 0, 1", ops)
	}
	if pol.Stats().Errors != 1 {
		t.Errorf("Errors = %d, want 1", pol.Stats().Errors)
	}
}

func TestBuffered_IntervalFlush(t *testing.T) {
	sink := policy.NewStubSink()
	pol, err := policy.NewBuffered(sink, policy.BufferedConfig{FlushInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewBuffered failed: %v", err)
	}
	t.Cleanup(func() { _ = pol.Close() })

	if err := pol.SendEvent(t.Context(), "log", 0, nil); err != nil {
		t.Fatalf("SendEvent failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for sink.Stats().OpsWritten == 0 {
		if time.Now().After(deadline) {
			t.Fatal("interval flush did not happen")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBuffered_CloseFlushesAndReportsError(t *testing.T) {
	sink := policy.NewStubSink()
	pol, err := policy.NewBuffered(sink, policy.BufferedConfig{MaxOps: 100})
	if err != nil {
		t.Fatalf("NewBuffered failed: %v", err)
	}
	if err := pol.SendEvent(t.Context(), "log", 0, nil); err != nil {
		t.Fatalf("SendEvent failed: %v", err)
	}

	sinkErr := errors.New("sink down")
	sink.SetError(sinkErr)
	if err := pol.Close(); !errors.Is(err, sinkErr) {
		t.Errorf("Close error = %v, want %v", err, sinkErr)
	}
	if !sink.Stats().Closed {
		t.Error("sink not closed after failed flush")
	}
}

func BenchmarkStrict_SendEvent(b *testing.B) {
	pol := policy.NewStrict(policy.NewStubSink())
	attrs := []types.Attr{{Key: "event.payload", Value: types.String("hello")}}
	ctx := b.Context()

	b.ResetTimer()
	for i := range b.N {
		_ = pol.SendEvent(ctx, "log", uint64(i), attrs)
	}
}

func BenchmarkBuffered_SendEvent(b *testing.B) {
	pol, _ := policy.NewBuffered(policy.NewStubSink(), policy.DefaultBufferedConfig())
	attrs := []types.Attr{{Key: "event.payload", Value: types.String("hello")}}
	ctx := b.Context()

	b.ResetTimer()
	for i := range b.N {
		_ = pol.SendEvent(ctx, "log", uint64(i), attrs)
	}
}
