package runtime

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/auxoncorp/modality-dlt-plugin/convert"
	"github.com/auxoncorp/modality-dlt-plugin/dlt"
	"github.com/auxoncorp/modality-dlt-plugin/ingest"
	"github.com/auxoncorp/modality-dlt-plugin/metrics"
	"github.com/auxoncorp/modality-dlt-plugin/policy"
)

func TestRunStream_FileStrict(t *testing.T) {
	sink := policy.NewStubSink()
	collector := metrics.NewCollector("file", "strict", "stub", "")
	data := storedFile(logMsg("ECU1", 1, "a"), logMsg("ECU2", 1, "b"), logMsg("ECU1", 1, "c"))

	result := RunStream(t.Context(), StreamConfig{
		Mode:      ModeFile,
		Source:    "trace.dlt",
		Input:     bytes.NewReader(data),
		Policy:    policy.NewStrict(sink),
		Keys:      convert.DefaultKeyConfig(),
		Collector: collector,
	})

	if result.Outcome.Status != OutcomeSuccess {
		t.Fatalf("outcome = %s (%s), want success", result.Outcome.Status, result.Outcome.Message)
	}
	if result.Err != nil {
		t.Errorf("Err = %v, want nil", result.Err)
	}
	if result.Messages != 3 || result.Events != 3 {
		t.Errorf("messages/events = %d/%d, want 3/3", result.Messages, result.Events)
	}
	if result.Timelines != 2 {
		t.Errorf("Timelines = %d, want 2", result.Timelines)
	}
	if result.BytesRead != int64(len(data)) {
		t.Errorf("BytesRead = %d, want %d", result.BytesRead, len(data))
	}
	if !sink.Closed {
		t.Error("sink not closed")
	}

	// switch+attrs per timeline, a switch back to ECU1, three events
	wantOps := int64(2 + 2 + 1 + 3)
	if result.Policy.OpsWritten != wantOps {
		t.Errorf("OpsWritten = %d, want %d", result.Policy.OpsWritten, wantOps)
	}

	snap := collector.Snapshot()
	if snap.StreamsStarted != 1 || snap.StreamsCompleted != 1 {
		t.Errorf("stream counters = %d/%d, want 1/1", snap.StreamsStarted, snap.StreamsCompleted)
	}
	if snap.OpsWritten != wantOps {
		t.Errorf("absorbed OpsWritten = %d, want %d", snap.OpsWritten, wantOps)
	}
}

func TestRunStream_BufferedFlushesAtEnd(t *testing.T) {
	sink := policy.NewStubSink()
	pol, err := policy.NewBuffered(sink, policy.BufferedConfig{MaxOps: 1000})
	if err != nil {
		t.Fatalf("NewBuffered failed: %v", err)
	}

	result := RunStream(t.Context(), StreamConfig{
		Mode:   ModeFile,
		Input:  bytes.NewReader(storedFile(logMsg("ECU1", 1, "a"), logMsg("ECU1", 1, "b"))),
		Policy: pol,
		Keys:   convert.DefaultKeyConfig(),
	})

	if result.Outcome.Status != OutcomeSuccess {
		t.Fatalf("outcome = %s, want success", result.Outcome.Status)
	}
	if sink.Batches != 1 {
		t.Errorf("Batches = %d, want 1", sink.Batches)
	}
	if sink.OpsWritten != 4 {
		t.Errorf("OpsWritten = %d, want 4", sink.OpsWritten)
	}
	if result.Policy.FlushTriggers[policy.FlushTriggerExplicit] == 0 {
		t.Error("expected an explicit flush")
	}
}

func TestRunStream_FilterDropsMessages(t *testing.T) {
	sink := policy.NewStubSink()
	filter := &dlt.Filter{EcuIDs: []string{"ECU2"}}

	result := RunStream(t.Context(), StreamConfig{
		Mode:   ModeFile,
		Input:  bytes.NewReader(storedFile(logMsg("ECU1", 1, "a"), logMsg("ECU2", 1, "b"))),
		Policy: policy.NewStrict(sink),
		Keys:   convert.DefaultKeyConfig(),
		Filter: filter,
	})

	if result.Messages != 2 || result.Events != 1 {
		t.Errorf("messages/events = %d/%d, want 2/1", result.Messages, result.Events)
	}
	for _, op := range sink.Written {
		if op.Kind == ingest.OpTimelineAttrs && op.Name != "ECU2" {
			t.Errorf("unexpected timeline %s", op.Name)
		}
	}
}

func TestRunStream_NetworkCloseIsFramingOutcome(t *testing.T) {
	result := RunStream(t.Context(), StreamConfig{
		Mode:   ModeNetwork,
		Input:  bytes.NewReader(networkStream(logMsg("ECU1", 1, "a"))),
		Policy: policy.NewStrict(policy.NewStubSink()),
		Keys:   convert.DefaultKeyConfig(),
	})

	if result.Outcome.Status != OutcomeFramingError {
		t.Fatalf("outcome = %s, want framing_error", result.Outcome.Status)
	}
	if result.Outcome.ExitCode() != ExitCodeFraming {
		t.Errorf("exit code = %d, want %d", result.Outcome.ExitCode(), ExitCodeFraming)
	}
	if result.Events != 1 {
		t.Errorf("Events = %d, want 1", result.Events)
	}
}

func TestRunStream_SinkFailure(t *testing.T) {
	sink := policy.NewStubSink()
	sink.ErrorOnWrite = errors.New("disk full")
	collector := metrics.NewCollector("file", "strict", "stub", "")

	result := RunStream(t.Context(), StreamConfig{
		Mode:      ModeFile,
		Input:     bytes.NewReader(storedFile(logMsg("ECU1", 1, "a"))),
		Policy:    policy.NewStrict(sink),
		Keys:      convert.DefaultKeyConfig(),
		Collector: collector,
	})

	if result.Outcome.Status != OutcomeSinkError {
		t.Fatalf("outcome = %s, want sink_error", result.Outcome.Status)
	}
	if result.Outcome.ExitCode() != ExitCodeSink {
		t.Errorf("exit code = %d, want %d", result.Outcome.ExitCode(), ExitCodeSink)
	}
	if collector.Snapshot().StreamsFailed != 1 {
		t.Errorf("StreamsFailed = %d, want 1", collector.Snapshot().StreamsFailed)
	}
}

func TestRunStream_FlushFailureAfterCleanEnd(t *testing.T) {
	sink := policy.NewStubSink()
	pol, err := policy.NewBuffered(sink, policy.BufferedConfig{MaxOps: 1000})
	if err != nil {
		t.Fatalf("NewBuffered failed: %v", err)
	}
	sink.ErrorOnWrite = errors.New("backend gone")

	result := RunStream(t.Context(), StreamConfig{
		Mode:   ModeFile,
		Input:  bytes.NewReader(storedFile(logMsg("ECU1", 1, "a"))),
		Policy: pol,
		Keys:   convert.DefaultKeyConfig(),
	})

	if result.Outcome.Status != OutcomeSinkError {
		t.Fatalf("outcome = %s, want sink_error", result.Outcome.Status)
	}
	if result.Err == nil {
		t.Error("Err = nil, want flush error")
	}
}

func TestRunStream_CanceledIsStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	result := RunStream(ctx, StreamConfig{
		Mode:   ModeNetwork,
		Input:  bytes.NewReader(networkStream(logMsg("ECU1", 1, "a"))),
		Policy: policy.NewStrict(policy.NewStubSink()),
		Keys:   convert.DefaultKeyConfig(),
	})

	if result.Outcome.Status != OutcomeStopped {
		t.Fatalf("outcome = %s, want stopped", result.Outcome.Status)
	}
	if result.Outcome.ExitCode() != ExitCodeSuccess {
		t.Errorf("exit code = %d, want 0", result.Outcome.ExitCode())
	}
}
