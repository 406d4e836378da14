package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/auxoncorp/modality-dlt-plugin/adapter"
	"github.com/auxoncorp/modality-dlt-plugin/adapter/redis"
	"github.com/auxoncorp/modality-dlt-plugin/adapter/webhook"
	"github.com/auxoncorp/modality-dlt-plugin/cli/config"
	"github.com/auxoncorp/modality-dlt-plugin/ingest/lode"
	"github.com/auxoncorp/modality-dlt-plugin/iox"
	"github.com/auxoncorp/modality-dlt-plugin/log"
	"github.com/auxoncorp/modality-dlt-plugin/metrics"
	"github.com/auxoncorp/modality-dlt-plugin/policy"
	"github.com/auxoncorp/modality-dlt-plugin/runtime"
	"github.com/auxoncorp/modality-dlt-plugin/types"
)

func stubOptions() *options {
	return &options{
		mode:     runtime.ModeFile,
		source:   "trace.dlt",
		streamID: "stream-1",
		sink:     sinkStub,
		policy:   config.PolicyConfig{Name: policyStrict},
	}
}

func TestBuildPolicy(t *testing.T) {
	sink := policy.NewStubSink()

	strict, err := buildPolicy(config.PolicyConfig{Name: policyStrict}, sink, nil)
	if err != nil {
		t.Fatalf("strict: %v", err)
	}
	if _, ok := strict.(*policy.Strict); !ok {
		t.Errorf("strict policy type = %T", strict)
	}

	buffered, err := buildPolicy(config.PolicyConfig{Name: policyBuffered, MaxOps: 10}, sink, nil)
	if err != nil {
		t.Fatalf("buffered: %v", err)
	}
	defer iox.DiscardClose(buffered)
	if _, ok := buffered.(*policy.Buffered); !ok {
		t.Errorf("buffered policy type = %T", buffered)
	}

	_, err = buildPolicy(config.PolicyConfig{Name: policyBuffered}, sink, nil)
	if !errors.Is(err, policy.ErrInvalidConfig) {
		t.Errorf("buffered without limits error = %v, want ErrInvalidConfig", err)
	}
}

func TestBuildSink_Stub(t *testing.T) {
	sink, err := buildSink(t.Context(), stubOptions(), log.Nop(), time.Now())
	if err != nil {
		t.Fatalf("buildSink failed: %v", err)
	}
	if _, ok := sink.(*policy.StubSink); !ok {
		t.Errorf("sink type = %T, want *policy.StubSink", sink)
	}
}

func TestBuildSink_LodeFS(t *testing.T) {
	opts := stubOptions()
	opts.sink = sinkLode
	opts.lode = config.LodeConfig{Backend: "fs", Path: t.TempDir()}

	sink, err := buildSink(t.Context(), opts, log.Nop(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("buildSink failed: %v", err)
	}
	defer iox.DiscardClose(sink)
	if _, ok := sink.(*lode.Sink); !ok {
		t.Errorf("sink type = %T, want *lode.Sink", sink)
	}
}

func TestBuildSink_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*options)
	}{
		{"unknown wire codec", func(o *options) { o.sink = sinkWire; o.wire.Codec = "protobuf" }},
		{"unknown nats codec", func(o *options) { o.sink = sinkNATS; o.nats.Codec = "protobuf" }},
		{"unknown lode backend", func(o *options) { o.sink = sinkLode; o.lode = config.LodeConfig{Backend: "gcs", Path: "x"} }},
		{"unreachable ingest server", func(o *options) {
			o.sink = sinkWire
			o.wire = config.WireConfig{
				URL:         "modality-ingest://127.0.0.1:1",
				Codec:       "msgpack",
				DialTimeout: config.Duration{Duration: time.Second},
			}
		}},
		{"unknown sink", func(o *options) { o.sink = "kafka" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := stubOptions()
			tt.modify(opts)
			if _, err := buildSink(t.Context(), opts, log.Nop(), time.Now()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestOpenPipeline_InstrumentsSink(t *testing.T) {
	collector := metrics.NewCollector("file", policyStrict, sinkStub, "stream-1")
	pol, err := openPipeline(t.Context(), stubOptions(), log.Nop(), collector)
	if err != nil {
		t.Fatalf("openPipeline failed: %v", err)
	}

	if err := pol.SwitchTimeline(t.Context(), types.NewTimelineID()); err != nil {
		t.Fatalf("SwitchTimeline failed: %v", err)
	}
	if err := pol.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := collector.Snapshot().SinkWriteSuccess; got != 1 {
		t.Errorf("SinkWriteSuccess = %d, want 1", got)
	}
}

func TestBuildAdapter(t *testing.T) {
	none, err := buildAdapter(config.AdapterConfig{})
	if err != nil || none != nil {
		t.Errorf("no adapter = (%v, %v), want (nil, nil)", none, err)
	}

	wh, err := buildAdapter(config.AdapterConfig{Type: adapterWebhook, URL: "http://localhost/hook"})
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if _, ok := wh.(*webhook.Adapter); !ok {
		t.Errorf("webhook adapter type = %T", wh)
	}

	rd, err := buildAdapter(config.AdapterConfig{Type: adapterRedis, URL: "redis://localhost:6379"})
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	defer iox.DiscardClose(rd)
	if _, ok := rd.(*redis.Adapter); !ok {
		t.Errorf("redis adapter type = %T", rd)
	}

	negative := -1
	if _, err := buildAdapter(config.AdapterConfig{Type: adapterWebhook, URL: "http://x", Retries: &negative}); err == nil {
		t.Error("expected error for negative retries")
	}
}

func finishedResult() *runtime.StreamResult {
	return &runtime.StreamResult{
		Mode:      runtime.ModeFile,
		Source:    "trace.dlt",
		Outcome:   &runtime.Outcome{Status: runtime.OutcomeSuccess, Message: "stream ingested successfully"},
		Duration:  1500 * time.Millisecond,
		Messages:  3,
		Events:    3,
		Timelines: 2,
		BytesRead: 120,
	}
}

func TestPublishCompletion_Webhook(t *testing.T) {
	var (
		mu   sync.Mutex
		got  adapter.StreamCompletedEvent
		hits int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		hits++
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	opts := stubOptions()
	opts.adapter = config.AdapterConfig{Type: adapterWebhook, URL: srv.URL}
	publishCompletion(t.Context(), opts, finishedResult(), log.Nop())

	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Fatalf("webhook hits = %d, want 1", hits)
	}
	if got.EventType != adapter.EventTypeStreamCompleted {
		t.Errorf("event type = %q", got.EventType)
	}
	if got.StreamID != "stream-1" || got.Outcome != "success" || got.Timelines != 2 {
		t.Errorf("event = %+v", got)
	}
	if got.DurationMs != 1500 {
		t.Errorf("duration ms = %d, want 1500", got.DurationMs)
	}
	if got.Timestamp == "" {
		t.Error("timestamp should be stamped")
	}
}

func TestPublishCompletion_FailureIsLogged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	var logs bytes.Buffer
	logger := log.New(log.StreamMeta{Mode: "file"}, &logs, zapcore.DebugLevel)

	opts := stubOptions()
	opts.adapter = config.AdapterConfig{Type: adapterWebhook, URL: srv.URL}
	publishCompletion(t.Context(), opts, finishedResult(), logger)

	if !strings.Contains(logs.String(), "completion notification failed") {
		t.Errorf("expected failure log, got:\n%s", logs.String())
	}
}

func TestPublishCompletion_CanceledContextStillSends(t *testing.T) {
	hits := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	opts := stubOptions()
	opts.adapter = config.AdapterConfig{Type: adapterWebhook, URL: srv.URL}
	publishCompletion(ctx, opts, finishedResult(), log.Nop())

	select {
	case <-hits:
	default:
		t.Error("notification not sent after stream context was canceled")
	}
}

func TestExitFor(t *testing.T) {
	if err := exitFor(finishedResult()); err != nil {
		t.Errorf("success exit = %v, want nil", err)
	}

	stopped := finishedResult()
	stopped.Outcome = &runtime.Outcome{Status: runtime.OutcomeStopped}
	if err := exitFor(stopped); err != nil {
		t.Errorf("stopped exit = %v, want nil", err)
	}

	failed := finishedResult()
	failed.Outcome = &runtime.Outcome{Status: runtime.OutcomeFramingError, Message: "truncated message"}
	var exitErr cli.ExitCoder
	if !errors.As(exitFor(failed), &exitErr) {
		t.Fatal("framing error should be an ExitCoder")
	}
	if exitErr.ExitCode() != runtime.ExitCodeFraming {
		t.Errorf("exit code = %d, want %d", exitErr.ExitCode(), runtime.ExitCodeFraming)
	}
}

func TestSinkSetupError(t *testing.T) {
	var exitErr cli.ExitCoder
	if !errors.As(sinkSetupError(policy.ErrInvalidConfig), &exitErr) || exitErr.ExitCode() != runtime.ExitCodeUsage {
		t.Errorf("invalid policy config should exit %d", runtime.ExitCodeUsage)
	}
	if !errors.As(sinkSetupError(errors.New("connection refused")), &exitErr) || exitErr.ExitCode() != runtime.ExitCodeSink {
		t.Errorf("connect failure should exit %d", runtime.ExitCodeSink)
	}
}
