package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/auxoncorp/modality-dlt-plugin/convert"
	"github.com/auxoncorp/modality-dlt-plugin/dlt"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "modality-dlt.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func assertEqual[T comparable](t *testing.T, field string, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %v, want %v", field, got, want)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	yaml := `host: 10.0.0.5
port: 3491
stream_id: bench-01
log_level: debug

timeline:
  from_ecu_id: true
  from_session_id: false
  from_application_id: true

filter:
  min_log_level: warn
  app_ids: [APP1, APP2]
  ecu_ids: [ECU1]

ingest:
  sink: wire
  wire:
    url: modality-ingest-tls://ingest.example.com:14183
    token: abc123
    codec: cbor
    dial_timeout: 5s
  lode:
    backend: s3
    path: my-bucket/dlt
    region: eu-central-1
  nats:
    url: nats://bus:4222
    stream: DLT

policy:
  name: buffered
  max_ops: 500
  max_bytes: 1048576
  flush_interval: 2s

adapter:
  type: webhook
  url: https://hooks.example.com/dlt
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 2
`
	cfg, err := Load(writeTemp(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "host", cfg.Host, "10.0.0.5")
	assertEqual(t, "port", cfg.Port, 3491)
	assertEqual(t, "stream_id", cfg.StreamID, "bench-01")
	assertEqual(t, "log_level", cfg.LogLevel, "debug")

	assertEqual(t, "timeline", cfg.Timeline.KeyConfig(), convert.KeyConfig{EcuID: true, ApplicationID: true})

	filter, err := cfg.Filter.Build()
	if err != nil {
		t.Fatalf("Filter.Build failed: %v", err)
	}
	assertEqual(t, "filter.min_log_level", filter.MinLogLevel, dlt.LogWarn)
	assertEqual(t, "filter.app_ids", strings.Join(filter.AppIDs, ","), "APP1,APP2")

	assertEqual(t, "ingest.sink", cfg.Ingest.Sink, "wire")
	assertEqual(t, "ingest.wire.codec", cfg.Ingest.Wire.Codec, "cbor")
	assertEqual(t, "ingest.wire.dial_timeout", cfg.Ingest.Wire.DialTimeout.Duration, 5*time.Second)
	assertEqual(t, "ingest.lode.backend", cfg.Ingest.Lode.Backend, "s3")
	assertEqual(t, "ingest.lode.region", cfg.Ingest.Lode.Region, "eu-central-1")
	assertEqual(t, "ingest.nats.stream", cfg.Ingest.NATS.Stream, "DLT")

	assertEqual(t, "policy.name", cfg.Policy.Name, "buffered")
	assertEqual(t, "policy.max_ops", cfg.Policy.MaxOps, 500)
	assertEqual(t, "policy.max_bytes", cfg.Policy.MaxBytes, int64(1048576))
	assertEqual(t, "policy.flush_interval", cfg.Policy.FlushInterval.Duration, 2*time.Second)

	assertEqual(t, "adapter.type", cfg.Adapter.Type, "webhook")
	assertEqual(t, "adapter.headers.Authorization", cfg.Adapter.Headers["Authorization"], "Bearer token123")
	assertEqual(t, "adapter.timeout", cfg.Adapter.Timeout.Duration, 10*time.Second)
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 2 {
		t.Errorf("adapter.retries = %v, want 2", cfg.Adapter.Retries)
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	cfg, err := Load(writeTemp(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "timeline", cfg.Timeline.KeyConfig(), convert.DefaultKeyConfig())

	filter, err := cfg.Filter.Build()
	if err != nil {
		t.Fatalf("Filter.Build failed: %v", err)
	}
	if filter != nil {
		t.Errorf("filter = %+v, want nil", filter)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing file error = %v", err)
	}
	if _, err := Load(writeTemp(t, "host: [unclosed")); err == nil || !strings.Contains(err.Error(), "invalid YAML") {
		t.Errorf("invalid YAML error = %v", err)
	}
	if _, err := Load(writeTemp(t, "policy:\n  flush_interval: soon\n")); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("MDLT_TEST_TOKEN", "from-env")
	cfg, err := Load(writeTemp(t, "ingest:\n  wire:\n    token: ${MDLT_TEST_TOKEN}\n    url: ${MDLT_TEST_UNSET_URL:-modality-ingest://127.0.0.1}\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "token", cfg.Ingest.Wire.Token, "from-env")
	assertEqual(t, "url", cfg.Ingest.Wire.URL, "modality-ingest://127.0.0.1")
}

func TestFilterConfig_InvalidLevel(t *testing.T) {
	_, err := FilterConfig{MinLogLevel: "loud"}.Build()
	if err == nil || !strings.Contains(err.Error(), "min_log_level") {
		t.Errorf("error = %v, want min_log_level error", err)
	}
}

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestApplyEnv_OverridesFile(t *testing.T) {
	cfg := &Config{Host: "file-host", Port: 1}
	env := map[string]string{
		EnvHost:                      "env-host",
		EnvPort:                      "3491",
		EnvTimelineFromSessionID:     "false",
		EnvTimelineFromApplicationID: "true",
		EnvAuthToken:                 "tok",
		EnvIngestURL:                 "modality-ingest://backend:14182",
	}

	if err := ApplyEnv(cfg, mapLookup(env)); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	assertEqual(t, "host", cfg.Host, "env-host")
	assertEqual(t, "port", cfg.Port, 3491)
	assertEqual(t, "keys", cfg.Timeline.KeyConfig(), convert.KeyConfig{EcuID: true, ApplicationID: true})
	assertEqual(t, "token", cfg.Ingest.Wire.Token, "tok")
	assertEqual(t, "url", cfg.Ingest.Wire.URL, "modality-ingest://backend:14182")
}

func TestApplyEnv_EmptyValuesIgnored(t *testing.T) {
	cfg := &Config{Host: "file-host"}
	if err := ApplyEnv(cfg, mapLookup(map[string]string{EnvHost: ""})); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	assertEqual(t, "host", cfg.Host, "file-host")
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		EnvPort:                  "not-a-port",
		EnvTimelineFromEcuID:     "maybe",
		EnvTimelineFromContextID: "2",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			err := ApplyEnv(&Config{}, mapLookup(map[string]string{key: value}))
			if err == nil || !strings.Contains(err.Error(), key) {
				t.Errorf("error = %v, want mention of %s", err, key)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("MDLT_DOTENV_HOST=gateway\n# comment\nMDLT_DOTENV_PRESET=from-file\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	t.Setenv("MDLT_DOTENV_PRESET", "from-process")
	// Registers cleanup for the variable the file introduces.
	t.Setenv("MDLT_DOTENV_HOST", "")
	if err := os.Unsetenv("MDLT_DOTENV_HOST"); err != nil {
		t.Fatalf("Unsetenv failed: %v", err)
	}

	if err := LoadDotEnv(path, true); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	assertEqual(t, "MDLT_DOTENV_HOST", os.Getenv("MDLT_DOTENV_HOST"), "gateway")
	assertEqual(t, "MDLT_DOTENV_PRESET", os.Getenv("MDLT_DOTENV_PRESET"), "from-process")
}

func TestLoadDotEnv_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := LoadDotEnv(path, false); err != nil {
		t.Errorf("optional missing file: %v", err)
	}
	if err := LoadDotEnv(path, true); err == nil {
		t.Error("expected error for required missing file")
	}
}
