package config

import (
	"fmt"
	"time"

	"github.com/auxoncorp/modality-dlt-plugin/convert"
	"github.com/auxoncorp/modality-dlt-plugin/dlt"
)

// Config represents a modality-dlt.yaml configuration file.
// All values are optional and act as defaults for collect and import
// flags. Environment variables override file values; CLI flags override
// both.
type Config struct {
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	StreamID string         `yaml:"stream_id"`
	LogLevel string         `yaml:"log_level"`
	Timeline TimelineConfig `yaml:"timeline"`
	Filter   FilterConfig   `yaml:"filter"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Policy   PolicyConfig   `yaml:"policy"`
	Adapter  AdapterConfig  `yaml:"adapter"`
}

// TimelineConfig selects the timeline key components. Unset fields keep
// the default (ECU id and session id on).
type TimelineConfig struct {
	FromEcuID         *bool `yaml:"from_ecu_id"`
	FromSessionID     *bool `yaml:"from_session_id"`
	FromApplicationID *bool `yaml:"from_application_id"`
	FromContextID     *bool `yaml:"from_context_id"`
}

// KeyConfig resolves the timeline settings over the defaults.
func (t TimelineConfig) KeyConfig() convert.KeyConfig {
	keys := convert.DefaultKeyConfig()
	if t.FromEcuID != nil {
		keys.EcuID = *t.FromEcuID
	}
	if t.FromSessionID != nil {
		keys.SessionID = *t.FromSessionID
	}
	if t.FromApplicationID != nil {
		keys.ApplicationID = *t.FromApplicationID
	}
	if t.FromContextID != nil {
		keys.ContextID = *t.FromContextID
	}
	return keys
}

// FilterConfig holds decoder filter rules.
type FilterConfig struct {
	MinLogLevel string   `yaml:"min_log_level"`
	AppIDs      []string `yaml:"app_ids"`
	ContextIDs  []string `yaml:"context_ids"`
	EcuIDs      []string `yaml:"ecu_ids"`
}

// Build converts the rules into a decoder filter. Returns nil when no rule
// is configured.
func (f FilterConfig) Build() (*dlt.Filter, error) {
	filter := &dlt.Filter{
		AppIDs:     f.AppIDs,
		ContextIDs: f.ContextIDs,
		EcuIDs:     f.EcuIDs,
	}
	if f.MinLogLevel != "" {
		level, err := dlt.ParseLogLevel(f.MinLogLevel)
		if err != nil {
			return nil, fmt.Errorf("filter.min_log_level: %w", err)
		}
		filter.MinLogLevel = level
	}
	if filter.IsZero() {
		return nil, nil
	}
	return filter, nil
}

// IngestConfig selects and configures the sink backend.
type IngestConfig struct {
	// Sink is wire, lode, nats or stub.
	Sink string     `yaml:"sink"`
	Wire WireConfig `yaml:"wire"`
	Lode LodeConfig `yaml:"lode"`
	NATS NATSConfig `yaml:"nats"`
}

// WireConfig configures the ingest protocol sink.
type WireConfig struct {
	URL                string   `yaml:"url"`
	Token              string   `yaml:"token"`
	Codec              string   `yaml:"codec"`
	DialTimeout        Duration `yaml:"dial_timeout"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
}

// LodeConfig configures the Lode dataset sink.
type LodeConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// NATSConfig configures the JetStream sink.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Codec         string `yaml:"codec"`
}

// PolicyConfig holds policy defaults from the config file.
type PolicyConfig struct {
	Name          string   `yaml:"name"`
	MaxOps        int      `yaml:"max_ops"`
	MaxBytes      int64    `yaml:"max_bytes"`
	FlushInterval Duration `yaml:"flush_interval"`
}

// AdapterConfig holds completion notification settings.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
