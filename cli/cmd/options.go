package cmd

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/auxoncorp/modality-dlt-plugin/cli/config"
	"github.com/auxoncorp/modality-dlt-plugin/convert"
	"github.com/auxoncorp/modality-dlt-plugin/dlt"
	"github.com/auxoncorp/modality-dlt-plugin/log"
	"github.com/auxoncorp/modality-dlt-plugin/runtime"
	"github.com/auxoncorp/modality-dlt-plugin/source"
)

// Sink backends.
const (
	sinkWire = "wire"
	sinkLode = "lode"
	sinkNATS = "nats"
	sinkStub = "stub"
)

// Ingestion policies.
const (
	policyStrict   = "strict"
	policyBuffered = "buffered"
)

// Completion adapters.
const (
	adapterWebhook = "webhook"
	adapterRedis   = "redis"
)

// defaultEnvFile is loaded when present and --env-file is not given.
const defaultEnvFile = ".env"

// options is the fully resolved configuration of one collect or import run.
type options struct {
	mode     runtime.Mode
	source   string
	host     string
	port     int
	streamID string
	logLevel zapcore.Level
	keys     convert.KeyConfig
	filter   *dlt.Filter
	sink     string
	wire     config.WireConfig
	lode     config.LodeConfig
	nats     config.NATSConfig
	policy   config.PolicyConfig
	adapter  config.AdapterConfig
}

// loadConfig loads the env file, the config file, and the environment,
// in that order. The result is never nil.
func loadConfig(c *cli.Context) (*config.Config, error) {
	envFile := c.String("env-file")
	path := envFile
	if path == "" {
		path = defaultEnvFile
	}
	if err := config.LoadDotEnv(path, envFile != ""); err != nil {
		return nil, err
	}

	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveKeys applies explicitly set timeline flags over the config file,
// which itself falls back to the default key.
func resolveKeys(c *cli.Context, cfg *config.Config) convert.KeyConfig {
	keys := cfg.Timeline.KeyConfig()
	for name, field := range map[string]*bool{
		"timeline-from-ecu-id":         &keys.EcuID,
		"timeline-from-session-id":     &keys.SessionID,
		"timeline-from-application-id": &keys.ApplicationID,
		"timeline-from-context-id":     &keys.ContextID,
	} {
		if c.IsSet(name) {
			*field = c.Bool(name)
		}
	}
	return keys
}

func resolveFilter(c *cli.Context, cfg *config.Config) (*dlt.Filter, error) {
	fc := config.FilterConfig{
		MinLogLevel: resolveString(c, "min-log-level", cfg.Filter.MinLogLevel),
		AppIDs:      resolveStrings(c, "app-id", cfg.Filter.AppIDs),
		ContextIDs:  resolveStrings(c, "context-id", cfg.Filter.ContextIDs),
		EcuIDs:      resolveStrings(c, "ecu-id", cfg.Filter.EcuIDs),
	}
	return fc.Build()
}

// resolveOptions merges flags, environment and config file for mode.
// src is the file path in file mode and ignored in network mode.
func resolveOptions(c *cli.Context, mode runtime.Mode, src string) (*options, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	opts := &options{
		mode:     mode,
		source:   src,
		streamID: resolveString(c, "stream-id", cfg.StreamID),
		keys:     resolveKeys(c, cfg),
		sink:     resolveString(c, "sink", cfg.Ingest.Sink),
	}
	if opts.streamID == "" {
		opts.streamID = uuid.NewString()
	}
	if mode == runtime.ModeNetwork {
		opts.host = resolveString(c, "host", cfg.Host)
		opts.port = resolveInt(c, "port", cfg.Port)
		if opts.port <= 0 || opts.port > 65535 {
			return nil, fmt.Errorf("invalid port %d", opts.port)
		}
		opts.source = source.Addr(opts.host, opts.port)
	}

	if opts.logLevel, err = log.ParseLevel(resolveString(c, "log-level", cfg.LogLevel)); err != nil {
		return nil, err
	}
	if opts.filter, err = resolveFilter(c, cfg); err != nil {
		return nil, err
	}

	opts.wire = config.WireConfig{
		URL:                resolveString(c, "ingest-url", cfg.Ingest.Wire.URL),
		Token:              resolveString(c, "auth-token", cfg.Ingest.Wire.Token),
		Codec:              resolveString(c, "codec", cfg.Ingest.Wire.Codec),
		DialTimeout:        config.Duration{Duration: resolveDuration(c, "dial-timeout", cfg.Ingest.Wire.DialTimeout.Duration)},
		InsecureSkipVerify: resolveFlagOr(c, "insecure-skip-verify", cfg.Ingest.Wire.InsecureSkipVerify),
	}
	opts.lode = config.LodeConfig{
		Dataset:     resolveString(c, "lode-dataset", cfg.Ingest.Lode.Dataset),
		Backend:     resolveString(c, "lode-backend", cfg.Ingest.Lode.Backend),
		Path:        resolveString(c, "lode-path", cfg.Ingest.Lode.Path),
		Region:      resolveString(c, "lode-s3-region", cfg.Ingest.Lode.Region),
		Endpoint:    resolveString(c, "lode-s3-endpoint", cfg.Ingest.Lode.Endpoint),
		S3PathStyle: resolveFlagOr(c, "lode-s3-path-style", cfg.Ingest.Lode.S3PathStyle),
	}
	opts.nats = config.NATSConfig{
		URL:           resolveString(c, "nats-url", cfg.Ingest.NATS.URL),
		Stream:        resolveString(c, "nats-stream", cfg.Ingest.NATS.Stream),
		SubjectPrefix: resolveString(c, "nats-subject-prefix", cfg.Ingest.NATS.SubjectPrefix),
		Codec:         resolveString(c, "codec", cfg.Ingest.NATS.Codec),
	}
	opts.policy = config.PolicyConfig{
		Name:          resolveString(c, "policy", cfg.Policy.Name),
		MaxOps:        resolveInt(c, "max-ops", cfg.Policy.MaxOps),
		MaxBytes:      resolveInt64(c, "max-bytes", cfg.Policy.MaxBytes),
		FlushInterval: config.Duration{Duration: resolveDuration(c, "flush-interval", cfg.Policy.FlushInterval.Duration)},
	}
	opts.adapter = cfg.Adapter
	opts.adapter.Type = resolveString(c, "adapter", cfg.Adapter.Type)
	opts.adapter.URL = resolveString(c, "adapter-url", cfg.Adapter.URL)
	opts.adapter.Channel = resolveString(c, "adapter-channel", cfg.Adapter.Channel)

	if err := opts.validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func (o *options) validate() error {
	if !slices.Contains([]string{sinkWire, sinkLode, sinkNATS, sinkStub}, o.sink) {
		return fmt.Errorf("invalid sink %q (must be %s, %s, %s or %s)", o.sink, sinkWire, sinkLode, sinkNATS, sinkStub)
	}
	if o.sink == sinkLode && o.lode.Path == "" {
		return errors.New("--lode-path is required with --sink lode")
	}
	if err := validatePolicy(o.policy); err != nil {
		return err
	}
	switch o.adapter.Type {
	case "":
	case adapterWebhook, adapterRedis:
		if o.adapter.URL == "" {
			return fmt.Errorf("--adapter-url is required with --adapter %s", o.adapter.Type)
		}
	default:
		return fmt.Errorf("invalid adapter %q (must be %s or %s)", o.adapter.Type, adapterWebhook, adapterRedis)
	}
	return nil
}

func validatePolicy(p config.PolicyConfig) error {
	switch p.Name {
	case policyStrict:
		if p.MaxOps != 0 || p.MaxBytes != 0 || p.FlushInterval.Duration != 0 {
			return errors.New("--max-ops, --max-bytes and --flush-interval require --policy buffered")
		}
	case policyBuffered:
		if p.MaxOps < 0 || p.MaxBytes < 0 || p.FlushInterval.Duration < 0 {
			return errors.New("buffer limits must not be negative")
		}
		if p.MaxOps == 0 && p.MaxBytes == 0 && p.FlushInterval.Duration == 0 {
			return errors.New("buffered policy requires --max-ops, --max-bytes or --flush-interval")
		}
	default:
		return fmt.Errorf("invalid policy %q (must be %s or %s)", p.Name, policyStrict, policyBuffered)
	}
	return nil
}

// newLogger builds the stream logger on stderr.
func newLogger(opts *options) *log.Logger {
	return log.New(log.StreamMeta{
		Mode:     string(opts.mode),
		Source:   opts.source,
		StreamID: opts.streamID,
	}, os.Stderr, opts.logLevel)
}
