package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every modality-dlt environment variable.
const EnvPrefix = "MODALITY_DLT_"

// Environment variables read by ApplyEnv.
const (
	EnvHost                      = EnvPrefix + "HOST"
	EnvPort                      = EnvPrefix + "PORT"
	EnvTimelineFromEcuID         = EnvPrefix + "TIMELINE_FROM_ECU_ID"
	EnvTimelineFromSessionID     = EnvPrefix + "TIMELINE_FROM_SESSION_ID"
	EnvTimelineFromApplicationID = EnvPrefix + "TIMELINE_FROM_APPLICATION_ID"
	EnvTimelineFromContextID     = EnvPrefix + "TIMELINE_FROM_CONTEXT_ID"
	EnvAuthToken                 = "MODALITY_AUTH_TOKEN"
	EnvIngestURL                 = "MODALITY_INGEST_URL"
)

// Load reads a YAML config file, expands environment variables, and
// unmarshals into a Config struct.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set are not overridden. A missing file is an error
// only when required is true.
func LoadDotEnv(path string, required bool) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("cannot load env file %q: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg. lookup is usually
// os.LookupEnv. Empty values are ignored.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		return v, ok && v != ""
	}

	if v, ok := get(EnvHost); ok {
		cfg.Host = v
	}
	if v, ok := get(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("%s: invalid port %q", EnvPort, v)
		}
		cfg.Port = port
	}

	bools := []struct {
		key string
		dst **bool
	}{
		{EnvTimelineFromEcuID, &cfg.Timeline.FromEcuID},
		{EnvTimelineFromSessionID, &cfg.Timeline.FromSessionID},
		{EnvTimelineFromApplicationID, &cfg.Timeline.FromApplicationID},
		{EnvTimelineFromContextID, &cfg.Timeline.FromContextID},
	}
	for _, b := range bools {
		v, ok := get(b.key)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: invalid boolean %q", b.key, v)
		}
		*b.dst = &parsed
	}

	if v, ok := get(EnvAuthToken); ok {
		cfg.Ingest.Wire.Token = v
	}
	if v, ok := get(EnvIngestURL); ok {
		cfg.Ingest.Wire.URL = v
	}
	return nil
}
