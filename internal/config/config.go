// Package config handles loading and validating PlantPulse configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} placeholders in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ErrConfigFileNotFound is returned by Load when the specified config file does not exist.
var ErrConfigFileNotFound = errors.New("config file not found")

// Config is the top-level PlantPulse configuration.
type Config struct {
	Listen      string         `yaml:"listen"`
	DBPath      string         `yaml:"db_path"`
	LogLevel    string         `yaml:"log_level"`
	LogFormat   string         `yaml:"log_format"`
	ProfilePath string         `yaml:"profile_path"`
	Ingest      IngestConfig   `yaml:"ingest"`
	Retention   RetentionCfg   `yaml:"retention"`
	Oracles     OraclesConfig  `yaml:"oracles"`
	Schedule    ScheduleConfig `yaml:"schedule"`
}

// IngestConfig sizes the ingestion buffer and its drain loop.
type IngestConfig struct {
	BufferCapacity int      `yaml:"buffer_capacity"`
	SubmitTimeout  Duration `yaml:"submit_timeout"`
	DrainInterval  Duration `yaml:"drain_interval"`
}

// RetentionCfg bounds how long rows are kept. Zero disables pruning for
// that table.
type RetentionCfg struct {
	Readings  Duration `yaml:"readings"`
	Anomalies Duration `yaml:"anomalies"`
}

// OraclesConfig holds the endpoints of the external model services. An
// empty URL disables that oracle; its neutral signal is used instead.
type OraclesConfig struct {
	AnomalyURL      string `yaml:"anomaly_url"`
	FailureURL      string `yaml:"failure_url"`
	OptimizationURL string `yaml:"optimization_url"`
}

// ScheduleConfig tunes the maintenance schedule endpoint.
type ScheduleConfig struct {
	Window Duration `yaml:"window"`
}

// Duration wraps time.Duration with YAML string parsing support.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Load reads configuration from a YAML file. If no path is given, the
// defaults plus environment overrides are used. If a path is given and the
// file does not exist, ErrConfigFileNotFound is returned.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(expandEnvVars(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("log_format must be one of: text, json")
	}
	if c.Ingest.BufferCapacity < 1 {
		return fmt.Errorf("ingest.buffer_capacity must be >= 1")
	}
	if c.Ingest.SubmitTimeout.Duration < 0 {
		return fmt.Errorf("ingest.submit_timeout must be >= 0")
	}
	if c.Ingest.DrainInterval.Duration <= 0 {
		return fmt.Errorf("ingest.drain_interval must be > 0")
	}
	if c.Retention.Readings.Duration < 0 {
		return fmt.Errorf("retention.readings must be >= 0")
	}
	if c.Retention.Anomalies.Duration < 0 {
		return fmt.Errorf("retention.anomalies must be >= 0")
	}
	if c.Schedule.Window.Duration <= 0 {
		return fmt.Errorf("schedule.window must be > 0")
	}
	for _, o := range []struct {
		name string
		url  string
	}{
		{"oracles.anomaly_url", c.Oracles.AnomalyURL},
		{"oracles.failure_url", c.Oracles.FailureURL},
		{"oracles.optimization_url", c.Oracles.OptimizationURL},
	} {
		if o.url == "" {
			continue
		}
		u, err := url.Parse(o.url)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s: invalid URL %q", o.name, o.url)
		}
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Listen:    ":8600",
		DBPath:    "/data/plantpulse.db",
		LogLevel:  "info",
		LogFormat: "text",
		Ingest: IngestConfig{
			BufferCapacity: 100,
			SubmitTimeout:  Duration{2 * time.Second},
			DrainInterval:  Duration{1 * time.Second},
		},
		Retention: RetentionCfg{
			Readings:  Duration{90 * 24 * time.Hour},
			Anomalies: Duration{90 * 24 * time.Hour},
		},
		Schedule: ScheduleConfig{
			Window: Duration{24 * time.Hour},
		},
	}
}

// expandEnvVars replaces ${VAR_NAME} placeholders in raw YAML with the
// corresponding environment variable values. Unset variables are replaced
// with an empty string, which will then fail validation with a clear error.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		key := string(match[2 : len(match)-1]) // strip ${ and }
		return []byte(os.Getenv(key))
	})
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PLANTPULSE_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("PLANTPULSE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("PLANTPULSE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PLANTPULSE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("PLANTPULSE_PROFILE_PATH"); v != "" {
		cfg.ProfilePath = v
	}
	if v := os.Getenv("PLANTPULSE_BUFFER_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.BufferCapacity = n
		}
	}
	if v := os.Getenv("PLANTPULSE_ANOMALY_URL"); v != "" {
		cfg.Oracles.AnomalyURL = v
	}
	if v := os.Getenv("PLANTPULSE_FAILURE_URL"); v != "" {
		cfg.Oracles.FailureURL = v
	}
	if v := os.Getenv("PLANTPULSE_OPTIMIZATION_URL"); v != "" {
		cfg.Oracles.OptimizationURL = v
	}
}
