// Package config loads the stepd YAML configuration, layers .env files and
// STEPD_* environment overrides on top, then normalizes, defaults and
// validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
)

// CurrentVersion is the only accepted value of the top-level version key.
const CurrentVersion = "1"

// Config is the root configuration document.
type Config struct {
	Version  string         `yaml:"version"`
	Device   string         `yaml:"device" env:"STEPD_DEVICE"`
	Logging  LoggingConfig  `yaml:"logging" envPrefix:"STEPD_LOG_"`
	Source   SourceConfig   `yaml:"source" envPrefix:"STEPD_SOURCE_"`
	Storage  StorageConfig  `yaml:"storage" envPrefix:"STEPD_STORAGE_"`
	NATS     NATSConfig     `yaml:"nats" envPrefix:"STEPD_NATS_"`
	Notify   NotifyConfig   `yaml:"notify" envPrefix:"STEPD_NOTIFY_"`
	HTTP     HTTPConfig     `yaml:"http" envPrefix:"STEPD_HTTP_"`
	Journal  JournalConfig  `yaml:"journal" envPrefix:"STEPD_JOURNAL_"`
	Retry    RetryConfig    `yaml:"retry" envPrefix:"STEPD_RETRY_"`
	Schedule ScheduleConfig `yaml:"schedule" envPrefix:"STEPD_SCHEDULE_"`
	Tracing  TracingConfig  `yaml:"tracing" envPrefix:"STEPD_TRACING_"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level" env:"LEVEL"`
	Format LogFormat `yaml:"format" env:"FORMAT"`
}

// SourceConfig selects where raw counter samples come from.
type SourceConfig struct {
	Type   SourceType         `yaml:"type" env:"TYPE"`
	IIO    IIOSourceConfig    `yaml:"iio" envPrefix:"IIO_"`
	NATS   NATSSourceConfig   `yaml:"nats" envPrefix:"NATS_"`
	Replay ReplaySourceConfig `yaml:"replay" envPrefix:"REPLAY_"`
}

// IIOSourceConfig points at a Linux industrial-I/O step counter.
type IIOSourceConfig struct {
	CounterPath  string        `yaml:"counter_path" env:"COUNTER_PATH"`
	EnablePath   string        `yaml:"enable_path" env:"ENABLE_PATH"`
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
}

// NATSSourceConfig names the subjects a device gateway publishes on.
type NATSSourceConfig struct {
	CounterSubject  string `yaml:"counter_subject" env:"COUNTER_SUBJECT"`
	DetectorSubject string `yaml:"detector_subject" env:"DETECTOR_SUBJECT"`
}

// ReplaySourceConfig feeds recorded samples (JSON lines) for demos and
// bench runs on machines without a step counter.
type ReplaySourceConfig struct {
	File     string        `yaml:"file" env:"FILE"`
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
}

// StorageConfig selects the durable record backend.
type StorageConfig struct {
	Backend    StorageBackend `yaml:"backend" env:"BACKEND"`
	DataDir    string         `yaml:"data_dir" env:"DATA_DIR"`
	Path       string         `yaml:"path" env:"PATH"`
	NATSBucket string         `yaml:"nats_bucket" env:"NATS_BUCKET"`
	NATSKey    string         `yaml:"nats_key" env:"NATS_KEY"`
}

// NATSConfig is the shared broker connection.
type NATSConfig struct {
	URL  string `yaml:"url" env:"URL"`
	Name string `yaml:"name" env:"NAME"`
}

// NotifyConfig controls the presentation surface.
type NotifyConfig struct {
	Sinks      []NotifySink `yaml:"sinks" env:"SINKS" envSeparator:","`
	Language   string       `yaml:"language" env:"LANGUAGE"`
	StatusFile string       `yaml:"status_file" env:"STATUS_FILE"`
	Subject    string       `yaml:"subject" env:"SUBJECT"`
}

// HTTPConfig is the command and metrics listener.
type HTTPConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

// JournalConfig controls the step history store.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Path    string `yaml:"path" env:"PATH"`
}

// RetryConfig governs how the daemon retries starting when the counter
// source is not yet available.
type RetryConfig struct {
	Backoff      RetryBackoff  `yaml:"backoff" env:"BACKOFF"`
	InitialDelay time.Duration `yaml:"initial_delay" env:"INITIAL_DELAY"`
	MaxDelay     time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
	MaxRetries   int           `yaml:"max_retries" env:"MAX_RETRIES"`
}

// ScheduleConfig drives the daemon's periodic jobs.
type ScheduleConfig struct {
	DayBoundaryCron    string        `yaml:"day_boundary_cron" env:"DAY_BOUNDARY_CRON"`
	CheckpointInterval time.Duration `yaml:"checkpoint_interval" env:"CHECKPOINT_INTERVAL"`
}

// TracingConfig enables OTLP export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRatio float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO"`
}

// Load reads configPath and returns a validated configuration.
func Load(configPath string) (*Config, error) {
	loadEnvFiles(filepath.Dir(configPath))

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ferrors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read configuration").
			WithContext("path", configPath).
			Fatal().
			Build()
	}
	return Parse(data)
}

// Parse builds a configuration from raw YAML. ${VAR} references are
// expanded before decoding and STEPD_* variables override decoded values.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "decode configuration").Fatal().Build()
	}
	if cfg.Version != CurrentVersion {
		return nil, ferrors.ConfigError(fmt.Sprintf("unsupported configuration version %q (expected %q)", cfg.Version, CurrentVersion)).Build()
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "apply environment overrides").Fatal().Build()
	}
	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a fully defaulted configuration without reading a file.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	applyDefaults(cfg)
	return cfg
}

// Init writes an annotated example configuration to configPath.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "create configuration directory").Build()
		}
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "write configuration").
			WithContext("path", configPath).
			Build()
	}
	return nil
}

const exampleConfig = `version: "1"
device: pinephone

logging:
  level: info      # debug | info | warn | error
  format: text     # text | json

source:
  type: iio        # iio | nats | replay
  iio:
    counter_path: /sys/bus/iio/devices/iio:device1/in_steps_input
    enable_path: /sys/bus/iio/devices/iio:device1/in_steps_en
    poll_interval: 5s
  nats:
    counter_subject: stepd.pinephone.counter
    detector_subject: stepd.pinephone.detector
  replay:
    file: ./samples.jsonl   # {"raw":1234,"ts":"2026-10-19T08:00:00Z"} per line
    interval: 1s

storage:
  backend: sqlite  # file | sqlite | nats | memory
  data_dir: ${HOME}/.local/share/stepd
  nats_bucket: stepd
  nats_key: record

nats:
  url: nats://127.0.0.1:4222

notify:
  sinks: [log, file]   # log | file | nats
  language: en
  subject: stepd.pinephone.snapshot

http:
  addr: 127.0.0.1:8765

journal:
  enabled: true

retry:
  backoff: exponential  # fixed | linear | exponential
  initial_delay: 2s
  max_delay: 1m
  max_retries: 10

schedule:
  day_boundary_cron: "0 0 * * *"
  checkpoint_interval: 15m

tracing:
  endpoint: ""     # e.g. localhost:4318 to export spans over OTLP/HTTP
`
