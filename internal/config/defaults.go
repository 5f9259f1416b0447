package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	defaultCounterPath   = "/sys/bus/iio/devices/iio:device1/in_steps_input"
	defaultPollInterval  = 5 * time.Second
	defaultHTTPAddr      = "127.0.0.1:8765"
	defaultNATSURL       = "nats://127.0.0.1:4222"
	defaultBucket        = "stepd"
	defaultKey           = "record"
	defaultCron          = "0 0 * * *"
	defaultCheckpoint    = 15 * time.Minute
	defaultRetryInitial  = 2 * time.Second
	defaultRetryMax      = time.Minute
	defaultRetryAttempts = 10
)

func applyDefaults(cfg *Config) {
	if cfg.Device == "" {
		cfg.Device = "default"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}

	if cfg.Source.Type == "" {
		cfg.Source.Type = SourceIIO
	}
	if cfg.Source.IIO.CounterPath == "" {
		cfg.Source.IIO.CounterPath = defaultCounterPath
	}
	if cfg.Source.IIO.PollInterval <= 0 {
		cfg.Source.IIO.PollInterval = defaultPollInterval
	}
	if cfg.Source.Replay.Interval <= 0 {
		cfg.Source.Replay.Interval = time.Second
	}
	if cfg.Source.NATS.CounterSubject == "" {
		cfg.Source.NATS.CounterSubject = "stepd." + cfg.Device + ".counter"
	}
	if cfg.Source.NATS.DetectorSubject == "" {
		cfg.Source.NATS.DetectorSubject = "stepd." + cfg.Device + ".detector"
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageSQLite
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = defaultDataDir()
	}
	if cfg.Storage.Path == "" {
		switch cfg.Storage.Backend {
		case StorageFile:
			cfg.Storage.Path = filepath.Join(cfg.Storage.DataDir, "record.json")
		case StorageSQLite:
			cfg.Storage.Path = filepath.Join(cfg.Storage.DataDir, "record.db")
		}
	}
	if cfg.Storage.NATSBucket == "" {
		cfg.Storage.NATSBucket = defaultBucket
	}
	if cfg.Storage.NATSKey == "" {
		cfg.Storage.NATSKey = cfg.Device + "." + defaultKey
	}

	if cfg.NATS.URL == "" {
		cfg.NATS.URL = defaultNATSURL
	}
	if cfg.NATS.Name == "" {
		cfg.NATS.Name = "stepd-" + cfg.Device
	}

	if len(cfg.Notify.Sinks) == 0 {
		cfg.Notify.Sinks = []NotifySink{NotifyLog}
	}
	if cfg.Notify.Language == "" {
		cfg.Notify.Language = "en"
	}
	if cfg.Notify.StatusFile == "" {
		cfg.Notify.StatusFile = filepath.Join(cfg.Storage.DataDir, "status.txt")
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = "stepd." + cfg.Device + ".snapshot"
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = defaultHTTPAddr
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = filepath.Join(cfg.Storage.DataDir, "journal.db")
	}

	if cfg.Retry.Backoff == "" {
		cfg.Retry.Backoff = RetryBackoffExponential
	}
	if cfg.Retry.InitialDelay <= 0 {
		cfg.Retry.InitialDelay = defaultRetryInitial
	}
	if cfg.Retry.MaxDelay <= 0 {
		cfg.Retry.MaxDelay = defaultRetryMax
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = defaultRetryAttempts
	}

	if cfg.Schedule.DayBoundaryCron == "" {
		cfg.Schedule.DayBoundaryCron = defaultCron
	}
	if cfg.Schedule.CheckpointInterval == 0 {
		cfg.Schedule.CheckpointInterval = defaultCheckpoint
	}

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "stepd"
	}
	if cfg.Tracing.SampleRatio <= 0 {
		cfg.Tracing.SampleRatio = 1
	}
}

// defaultDataDir follows the XDG base directory layout.
func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "stepd")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "stepd")
	}
	return "stepd-data"
}
