package config

import (
	"log/slog"

	"git.home.luguber.info/inful/stepd/internal/foundation"
	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Slog maps the level onto slog.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// SourceType selects the raw counter implementation.
type SourceType string

const (
	SourceIIO    SourceType = "iio"
	SourceNATS   SourceType = "nats"
	SourceReplay SourceType = "replay"
)

// StorageBackend selects the durable record store.
type StorageBackend string

const (
	StorageFile   StorageBackend = "file"
	StorageSQLite StorageBackend = "sqlite"
	StorageNATS   StorageBackend = "nats"
	StorageMemory StorageBackend = "memory"
)

// NotifySink names one presentation target.
type NotifySink string

const (
	NotifyLog  NotifySink = "log"
	NotifyFile NotifySink = "file"
	NotifyNATS NotifySink = "nats"
)

// RetryBackoff enumerates backoff strategies.
type RetryBackoff string

const (
	RetryBackoffFixed       RetryBackoff = "fixed"
	RetryBackoffLinear      RetryBackoff = "linear"
	RetryBackoffExponential RetryBackoff = "exponential"
)

var (
	logLevels = foundation.NewNormalizer("log level", map[string]LogLevel{
		"debug":   LogLevelDebug,
		"info":    LogLevelInfo,
		"warn":    LogLevelWarn,
		"warning": LogLevelWarn,
		"error":   LogLevelError,
	}, LogLevelInfo)

	logFormats = foundation.NewNormalizer("log format", map[string]LogFormat{
		"text": LogFormatText,
		"json": LogFormatJSON,
	}, LogFormatText)

	sourceTypes = foundation.NewNormalizer("source type", map[string]SourceType{
		"iio":    SourceIIO,
		"sysfs":  SourceIIO,
		"nats":   SourceNATS,
		"replay": SourceReplay,
	}, SourceIIO)

	storageBackends = foundation.NewNormalizer("storage backend", map[string]StorageBackend{
		"file":     StorageFile,
		"json":     StorageFile,
		"sqlite":   StorageSQLite,
		"nats":     StorageNATS,
		"nats-kv":  StorageNATS,
		"memory":   StorageMemory,
		"inmemory": StorageMemory,
	}, StorageSQLite)

	notifySinks = foundation.NewNormalizer("notify sink", map[string]NotifySink{
		"log":  NotifyLog,
		"file": NotifyFile,
		"nats": NotifyNATS,
	}, NotifyLog)

	retryBackoffs = foundation.NewNormalizer("retry backoff", map[string]RetryBackoff{
		"fixed":       RetryBackoffFixed,
		"linear":      RetryBackoffLinear,
		"exponential": RetryBackoffExponential,
	}, RetryBackoffExponential)
)

// NormalizeLogLevel is lenient: unknown input becomes info.
func NormalizeLogLevel(raw string) LogLevel { return logLevels.Normalize(raw) }

// NormalizeLogFormat is lenient: unknown input becomes text.
func NormalizeLogFormat(raw string) LogFormat { return logFormats.Normalize(raw) }

// normalize case-folds every enum field. Unknown values are configuration
// errors rather than silent fallbacks, except for logging which degrades.
func normalize(cfg *Config) error {
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))

	var res foundation.ValidationResult
	var err error
	if cfg.Source.Type, err = sourceTypes.Parse(string(cfg.Source.Type)); err != nil {
		res = res.Combine(foundation.Fail("source.type", "enum", err.Error()))
	}
	if cfg.Storage.Backend, err = storageBackends.Parse(string(cfg.Storage.Backend)); err != nil {
		res = res.Combine(foundation.Fail("storage.backend", "enum", err.Error()))
	}
	if cfg.Retry.Backoff, err = retryBackoffs.Parse(string(cfg.Retry.Backoff)); err != nil {
		res = res.Combine(foundation.Fail("retry.backoff", "enum", err.Error()))
	}
	seen := make(map[NotifySink]bool, len(cfg.Notify.Sinks))
	sinks := cfg.Notify.Sinks[:0]
	for _, s := range cfg.Notify.Sinks {
		sink, perr := notifySinks.Parse(string(s))
		if perr != nil {
			res = res.Combine(foundation.Fail("notify.sinks", "enum", perr.Error()))
			continue
		}
		if !seen[sink] {
			seen[sink] = true
			sinks = append(sinks, sink)
		}
	}
	cfg.Notify.Sinks = sinks

	if verr := res.ToError(); verr != nil {
		return ferrors.WrapError(verr, ferrors.CategoryConfig, "normalize configuration").Build()
	}
	return nil
}
