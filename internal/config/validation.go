package config

import (
	"strings"

	"git.home.luguber.info/inful/stepd/internal/foundation"
	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
)

// Validate checks cross-field constraints on a defaulted configuration.
func (c *Config) Validate() error {
	res := foundation.Valid()

	switch c.Source.Type {
	case SourceIIO:
		res = res.Combine(foundation.NotEmpty("source.iio.counter_path")(c.Source.IIO.CounterPath))
	case SourceNATS:
		res = res.Combine(foundation.NotEmpty("source.nats.counter_subject")(c.Source.NATS.CounterSubject))
	case SourceReplay:
		res = res.Combine(foundation.NotEmpty("source.replay.file")(c.Source.Replay.File))
	}

	switch c.Storage.Backend {
	case StorageFile, StorageSQLite:
		res = res.Combine(foundation.NotEmpty("storage.path")(c.Storage.Path))
	case StorageNATS:
		res = res.Combine(foundation.NotEmpty("storage.nats_bucket")(c.Storage.NATSBucket))
		if strings.ContainsAny(c.Storage.NATSKey, " *>") || c.Storage.NATSKey == "" {
			res = res.Combine(foundation.Fail("storage.nats_key", "format", "must be a literal KV key"))
		}
	}

	if c.UsesNATS() {
		res = res.Combine(foundation.NotEmpty("nats.url")(c.NATS.URL))
	}

	if c.Retry.MaxRetries < 0 {
		res = res.Combine(foundation.Fail("retry.max_retries", "range", "cannot be negative"))
	}
	if c.Retry.InitialDelay > c.Retry.MaxDelay {
		res = res.Combine(foundation.Fail("retry.initial_delay", "range", "must not exceed retry.max_delay"))
	}
	if c.Schedule.CheckpointInterval < 0 {
		res = res.Combine(foundation.Fail("schedule.checkpoint_interval", "range", "cannot be negative"))
	}
	if len(strings.Fields(c.Schedule.DayBoundaryCron)) != 5 {
		res = res.Combine(foundation.Fail("schedule.day_boundary_cron", "format", "must be a five-field cron expression"))
	}
	if c.Tracing.SampleRatio > 1 {
		res = res.Combine(foundation.Fail("tracing.sample_ratio", "range", "must be within (0, 1]"))
	}

	if err := res.ToError(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid configuration").Build()
	}
	return nil
}

// UsesNATS reports whether any component needs a broker connection.
func (c *Config) UsesNATS() bool {
	if c.Source.Type == SourceNATS || c.Storage.Backend == StorageNATS {
		return true
	}
	for _, s := range c.Notify.Sinks {
		if s == NotifyNATS {
			return true
		}
	}
	return false
}

// HasSink reports whether sink is enabled.
func (c *Config) HasSink(sink NotifySink) bool {
	for _, s := range c.Notify.Sinks {
		if s == sink {
			return true
		}
	}
	return false
}
