package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stepd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMinimalAppliesDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/var/lib/test")
	cfg, err := Load(writeConfig(t, "version: \"1\"\n"))
	require.NoError(t, err)

	require.Equal(t, LogLevelInfo, cfg.Logging.Level)
	require.Equal(t, LogFormatText, cfg.Logging.Format)
	require.Equal(t, SourceIIO, cfg.Source.Type)
	require.Equal(t, 5*time.Second, cfg.Source.IIO.PollInterval)
	require.Equal(t, StorageSQLite, cfg.Storage.Backend)
	require.Equal(t, "/var/lib/test/stepd", cfg.Storage.DataDir)
	require.Equal(t, "/var/lib/test/stepd/record.db", cfg.Storage.Path)
	require.Equal(t, "default.record", cfg.Storage.NATSKey)
	require.Equal(t, []NotifySink{NotifyLog}, cfg.Notify.Sinks)
	require.Equal(t, "en", cfg.Notify.Language)
	require.Equal(t, "0 0 * * *", cfg.Schedule.DayBoundaryCron)
	require.Equal(t, RetryBackoffExponential, cfg.Retry.Backoff)
	require.False(t, cfg.UsesNATS())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestParseRejectsVersion(t *testing.T) {
	_, err := Parse([]byte("version: \"2\"\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported configuration version")
}

func TestParseNormalizesEnums(t *testing.T) {
	cfg, err := Parse([]byte(`version: "1"
logging:
  level: WARNING
  format: JSON
source:
  type: NATS
storage:
  backend: " File "
  data_dir: /tmp/stepd
notify:
  sinks: [LOG, nats, log]
retry:
  backoff: Linear
`))
	require.NoError(t, err)
	require.Equal(t, LogLevelWarn, cfg.Logging.Level)
	require.Equal(t, LogFormatJSON, cfg.Logging.Format)
	require.Equal(t, SourceNATS, cfg.Source.Type)
	require.Equal(t, StorageFile, cfg.Storage.Backend)
	require.Equal(t, "/tmp/stepd/record.json", cfg.Storage.Path)
	require.Equal(t, []NotifySink{NotifyLog, NotifyNATS}, cfg.Notify.Sinks)
	require.Equal(t, RetryBackoffLinear, cfg.Retry.Backoff)
	require.True(t, cfg.UsesNATS())
	require.True(t, cfg.HasSink(NotifyNATS))
	require.False(t, cfg.HasSink(NotifyFile))
}

func TestParseRejectsUnknownBackend(t *testing.T) {
	_, err := Parse([]byte("version: \"1\"\nstorage:\n  backend: redis\n"))
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	require.Contains(t, err.Error(), `invalid storage backend "redis"`)
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("STEPD_TEST_DIR", "/srv/steps")
	cfg, err := Parse([]byte("version: \"1\"\nstorage:\n  data_dir: ${STEPD_TEST_DIR}\n"))
	require.NoError(t, err)
	require.Equal(t, "/srv/steps", cfg.Storage.DataDir)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("STEPD_DEVICE", "librem")
	t.Setenv("STEPD_STORAGE_BACKEND", "nats")
	t.Setenv("STEPD_NOTIFY_SINKS", "file,log")
	t.Setenv("STEPD_SOURCE_IIO_POLL_INTERVAL", "750ms")
	t.Setenv("STEPD_HTTP_ADDR", ":9999")

	cfg, err := Parse([]byte("version: \"1\"\ndevice: pinephone\nstorage:\n  backend: file\n"))
	require.NoError(t, err)
	require.Equal(t, "librem", cfg.Device)
	require.Equal(t, StorageNATS, cfg.Storage.Backend)
	require.Equal(t, "librem.record", cfg.Storage.NATSKey)
	require.Equal(t, []NotifySink{NotifyFile, NotifyLog}, cfg.Notify.Sinks)
	require.Equal(t, 750*time.Millisecond, cfg.Source.IIO.PollInterval)
	require.Equal(t, ":9999", cfg.HTTP.Addr)
	require.Equal(t, "stepd.librem.counter", cfg.Source.NATS.CounterSubject)
}

func TestValidateCrossField(t *testing.T) {
	cfg := Default()
	cfg.Retry.InitialDelay = 2 * time.Minute
	cfg.Schedule.DayBoundaryCron = "@daily"
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "retry.initial_delay")
	require.Contains(t, err.Error(), "schedule.day_boundary_cron")

	require.NoError(t, Default().Validate())
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "stepd.yaml")
	require.NoError(t, Init(path, false))

	err := Init(path, false)
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	require.NoError(t, Init(path, true))

	t.Setenv("HOME", "/home/pine")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "pinephone", cfg.Device)
	require.Equal(t, "/home/pine/.local/share/stepd", cfg.Storage.DataDir)
	require.Equal(t, []NotifySink{NotifyLog, NotifyFile}, cfg.Notify.Sinks)
}

func TestLogLevelSlog(t *testing.T) {
	require.Equal(t, "DEBUG", NormalizeLogLevel("debug").Slog().String())
	require.Equal(t, "INFO", NormalizeLogLevel("verbose").Slog().String())
	require.Equal(t, "ERROR", LogLevelError.Slog().String())
}
