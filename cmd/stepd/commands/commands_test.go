package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/stepd/internal/config"
	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
	"git.home.luguber.info/inful/stepd/internal/record"
	"git.home.luguber.info/inful/stepd/internal/server/responses"
	"git.home.luguber.info/inful/stepd/internal/steps"
)

var evening = time.Date(2026, 10, 19, 21, 0, 0, 0, time.Local)

func testGlobal() (*Global, *bytes.Buffer) {
	var out bytes.Buffer
	return &Global{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Level:  new(slog.LevelVar),
		Out:    &out,
	}, &out
}

// writeFileConfig writes a config using the file backend and a daemon
// address nothing listens on unless addr is set.
func writeFileConfig(t *testing.T, addr string) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	if addr == "" {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr = ln.Addr().String()
		require.NoError(t, ln.Close())
	}
	body := fmt.Sprintf(`version: "1"
storage:
  backend: file
  path: %q
http:
  addr: %q
`, filepath.Join(dir, "record.json"), addr)
	path := filepath.Join(dir, "stepd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return path, cfg
}

func seed(t *testing.T, cfg *config.Config, st steps.State) *record.FileStore {
	t.Helper()
	store := record.NewFileStore(cfg.Storage.Path)
	require.NoError(t, store.Save(t.Context(), st))
	return store
}

func TestInitWritesLoadableConfig(t *testing.T) {
	g, out := testGlobal()
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	cmd := &InitCmd{Output: dir}
	require.NoError(t, cmd.Run(g, &CLI{}))
	require.Contains(t, out.String(), "initialized successfully")

	cfg, err := config.Load(filepath.Join(dir, "stepd.yaml"))
	require.NoError(t, err)
	require.Equal(t, "pinephone", cfg.Device)

	err = cmd.Run(g, &CLI{})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	cmd.Force = true
	require.NoError(t, cmd.Run(g, &CLI{}))
}

func TestResetRecordSameDay(t *testing.T) {
	_, cfg := writeFileConfig(t, "")
	store := seed(t, cfg, steps.State{InitialStepCount: 100, DailySteps: 50, TotalSteps: 150, LastRecordedDate: "2026-10-19"})

	snap, err := resetRecord(t.Context(), store, evening)
	require.NoError(t, err)
	require.Zero(t, snap.DailySteps)
	require.EqualValues(t, 150, snap.InitialStepCount)
	require.False(t, snap.Listening)

	got, err := store.Load(t.Context())
	require.NoError(t, err)
	require.Equal(t, steps.State{InitialStepCount: 150, TotalSteps: 150, LastRecordedDate: "2026-10-19"}, *got)
}

func TestResetRecordRollsOverStaleDay(t *testing.T) {
	_, cfg := writeFileConfig(t, "")
	store := seed(t, cfg, steps.State{InitialStepCount: 100, DailySteps: 900, TotalSteps: 1000, LastRecordedDate: "2026-10-17"})

	snap, err := resetRecord(t.Context(), store, evening)
	require.NoError(t, err)
	require.Equal(t, steps.Date("2026-10-19"), snap.LastRecordedDate)
	require.EqualValues(t, 1000, snap.TotalSteps)
	require.EqualValues(t, 1000, snap.InitialStepCount)
	require.Zero(t, snap.DailySteps)
}

func TestResetRecordReplacesCorruptRecord(t *testing.T) {
	_, cfg := writeFileConfig(t, "")
	require.NoError(t, os.WriteFile(cfg.Storage.Path, []byte(`{"daily_steps":"x"}`), 0o600))
	store := record.NewFileStore(cfg.Storage.Path)

	snap, err := resetRecord(t.Context(), store, evening)
	require.NoError(t, err)
	require.Equal(t, steps.Snapshot{LastRecordedDate: "2026-10-19"}, snap)
}

func TestStatusOfflineReadsRecord(t *testing.T) {
	path, cfg := writeFileConfig(t, "")
	seed(t, cfg, steps.State{InitialStepCount: 100, DailySteps: 1234, TotalSteps: 1334, LastRecordedDate: "2026-10-19"})

	g, out := testGlobal()
	cmd := &StatusCmd{now: func() time.Time { return evening }}
	require.NoError(t, cmd.Run(g, &CLI{Config: path}))
	require.Contains(t, out.String(), "Paused, today: 1,234 steps")
	require.Contains(t, out.String(), "record:file")
}

func TestStatusShowsZeroForStaleRecord(t *testing.T) {
	path, cfg := writeFileConfig(t, "")
	seed(t, cfg, steps.State{InitialStepCount: 100, DailySteps: 1234, TotalSteps: 1334, LastRecordedDate: "2026-10-18"})

	g, out := testGlobal()
	cmd := &StatusCmd{Offline: true, JSON: true, now: func() time.Time { return evening }}
	require.NoError(t, cmd.Run(g, &CLI{Config: path}))

	var got struct {
		steps.Snapshot
		Origin string `json:"origin"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Zero(t, got.DailySteps)
	require.EqualValues(t, 1334, got.TotalSteps)
	require.Equal(t, "record:file", got.Origin)
}

func TestStatusAsksRunningDaemon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/snapshot", r.URL.Path)
		_ = json.NewEncoder(w).Encode(responses.SnapshotResponse{
			Snapshot: steps.Snapshot{DailySteps: 42, TotalSteps: 142, InitialStepCount: 100, LastRecordedDate: "2026-10-19", Listening: true},
			Today:    42,
		})
	}))
	t.Cleanup(srv.Close)

	path, _ := writeFileConfig(t, srv.Listener.Addr().String())
	g, out := testGlobal()
	cmd := &StatusCmd{now: func() time.Time { return evening }}
	require.NoError(t, cmd.Run(g, &CLI{Config: path}))
	require.Contains(t, out.String(), "Today: 42 steps")
	require.Contains(t, out.String(), "listening: true")
	require.Contains(t, out.String(), "from:      daemon")
}

func TestResetSurfacesDaemonErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(ferrors.HTTPErrorResponse{Error: "save failed", Code: "persist"})
	}))
	t.Cleanup(srv.Close)

	path, _ := writeFileConfig(t, srv.Listener.Addr().String())
	g, _ := testGlobal()
	err := (&ResetCmd{now: func() time.Time { return evening }}).Run(g, &CLI{Config: path})
	require.Error(t, err)
	require.Contains(t, err.Error(), "save failed")
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryPersist))
}

func TestResetFallsBackToRecordWithoutDaemon(t *testing.T) {
	path, cfg := writeFileConfig(t, "")
	store := seed(t, cfg, steps.State{InitialStepCount: 10, DailySteps: 5, TotalSteps: 15, LastRecordedDate: "2026-10-19"})

	g, out := testGlobal()
	require.NoError(t, (&ResetCmd{now: func() time.Time { return evening }}).Run(g, &CLI{Config: path}))
	require.Contains(t, out.String(), "Paused, today: 0 steps")

	got, err := store.Load(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 15, got.InitialStepCount)
}

func TestInstallUnit(t *testing.T) {
	dir := t.TempDir()
	g, out := testGlobal()
	cmd := &InstallUnitCmd{Output: dir, Binary: "/opt/step d/stepd"}
	require.NoError(t, cmd.Run(g, &CLI{Config: "/etc/stepd.yaml"}))
	require.Contains(t, out.String(), "systemctl --user enable --now stepd.service")

	data, err := os.ReadFile(filepath.Join(dir, unitName))
	require.NoError(t, err)
	require.Contains(t, string(data), `ExecStart="/opt/step d/stepd" daemon --config /etc/stepd.yaml`)
	require.Contains(t, string(data), "WantedBy=default.target")

	require.Error(t, cmd.Run(g, &CLI{Config: "/etc/stepd.yaml"}))
	cmd.Force = true
	require.NoError(t, cmd.Run(g, &CLI{Config: "/etc/stepd.yaml"}))
}
