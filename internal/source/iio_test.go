package source

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type sampleSink struct {
	mu  sync.Mutex
	raw []uint64
}

func (s *sampleSink) add(raw uint64, _ time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = append(s.raw, raw)
}

func (s *sampleSink) values() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.raw...)
}

func writeAttr(t *testing.T, path string, n uint64) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strconv.FormatUint(n, 10)+"\n"), 0o600))
}

func TestIIOCounterUnavailable(t *testing.T) {
	c := NewIIOCounter(filepath.Join(t.TempDir(), "missing"), 10*time.Millisecond)
	require.False(t, c.Available())
	require.ErrorIs(t, c.Subscribe(func(uint64, time.Time) {}), ErrUnavailable)
	c.Unsubscribe()
}

func TestIIOCounterDeliversChanges(t *testing.T) {
	dir := t.TempDir()
	counterPath := filepath.Join(dir, "in_steps_input")
	enablePath := filepath.Join(dir, "in_steps_en")
	writeAttr(t, counterPath, 1000)

	fixed := time.Date(2026, 10, 19, 9, 0, 0, 0, time.Local)
	c := NewIIOCounter(counterPath, 5*time.Millisecond, WithEnablePath(enablePath), WithClock(func() time.Time { return fixed }))
	require.True(t, c.Available())

	sink := &sampleSink{}
	require.NoError(t, c.Subscribe(sink.add))
	t.Cleanup(c.Unsubscribe)
	require.ErrorIs(t, c.Subscribe(sink.add), ErrAlreadySubscribed)

	en, err := os.ReadFile(enablePath)
	require.NoError(t, err)
	require.Equal(t, "1\n", string(en))

	require.Eventually(t, func() bool { return len(sink.values()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, []uint64{1000}, sink.values(), "unchanged readings are not redelivered")

	writeAttr(t, counterPath, 1012)
	require.Eventually(t, func() bool { return len(sink.values()) == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []uint64{1000, 1012}, sink.values())

	c.Unsubscribe()
	en, err = os.ReadFile(enablePath)
	require.NoError(t, err)
	require.Equal(t, "0\n", string(en))

	writeAttr(t, counterPath, 1100)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, []uint64{1000, 1012}, sink.values(), "no delivery after Unsubscribe")
}

func TestIIOCounterSkipsUnreadableValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in_steps_input")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	c := NewIIOCounter(path, 5*time.Millisecond)
	sink := &sampleSink{}
	require.NoError(t, c.Subscribe(sink.add))
	t.Cleanup(c.Unsubscribe)

	time.Sleep(30 * time.Millisecond)
	require.Empty(t, sink.values())

	writeAttr(t, path, 42)
	require.Eventually(t, func() bool { return len(sink.values()) == 1 }, time.Second, 5*time.Millisecond)
}
