package record

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/stepd/internal/steps"
)

func stateN(n uint64) steps.State {
	return steps.State{InitialStepCount: 100, DailySteps: n, TotalSteps: 100 + n, LastRecordedDate: "2026-10-19"}
}

func TestWriterPersistsSubmittedState(t *testing.T) {
	store := NewMemoryStore()
	w := NewWriter(store)
	defer func() { require.NoError(t, w.Close(t.Context())) }()

	require.True(t, w.Submit(stateN(1)))
	require.NoError(t, w.Flush(t.Context()))

	got, err := store.Load(t.Context())
	require.NoError(t, err)
	require.Equal(t, stateN(1), *got)
}

func TestWriterLastWriteWinsInArrivalOrder(t *testing.T) {
	store := NewMemoryStore()
	release := make(chan struct{})
	var first sync.Once
	store.SetSaveHook(func(steps.State) {
		first.Do(func() { <-release })
	})

	w := NewWriter(store)
	defer func() { require.NoError(t, w.Close(t.Context())) }()

	w.Submit(stateN(1)) // blocks inside the store
	time.Sleep(20 * time.Millisecond)
	for i := uint64(2); i <= 50; i++ {
		w.Submit(stateN(i))
	}
	close(release)
	require.NoError(t, w.Flush(t.Context()))

	saved := store.Saved()
	require.Equal(t, stateN(50), saved[len(saved)-1])
	for i := 1; i < len(saved); i++ {
		require.Greater(t, saved[i].DailySteps, saved[i-1].DailySteps, "older state written after newer one")
	}
	require.Less(t, len(saved), 50, "pending states should coalesce")
}

func TestWriterSubmitDoesNotBlockOnSlowStore(t *testing.T) {
	store := NewMemoryStore()
	release := make(chan struct{})
	store.SetSaveHook(func(steps.State) { <-release })

	w := NewWriter(store)
	done := make(chan struct{})
	go func() {
		for i := uint64(1); i <= 1000; i++ {
			w.Submit(stateN(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked on a slow store")
	}
	close(release)
	require.NoError(t, w.Close(t.Context()))
	saved := store.Saved()
	require.Equal(t, stateN(1000), saved[len(saved)-1])
}

func TestWriterReportsFailuresWithoutRetry(t *testing.T) {
	store := NewMemoryStore()
	store.SetSaveErr(errors.New("disk full"))

	var failures atomic.Int32
	var lastFailed, lastErr atomic.Value
	w := NewWriter(store, WithErrorHandler(func(st steps.State, err error) {
		failures.Add(1)
		lastFailed.Store(st)
		lastErr.Store(err.Error())
	}))
	defer func() { require.NoError(t, w.Close(t.Context())) }()

	w.Submit(stateN(3))
	require.NoError(t, w.Flush(t.Context()))
	require.EqualValues(t, 1, failures.Load())
	require.Equal(t, stateN(3), lastFailed.Load())
	require.Contains(t, lastErr.Load(), "disk full")
	require.Empty(t, store.Saved())

	// The next submit is the next attempt.
	store.SetSaveErr(nil)
	w.Submit(stateN(4))
	require.NoError(t, w.Flush(t.Context()))
	require.EqualValues(t, 1, failures.Load())
	require.Equal(t, []steps.State{stateN(4)}, store.Saved())
}

func TestWriterCloseWritesPendingAndRejectsLateSubmits(t *testing.T) {
	store := NewMemoryStore()
	w := NewWriter(store)

	w.Submit(stateN(9))
	require.NoError(t, w.Close(t.Context()))
	require.Equal(t, stateN(9), store.Saved()[len(store.Saved())-1])

	require.False(t, w.Submit(stateN(10)))
	require.NoError(t, w.Flush(t.Context()))
	require.NoError(t, w.Close(t.Context()))
}

func TestWriterFlushHonoursContext(t *testing.T) {
	store := NewMemoryStore()
	release := make(chan struct{})
	store.SetSaveHook(func(steps.State) { <-release })
	w := NewWriter(store)
	defer func() {
		close(release)
		require.NoError(t, w.Close(t.Context()))
	}()

	w.Submit(stateN(1))
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, w.Flush(ctx), context.DeadlineExceeded)
}
