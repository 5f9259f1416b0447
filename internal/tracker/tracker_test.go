package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/stepd/internal/events"
	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
	"git.home.luguber.info/inful/stepd/internal/metrics"
	"git.home.luguber.info/inful/stepd/internal/record"
	"git.home.luguber.info/inful/stepd/internal/source"
	"git.home.luguber.info/inful/stepd/internal/steps"
)

var dayD = time.Date(2026, 10, 19, 9, 30, 0, 0, time.Local)

type harness struct {
	tr       *Tracker
	store    *record.MemoryStore
	writer   *record.Writer
	counter  *source.FakeCounter
	detector *source.FakeDetector
	bus      *events.Bus
	clock    *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		store:    record.NewMemoryStore(),
		counter:  source.NewFakeCounter(),
		detector: source.NewFakeDetector(true),
		bus:      events.NewBus(),
		clock:    &testClock{now: dayD},
	}
	h.writer = record.NewWriter(h.store)
	opts = append([]Option{WithBus(h.bus), WithClock(h.clock.Now)}, opts...)
	h.tr = New(h.store, h.writer, h.counter, h.detector, opts...)
	t.Cleanup(func() {
		h.tr.Stop(context.Background())
		require.NoError(t, h.writer.Close(context.Background()))
		h.bus.Close()
	})
	return h
}

// persisted flushes the writer and returns the stored record.
func (h *harness) persisted(t *testing.T) *steps.State {
	t.Helper()
	require.NoError(t, h.writer.Flush(t.Context()))
	st, err := h.store.Load(t.Context())
	require.NoError(t, err)
	return st
}

func TestScenarioA_FreshStartAnchorsFirstSample(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tr.Start(t.Context()))

	h.counter.Emit(100, dayD)
	snap := h.tr.Snapshot()
	require.EqualValues(t, 0, snap.DailySteps)
	require.EqualValues(t, 100, snap.TotalSteps)
	require.EqualValues(t, 100, snap.InitialStepCount)
	require.True(t, snap.Listening)

	require.Equal(t, &steps.State{InitialStepCount: 100, TotalSteps: 100, LastRecordedDate: steps.DateOf(dayD)}, h.persisted(t))
}

func TestScenarioB_ContinuingSameDay(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tr.Start(t.Context()))
	h.counter.Emit(100, dayD)
	h.counter.Emit(150, dayD.Add(time.Hour))

	snap := h.tr.Snapshot()
	require.EqualValues(t, 50, snap.DailySteps)
	require.EqualValues(t, 150, snap.TotalSteps)
	require.EqualValues(t, 50, h.persisted(t).DailySteps)
}

func TestScenarioC_RebootReanchors(t *testing.T) {
	h := newHarness(t)
	h.store.Seed(record.Encode(steps.State{InitialStepCount: 100, DailySteps: 50, TotalSteps: 150, LastRecordedDate: steps.DateOf(dayD)}))
	require.NoError(t, h.tr.Start(t.Context()))
	require.EqualValues(t, 50, h.tr.Snapshot().DailySteps, "record for today is restored")

	h.counter.Emit(5, dayD)
	snap := h.tr.Snapshot()
	require.EqualValues(t, 5, snap.InitialStepCount)
	require.EqualValues(t, 0, snap.DailySteps)
	require.EqualValues(t, 5, snap.TotalSteps)

	h.counter.Emit(20, dayD)
	require.EqualValues(t, 15, h.tr.Snapshot().DailySteps)
	require.EqualValues(t, 15, h.persisted(t).DailySteps)
}

func TestScenarioD_RolloverOnNextSample(t *testing.T) {
	h := newHarness(t)
	closed, unsubscribe := events.Subscribe[events.DayClosed](h.bus, 1)
	defer unsubscribe()

	require.NoError(t, h.tr.Start(t.Context()))
	h.counter.Emit(100, dayD)
	h.counter.Emit(180, dayD)

	next := dayD.AddDate(0, 0, 1)
	h.counter.Emit(20, next)
	snap := h.tr.Snapshot()
	require.EqualValues(t, 0, snap.DailySteps)
	require.EqualValues(t, 20, snap.InitialStepCount)
	require.EqualValues(t, 20, snap.TotalSteps)
	require.Equal(t, steps.DateOf(next), snap.LastRecordedDate)
	require.Equal(t, steps.DateOf(next), h.persisted(t).LastRecordedDate)

	select {
	case evt := <-closed:
		require.Equal(t, steps.DaySummary{Date: steps.DateOf(dayD), Steps: 80}, evt.Summary)
	default:
		t.Fatal("expected DayClosed event")
	}
}

func TestScenarioE_ResetDaily(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tr.Start(t.Context()))
	h.counter.Emit(100, dayD)
	h.counter.Emit(300, dayD)

	snap, err := h.tr.ResetDaily(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 300, snap.InitialStepCount)
	require.EqualValues(t, 0, snap.DailySteps)
	require.Equal(t, &steps.State{InitialStepCount: 300, TotalSteps: 300, LastRecordedDate: steps.DateOf(dayD)}, h.persisted(t))

	h.counter.Emit(310, dayD)
	require.EqualValues(t, 10, h.tr.Snapshot().DailySteps)
}

func TestStartStaleRecordStartsFreshDay(t *testing.T) {
	h := newHarness(t)
	yesterday := dayD.AddDate(0, 0, -1)
	h.store.Seed(record.Encode(steps.State{InitialStepCount: 10, DailySteps: 900, TotalSteps: 910, LastRecordedDate: steps.DateOf(yesterday)}))

	started, unsubscribe := events.Subscribe[events.CountingStarted](h.bus, 1)
	defer unsubscribe()

	require.NoError(t, h.tr.Start(t.Context()))
	snap := h.tr.Snapshot()
	require.EqualValues(t, 0, snap.DailySteps)
	require.EqualValues(t, 0, snap.InitialStepCount)
	require.Equal(t, steps.DateOf(dayD), snap.LastRecordedDate)
	require.False(t, (<-started).Restored)

	h.counter.Emit(950, dayD)
	require.EqualValues(t, 0, h.tr.Snapshot().DailySteps)
	h.counter.Emit(960, dayD)
	require.EqualValues(t, 10, h.tr.Snapshot().DailySteps)
}

func TestStartDegradesCorruptOrUnreadableRecord(t *testing.T) {
	h := newHarness(t)
	h.store.Seed(map[string]string{"daily_steps": "12", "total_steps": "NaN"})
	require.NoError(t, h.tr.Start(t.Context()))
	require.Equal(t, steps.Snapshot{LastRecordedDate: steps.DateOf(dayD), Listening: true}, h.tr.Snapshot())

	unreadable := newHarness(t)
	unreadable.store.SetLoadErr(errors.New("permission denied"))
	require.NoError(t, unreadable.tr.Start(t.Context()))
	require.Equal(t, steps.Snapshot{LastRecordedDate: steps.DateOf(dayD), Listening: true}, unreadable.tr.Snapshot())
	require.Equal(t, 1, unreadable.store.Loads())
}

func TestRestartKeepsStateWhenSavesFailed(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tr.Start(t.Context()))
	h.counter.Emit(100, dayD)
	require.NoError(t, h.writer.Flush(t.Context()))

	h.store.SetSaveErr(errors.New("disk full"))
	h.counter.Emit(5, dayD)
	h.counter.Emit(50, dayD)
	require.NoError(t, h.writer.Flush(t.Context()))
	h.tr.Stop(t.Context())

	require.NoError(t, h.tr.Start(t.Context()))
	h.counter.Emit(60, dayD)
	require.EqualValues(t, 55, h.tr.Snapshot().DailySteps, "the stale record must not replace the reboot anchor")
}

func TestRestartDoesNotReloadRecord(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tr.Start(t.Context()))
	h.counter.Emit(100, dayD)
	h.counter.Emit(125, dayD)
	require.EqualValues(t, 25, h.persisted(t).DailySteps)
	h.tr.Stop(t.Context())
	loads := h.store.Loads()

	h.store.SetLoadErr(errors.New("permission denied"))
	require.NoError(t, h.tr.Start(t.Context()))
	require.Equal(t, loads, h.store.Loads())
	h.counter.Emit(130, dayD)
	require.EqualValues(t, 30, h.tr.Snapshot().DailySteps)
}

func TestResetBeforeFirstStartWinsOverRecord(t *testing.T) {
	h := newHarness(t)
	_, err := h.tr.ResetDaily(t.Context())
	require.NoError(t, err)
	h.store.Seed(record.Encode(steps.State{InitialStepCount: 10, DailySteps: 90, TotalSteps: 100, LastRecordedDate: steps.DateOf(dayD)}))
	loads := h.store.Loads()

	require.NoError(t, h.tr.Start(t.Context()))
	require.Equal(t, loads, h.store.Loads())
	require.EqualValues(t, 0, h.tr.Snapshot().DailySteps)
	h.counter.Emit(40, dayD)
	require.EqualValues(t, 0, h.tr.Snapshot().DailySteps, "first sample anchors the reset day")
	h.counter.Emit(45, dayD)
	require.EqualValues(t, 5, h.tr.Snapshot().DailySteps)
}

func TestStartWithoutCounter(t *testing.T) {
	h := newHarness(t)
	h.counter.SetAvailable(false)

	err := h.tr.Start(t.Context())
	require.Error(t, err)
	require.ErrorIs(t, err, source.ErrUnavailable)
	require.True(t, ferrors.HasCategory(err, ferrors.CategorySource))
	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	require.Equal(t, ferrors.RetryUserAction, classified.RetryStrategy())

	require.False(t, h.tr.Snapshot().Listening)
	require.False(t, h.counter.Subscribed())
	require.Zero(t, h.store.Loads(), "nothing is read when the source is missing")

	h.counter.SetAvailable(true)
	require.NoError(t, h.tr.Start(t.Context()), "caller may retry later")
}

func TestStartIsIdempotent(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tr.Start(t.Context()))
	h.counter.Emit(100, dayD)
	h.counter.Emit(140, dayD)

	require.NoError(t, h.tr.Start(t.Context()))
	require.Equal(t, 1, h.counter.Subscribes())
	require.EqualValues(t, 40, h.tr.Snapshot().DailySteps)
}

func TestStopIgnoresLateSamplesAndKeepsState(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tr.Start(t.Context()))
	h.counter.Emit(100, dayD)
	h.counter.Emit(120, dayD)
	late := h.counter.Callback()
	require.NoError(t, h.writer.Flush(t.Context()))
	saves := len(h.store.Saved())

	h.tr.Stop(t.Context())
	h.tr.Stop(t.Context())
	require.False(t, h.counter.Subscribed())
	require.False(t, h.detector.Subscribed())

	late(999, dayD)
	snap := h.tr.Snapshot()
	require.False(t, snap.Listening)
	require.EqualValues(t, 20, snap.DailySteps)
	require.NoError(t, h.writer.Flush(t.Context()))
	require.Len(t, h.store.Saved(), saves, "stop neither persists nor clears")
}

func TestRestartIgnoresCallbacksFromPreviousSession(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tr.Start(t.Context()))
	h.counter.Emit(100, dayD)
	stale := h.counter.Callback()
	h.tr.Stop(t.Context())
	require.NoError(t, h.tr.Start(t.Context()))

	stale(5000, dayD)
	require.EqualValues(t, 0, h.tr.Snapshot().DailySteps)
	h.counter.Emit(130, dayD)
	require.EqualValues(t, 30, h.tr.Snapshot().DailySteps)
}

func TestDuplicateSampleIsNotPersistedTwice(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tr.Start(t.Context()))
	h.counter.Emit(100, dayD)
	h.counter.Emit(110, dayD)
	require.NoError(t, h.writer.Flush(t.Context()))
	before := len(h.store.Saved())

	h.counter.Emit(110, dayD)
	require.NoError(t, h.writer.Flush(t.Context()))
	require.Len(t, h.store.Saved(), before)
}

func TestPersistFailureDoesNotStopCounting(t *testing.T) {
	h := newHarness(t)
	h.store.SetSaveErr(errors.New("disk full"))
	require.NoError(t, h.tr.Start(t.Context()))
	h.counter.Emit(100, dayD)
	h.counter.Emit(125, dayD)
	require.NoError(t, h.writer.Flush(t.Context()))
	require.EqualValues(t, 25, h.tr.Snapshot().DailySteps)
	require.Empty(t, h.store.Saved())

	h.store.SetSaveErr(nil)
	h.counter.Emit(126, dayD)
	require.EqualValues(t, 26, h.persisted(t).DailySteps)
}

func TestEventsAndPulses(t *testing.T) {
	h := newHarness(t)
	updates, unsubUpdates := events.Subscribe[events.StepsUpdated](h.bus, 8)
	defer unsubUpdates()
	pulses, unsubPulses := events.Subscribe[events.StepDetected](h.bus, 8)
	defer unsubPulses()

	require.NoError(t, h.tr.Start(t.Context()))
	require.True(t, h.detector.Subscribed())
	h.counter.Emit(100, dayD)
	h.counter.Emit(100, dayD)
	h.counter.Emit(101, dayD)
	h.detector.Pulse(dayD)

	first := <-updates
	require.Equal(t, steps.CauseAnchor, first.Cause)
	second := <-updates
	require.Equal(t, steps.CauseSample, second.Cause)
	require.EqualValues(t, 1, second.Snapshot.DailySteps)
	require.Len(t, updates, 0, "unchanged samples publish nothing")

	<-pulses
	require.EqualValues(t, 1, h.tr.Snapshot().DailySteps, "pulses never count")
}

func TestAvailabilityAndCheckpoint(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, source.Availability{CounterAvailable: true, DetectorAvailable: true}, h.tr.Availability())
	require.False(t, h.tr.Checkpoint(), "nothing to checkpoint before the first start")

	require.NoError(t, h.tr.Start(t.Context()))
	h.counter.Emit(100, dayD)
	h.counter.Emit(101, dayD)
	require.NoError(t, h.writer.Flush(t.Context()))
	before := len(h.store.Saved())

	require.True(t, h.tr.Checkpoint())
	require.NoError(t, h.writer.Flush(t.Context()))
	require.Len(t, h.store.Saved(), before+1)
}

func TestMetricsAreRecorded(t *testing.T) {
	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	h := newHarness(t, WithRecorder(rec))

	require.NoError(t, h.tr.Start(t.Context()))
	h.counter.Emit(100, dayD)
	h.counter.Emit(100, dayD)
	h.counter.Emit(142, dayD)

	series, err := testutil.GatherAndCount(reg, "stepd_samples_total", "stepd_daily_steps")
	require.NoError(t, err)
	require.Equal(t, 3, series)
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP stepd_daily_steps Steps counted since the last daily reset
# TYPE stepd_daily_steps gauge
stepd_daily_steps 42
`), "stepd_daily_steps"))
}

func TestConcurrentSamplesAndStop(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tr.Start(t.Context()))
	h.counter.Emit(1, dayD)
	cb := h.counter.Callback()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(base uint64) {
			defer wg.Done()
			for i := uint64(0); i < 200; i++ {
				cb(base+i, dayD)
				_ = h.tr.Snapshot()
			}
		}(uint64(g) * 1000)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(time.Millisecond)
		h.tr.Stop(context.Background())
	}()
	wg.Wait()

	frozen := h.tr.Snapshot()
	cb(99999, dayD)
	require.Equal(t, frozen, h.tr.Snapshot())
	require.False(t, frozen.Listening)
}
