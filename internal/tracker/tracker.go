// Package tracker owns the single step accounting engine of a process and
// exposes the command surface: start, stop, reset, snapshot and source
// availability.
//
// All state mutations run under one mutex. Persistence is handed to a
// record.Writer, so the sample delivery path never waits for I/O.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/stepd/internal/events"
	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
	"git.home.luguber.info/inful/stepd/internal/logfields"
	"git.home.luguber.info/inful/stepd/internal/metrics"
	"git.home.luguber.info/inful/stepd/internal/observability"
	"git.home.luguber.info/inful/stepd/internal/record"
	"git.home.luguber.info/inful/stepd/internal/source"
	"git.home.luguber.info/inful/stepd/internal/steps"
)

// Persister is the part of record.Writer the tracker needs.
type Persister interface {
	Submit(st steps.State) bool
	Flush(ctx context.Context) error
}

// Tracker wires an Engine to a counter source and a persister.
type Tracker struct {
	// lifecycle serializes Start and Stop so subscribe/unsubscribe pairs
	// never interleave. Source callbacks never take it.
	lifecycle sync.Mutex

	mu     sync.Mutex
	engine *steps.Engine
	gen    uint64

	store    record.Store
	writer   Persister
	counter  source.Counter
	detector source.Detector
	bus      *events.Bus
	rec      metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
	loc      *time.Location
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithBus publishes lifecycle and step events to b.
func WithBus(b *events.Bus) Option { return func(t *Tracker) { t.bus = b } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(t *Tracker) { t.rec = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(t *Tracker) { t.logger = l } }

// WithClock overrides the wall clock used by commands.
func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

// WithLocation sets the time zone whose calendar days delimit daily counts.
func WithLocation(loc *time.Location) Option { return func(t *Tracker) { t.loc = loc } }

// New builds a stopped tracker. detector may be nil.
func New(store record.Store, writer Persister, counter source.Counter, detector source.Detector, opts ...Option) *Tracker {
	if detector == nil {
		detector = source.NoDetector{}
	}
	t := &Tracker{
		engine:   steps.NewEngine(),
		store:    store,
		writer:   writer,
		counter:  counter,
		detector: detector,
		rec:      metrics.NoopRecorder{},
		logger:   slog.Default(),
		now:      time.Now,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) clock() time.Time { return t.now().In(t.loc) }

// Start subscribes to the counter. The persisted record is loaded on the
// first Start only; later Starts resume from memory. Calling
// Start while already counting is a no-op. When the counter is missing the
// error is a source error that wraps source.ErrUnavailable and nothing is
// changed.
func (t *Tracker) Start(ctx context.Context) (err error) {
	ctx, span := observability.StartCommandSpan(ctx, "start")
	defer func() { observability.EndSpan(span, err) }()

	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	t.mu.Lock()
	listening := t.engine.Listening()
	t.mu.Unlock()
	if listening {
		t.rec.IncCommand("start", metrics.ResultNoop)
		return nil
	}

	if t.counter == nil || !t.counter.Available() {
		t.rec.IncCommand("start", metrics.ResultFailed)
		return unavailable(nil)
	}

	// The record is only read while the engine has never held a day. After
	// that the in-memory state is authoritative, even when saves failed.
	t.mu.Lock()
	fresh := t.engine.State().LastRecordedDate == ""
	t.mu.Unlock()
	var persisted *steps.State
	if fresh {
		if ferr := t.writer.Flush(ctx); ferr != nil {
			t.logger.WarnContext(ctx, "Pending record saves did not finish", logfields.Error(ferr))
		}
		persisted = t.load(ctx)
	}
	now := t.clock()

	t.mu.Lock()
	// A reset may have given the engine a day while the record was read.
	if st := t.engine.State(); st.LastRecordedDate != "" {
		persisted = &st
	}
	t.engine.Start(now, persisted)
	t.gen++
	gen := t.gen
	snap := t.engine.Snapshot()
	t.mu.Unlock()

	if err := t.counter.Subscribe(t.onSample(gen)); err != nil {
		t.mu.Lock()
		t.engine.Stop()
		t.gen++
		t.mu.Unlock()
		t.rec.IncCommand("start", metrics.ResultFailed)
		return unavailable(err)
	}
	if t.detector.Available() {
		if derr := t.detector.Subscribe(t.onPulse(gen)); derr != nil {
			t.logger.WarnContext(ctx, "Step detector subscription failed", logfields.Error(derr))
		}
	}

	restored := persisted != nil && persisted.LastRecordedDate == snap.LastRecordedDate
	t.rec.SetListening(true)
	t.rec.SetSteps(snap.DailySteps, snap.TotalSteps)
	t.rec.IncCommand("start", metrics.ResultSuccess)
	t.offer(events.CountingStarted{Snapshot: snap, Restored: restored, At: now})
	t.logger.InfoContext(ctx, "Step counting started",
		logfields.Source(t.counter.Name()),
		logfields.DailySteps(snap.DailySteps),
		logfields.TotalSteps(snap.TotalSteps),
		logfields.LastDate(snap.LastRecordedDate.String()),
		slog.Bool("restored", restored))
	return nil
}

func unavailable(cause error) error {
	switch {
	case cause == nil:
		cause = source.ErrUnavailable
	case !errors.Is(cause, source.ErrUnavailable):
		cause = source.ErrUnavailable.WithCause(cause)
	}
	return ferrors.WrapError(cause, ferrors.CategorySource, "step counter not available").
		UserAction().
		Build()
}

// load returns the persisted state, or nil when there is none or it cannot
// be read. A broken record never blocks counting.
func (t *Tracker) load(ctx context.Context) *steps.State {
	if t.store == nil {
		return nil
	}
	st, err := t.store.Load(ctx)
	switch {
	case err == nil:
		return st
	case errors.Is(err, record.ErrCorruptRecord):
		t.logger.WarnContext(ctx, "Discarding corrupt step record", logfields.Backend(t.store.Backend()), logfields.Error(err))
	default:
		t.logger.WarnContext(ctx, "Failed to load step record", logfields.Backend(t.store.Backend()), logfields.Error(err))
	}
	return nil
}

// Stop unsubscribes from the sources. State is kept in memory and nothing
// is persisted or cleared. Stop is idempotent.
func (t *Tracker) Stop(ctx context.Context) {
	_, span := observability.StartCommandSpan(ctx, "stop")
	defer span.End()

	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	t.mu.Lock()
	if !t.engine.Stop() {
		t.mu.Unlock()
		t.rec.IncCommand("stop", metrics.ResultNoop)
		return
	}
	t.gen++
	snap := t.engine.Snapshot()
	t.mu.Unlock()

	// Outside mu: a source may be blocked delivering a sample that needs it.
	t.counter.Unsubscribe()
	t.detector.Unsubscribe()

	t.rec.SetListening(false)
	t.rec.IncCommand("stop", metrics.ResultSuccess)
	t.offer(events.CountingStopped{Snapshot: snap, At: t.clock()})
	t.logger.InfoContext(ctx, "Step counting stopped", logfields.DailySteps(snap.DailySteps))
}

// ResetDaily re-anchors today's count at the current total, persists the
// result and returns the new snapshot.
func (t *Tracker) ResetDaily(ctx context.Context) (_ steps.Snapshot, err error) {
	ctx, span := observability.StartCommandSpan(ctx, "reset")
	defer func() { observability.EndSpan(span, err) }()

	now := t.clock()
	t.mu.Lock()
	out := t.engine.ResetDaily(now)
	t.writer.Submit(out.State)
	snap := t.engine.Snapshot()
	t.offer(events.DailyReset{Snapshot: snap, At: now})
	t.mu.Unlock()

	t.rec.SetSteps(snap.DailySteps, snap.TotalSteps)
	t.rec.IncCommand("reset", metrics.ResultSuccess)
	t.logger.InfoContext(ctx, "Daily steps reset", logfields.TotalSteps(snap.TotalSteps), logfields.LastDate(snap.LastRecordedDate.String()))

	if err := t.writer.Flush(ctx); err != nil {
		return snap, ferrors.WrapError(err, ferrors.CategoryPersist, "wait for reset to persist").Warning().Build()
	}
	return snap, nil
}

// Snapshot returns the current view of the state. It never blocks on I/O.
func (t *Tracker) Snapshot() steps.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.Snapshot()
}

// Availability probes the sources.
func (t *Tracker) Availability() source.Availability {
	return source.Check(t.counter, t.detector)
}

// Checkpoint submits the current state for saving again. The daemon calls
// it periodically and during shutdown.
func (t *Tracker) Checkpoint() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.engine.State()
	if st.LastRecordedDate == "" {
		return false
	}
	return t.writer.Submit(st)
}

func (t *Tracker) onSample(gen uint64) source.SampleFunc {
	return func(raw uint64, at time.Time) {
		if at.IsZero() {
			at = t.now()
		}
		at = at.In(t.loc)

		t.mu.Lock()
		if gen != t.gen || !t.engine.Listening() {
			t.mu.Unlock()
			t.rec.IncSample(metrics.SampleIgnored)
			return
		}
		out := t.engine.OnSample(raw, at)
		if !out.Changed {
			t.mu.Unlock()
			t.rec.IncSample(metrics.SampleUnchanged)
			return
		}
		t.writer.Submit(out.State)
		snap := t.engine.Snapshot()
		if out.Closed != nil {
			t.offer(events.DayClosed{Summary: *out.Closed, At: at})
		}
		t.offer(events.StepsUpdated{Snapshot: snap, Cause: out.Cause, Raw: raw, At: at})
		t.mu.Unlock()

		t.rec.IncSample(metrics.SampleUpdated)
		t.rec.SetSteps(snap.DailySteps, snap.TotalSteps)
		if out.Closed != nil {
			t.rec.IncDayClosed()
			t.logger.Info("Day closed",
				logfields.LastDate(out.Closed.Date.String()),
				logfields.DailySteps(out.Closed.Steps))
		}
		if out.Cause != steps.CauseSample {
			t.logger.Info("Step anchor moved",
				logfields.Cause(string(out.Cause)),
				logfields.Raw(raw),
				logfields.InitialCount(out.State.InitialStepCount))
		}
	}
}

func (t *Tracker) onPulse(gen uint64) source.PulseFunc {
	return func(at time.Time) {
		t.mu.Lock()
		live := gen == t.gen && t.engine.Listening()
		t.mu.Unlock()
		if !live {
			return
		}
		t.rec.IncPulse()
		t.offer(events.StepDetected{At: at})
	}
}

func (t *Tracker) offer(evt events.Event) {
	if t.bus == nil {
		return
	}
	if dropped := t.bus.Offer(evt); dropped > 0 {
		t.rec.IncEventDropped(evt.EventType())
	}
}
