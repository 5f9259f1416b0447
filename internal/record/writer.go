package record

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/stepd/internal/logfields"
	"git.home.luguber.info/inful/stepd/internal/metrics"
	"git.home.luguber.info/inful/stepd/internal/observability"
	"git.home.luguber.info/inful/stepd/internal/steps"
)

const defaultSaveTimeout = 10 * time.Second

// Writer persists states on a single background goroutine.
//
// Submit never blocks. Only the newest pending state is kept, so a slow
// store never writes an older state after a newer one. A failed save is
// reported and not retried; the next Submit carries the next attempt.
type Writer struct {
	store   Store
	logger  *slog.Logger
	rec     metrics.Recorder
	onError func(steps.State, error)
	timeout time.Duration

	mu        sync.Mutex
	pending   *steps.State
	submitted uint64
	attempted uint64
	progress  chan struct{}
	closed    bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) WriterOption {
	return func(w *Writer) { w.rec = r }
}

// WithErrorHandler registers fn to observe failed saves. fn runs on the
// writer goroutine and must not block.
func WithErrorHandler(fn func(steps.State, error)) WriterOption {
	return func(w *Writer) { w.onError = fn }
}

// WithSaveTimeout bounds a single save.
func WithSaveTimeout(d time.Duration) WriterOption {
	return func(w *Writer) { w.timeout = d }
}

// NewWriter starts the writer goroutine for store.
func NewWriter(store Store, opts ...WriterOption) *Writer {
	w := &Writer{
		store:    store,
		logger:   slog.Default(),
		rec:      metrics.NoopRecorder{},
		timeout:  defaultSaveTimeout,
		progress: make(chan struct{}),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logfields.Backend(store.Backend()))
	go w.run()
	return w
}

// Submit queues st for saving and returns immediately. It reports false
// once the writer is closed.
func (w *Writer) Submit(st steps.State) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Debug("Dropping submit after close", logfields.DailySteps(st.DailySteps))
		return false
	}
	if w.pending != nil {
		w.rec.IncPersistCoalesced()
	}
	w.pending = &st
	w.submitted++
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

// Flush waits until every state submitted before the call was attempted.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	target := w.submitted
	w.mu.Unlock()

	for {
		w.mu.Lock()
		if w.attempted >= target {
			w.mu.Unlock()
			return nil
		}
		ch := w.progress
		w.mu.Unlock()

		select {
		case <-ch:
		case <-w.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops accepting states, writes the last pending one and stops the
// goroutine. It does not close the store.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.stop)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.drain()
		case <-w.stop:
			w.drain()
			return
		}
	}
}

func (w *Writer) drain() {
	for {
		w.mu.Lock()
		if w.pending == nil {
			w.mu.Unlock()
			return
		}
		st := *w.pending
		seq := w.submitted
		w.pending = nil
		w.mu.Unlock()

		w.save(st)

		w.mu.Lock()
		w.attempted = seq
		close(w.progress)
		w.progress = make(chan struct{})
		w.mu.Unlock()
	}
}

func (w *Writer) save(st steps.State) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	ctx, span := observability.StartStorageSpan(ctx, "save", w.store.Backend())

	start := time.Now()
	err := w.store.Save(ctx, st)
	elapsed := time.Since(start)
	observability.EndSpan(span, err)

	if err != nil {
		w.rec.ObservePersist(w.store.Backend(), elapsed, metrics.ResultFailed)
		w.logger.WarnContext(ctx, "Failed to persist step record",
			logfields.DailySteps(st.DailySteps),
			logfields.TotalSteps(st.TotalSteps),
			logfields.LastDate(st.LastRecordedDate.String()),
			logfields.Error(err))
		if w.onError != nil {
			w.onError(st, err)
		}
		return
	}
	w.rec.ObservePersist(w.store.Backend(), elapsed, metrics.ResultSuccess)
	w.logger.DebugContext(ctx, "Persisted step record",
		logfields.DailySteps(st.DailySteps),
		logfields.TotalSteps(st.TotalSteps),
		logfields.Duration(elapsed))
}
