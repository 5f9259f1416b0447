// Package daemon supervises a long-running stepd process: it wires the
// tracker to its source, record store, journal, notification sinks,
// scheduler and HTTP command surface, and owns their lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/stepd/internal/broker"
	"git.home.luguber.info/inful/stepd/internal/config"
	"git.home.luguber.info/inful/stepd/internal/events"
	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
	"git.home.luguber.info/inful/stepd/internal/journal"
	"git.home.luguber.info/inful/stepd/internal/logfields"
	"git.home.luguber.info/inful/stepd/internal/metrics"
	"git.home.luguber.info/inful/stepd/internal/notify"
	"git.home.luguber.info/inful/stepd/internal/observability"
	"git.home.luguber.info/inful/stepd/internal/record"
	"git.home.luguber.info/inful/stepd/internal/retry"
	"git.home.luguber.info/inful/stepd/internal/source"
	"git.home.luguber.info/inful/stepd/internal/steps"
	"git.home.luguber.info/inful/stepd/internal/tracker"
)

// Status represents the current state of the daemon.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

const (
	jobDayBoundary = "day-boundary"
	jobCheckpoint  = "checkpoint"

	busBuffer = 256
)

// Daemon represents the main daemon service.
type Daemon struct {
	config     *config.Config
	configPath string
	status     atomic.Value // Status
	startTime  time.Time
	mu         sync.Mutex
	cfgMu      sync.RWMutex

	logger    *slog.Logger
	level     *slog.LevelVar
	sessionID string
	now       func() time.Time
	policy    retry.Policy

	// Core components
	broker    *broker.Client
	store     record.Store
	writer    *record.Writer
	counter   source.Counter
	detector  source.Detector
	tracker   *tracker.Tracker
	bus       *events.Bus
	registry  *prom.Registry
	recorder  metrics.Recorder
	journal   journal.Store
	history   *journal.DailyHistoryProjection
	journaler *journal.Recorder
	presenter *notify.Presenter
	scheduler *Scheduler
	watcher   *ConfigWatcher
	http      *HTTPServer

	cancel      context.CancelFunc
	cancelStart context.CancelFunc
	startDone   chan struct{}
	loops       sync.WaitGroup
}

// Option customizes daemon wiring. Tests use them to inject fakes.
type Option func(*Daemon)

// WithConfigPath enables reloading from path on change.
func WithConfigPath(path string) Option { return func(d *Daemon) { d.configPath = path } }

func WithLogger(l *slog.Logger) Option { return func(d *Daemon) { d.logger = l } }

// WithLevelVar lets config reloads adjust the log level of the process logger.
func WithLevelVar(v *slog.LevelVar) Option { return func(d *Daemon) { d.level = v } }

// WithSources replaces the configured counter and detector.
func WithSources(counter source.Counter, detector source.Detector) Option {
	return func(d *Daemon) {
		d.counter = counter
		d.detector = detector
	}
}

// WithStore replaces the configured record store.
func WithStore(s record.Store) Option { return func(d *Daemon) { d.store = s } }

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option { return func(d *Daemon) { d.now = now } }

// WithRetryPolicy overrides the start retry policy from config.
func WithRetryPolicy(p retry.Policy) Option { return func(d *Daemon) { d.policy = p } }

// New wires a stopped daemon from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *Daemon, err error) {
	if cfg == nil {
		return nil, ferrors.ConfigError("configuration is required").Build()
	}

	d := &Daemon{
		config:    cfg,
		logger:    slog.Default(),
		level:     new(slog.LevelVar),
		sessionID: journal.NewSessionID(),
		now:       time.Now,
		policy:    retry.FromConfig(cfg.Retry),
	}
	d.level.Set(cfg.Logging.Level.Slog())
	for _, opt := range opts {
		opt(d)
	}
	d.status.Store(StatusStopped)
	d.logger = d.logger.With(logfields.SessionID(d.sessionID))

	// Release whatever was opened if wiring fails part way.
	defer func() {
		if err == nil {
			return
		}
		if d.writer != nil {
			_ = d.writer.Close(context.Background())
		}
		if d.bus != nil {
			d.bus.Close()
		}
		d.closeResources()
	}()

	if cfg.UsesNATS() {
		if d.broker, err = broker.Connect(cfg.NATS); err != nil {
			return nil, err
		}
	}
	if d.store == nil {
		if d.store, err = record.Open(ctx, cfg.Storage, d.broker); err != nil {
			return nil, err
		}
	}
	if d.counter == nil {
		if d.counter, d.detector, err = source.Open(cfg.Source, d.broker); err != nil {
			return nil, err
		}
	}

	d.registry = metrics.NewRegistry()
	d.recorder = metrics.NewPrometheusRecorder(d.registry)
	d.bus = events.NewBus()

	d.writer = record.NewWriter(d.store,
		record.WithLogger(d.logger),
		record.WithRecorder(d.recorder),
		record.WithErrorHandler(d.onPersistError),
	)
	d.tracker = tracker.New(d.store, d.writer, d.counter, d.detector,
		tracker.WithBus(d.bus),
		tracker.WithRecorder(d.recorder),
		tracker.WithLogger(d.logger),
		tracker.WithClock(d.now),
	)

	if cfg.Journal.Enabled {
		js, jerr := journal.NewSQLiteStore(cfg.Journal.Path)
		if jerr != nil {
			return nil, jerr
		}
		d.journal = js
		d.history = journal.NewDailyHistoryProjection(d.journal, 0)
		if rerr := d.history.Rebuild(ctx); rerr != nil {
			// Non-fatal: the projection starts empty.
			d.logger.Warn("Failed to rebuild step history", logfields.Error(rerr))
		}
		d.journaler = journal.NewRecorder(d.journal, d.history, d.sessionID, d.logger)
	}

	d.presenter = notify.NewPresenter(d.buildNotifier(), notify.NewRenderer(cfg.Notify.Language),
		notify.WithLogger(d.logger), notify.WithClock(d.now))

	if d.scheduler, err = NewScheduler(time.Local, d.logger); err != nil {
		return nil, err
	}
	if _, err = d.scheduler.ScheduleCron(jobDayBoundary, cfg.Schedule.DayBoundaryCron, d.onDayBoundary); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid day boundary schedule").
			WithContext("cron", cfg.Schedule.DayBoundaryCron).
			Build()
	}
	if cfg.Schedule.CheckpointInterval > 0 {
		if _, err = d.scheduler.ScheduleEvery(jobCheckpoint, cfg.Schedule.CheckpointInterval, func() { d.tracker.Checkpoint() }); err != nil {
			return nil, err
		}
	}

	d.http = NewHTTPServer(cfg.HTTP.Addr, d)

	if d.configPath != "" {
		if d.watcher, err = NewConfigWatcher(d.configPath, d, d.logger); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Daemon) buildNotifier() notify.Notifier {
	var sinks notify.Multi
	for _, s := range d.config.Notify.Sinks {
		switch s {
		case config.NotifyLog:
			sinks = append(sinks, notify.LogNotifier{Logger: d.logger})
		case config.NotifyFile:
			sinks = append(sinks, notify.FileNotifier{Path: d.config.Notify.StatusFile})
		case config.NotifyNATS:
			if d.broker != nil {
				sinks = append(sinks, notify.NATSNotifier{Publisher: d.broker, Subject: d.config.Notify.Subject})
			}
		}
	}
	return sinks
}

// Start brings up every component and begins counting in the background.
// Counting retries with backoff while the step counter is unavailable.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if st := d.GetStatus(); st != StatusStopped {
		return ferrors.DaemonError(fmt.Sprintf("daemon is not in stopped state: %s", st)).Build()
	}
	if d.cancel != nil {
		return ferrors.DaemonError("daemon cannot be restarted after stop").Build()
	}
	d.status.Store(StatusStarting)
	d.startTime = d.now()

	ctx = observability.WithSessionID(ctx, d.sessionID)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel

	if err := d.http.Start(runCtx); err != nil {
		cancel()
		d.status.Store(StatusError)
		return err
	}

	// Consumers subscribe before anything publishes.
	if d.journaler != nil {
		d.runLoop(runCtx, d.journaler.Subscribe(d.bus, busBuffer))
	}
	d.runLoop(runCtx, d.presenter.Subscribe(d.bus, busBuffer))

	d.scheduler.Start()

	if d.watcher != nil {
		if err := d.watcher.Start(runCtx); err != nil {
			d.logger.Error("Failed to start config watcher", logfields.Error(err))
		}
	}

	startCtx, cancelStart := context.WithCancel(runCtx)
	d.cancelStart = cancelStart
	d.startDone = make(chan struct{})
	go func() {
		defer close(d.startDone)
		d.startCounting(startCtx)
	}()

	d.status.Store(StatusRunning)
	d.logger.Info("stepd daemon started",
		slog.String("device", d.config.Device),
		logfields.Source(d.counter.Name()),
		logfields.Backend(d.store.Backend()),
		slog.String("http_addr", d.http.Addr()),
		slog.Bool("journal", d.journal != nil))
	return nil
}

func (d *Daemon) runLoop(ctx context.Context, loop func(context.Context)) {
	d.loops.Add(1)
	go func() {
		defer d.loops.Done()
		loop(ctx)
	}()
}

// startCounting starts the tracker, retrying only while the source is
// unavailable. Other failures, or an exhausted budget, leave the tracker
// stopped until a start command arrives.
func (d *Daemon) startCounting(ctx context.Context) {
	err := d.policy.Do(ctx, d.tracker.Start,
		func(err error) bool { return errors.Is(err, source.ErrUnavailable) },
		func(attempt int, delay time.Duration, err error) {
			d.logger.WarnContext(ctx, "Step counter not available, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				logfields.Error(err))
		})
	if err != nil && ctx.Err() == nil {
		d.logger.ErrorContext(ctx, "Step counting not started; use the start command once the sensor is available", logfields.Error(err))
	}
}

// Run starts the daemon and blocks until ctx ends, then stops it within
// shutdownTimeout.
func (d *Daemon) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return d.Stop(stopCtx)
}

// Stop shuts the daemon down. The last state is submitted once more and
// flushed before the store closes.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.GetStatus() {
	case StatusStopped, StatusStopping:
		return nil
	}
	d.status.Store(StatusStopping)
	d.logger.Info("Stopping stepd daemon")

	var errs []error
	if err := d.http.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if d.watcher != nil {
		if err := d.watcher.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.scheduler.Stop(ctx); err != nil {
		errs = append(errs, err)
	}

	// A pending start retry must not resume counting after Stop.
	if d.cancelStart != nil {
		d.cancelStart()
		<-d.startDone
	}
	d.tracker.Stop(ctx)
	d.tracker.Checkpoint()
	if err := d.writer.Close(ctx); err != nil {
		errs = append(errs, err)
	}

	// Closing the bus ends the consumer loops once they drained.
	d.bus.Close()
	d.loops.Wait()
	if d.cancel != nil {
		d.cancel()
	}

	d.closeResources()
	d.status.Store(StatusStopped)
	d.logger.Info("stepd daemon stopped", slog.Duration("uptime", d.now().Sub(d.startTime)))
	return errors.Join(errs...)
}

// closeResources releases stores and connections. It tolerates partial wiring.
func (d *Daemon) closeResources() {
	if d.journal != nil {
		if err := d.journal.Close(); err != nil {
			d.logger.Error("Failed to close journal", logfields.Error(err))
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Error("Failed to close record store", logfields.Error(err))
		}
	}
	if d.broker != nil {
		if err := d.broker.Close(); err != nil {
			d.logger.Error("Failed to close NATS connection", logfields.Error(err))
		}
	}
}

func (d *Daemon) onPersistError(st steps.State, err error) {
	d.bus.Offer(events.PersistFailed{State: st, Backend: d.store.Backend(), Err: err, At: d.now()})
}

func (d *Daemon) onDayBoundary() {
	now := d.now()
	d.logger.Info("Day boundary", logfields.LastDate(steps.DateOf(now).String()))
	d.bus.Offer(events.DayBoundary{At: now})
}

// ReloadConfig applies the parts of cfg that can change at runtime: the
// log level and the notification language. Other changes need a restart.
func (d *Daemon) ReloadConfig(ctx context.Context, cfg *config.Config) error {
	d.cfgMu.Lock()
	old := d.config
	d.config = cfg
	d.cfgMu.Unlock()

	if cfg.Logging.Level != old.Logging.Level {
		d.level.Set(cfg.Logging.Level.Slog())
		d.logger.InfoContext(ctx, "Log level changed", slog.String("level", string(cfg.Logging.Level)))
	}
	d.presenter.SetLanguage(ctx, cfg.Notify.Language)

	if cfg.Source != old.Source || cfg.Storage != old.Storage || cfg.HTTP != old.HTTP || cfg.NATS != old.NATS {
		d.logger.WarnContext(ctx, "Source, storage, NATS or HTTP changes take effect after restart")
	}
	return nil
}

// GetStatus returns the current daemon status.
func (d *Daemon) GetStatus() Status {
	status, ok := d.status.Load().(Status)
	if !ok {
		return StatusError
	}
	return status
}

// StatusString implements handlers.DaemonInterface.
func (d *Daemon) StatusString() string { return string(d.GetStatus()) }

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	return d.config
}

func (d *Daemon) StartTime() time.Time { return d.startTime }

func (d *Daemon) SessionID() string { return d.sessionID }

func (d *Daemon) Listening() bool { return d.tracker.Snapshot().Listening }

func (d *Daemon) Tracker() *tracker.Tracker { return d.tracker }

// History returns the step history projection, or nil when the journal is
// disabled.
func (d *Daemon) History() *journal.DailyHistoryProjection { return d.history }

func (d *Daemon) Registry() *prom.Registry { return d.registry }

// Addr returns the bound HTTP address once started.
func (d *Daemon) Addr() string { return d.http.Addr() }
