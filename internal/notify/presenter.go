// Package notify renders the step snapshot for people: a localized title
// and text, shown through one or more sinks.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/stepd/internal/events"
	"git.home.luguber.info/inful/stepd/internal/logfields"
	"git.home.luguber.info/inful/stepd/internal/steps"
)

// Presenter keeps the notification in step with bus events. Identical
// consecutive notifications are shown once.
type Presenter struct {
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	renderer *Renderer
	last     steps.Snapshot
	hasLast  bool
	shown    Notification
	hasShown bool
}

// PresenterOption configures a Presenter.
type PresenterOption func(*Presenter)

func WithLogger(l *slog.Logger) PresenterOption { return func(p *Presenter) { p.logger = l } }

func WithClock(now func() time.Time) PresenterOption { return func(p *Presenter) { p.now = now } }

func NewPresenter(notifier Notifier, renderer *Renderer, opts ...PresenterOption) *Presenter {
	p := &Presenter{
		notifier: notifier,
		renderer: renderer,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe registers on bus and returns the consume loop. It ends when ctx
// ends or the bus closes.
func (p *Presenter) Subscribe(bus *events.Bus, buffer int) func(ctx context.Context) {
	snaps, unsubSnaps := events.Subscribe[events.SnapshotEvent](bus, buffer)
	boundaries, unsubBoundaries := events.Subscribe[events.DayBoundary](bus, 1)
	return func(ctx context.Context) {
		defer unsubSnaps()
		defer unsubBoundaries()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-snaps:
				if !ok {
					return
				}
				p.Present(ctx, evt.CurrentSnapshot())
			case _, ok := <-boundaries:
				if !ok {
					return
				}
				p.Refresh(ctx)
			}
		}
	}
}

// Present shows snap.
func (p *Presenter) Present(ctx context.Context, snap steps.Snapshot) {
	p.mu.Lock()
	p.last = snap
	p.hasLast = true
	p.mu.Unlock()
	p.Refresh(ctx)
}

// Refresh re-renders the last snapshot as of now, so a stale daily count is
// shown as zero after midnight.
func (p *Presenter) Refresh(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasLast {
		return
	}
	n := p.renderer.Render(p.last.At(p.now()))
	if p.hasShown && n == p.shown {
		return
	}
	if err := p.notifier.Show(ctx, n); err != nil {
		p.logger.WarnContext(ctx, "Failed to show notification", logfields.Error(err))
		return
	}
	p.shown = n
	p.hasShown = true
}

// SetLanguage switches the renderer and re-shows the current notification.
func (p *Presenter) SetLanguage(ctx context.Context, lang string) {
	r := NewRenderer(lang)
	p.mu.Lock()
	changed := r.Language() != p.renderer.Language()
	p.renderer = r
	p.mu.Unlock()
	if changed {
		p.logger.InfoContext(ctx, "Notification language changed", slog.String("language", r.Language()))
		p.Refresh(ctx)
	}
}

// Language returns the active language.
func (p *Presenter) Language() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderer.Language()
}
