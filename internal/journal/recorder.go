package journal

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/stepd/internal/events"
	"git.home.luguber.info/inful/stepd/internal/logfields"
	"git.home.luguber.info/inful/stepd/internal/steps"
)

// NewSessionID returns a fresh identifier for one daemon run.
func NewSessionID() string { return uuid.NewString() }

// Recorder consumes bus events, appends the durable ones to the store and
// keeps the projection current.
//
// Ordinary per-sample updates are applied to the projection only; anchor
// moves, resets, lifecycle changes, closed days and persist failures are
// also appended.
type Recorder struct {
	store      Store
	projection *DailyHistoryProjection
	sessionID  string
	logger     *slog.Logger
}

func NewRecorder(store Store, projection *DailyHistoryProjection, sessionID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, projection: projection, sessionID: sessionID, logger: logger}
}

func (r *Recorder) SessionID() string { return r.sessionID }

// Subscribe registers on bus. Call it before events are published, then
// run the returned function in its own goroutine; it returns when ctx ends
// or the bus closes.
func (r *Recorder) Subscribe(bus *events.Bus, buffer int) func(ctx context.Context) {
	ch, unsubscribe := events.Subscribe[events.Event](bus, buffer)
	return func(ctx context.Context) {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				r.Record(ctx, evt)
			}
		}
	}
}

// Record handles one event.
func (r *Recorder) Record(ctx context.Context, evt events.Event) {
	e, ok, err := NewEntry(r.sessionID, evt)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to encode journal entry", slog.String("event_type", evt.EventType()), logfields.Error(err))
		return
	}
	if !ok {
		return
	}
	if r.projection != nil {
		r.projection.Apply(e)
	}
	if !durable(evt) || r.store == nil {
		return
	}
	if err := r.store.Append(ctx, e); err != nil {
		r.logger.WarnContext(ctx, "Failed to append journal entry",
			slog.String("event_type", e.Type),
			logfields.SessionID(r.sessionID),
			logfields.Error(err))
	}
}

func durable(evt events.Event) bool {
	if u, ok := evt.(events.StepsUpdated); ok {
		return u.Cause != steps.CauseSample
	}
	return true
}
