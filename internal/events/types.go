package events

import (
	"time"

	"git.home.luguber.info/inful/stepd/internal/steps"
)

// Event is implemented by every bus event. Type is the stable name used by
// the journal and by metrics labels.
type Event interface {
	EventType() string
}

// SnapshotEvent is an event that carries a fresh snapshot for presentation.
type SnapshotEvent interface {
	Event
	CurrentSnapshot() steps.Snapshot
}

const (
	TypeStepsUpdated    = "steps.updated"
	TypeDailyReset      = "steps.reset"
	TypeCountingStarted = "counting.started"
	TypeCountingStopped = "counting.stopped"
	TypeStepDetected    = "step.detected"
	TypeDayClosed       = "day.closed"
	TypeDayBoundary     = "day.boundary"
	TypePersistFailed   = "persist.failed"
)

// StepsUpdated is emitted after a raw sample changed the step state.
type StepsUpdated struct {
	Snapshot steps.Snapshot
	Cause    steps.Cause
	Raw      uint64
	At       time.Time
}

// DailyReset is emitted after a manual reset of the daily count.
type DailyReset struct {
	Snapshot steps.Snapshot
	At       time.Time
}

// CountingStarted is emitted once the tracker subscribed to the counter.
// Restored reports whether a persisted record seeded the state.
type CountingStarted struct {
	Snapshot steps.Snapshot
	Restored bool
	At       time.Time
}

// CountingStopped is emitted after the tracker unsubscribed.
type CountingStopped struct {
	Snapshot steps.Snapshot
	At       time.Time
}

// StepDetected mirrors a detector pulse. It carries no count.
type StepDetected struct {
	At time.Time
}

// DayClosed reports the final daily count of a day that just rolled over.
type DayClosed struct {
	Summary steps.DaySummary
	At      time.Time
}

// DayBoundary is published by the scheduler at local midnight so the
// presentation can drop yesterday's count before the next sample arrives.
type DayBoundary struct {
	At time.Time
}

// PersistFailed reports a record save that did not succeed.
type PersistFailed struct {
	State   steps.State
	Backend string
	Err     error
	At      time.Time
}

func (StepsUpdated) EventType() string    { return TypeStepsUpdated }
func (DailyReset) EventType() string      { return TypeDailyReset }
func (CountingStarted) EventType() string { return TypeCountingStarted }
func (CountingStopped) EventType() string { return TypeCountingStopped }
func (StepDetected) EventType() string    { return TypeStepDetected }
func (DayClosed) EventType() string       { return TypeDayClosed }
func (DayBoundary) EventType() string     { return TypeDayBoundary }
func (PersistFailed) EventType() string   { return TypePersistFailed }

func (e StepsUpdated) CurrentSnapshot() steps.Snapshot    { return e.Snapshot }
func (e DailyReset) CurrentSnapshot() steps.Snapshot      { return e.Snapshot }
func (e CountingStarted) CurrentSnapshot() steps.Snapshot { return e.Snapshot }
func (e CountingStopped) CurrentSnapshot() steps.Snapshot { return e.Snapshot }
