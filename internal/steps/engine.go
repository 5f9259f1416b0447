package steps

import "time"

// Engine owns one State and applies the accounting algorithm to it.
type Engine struct {
	state     State
	listening bool
}

// NewEngine returns a stopped engine with an all-zero state.
func NewEngine() *Engine {
	return &Engine{}
}

// Start restores persisted state for today, or starts a fresh day when the
// record is absent or from another date. A fresh day keeps the last known
// total but clears the anchor so the next sample re-anchors. Start returns
// false when the engine was already listening, in which case nothing changes.
func (e *Engine) Start(now time.Time, persisted *State) bool {
	if e.listening {
		return false
	}
	today := DateOf(now)
	switch {
	case persisted == nil:
		e.state = State{LastRecordedDate: today}
	case persisted.LastRecordedDate != today:
		e.state = State{TotalSteps: persisted.TotalSteps, LastRecordedDate: today}
	default:
		e.state = *persisted
	}
	e.listening = true
	return true
}

// Stop marks the engine as no longer listening. State is kept for the next
// Start. It returns false if the engine was already stopped.
func (e *Engine) Stop() bool {
	if !e.listening {
		return false
	}
	e.listening = false
	return true
}

// OnSample applies one raw counter sample taken at now. now is only used for
// its calendar date. Samples delivered while stopped are ignored.
func (e *Engine) OnSample(raw uint64, now time.Time) Outcome {
	if !e.listening {
		return Outcome{State: e.state, Cause: CauseSample}
	}

	prev := e.state
	out := Outcome{Cause: CauseSample}

	if today := DateOf(now); e.state.LastRecordedDate != today {
		if prev.DailySteps > 0 || prev.TotalSteps > 0 {
			out.Closed = &DaySummary{Date: prev.LastRecordedDate, Steps: prev.DailySteps}
		}
		e.state = State{InitialStepCount: raw, TotalSteps: raw, LastRecordedDate: today}
		out.Cause = CauseRollover
	}

	// Zero doubles as "not anchored yet". A counter legitimately at zero is
	// indistinguishable, which is harmless: the delta is zero either way.
	if e.state.InitialStepCount == 0 {
		e.state.InitialStepCount = raw
		e.state.TotalSteps = raw
		if out.Cause == CauseSample {
			out.Cause = CauseAnchor
		}
	}

	// The boot-relative counter restarted below the anchor: the current
	// sample becomes the new zero so pre-reboot steps are not counted twice.
	if raw < e.state.InitialStepCount {
		e.state.InitialStepCount = raw
		e.state.TotalSteps = raw
		out.Cause = CauseReboot
	}

	if daily := raw - e.state.InitialStepCount; daily != e.state.DailySteps {
		e.state.DailySteps = daily
		e.state.TotalSteps = raw
	}

	out.State = e.state
	out.Changed = e.state != prev
	return out
}

// ResetDaily re-anchors today's count at the last observed total. It always
// reports a change so callers persist and refresh.
func (e *Engine) ResetDaily(now time.Time) Outcome {
	e.state.InitialStepCount = e.state.TotalSteps
	e.state.DailySteps = 0
	e.state.LastRecordedDate = DateOf(now)
	return Outcome{Changed: true, State: e.state, Cause: CauseReset}
}

// State returns a copy of the current state.
func (e *Engine) State() State { return e.state }

// Listening reports whether the engine accepts samples.
func (e *Engine) Listening() bool { return e.listening }

// Snapshot returns the presentation view of the current state.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		DailySteps:       e.state.DailySteps,
		TotalSteps:       e.state.TotalSteps,
		InitialStepCount: e.state.InitialStepCount,
		LastRecordedDate: e.state.LastRecordedDate,
		Listening:        e.listening,
	}
}
