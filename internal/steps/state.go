package steps

import (
	"fmt"
	"time"
)

// DateLayout is the persisted calendar date format (yyyy-MM-dd).
const DateLayout = "2006-01-02"

// Date is a local calendar day. Dates are compared by value; no parsing is
// needed to detect a rollover.
type Date string

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// ParseDate validates s as a yyyy-MM-dd date.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(s), nil
}

func (d Date) String() string { return string(d) }

// State is the durable accounting record.
type State struct {
	// InitialStepCount is the raw counter value treated as zero for today.
	InitialStepCount uint64
	// DailySteps is TotalSteps - InitialStepCount within one boot epoch.
	DailySteps uint64
	// TotalSteps is the most recent raw counter value observed.
	TotalSteps uint64
	// LastRecordedDate is the day DailySteps is valid for.
	LastRecordedDate Date
}

// Snapshot is the read-only view handed to the presentation surface.
type Snapshot struct {
	DailySteps       uint64 `json:"daily_steps"`
	TotalSteps       uint64 `json:"total_steps"`
	InitialStepCount uint64 `json:"initial_step_count"`
	LastRecordedDate Date   `json:"last_recorded_date"`
	Listening        bool   `json:"listening"`
}

// At presents the snapshot as of now. A snapshot from a previous day shows
// zero daily steps; the engine itself only rolls over on the next sample.
func (s Snapshot) At(now time.Time) Snapshot {
	if s.LastRecordedDate != DateOf(now) {
		s.DailySteps = 0
	}
	return s
}

// Cause names what drove a state transition.
type Cause string

const (
	CauseSample   Cause = "sample"
	CauseAnchor   Cause = "anchor"
	CauseReboot   Cause = "reboot"
	CauseRollover Cause = "rollover"
	CauseReset    Cause = "reset"
)

// DaySummary is the final count of a day closed by a rollover.
type DaySummary struct {
	Date  Date
	Steps uint64
}

// Outcome is the result of feeding one sample or reset into the engine.
// Changed is false for samples that leave every field untouched.
type Outcome struct {
	Changed bool
	State   State
	Cause   Cause
	Closed  *DaySummary
}
