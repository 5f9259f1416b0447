package journal

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/stepd/internal/events"
	"git.home.luguber.info/inful/stepd/internal/steps"
)

// countsPayload is the payload of every snapshot-bearing entry.
type countsPayload struct {
	DailySteps   uint64     `json:"daily_steps"`
	TotalSteps   uint64     `json:"total_steps"`
	InitialCount uint64     `json:"initial_count"`
	LastDate     steps.Date `json:"last_date"`
	Cause        string     `json:"cause,omitempty"`
	Raw          uint64     `json:"raw,omitempty"`
	Restored     bool       `json:"restored,omitempty"`
}

type dayPayload struct {
	Date  steps.Date `json:"date"`
	Steps uint64     `json:"steps"`
}

type failurePayload struct {
	LastDate   steps.Date `json:"last_date"`
	DailySteps uint64     `json:"daily_steps"`
	Error      string     `json:"error"`
}

func counts(s steps.Snapshot) countsPayload {
	return countsPayload{
		DailySteps:   s.DailySteps,
		TotalSteps:   s.TotalSteps,
		InitialCount: s.InitialStepCount,
		LastDate:     s.LastRecordedDate,
	}
}

// NewEntry encodes a bus event as a journal entry for sessionID. It reports
// false for events that carry nothing worth keeping.
func NewEntry(sessionID string, evt events.Event) (Entry, bool, error) {
	var (
		payload any
		at      time.Time
		meta    map[string]string
	)
	switch e := evt.(type) {
	case events.StepsUpdated:
		at = e.At
		p := counts(e.Snapshot)
		p.Cause = string(e.Cause)
		p.Raw = e.Raw
		payload = p
	case events.DailyReset:
		at = e.At
		payload = counts(e.Snapshot)
	case events.CountingStarted:
		at = e.At
		p := counts(e.Snapshot)
		p.Restored = e.Restored
		payload = p
	case events.CountingStopped:
		at = e.At
		payload = counts(e.Snapshot)
	case events.DayClosed:
		at = e.At
		payload = dayPayload{Date: e.Summary.Date, Steps: e.Summary.Steps}
	case events.PersistFailed:
		at = e.At
		msg := ""
		if e.Err != nil {
			msg = e.Err.Error()
		}
		payload = failurePayload{LastDate: e.State.LastRecordedDate, DailySteps: e.State.DailySteps, Error: msg}
		meta = map[string]string{"backend": e.Backend}
	default:
		return Entry{}, false, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, false, ErrMarshalPayloadFailed.WithCause(err).WithContext("event_type", evt.EventType())
	}
	return Entry{
		SessionID: sessionID,
		Type:      evt.EventType(),
		Timestamp: at,
		Payload:   data,
		Metadata:  meta,
	}, true, nil
}
