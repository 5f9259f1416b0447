// Package responses defines API response types used by the stepd HTTP handlers.
package responses

import (
	"time"

	"git.home.luguber.info/inful/stepd/internal/journal"
	"git.home.luguber.info/inful/stepd/internal/source"
	"git.home.luguber.info/inful/stepd/internal/steps"
)

// HealthResponse represents the health check API response.
type HealthResponse struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	Version      string    `json:"version"`
	Uptime       float64   `json:"uptime"`
	DaemonStatus string    `json:"daemon_status,omitempty"`
	SessionID    string    `json:"session_id,omitempty"`
	Listening    bool      `json:"listening"`
}

// SnapshotResponse is the current step view. Today is the count as shown to
// users right now, which is zero once the recorded date is in the past.
type SnapshotResponse struct {
	steps.Snapshot
	Today     uint64    `json:"today"`
	Timestamp time.Time `json:"timestamp"`
}

// AvailabilityResponse reports the step sensors.
type AvailabilityResponse struct {
	source.Availability
	Source string `json:"source"`
}

// HistoryResponse lists per-day totals, newest first.
type HistoryResponse struct {
	Days []journal.DayTotal `json:"days"`
}
