package journal

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"git.home.luguber.info/inful/stepd/internal/events"
	"git.home.luguber.info/inful/stepd/internal/steps"
)

// DayTotal is the read model of one calendar day.
type DayTotal struct {
	Date      steps.Date `json:"date"`
	Steps     uint64     `json:"steps"`
	Closed    bool       `json:"closed"`
	Resets    int        `json:"resets"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// DailyHistoryProjection folds journal entries into per-day step totals.
// The latest entry for a date wins; a day.closed entry fixes the final count.
type DailyHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	days     map[steps.Date]*DayTotal
	maxDays  int
	lastSync time.Time
}

// NewDailyHistoryProjection creates a projection keeping at most maxDays days.
func NewDailyHistoryProjection(store Store, maxDays int) *DailyHistoryProjection {
	if maxDays <= 0 {
		maxDays = 366
	}
	return &DailyHistoryProjection{
		store:   store,
		days:    make(map[steps.Date]*DayTotal),
		maxDays: maxDays,
	}
}

// Rebuild reconstructs the projection from every entry in the store.
func (p *DailyHistoryProjection) Rebuild(ctx context.Context) error {
	entries, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return ErrRebuildFailed.WithCause(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.days = make(map[steps.Date]*DayTotal)
	for _, e := range entries {
		p.applyLocked(e)
	}
	p.lastSync = time.Now()
	return nil
}

// Apply folds a single entry in.
func (p *DailyHistoryProjection) Apply(e Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(e)
}

func (p *DailyHistoryProjection) applyLocked(e Entry) {
	switch e.Type {
	case events.TypeStepsUpdated, events.TypeCountingStarted, events.TypeCountingStopped, events.TypeDailyReset:
		var c countsPayload
		if err := json.Unmarshal(e.Payload, &c); err != nil || c.LastDate == "" {
			return
		}
		day := p.dayLocked(c.LastDate)
		if day.Closed {
			return
		}
		day.Steps = c.DailySteps
		day.UpdatedAt = e.Timestamp
		if e.Type == events.TypeDailyReset {
			day.Resets++
		}
	case events.TypeDayClosed:
		var d dayPayload
		if err := json.Unmarshal(e.Payload, &d); err != nil || d.Date == "" {
			return
		}
		day := p.dayLocked(d.Date)
		day.Steps = d.Steps
		day.Closed = true
		day.UpdatedAt = e.Timestamp
	default:
		return
	}
	p.pruneLocked()
}

func (p *DailyHistoryProjection) dayLocked(d steps.Date) *DayTotal {
	day, ok := p.days[d]
	if !ok {
		day = &DayTotal{Date: d}
		p.days[d] = day
	}
	return day
}

// pruneLocked drops the oldest days beyond maxDays.
func (p *DailyHistoryProjection) pruneLocked() {
	if len(p.days) <= p.maxDays {
		return
	}
	dates := make([]steps.Date, 0, len(p.days))
	for d := range p.days {
		dates = append(dates, d)
	}
	slices.Sort(dates)
	for _, d := range dates[:len(dates)-p.maxDays] {
		delete(p.days, d)
	}
}

// History returns up to limit days, newest first. limit <= 0 returns all.
func (p *DailyHistoryProjection) History(limit int) []DayTotal {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]DayTotal, 0, len(p.days))
	for _, d := range p.days {
		out = append(out, *d)
	}
	// Dates are ISO formatted, so string order is calendar order.
	slices.SortFunc(out, func(a, b DayTotal) int {
		switch {
		case a.Date > b.Date:
			return -1
		case a.Date < b.Date:
			return 1
		}
		return 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Day returns the total for one date.
func (p *DailyHistoryProjection) Day(d steps.Date) (DayTotal, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	day, ok := p.days[d]
	if !ok {
		return DayTotal{}, false
	}
	return *day, true
}

// LastSyncTime returns when Rebuild last completed.
func (p *DailyHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
