package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
	"git.home.luguber.info/inful/stepd/internal/journal"
	"git.home.luguber.info/inful/stepd/internal/server/responses"
	"git.home.luguber.info/inful/stepd/internal/source"
	"git.home.luguber.info/inful/stepd/internal/steps"
)

// Controller is the tracker command surface.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	ResetDaily(ctx context.Context) (steps.Snapshot, error)
	Snapshot() steps.Snapshot
	Availability() source.Availability
}

// HistoryProvider serves per-day totals.
type HistoryProvider interface {
	History(limit int) []journal.DayTotal
}

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 366
)

// APIHandlers serves the step API.
type APIHandlers struct {
	tracker      Controller
	history      HistoryProvider
	sourceName   string
	now          func() time.Time
	errorAdapter *ferrors.HTTPErrorAdapter
}

// NewAPIHandlers creates the API handlers. history may be nil when the
// journal is disabled.
func NewAPIHandlers(tracker Controller, history HistoryProvider, sourceName string, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		tracker:      tracker,
		history:      history,
		sourceName:   sourceName,
		now:          time.Now,
		errorAdapter: ferrors.NewHTTPErrorAdapter(logger),
	}
}

func (h *APIHandlers) snapshotResponse(snap steps.Snapshot) responses.SnapshotResponse {
	now := h.now()
	return responses.SnapshotResponse{
		Snapshot:  snap,
		Today:     snap.At(now).DailySteps,
		Timestamp: now.UTC(),
	}
}

func (h *APIHandlers) write(w http.ResponseWriter, r *http.Request, v any) {
	if err := writeJSONPretty(w, r, http.StatusOK, v); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			ferrors.WrapError(err, ferrors.CategoryInternal, "failed to write response").Build())
	}
}

// HandleSnapshot returns the current snapshot. It never blocks on storage.
func (h *APIHandlers) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, h.snapshotResponse(h.tracker.Snapshot()))
}

func (h *APIHandlers) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, responses.AvailabilityResponse{
		Availability: h.tracker.Availability(),
		Source:       h.sourceName,
	})
}

// HandleHistory returns per-day totals. The optional limit parameter caps
// the number of days.
func (h *APIHandlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.errorAdapter.WriteErrorResponse(w, r, ferrors.NotFoundError("step history journal is disabled").Build())
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			h.errorAdapter.WriteErrorResponse(w, r, ferrors.ValidationError("limit must be between 1 and 366").
				WithContext("limit", raw).
				Build())
			return
		}
		limit = n
	}
	days := h.history.History(limit)
	if days == nil {
		days = []journal.DayTotal{}
	}
	h.write(w, r, responses.HistoryResponse{Days: days})
}

// HandleStart begins counting. A missing counter answers 503.
func (h *APIHandlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.Start(r.Context()); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	h.write(w, r, h.snapshotResponse(h.tracker.Snapshot()))
}

func (h *APIHandlers) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.tracker.Stop(r.Context())
	h.write(w, r, h.snapshotResponse(h.tracker.Snapshot()))
}

// HandleReset re-anchors today's count. The reset is applied even when it
// could not be persisted; that case answers with the persist error.
func (h *APIHandlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	snap, err := h.tracker.ResetDaily(r.Context())
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	h.write(w, r, h.snapshotResponse(snap))
}
