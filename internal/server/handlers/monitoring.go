package handlers

import (
	"log/slog"
	"net/http"
	"time"

	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
	"git.home.luguber.info/inful/stepd/internal/server/responses"
	"git.home.luguber.info/inful/stepd/internal/version"
)

// DaemonInterface defines the daemon methods needed by monitoring handlers.
type DaemonInterface interface {
	StatusString() string
	StartTime() time.Time
	SessionID() string
	Listening() bool
}

// MonitoringHandlers contains monitoring-related HTTP handlers.
type MonitoringHandlers struct {
	daemon       DaemonInterface
	errorAdapter *ferrors.HTTPErrorAdapter
}

func NewMonitoringHandlers(daemon DaemonInterface, logger *slog.Logger) *MonitoringHandlers {
	return &MonitoringHandlers{
		daemon:       daemon,
		errorAdapter: ferrors.NewHTTPErrorAdapter(logger),
	}
}

// HandleHealthCheck reports liveness. It answers 503 unless the daemon is
// running, whether or not steps are currently being counted.
func (h *MonitoringHandlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health := &responses.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
	}
	code := http.StatusOK
	if h.daemon != nil {
		health.DaemonStatus = h.daemon.StatusString()
		health.SessionID = h.daemon.SessionID()
		health.Listening = h.daemon.Listening()
		if start := h.daemon.StartTime(); !start.IsZero() {
			health.Uptime = time.Since(start).Seconds()
		}
		if health.DaemonStatus != "running" {
			health.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	if err := writeJSONPretty(w, r, code, health); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			ferrors.WrapError(err, ferrors.CategoryInternal, "failed to write health response").Build())
	}
}
