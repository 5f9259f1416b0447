package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/stepd/internal/server/responses"
)

type stubDaemon struct {
	status string
}

func (s stubDaemon) StatusString() string { return s.status }
func (stubDaemon) StartTime() time.Time   { return time.Now().Add(-time.Hour) }
func (stubDaemon) SessionID() string      { return "sess" }
func (stubDaemon) Listening() bool        { return true }

func TestHandleHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	NewMonitoringHandlers(stubDaemon{status: "running"}, nil).HandleHealthCheck(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[responses.HealthResponse](t, rec)
	require.Equal(t, "healthy", body.Status)
	require.Equal(t, "sess", body.SessionID)
	require.True(t, body.Listening)
	require.Greater(t, body.Uptime, 3000.0)

	rec = httptest.NewRecorder()
	NewMonitoringHandlers(stubDaemon{status: "stopping"}, nil).HandleHealthCheck(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "unhealthy", decode[responses.HealthResponse](t, rec).Status)
}
