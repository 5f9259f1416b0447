package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
)

func TestChainRecoversPanics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := Chain(logger, ferrors.NewHTTPErrorAdapter(logger))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reset", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ferrors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "internal server error", body.Error)
	require.Contains(t, buf.String(), "HTTP handler panic")
	require.Contains(t, buf.String(), "status=500")
}

func TestChainLogsRequests(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := Chain(logger, ferrors.NewHTTPErrorAdapter(logger))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/start", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, buf.String(), "path=/api/v1/start")
	require.Contains(t, buf.String(), "status=202")
	require.Contains(t, buf.String(), "level=INFO")
}
