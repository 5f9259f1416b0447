package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPErrorAdapter_StatusCodeFor(t *testing.T) {
	a := NewHTTPErrorAdapter(nil)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", ValidationError("bad").Build(), http.StatusBadRequest},
		{"source", SourceError("no sensor").Build(), http.StatusServiceUnavailable},
		{"persist", PersistError("save").Build(), http.StatusInternalServerError},
		{"not found", NotFoundError("missing").Build(), http.StatusNotFound},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := a.StatusCodeFor(tc.err); got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestHTTPErrorAdapter_WriteErrorResponse(t *testing.T) {
	a := NewHTTPErrorAdapter(nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/start", nil)

	a.WriteErrorResponse(rr, req, SourceError("step counter unavailable").
		WithContext("source", "iio").Build())

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var body HTTPErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != string(CategorySource) || body.Error != "step counter unavailable" {
		t.Errorf("unexpected body %+v", body)
	}
	if body.Retryable {
		t.Error("source errors require user action and are not retryable")
	}
}
