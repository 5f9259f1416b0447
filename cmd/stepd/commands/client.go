package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
	"git.home.luguber.info/inful/stepd/internal/server/responses"
)

const clientTimeout = 3 * time.Second

// errDaemonUnreachable means no daemon answered; callers fall back to the
// stored record.
var errDaemonUnreachable = errors.New("daemon not reachable")

// daemonClient talks to the command surface of a running daemon.
type daemonClient struct {
	base string
	http *http.Client
}

func newDaemonClient(addr string) *daemonClient {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &daemonClient{base: strings.TrimRight(base, "/"), http: &http.Client{Timeout: clientTimeout}}
}

func (c *daemonClient) Snapshot(ctx context.Context) (responses.SnapshotResponse, error) {
	return c.do(ctx, http.MethodGet, "/api/v1/snapshot")
}

func (c *daemonClient) Reset(ctx context.Context) (responses.SnapshotResponse, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/reset")
}

func (c *daemonClient) do(ctx context.Context, method, path string) (responses.SnapshotResponse, error) {
	var out responses.SnapshotResponse
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return out, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return out, fmt.Errorf("%w: %w", errDaemonUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var body ferrors.HTTPErrorResponse
		if derr := json.NewDecoder(resp.Body).Decode(&body); derr != nil || body.Error == "" {
			body.Error = resp.Status
		}
		return out, ferrors.NewError(categoryForStatus(resp.StatusCode), body.Error).
			WithContext("status", resp.StatusCode).
			WithContext("path", path).
			Build()
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, ferrors.WrapError(err, ferrors.CategoryNetwork, "decode daemon response").Build()
	}
	return out, nil
}

func categoryForStatus(code int) ferrors.ErrorCategory {
	switch {
	case code == http.StatusServiceUnavailable:
		return ferrors.CategoryDaemon
	case code >= 500:
		return ferrors.CategoryPersist
	case code == http.StatusNotFound:
		return ferrors.CategoryNotFound
	default:
		return ferrors.CategoryValidation
	}
}
