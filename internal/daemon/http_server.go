package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
	"git.home.luguber.info/inful/stepd/internal/logfields"
	"git.home.luguber.info/inful/stepd/internal/metrics"
	"git.home.luguber.info/inful/stepd/internal/server/handlers"
	smw "git.home.luguber.info/inful/stepd/internal/server/middleware"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// HTTPServer serves the command surface, health and metrics endpoints.
type HTTPServer struct {
	addr   string
	daemon *Daemon
	logger *slog.Logger

	mu     sync.Mutex
	server *http.Server
	ln     net.Listener
	errCh  chan error
}

// NewHTTPServer creates the server for d. Nothing is bound until Start.
func NewHTTPServer(addr string, d *Daemon) *HTTPServer {
	return &HTTPServer{addr: addr, daemon: d, logger: d.logger}
}

// Handler builds the routed and middleware-wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	d := s.daemon
	var history handlers.HistoryProvider
	if d.history != nil {
		history = d.history
	}

	monitoring := handlers.NewMonitoringHandlers(d, s.logger)
	api := handlers.NewAPIHandlers(d.tracker, history, d.counter.Name(), s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", monitoring.HandleHealthCheck)
	mux.HandleFunc("GET /api/v1/snapshot", api.HandleSnapshot)
	mux.HandleFunc("GET /api/v1/availability", api.HandleAvailability)
	mux.HandleFunc("GET /api/v1/history", api.HandleHistory)
	mux.HandleFunc("POST /api/v1/start", api.HandleStart)
	mux.HandleFunc("POST /api/v1/stop", api.HandleStop)
	mux.HandleFunc("POST /api/v1/reset", api.HandleReset)
	mux.Handle("GET /metrics", metrics.HTTPHandler(d.registry))

	return smw.Chain(s.logger, ferrors.NewHTTPErrorAdapter(s.logger))(mux)
}

// Start binds the listener up front so an address in use fails the daemon
// start instead of surfacing later in a log line.
func (s *HTTPServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "http startup failed").
			WithContext("addr", s.addr).
			Build()
	}
	s.ln = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.errCh = make(chan error, 1)

	go func(srv *http.Server, errCh chan<- error) {
		if serr := srv.Serve(ln); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", logfields.Error(serr))
			errCh <- serr
		}
		close(errCh)
	}(s.server, s.errCh)

	s.logger.Info("HTTP server started", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr reports the bound address, or the configured one before Start.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop shuts the server down gracefully. It is a no-op when not started.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, errCh := s.server, s.errCh
	s.server = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
	}
	if err := srv.Shutdown(ctx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "http shutdown failed").Build()
	}
	return <-errCh
}
