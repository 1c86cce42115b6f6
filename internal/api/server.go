package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/wonny/quoteboard/pkg/config"
	"github.com/wonny/quoteboard/pkg/logger"
)

const (
	// REST handlers answer from memory; slow headers are the only thing to guard
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	// Websocket connections are hijacked and manage their own deadlines
	idleTimeout = 120 * time.Second
)

// Server serves the REST API and the /ws dashboard stream
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
	config     *config.Config

	mu    sync.Mutex
	addr  net.Addr
	ready chan struct{}
}

// New creates a new API server
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
		logger: log.WithComponent("api"),
		config: cfg,
		ready:  make(chan struct{}),
	}
}

// Start listens on the configured port and blocks until the server stops.
// PORT=0 picks a free port; Addr reports it.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	close(s.ready)
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"addr": ln.Addr().String(),
		"env":  s.config.Env,
		"ws":   "/ws",
	}).Info("Starting API server")

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}

// Ready is closed once the server is listening
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the listening address, or nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Shutdown stops accepting requests and waits for in-flight REST calls.
// Hijacked websocket connections are not tracked by net/http; the hub
// closes them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
