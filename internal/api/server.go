package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/lnbridge/internal/discovery"
	"github.com/nerrad567/lnbridge/internal/infrastructure/logging"
)

// Server timeouts.
const (
	readTimeout             = 5 * time.Second
	writeTimeout            = 10 * time.Second
	idleTimeout             = 60 * time.Second
	gracefulShutdownTimeout = 5 * time.Second
	healthCheckTimeout      = 2 * time.Second
)

// HealthChecker is a dependency whose reachability /api/v1/health reports.
// The MQTT transport, database and InfluxDB clients implement it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// PeerLister reads the peer registry.
type PeerLister interface {
	Peers(ctx context.Context) ([]discovery.Peer, error)
	Peer(ctx context.Context, node string) (discovery.Peer, error)
}

// Deps holds the dependencies required by the status server.
type Deps struct {
	// Listen is the TCP address, e.g. ":9108".
	Listen string

	Logger *logging.Logger

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// Peers backs /api/v1/peers when set.
	Peers PeerLister

	// Status backs /api/v1/status when set.
	Status *StatusBoard

	// Checks are run by /api/v1/health, keyed by component name.
	Checks map[string]HealthChecker

	Version string
}

// Server is the HTTP status server.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Server struct {
	listen    string
	logger    *logging.Logger
	metrics   http.Handler
	peers     PeerLister
	status    *StatusBoard
	checks    map[string]HealthChecker
	version   string
	startTime time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a status server. It does not listen until Start.
func New(deps Deps) (*Server, error) {
	if deps.Listen == "" {
		return nil, fmt.Errorf("api: listen address is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Server{
		listen:    deps.Listen,
		logger:    logger,
		metrics:   deps.Metrics,
		peers:     deps.Peers,
		status:    deps.Status,
		checks:    deps.Checks,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listen address and serves in the background. Bind errors
// are returned; later serve errors are logged.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api: server already started")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.listen)
	if err != nil {
		return fmt.Errorf("api: listening on %s: %w", s.listen, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", "error", err)
		}
	}()

	s.logger.Info("status server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the server, waiting briefly for in-flight
// requests.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("status server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status server: %w", err)
	}
	return nil
}
