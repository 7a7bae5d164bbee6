package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/litterbridge/internal/bridge"
	"github.com/nerrad567/litterbridge/internal/infrastructure/config"
	"github.com/nerrad567/litterbridge/internal/infrastructure/logging"
	"github.com/nerrad567/litterbridge/internal/journal"
	"github.com/nerrad567/litterbridge/internal/litterrobot"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// StateReader returns cached robot state without contacting the vendor.
// *litterrobot.Source satisfies it.
type StateReader interface {
	Cached(externalID string) (litterrobot.DeviceState, bool)
}

// HealthSource reports bridge health. *bridge.Bridge satisfies it.
type HealthSource interface {
	Health() bridge.HealthMessage
}

// Checker is a backing service whose reachability the health endpoint
// reports. The MQTT, database and InfluxDB clients satisfy it.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Devices *litterrobot.DeviceMap
	States  StateReader
	Health  HealthSource

	// Journal is optional; without it /commands answers 503.
	Journal journal.Repository

	// Checks are optional, keyed by the name shown in the health response.
	Checks map[string]Checker
}

// Server is the read-only status API.
//
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	devices *litterrobot.DeviceMap
	states  StateReader
	health  HealthSource
	journal journal.Repository
	checks  map[string]Checker
	server  *http.Server
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device map is required")
	}
	if deps.States == nil {
		return nil, fmt.Errorf("state reader is required")
	}
	if deps.Health == nil {
		return nil, fmt.Errorf("health source is required")
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		devices: deps.Devices,
		states:  deps.States,
		health:  deps.Health,
		journal: deps.Journal,
		checks:  deps.Checks,
	}, nil
}

// Start binds the listener and serves in a background goroutine until
// Close is called. A bind failure is returned immediately.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port)),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}

	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
