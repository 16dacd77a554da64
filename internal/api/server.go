// Package api provides the HTTP REST API and WebSocket server for NeloFMS.
//
// It exposes the vehicle registry, live and historical telemetry queries,
// ingestion status, and a WebSocket feed of enriched readings to user
// interfaces (web dashboard, mobile apps).
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/samuelsono/nelo-fms/internal/fanout"
	"github.com/samuelsono/nelo-fms/internal/fleet"
	"github.com/samuelsono/nelo-fms/internal/infrastructure/config"
	"github.com/samuelsono/nelo-fms/internal/infrastructure/logging"
	"github.com/samuelsono/nelo-fms/internal/ingest"
	"github.com/samuelsono/nelo-fms/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Publisher sends a raw payload to the broker. Satisfied by the MQTT
// client; kept as an interface so the test-broadcast endpoint can be
// exercised without a broker.
type Publisher interface {
	PublishString(topic string, payload string, qos byte, retained bool) error
	IsConnected() bool
}

// IngestStatus reports the state of the ingestion pipeline.
// Satisfied by the ingest coordinator.
type IngestStatus interface {
	Status() ingest.Status
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Logger    *logging.Logger
	Telemetry *telemetry.Facade
	Fleet     fleet.Repository
	Hub       *fanout.Hub
	Ingest    IngestStatus // optional: /mqtt/status reports stopped without it
	Publisher Publisher    // optional: test-broadcast returns 503 without it
	Version   string
}

// Server is the HTTP API server for NeloFMS.
//
// It manages the HTTP listener, routes, middleware, and the WebSocket
// bridge onto the fanout hub. The server is created with New() and
// started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	telemetry *telemetry.Facade
	fleet     fleet.Repository
	hub       *fanout.Hub
	ingest    IngestStatus
	publisher Publisher
	version   string
	server    *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Telemetry == nil {
		return nil, fmt.Errorf("telemetry facade is required")
	}
	if deps.Fleet == nil {
		return nil, fmt.Errorf("fleet repository is required")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("fanout hub is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		telemetry: deps.Telemetry,
		fleet:     deps.Fleet,
		hub:       deps.Hub,
		ingest:    deps.Ingest,
		publisher: deps.Publisher,
		version:   deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
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
