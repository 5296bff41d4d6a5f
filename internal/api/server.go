// Package api provides the HTTP REST API and WebSocket server for
// Moonbridge.
//
// It exposes printer state, entity values, job history, and camera
// images to dashboards and tooling, and accepts printer commands over
// authenticated routes.
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

	"github.com/moonbridge/moonbridge/internal/bridge"
	"github.com/moonbridge/moonbridge/internal/camera"
	"github.com/moonbridge/moonbridge/internal/entity"
	"github.com/moonbridge/moonbridge/internal/infrastructure/config"
	"github.com/moonbridge/moonbridge/internal/infrastructure/logging"
	"github.com/moonbridge/moonbridge/internal/moonraker"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// CommandBridge is the bridge surface the API needs: command execution
// shared with the MQTT path, metrics, and change listeners for the
// WebSocket relay.
type CommandBridge interface {
	ExecuteCommand(ctx context.Context, cmd bridge.CommandMessage) error
	GetMetrics() bridge.Metrics
	KlippyReady() bool
	AddListener(fn func(entity.Entity))
	AddEventListener(fn func(bridge.EventMessage))
}

// CameraSource provides webcam listings and image fetches.
type CameraSource interface {
	List() []camera.Webcam
	Refresh(ctx context.Context) error
	Snapshot(ctx context.Context, name string) ([]byte, string, error)
	PrintThumbnail(ctx context.Context, filename string) ([]byte, string, error)
}

// MQTTStatus reports broker connectivity for the metrics endpoint.
type MQTTStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Registry *entity.Registry
	History  entity.StateHistoryRepository // Optional
	Jobs     entity.JobRepository          // Optional
	Bridge   CommandBridge
	Printer  moonraker.API
	Cameras  CameraSource // Optional
	MQTT     MQTTStatus   // Optional
	Version  string
}

// Server is the HTTP API server for Moonbridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	registry *entity.Registry
	history  entity.StateHistoryRepository
	jobs     entity.JobRepository
	bridge   CommandBridge
	printer  moonraker.API
	cameras  CameraSource
	mqtt     MQTTStatus
	version  string

	startTime time.Time
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("entity registry is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}
	if deps.Printer == nil {
		return nil, fmt.Errorf("printer client is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		registry:  deps.Registry,
		history:   deps.History, // May be nil (optional)
		jobs:      deps.Jobs,    // May be nil (optional)
		bridge:    deps.Bridge,
		printer:   deps.Printer,
		cameras:   deps.Cameras, // May be nil (optional)
		mqtt:      deps.MQTT,    // May be nil (optional)
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, wires bridge change
// listeners for real-time broadcast, and launches the HTTP listener in
// a background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	s.wireBridgeEvents()

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
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// wireBridgeEvents relays bridge changes to WebSocket channels.
func (s *Server) wireBridgeEvents() {
	s.bridge.AddListener(func(e entity.Entity) {
		s.hub.Broadcast(ChannelEntityState, e)
	})

	s.bridge.AddEventListener(func(evt bridge.EventMessage) {
		switch evt.Type {
		case bridge.EventJobFinished:
			s.hub.Broadcast(ChannelJobFinished, evt)
		default:
			s.hub.Broadcast(ChannelPrinterStatus, evt)
		}
	})
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
