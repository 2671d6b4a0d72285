package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/workbench-core/internal/audit"
	"github.com/nerrad567/workbench-core/internal/auth"
	"github.com/nerrad567/workbench-core/internal/discovery"
	"github.com/nerrad567/workbench-core/internal/infrastructure/config"
	"github.com/nerrad567/workbench-core/internal/infrastructure/database"
	"github.com/nerrad567/workbench-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/workbench-core/internal/infrastructure/logging"
	"github.com/nerrad567/workbench-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/workbench-core/internal/printer"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Discoverer finds printers on the local network. *discovery.Discoverer
// implements it.
type Discoverer interface {
	Discover(ctx context.Context) ([]discovery.Candidate, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Printers *printer.Manager
	Auth     *auth.Authenticator

	// Optional collaborators. A nil value disables the matching feature.
	DB         *database.DB
	Discoverer Discoverer
	Audit      audit.Repository // optional; GET /audit returns 503 when nil
	MQTT       *mqtt.Client
	Influx     *influxdb.Client
	Gatherer   prometheus.Gatherer

	Version string
}

// Server is the HTTP API server for Workbench.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	printers   *printer.Manager
	auth       *auth.Authenticator
	db         *database.DB
	discoverer Discoverer
	audit      audit.Repository
	mqtt       *mqtt.Client
	influx     *influxdb.Client
	gatherer   prometheus.Gatherer
	version    string

	hub       *Hub
	tickets   *ticketStore
	server    *http.Server
	startTime time.Time
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies and registers
// the WebSocket hub as a printer event sink. Call it before the manager
// starts serving requests.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Printers == nil {
		return nil, fmt.Errorf("printer manager is required")
	}
	if deps.Auth == nil && !deps.Security.DevMode {
		return nil, fmt.Errorf("authenticator is required unless dev mode is enabled")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		printers:   deps.Printers,
		auth:       deps.Auth,
		db:         deps.DB,
		discoverer: deps.Discoverer,
		audit:      deps.Audit,
		mqtt:       deps.MQTT,
		influx:     deps.Influx,
		gatherer:   deps.Gatherer,
		version:    deps.Version,
		hub:        NewHub(deps.Logger, deps.Printers),
		tickets:    newTicketStore(),
		startTime:  time.Now(),
	}
	s.printers.AddSink(s.hub)

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and ticket cleanup, then launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
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
			s.logger.Info("API server starting", "address", s.server.Addr, "dev_mode", s.secCfg.DevMode)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

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
