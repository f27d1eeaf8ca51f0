package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/fakecam/internal/api/models"
	"github.com/smazurov/fakecam/internal/audio"
	"github.com/smazurov/fakecam/internal/devices"
	"github.com/smazurov/fakecam/internal/events"
	"github.com/smazurov/fakecam/internal/logging"
	"github.com/smazurov/fakecam/internal/monitor"
	"github.com/smazurov/fakecam/internal/prefs"
	"github.com/smazurov/fakecam/internal/process"
	"github.com/smazurov/fakecam/internal/version"
	"github.com/smazurov/fakecam/internal/video"
)

// ProcessTable is the registry view the API needs. *process.Registry satisfies it.
type ProcessTable interface {
	Snapshot() []process.Status
	StopAll(timeout time.Duration) map[string]bool
}

// VideoController is satisfied by *video.Manager.
type VideoController interface {
	Start(ctx context.Context, source string) error
	Stop() bool
	SetVMMode(ctx context.Context, enabled bool) error
	Download(ctx context.Context, source string) error
	Status() video.Status
}

// AudioController is satisfied by *audio.Manager.
type AudioController interface {
	Start(ctx context.Context, source string) error
	Stop() bool
	Generate(ctx context.Context, source string) error
	ClearCache() (int, error)
	Engines() []string
	Status() audio.Status
}

// DeviceController is satisfied by *devices.Manager.
type DeviceController interface {
	SetupAll(ctx context.Context) (videoOK, audioOK bool)
	TeardownAll(ctx context.Context) bool
	Status(ctx context.Context) devices.Status
}

// MonitorSource is satisfied by *monitor.System.
type MonitorSource interface {
	All(ctx context.Context) monitor.Snapshot
}

// PrefsStore is satisfied by *prefs.Store.
type PrefsStore interface {
	Get() prefs.Preferences
	SetVideoSelection(name string) error
	SetAudioSelection(name string) error
	SetVMMode(enabled bool) error
}

// Options wires the server to the running components. Nil components
// leave their routes unregistered.
type Options struct {
	AuthUsername string
	AuthPassword string

	Processes   ProcessTable
	StopTimeout time.Duration
	Video       VideoController
	Audio       AudioController
	Devices     DeviceController
	Monitor     MonitorSource
	Prefs       PrefsStore
	EventBus    *events.Bus

	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// Server is the fakecam HTTP API.
type Server struct {
	api      huma.API
	mux      *http.ServeMux
	options  *Options
	eventBus *events.Bus
	logger   *slog.Logger

	mu         sync.Mutex // guards httpServer and closed
	httpServer *http.Server
	closed     bool
}

// NewServer creates a new API server with Huma v2 using Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("fakecam API", version.String())
	config.Info.Description = "Virtual camera and microphone control"
	// Empty servers list makes OpenAPI use relative paths
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 2 * time.Second
	}

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(basicAuthMiddleware(api, opts.AuthUsername, opts.AuthPassword))
	}

	// Outside huma so scrapers need no auth
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	return server
}

// GetMux returns the underlying HTTP ServeMux for additional setup.
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// GetAPI returns the Huma API instance.
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting fakecam API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	hs := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.httpServer = hs
	s.mu.Unlock()

	err := hs.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop closes the listener and all connections, SSE streams included. A
// Start that has not begun listening yet returns without serving.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	s.mu.Lock()
	s.closed = true
	hs := s.httpServer
	s.mu.Unlock()
	if hs != nil {
		return hs.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				Modified:  info.Modified,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	if s.options.Processes != nil {
		s.registerProcessRoutes()
	}
	if s.options.Video != nil {
		s.registerVideoRoutes()
	}
	if s.options.Audio != nil {
		s.registerAudioRoutes()
	}
	s.registerLibraryRoutes()
	if s.options.Devices != nil {
		s.registerDeviceRoutes()
	}
	if s.options.Monitor != nil {
		s.registerMonitorRoutes()
	}
	if s.options.Prefs != nil {
		s.registerPrefsRoutes()
	}
	if s.eventBus != nil {
		s.registerSSERoutes()
		s.registerLogRoutes()
		s.registerMetricsRoutes()
	}
}

// withAuth returns security requirement for basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
