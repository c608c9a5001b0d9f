package server

import (
	"image"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MeKo-Tech/keystone/internal/effect"
	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/MeKo-Tech/keystone/internal/warp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes a corner-editing session over HTTP and WebSocket. All
// controller access goes through mu; WebSocket sessions only enqueue commands
// that Step applies.
type Server struct {
	mu       sync.Mutex
	ctrl     *effect.Controller
	renderer *warp.Renderer
	source   image.Image

	corsOrigin string
	tick       time.Duration
	limiter    *RateLimiter
	logger     *slog.Logger

	commands chan command
	hub      *hub
}

// Config holds server configuration.
type Config struct {
	CORSOrigin string
	// Tick is the period at which queued editing commands are applied.
	Tick time.Duration
	// MutationsPerMinute limits PUT/POST/DELETE per client; 0 disables.
	MutationsPerMinute int
	// QueueSize bounds the number of pending editing commands.
	QueueSize int
	Logger    *slog.Logger
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// CornersResponse is returned by the /corners endpoints.
type CornersResponse struct {
	Corners []geom.Point `json:"corners"`
	Editing bool         `json:"editing"`
}

// HomographyResponse is returned by /homography.
type HomographyResponse struct {
	Matrix  geom.Matrix  `json:"matrix"`
	Method  string       `json:"method"`
	Corners []geom.Point `json:"corners"`
}

// EditRequest toggles edit mode.
type EditRequest struct {
	Enabled bool `json:"enabled"`
}

// EditResponse reports the edit mode after a toggle.
type EditResponse struct {
	Editing bool `json:"editing"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// NewServer creates a server around ctrl. renderer must be the controller's
// renderer; it also serves /preview, warping source.
func NewServer(ctrl *effect.Controller, renderer *warp.Renderer, source image.Image, config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Tick <= 0 {
		config.Tick = 16 * time.Millisecond
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1024
	}
	var limiter *RateLimiter
	if config.MutationsPerMinute > 0 {
		limiter = NewRateLimiter(config.MutationsPerMinute)
	}
	return &Server{
		ctrl:       ctrl,
		renderer:   renderer,
		source:     source,
		corsOrigin: config.CORSOrigin,
		tick:       config.Tick,
		limiter:    limiter,
		logger:     logger.With("component", "server"),
		commands:   make(chan command, config.QueueSize),
		hub:        newHub(),
	}
}

// Close disconnects all WebSocket sessions.
func (s *Server) Close() error {
	s.hub.closeAll()
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	s.handle(mux, "/health", s.healthHandler, false)
	s.handle(mux, "/corners", s.cornersHandler, true)
	s.handle(mux, "/homography", s.homographyHandler, false)
	s.handle(mux, "/edit", s.editHandler, true)
	s.handle(mux, "/preview", s.previewHandler, false)
	mux.HandleFunc("/ws", s.editWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}
