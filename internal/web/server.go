package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kozaktomas/facecheck/internal/capture"
	"github.com/kozaktomas/facecheck/internal/config"
	"github.com/kozaktomas/facecheck/internal/metrics"
	"github.com/kozaktomas/facecheck/internal/photo"
	"github.com/kozaktomas/facecheck/internal/status"
	"github.com/kozaktomas/facecheck/internal/web/handlers"
	"github.com/kozaktomas/facecheck/internal/web/middleware"
)

// apiTimeout bounds plain API requests. The frame stream and the event stream
// are long-lived and are not subject to it.
const apiTimeout = 30 * time.Second

// Deps are the shared components the HTTP API exposes.
type Deps struct {
	Frames   *capture.Buffer
	Photos   *photo.Store
	Board    *status.Board
	Pipeline handlers.Restarter
	Logger   *zap.Logger
}

// Server represents the web server
type Server struct {
	config     *config.Config
	deps       Deps
	origins    middleware.Origins
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, deps Deps, port int, host string) *Server {
	r := chi.NewRouter()
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	s := &Server{
		config:  cfg,
		deps:    deps,
		origins: middleware.ParseAllowedOrigins(),
		router:  r,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(metrics.Middleware())
	r.Use(middleware.CORS(s.origins))
	r.Use(middleware.SecurityHeaders())

	// Set up routes
	s.setupRoutes()

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.deps.Logger.Info("starting web server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Logger.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
