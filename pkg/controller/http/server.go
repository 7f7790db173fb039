package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// config holds internal HTTP server configuration
type config struct {
	addr   string
	logger *slog.Logger
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithLogger sets the request logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Server represents the HTTP server
type Server struct {
	*http.Server
}

// NewServer creates an HTTP server publishing the result file at outputPath
// once state has recorded a refresh
func NewServer(outputPath string, state *RefreshState, opts ...Option) *Server {
	// Default configuration
	cfg := &config{
		addr:   "localhost:8080",
		logger: slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	if state == nil {
		state = &RefreshState{}
	}

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(cfg.logger))
	router.Use(middleware.Recoverer)

	results := &resultHandler{path: outputPath, state: state, logger: cfg.logger}
	router.Get("/health", results.handleHealth)
	router.Get("/downloads_count.json", results.handleResult)

	return &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
	}
}
