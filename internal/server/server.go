// Package server provides the HTTP front end for elastipass.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/elastipass/internal/config"
	"github.com/hyperjump/elastipass/internal/metrics"
	"github.com/hyperjump/elastipass/internal/models"
)

const defaultRequestTimeout = 60 * time.Second

// Searcher answers one search request from its raw parameters.
type Searcher interface {
	Search(ctx context.Context, raw map[string]any) (*models.Response, error)
}

// WatchService manages dump directories at runtime (add/remove/list).
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// DocCounter reports how many accounts the embedded index holds.
type DocCounter interface {
	DocCount() (uint64, error)
}

// Server is the HTTP server for the elastipass API.
type Server struct {
	gateway        Searcher
	config         *config.ServerConfig
	logger         *zap.Logger
	watch          WatchService
	configPath     string
	fullConfig     *config.Config
	configMu       sync.Mutex
	counter        DocCounter
	dataPaths      map[string]string
	requestTimeout time.Duration
	limiter        *rateLimiter
	server         *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithDocCounter adds the account count to /health.
func WithDocCounter(c DocCounter) Option {
	return func(s *Server) { s.counter = c }
}

// WithDataPaths adds the disk usage of the named local data paths to /health.
func WithDataPaths(paths map[string]string) Option {
	return func(s *Server) { s.dataPaths = paths }
}

// WithRequestTimeout bounds how long a request may run.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// NewServer creates a server. watch may be nil; configPath and fullCfg are used to persist
// watch directory changes and may be empty.
func NewServer(
	gateway Searcher,
	cfg *config.ServerConfig,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
	fullCfg *config.Config,
	opts ...Option,
) *Server {
	s := &Server{
		gateway:        gateway,
		config:         cfg,
		logger:         logger,
		watch:          watch,
		configPath:     configPath,
		fullConfig:     fullCfg,
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(metrics.Middleware())
	if rl := s.config.RateLimit; rl.RequestsPerSecond > 0 {
		if s.limiter == nil {
			s.limiter = newRateLimiter(rl.RequestsPerSecond, rl.Burst, rl.TrustForwarded)
		}
		r.Use(s.limiter.middleware)
	}

	r.Get("/api", s.handleSearch)
	r.Post("/api", s.handleSearch)
	r.Get("/api/", s.handleSearch)
	r.Post("/api/", s.handleSearch)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/admin/watch/directories", s.handleWatchDirectoriesList)
	r.Post("/admin/watch/directories", s.handleWatchDirectoriesAdd)
	r.Delete("/admin/watch/directories", s.handleWatchDirectoriesRemove)

	r.Get("/", s.handleIndex)
	r.Get("/index.html", s.handleIndex)
	static := filepath.Join(s.config.StaticDir, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(static))))
	return r
}

// Start starts the HTTP server and blocks until it stops. TLS is used when both the
// certificate and key files exist.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	var err error
	if s.tlsEnabled() {
		s.logger.Info("Starting server", zap.String("addr", addr), zap.Bool("tls", true))
		err = s.server.ListenAndServeTLS(s.config.TLSCert, s.config.TLSKey)
	} else {
		s.logger.Info("Starting server", zap.String("addr", addr), zap.Bool("tls", false))
		err = s.server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) tlsEnabled() bool {
	return fileExists(s.config.TLSCert) && fileExists(s.config.TLSKey)
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
