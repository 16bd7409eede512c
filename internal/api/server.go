// internal/api/server.go
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"change-order-generator/internal/common/database"
	apperrors "change-order-generator/internal/common/errors"
	"change-order-generator/internal/common/logger"
	"change-order-generator/internal/models"
	"change-order-generator/internal/pipeline"
)

// Runner executes one generation run.
type Runner interface {
	Run(ctx context.Context, req models.GenerationRequest) (*pipeline.Result, error)
	Health(ctx context.Context) error
}

// Limiter counts requests per client key.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*database.RateLimitResult, error)
}

type RateLimitOptions struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

type Options struct {
	Service             string
	Version             string
	MaxUploadBytes      int64
	ReasoningConfigured bool
	StorageConfigured   bool
	ReadyTimeout        time.Duration
	RateLimit           RateLimitOptions
}

type Server struct {
	runner  Runner
	limiter Limiter
	opts    Options
	logger  logger.Logger
	errors  *apperrors.ErrorHandler
	now     func() time.Time
}

// NewServer wires the HTTP surface. limiter may be nil when rate limiting is
// disabled.
func NewServer(runner Runner, limiter Limiter, opts Options, log logger.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 5 * time.Second
	}
	if limiter == nil {
		opts.RateLimit.Enabled = false
	}
	scoped := log.WithFields(map[string]interface{}{"component": "api"})
	return &Server{
		runner:  runner,
		limiter: limiter,
		opts:    opts,
		logger:  scoped,
		errors:  apperrors.NewErrorHandler(scoped),
		now:     time.Now,
	}
}

// Router returns the chi router with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/", s.index)
	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/generate-from-text", s.generateFromText)
		r.Post("/generate-from-pdf", s.generateFromPDF)
	})

	return r
}
