// Package http provides the transport for the decision core: a single
// evaluate-login operation plus liveness/readiness probes, built on
// chi the way the original firewall transport was. None of this
// package's internals are part of the decision core's correctness
// surface (spec §1) -- it only validates, dispatches, and renders.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"sentrydesk/internal/decisionflow"
)

// Router wraps chi.Router with the decision core's configuration.
type Router struct {
	*chi.Mux
	logger    *zap.Logger
	flow      *decisionflow.Flow
	validator *validator.Validate
	maxBytes  int64
	ready     func() map[string]string
}

// RouterConfig holds configuration for creating a router.
type RouterConfig struct {
	Logger *zap.Logger
	Flow   *decisionflow.Flow

	// RequestMaxBytes bounds the evaluate-login request body.
	RequestMaxBytes int64

	// ReadinessChecks, if set, is consulted by /readyz; each key/value
	// pair becomes an entry in the response's checks map, and any value
	// other than "ok" fails the probe.
	ReadinessChecks func() map[string]string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) *Router {
	maxBytes := cfg.RequestMaxBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	ready := cfg.ReadinessChecks
	if ready == nil {
		ready = func() map[string]string { return map[string]string{} }
	}

	r := &Router{
		Mux:       chi.NewRouter(),
		logger:    cfg.Logger,
		flow:      cfg.Flow,
		validator: validator.New(),
		maxBytes:  maxBytes,
		ready:     ready,
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", r.handleHealthz)
	r.Get("/readyz", r.handleReadyz)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/evaluate-login", r.handleEvaluateLogin)
	})

	return r
}

// RequestLogger returns a middleware that logs requests, the same
// shape the teacher's firewall transport logs with.
func RequestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
