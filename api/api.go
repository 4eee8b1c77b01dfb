// Package api exposes the sign-in service and run inspection over HTTP
// with gin.
//
// Routes:
//
//	POST /auth/signin/email        request a code
//	POST /auth/verify/otp          verify a code
//	GET  /v1/runs                  list runs (admin, local executor only)
//	GET  /v1/runs/:runId           get a run (admin)
//	GET  /v1/runs/:runId/timeline  list a run's checkpointed steps (admin)
//	GET  /healthz                  store health
//	GET  /metrics                  Prometheus metrics
package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vndocker/pos-AI-community/auth"
	"github.com/vndocker/pos-AI-community/workflow"
)

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Option configures the API.
type Option func(*API)

// WithRunner sets the runner behind the /v1/runs routes. The routes are
// mounted only when WithAdminToken is also set.
func WithRunner(r *workflow.Runner) Option {
	return func(a *API) { a.runner = r }
}

// WithAdminToken sets the bearer token required by the /v1/runs routes.
func WithAdminToken(token string) Option {
	return func(a *API) { a.adminToken = token }
}

// WithHealth sets the backend checked by /healthz.
func WithHealth(p Pinger) Option {
	return func(a *API) { a.health = p }
}

// WithCORSOrigins sets the allowed browser origins. Empty allows all.
func WithCORSOrigins(origins ...string) Option {
	return func(a *API) { a.origins = origins }
}

// WithMetricsHandler replaces the default promhttp handler.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *API) { a.metrics = h }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// API wires the HTTP handlers together.
type API struct {
	svc        *auth.Service
	runner     *workflow.Runner
	adminToken string
	health     Pinger
	origins    []string
	metrics    http.Handler
	logger     *slog.Logger
}

// New creates an API over svc.
func New(svc *auth.Service, opts ...Option) *API {
	a := &API{
		svc:     svc,
		metrics: promhttp.Handler(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), a.requestLogger(), a.cors())
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers every route on r.
func (a *API) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/auth")
	g.POST("/signin/email", a.requestCode)
	g.POST("/verify/otp", a.verifyCode)

	if a.runner != nil && a.adminToken != "" {
		v1 := r.Group("/v1", a.requireAdmin())
		v1.GET("/runs", a.listRuns)
		v1.GET("/runs/:runId", a.getRun)
		v1.GET("/runs/:runId/timeline", a.getTimeline)
	}

	r.GET("/healthz", a.healthz)
	r.GET("/metrics", gin.WrapH(a.metrics))
}

// requireAdmin rejects requests without the admin bearer token.
func (a *API) requireAdmin() gin.HandlerFunc {
	want := []byte(a.adminToken)
	return func(c *gin.Context) {
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Detail: "admin token required"})
			return
		}
		c.Next()
	}
}

func (a *API) cors() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        12 * time.Hour,
	}
	if len(a.origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = a.origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// requestLogger logs one line per request.
func (a *API) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}

func (a *API) healthz(c *gin.Context) {
	if a.health != nil {
		if err := a.health.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "detail": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
