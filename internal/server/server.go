// Package server exposes lina over HTTP. Every WebSocket connection owns one
// driver and one event loop, so a browser tab behaves like the terminal host.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/oMatheuss/lina/internal/config"
	"github.com/oMatheuss/lina/internal/logging"
	"github.com/oMatheuss/lina/internal/metrics"
	lruntime "github.com/oMatheuss/lina/runtime"
)

type Server struct {
	router  *gin.Engine
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	vmOpts  []lruntime.Option
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = logging.OrNop(l) }
}

// WithMachineOptions is applied to every machine the server constructs.
func WithMachineOptions(opts ...lruntime.Option) Option {
	return func(s *Server) { s.vmOpts = append(s.vmOpts, opts...) }
}

// New builds the router. Collectors are registered on reg, which also backs
// /metrics.
func New(cfg *config.Config, reg *prometheus.Registry, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Server{
		cfg:     cfg,
		log:     zap.NewNop(),
		metrics: metrics.New(reg),
	}
	for _, opt := range opts {
		opt(s)
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log), cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/healthz", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	router.GET("/ws", s.serveTerminal)
	s.router = router
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Run serves on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"step_budget": s.cfg.Driver.StepBudget,
	})
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
