// Package server exposes liveness and queue statistics over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/huynhanx03/attackq/pkg/honeytrap/pipeline"
	"github.com/huynhanx03/attackq/pkg/settings"
)

const shutdownTimeout = 5 * time.Second

// StatsSource reports pipeline counters.
type StatsSource interface {
	Stats() pipeline.Stats
}

// ConnCounter reports the number of tracked connections.
type ConnCounter interface {
	Len() int
}

// Health is the /healthz body.
type Health struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// StatsView is the /stats body.
type StatsView struct {
	Pipeline    pipeline.Stats `json:"pipeline"`
	Connections int            `json:"connections"`
}

type Server struct {
	engine  *gin.Engine
	addr    string
	started time.Time
	stats   StatsSource
	conns   ConnCounter
	log     *zap.Logger
}

func New(cfg settings.Server, stats StatsSource, conns ConnCounter, log *zap.Logger) *Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	s := &Server{
		engine:  gin.New(),
		addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		started: time.Now(),
		stats:   stats,
		conns:   conns,
		log:     log.Named("server"),
	}

	s.engine.Use(gin.Recovery(), s.accessLog())
	s.engine.GET("/healthz", Wrap(s.health))
	s.engine.GET("/stats", Wrap(s.statsView))
	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) health(context.Context) (Health, error) {
	return Health{Status: "ok", Uptime: time.Since(s.started).Truncate(time.Second).String()}, nil
}

func (s *Server) statsView(context.Context) (StatsView, error) {
	view := StatsView{Pipeline: s.stats.Stats()}
	if s.conns != nil {
		view.Connections = s.conns.Len()
	}
	return view, nil
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "status server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "status server shutdown")
	}
	return nil
}
