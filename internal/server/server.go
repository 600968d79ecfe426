// Package server exposes the chat pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cleanrag/internal/domain"
	"cleanrag/internal/logging"
	"cleanrag/internal/metrics"
)

// ChatProcessor is the pipeline entry point the server drives.
type ChatProcessor interface {
	ProcessChat(ctx context.Context, q domain.Query) (*domain.ChatReply, error)
}

type Config struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	Router     *gin.Engine
	httpServer *http.Server
	cfg        Config
	chat       ChatProcessor
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// New wires the routes. gatherer backs /metrics and may be nil to disable it.
func New(cfg Config, chat ChatProcessor, gatherer prometheus.Gatherer, m *metrics.Metrics, logger *zap.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	router := gin.New()
	s := &Server{
		Router:  router,
		cfg:     cfg,
		chat:    chat,
		metrics: m,
		logger:  logging.OrNop(logger),
	}
	router.Use(gin.Recovery(), s.requestID(), s.accessLog())

	router.GET("/healthz", s.healthzHandler)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	api := router.Group("/api")
	{
		api.POST("/chat", s.chatHandler)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) healthzHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.cfg.Addr))

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server failed: %w", err)
			return
		}
		errChan <- nil
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errChan
}
