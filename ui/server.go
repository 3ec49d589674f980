package ui

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"obsnote/app"
	"obsnote/internal/api"
	"obsnote/internal/metrics"
)

// Services are the application services the server exposes
type Services struct {
	BubbleUp    *app.BubbleUpService
	LogPatterns *app.LogPatternService
	Paragraphs  *app.ParagraphService
	AgentTraces *app.AgentTraceService
	Events      *api.SSEHub
	Metrics     *metrics.Metrics
}

// Server is the HTTP front of the notebook analyses
type Server struct {
	router   *gin.Engine
	services Services
	// runs holds asynchronous analyses so shutdown can wait for them
	runs *runTracker
}

// NewServer creates a server with all routes registered
func NewServer(services Services) *Server {
	s := &Server{
		router:   gin.New(),
		services: services,
		runs:     newRunTracker(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	if s.services.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.services.Metrics.Handler()))
	}

	paragraphs := s.router.Group("/api/paragraphs/:id")
	{
		paragraphs.POST("/bubbleup", s.handleBubbleUp)
		paragraphs.POST("/logpatterns", s.handleLogPatterns)
		paragraphs.GET("/state", s.handleState)
		paragraphs.GET("/output", s.handleOutput)
		paragraphs.DELETE("/output", s.handleDeleteOutput)
		paragraphs.GET("/report", s.handleReport)
		paragraphs.GET("/events", s.services.Events.HandleSSE)
	}

	traces := s.router.Group("/api/agent/traces/:id")
	{
		traces.POST("", s.handleStartTraces)
		traces.GET("", s.handleTraces)
		traces.DELETE("", s.handleStopTraces)
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is canceled, then drains in-flight
// requests and background analyses.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", addr).Info("starting obsnote server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logrus.Info("shutting down obsnote server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if s.services.AgentTraces != nil {
		s.services.AgentTraces.StopAll()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.runs.wait(shutdownCtx)
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
