package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Server struct {
	Engine *gin.Engine
	Addr   string
	data   DataReadiness
}

// DataReadiness reports whether the processed layer is present on disk.
// The query service implements it.
type DataReadiness interface {
	DataReady() bool
}

func New(addr string, data DataReadiness, mode string) *Server {
	// Set Gin mode based on configuration
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	s := &Server{
		Engine: r,
		Addr:   addr,
		data:   data,
	}

	// Health check endpoint reporting data-layer readiness. The API
	// itself stays up with empty layers; degraded means queries will
	// return data_unavailable until a pipeline run completes.
	r.GET("/health", s.healthHandler)

	return s
}

func (s *Server) healthHandler(c *gin.Context) {
	if s.data != nil && !s.data.DataReady() {
		c.JSON(http.StatusOK, gin.H{
			"status": "degraded",
			"data":   "incomplete",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"data":   "ready",
	})
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.Addr,
		Handler: s.Engine,
	}

	slog.Info("Starting HTTP Server...", "address", s.Addr)

	go func() {
		<-ctx.Done()
		slog.Info("Stopping HTTP Server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP Server forced to shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
