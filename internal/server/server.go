// Package server exposes the worker's HTTP endpoints: health, Prometheus
// metrics and read-only report status.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"medreport/internal/logger"
	"medreport/internal/store"
	"medreport/pkg/models"
)

// ReportReader reads processed reports.
type ReportReader interface {
	GetProcessedReport(ctx context.Context, reportID string) (*models.ProcessedReport, error)
	IsReportProcessed(ctx context.Context, reportID string) (bool, error)
}

// StatusResponse is the body of GET /api/v1/reports/:id.
type StatusResponse struct {
	Processed bool                    `json:"processed"`
	Report    *models.ProcessedReport `json:"report"`
}

// Server serves the HTTP endpoints.
type Server struct {
	router *gin.Engine
	srv    *http.Server
	log    zerolog.Logger
}

// New builds the router. metrics may be nil.
func New(addr string, reports ReportReader, metrics http.Handler) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router: router,
		srv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: logger.WithComponent("http"),
	}

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	api := router.Group("/api/v1")
	{
		api.GET("/health", s.health)
		api.GET("/reports/:id", s.reportStatus(reports))
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled and then shuts down within 30 seconds.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("Starting HTTP server")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) reportStatus(reports ReportReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		reportID := c.Param("id")

		report, err := reports.GetProcessedReport(c.Request.Context(), reportID)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		if err != nil {
			s.log.Error().Err(err).Str("report_id", reportID).Msg("Failed to load report")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load report"})
			return
		}

		processed, err := reports.IsReportProcessed(c.Request.Context(), reportID)
		if err != nil {
			s.log.Error().Err(err).Str("report_id", reportID).Msg("Failed to check report")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load report"})
			return
		}

		c.JSON(http.StatusOK, StatusResponse{Processed: processed, Report: report})
	}
}
