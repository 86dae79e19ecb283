package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gin-gonic/gin"
	"github.com/marweda/water-level-forecast/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxHistory = 100

// ForecastReader serves archived forecasts.
type ForecastReader interface {
	Latest(ctx context.Context, entityID string) (domain.ForecastResult, error)
	History(ctx context.Context, entityID string, limit int) ([]domain.ForecastResult, error)
}

// Server exposes health, readiness, metrics and forecast read endpoints.
type Server struct {
	httpServer *http.Server
	forecasts  ForecastReader
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz and /metrics routes.
// A non-nil reader adds GET /forecasts/:entity and /forecasts/:entity/history.
func NewServer(addr string, ready sharedobs.ReadinessChecker, forecasts ForecastReader, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      engine,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		forecasts: forecasts,
		logger:    logger,
	}

	engine.GET("/healthz", gin.WrapF(sharedobs.LivenessHandler()))
	engine.GET("/readyz", gin.WrapF(sharedobs.ReadinessHandler(ready)))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if forecasts != nil {
		engine.GET("/forecasts/:entity", s.handleLatest)
		engine.GET("/forecasts/:entity/history", s.handleHistory)
	}

	return s
}

func (s *Server) handleLatest(c *gin.Context) {
	entityID := c.Param("entity")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	res, err := s.forecasts.Latest(ctx, entityID)
	if errors.Is(err, domain.ErrForecastNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "forecast not found"})
		return
	}
	if err != nil {
		s.logger.Error("read forecast", "entity_id", entityID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleHistory(c *gin.Context) {
	entityID := c.Param("entity")

	limit := 10
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxHistory {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	history, err := s.forecasts.History(ctx, entityID, limit)
	if err != nil {
		s.logger.Error("read forecast history", "entity_id", entityID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entity_id": entityID, "count": len(history), "forecasts": history})
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
