package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tv-order-relay/internal/service"
)

// Server exposes the webhook intake over HTTP. The listener is thin wiring:
// everything interesting happens in the pipeline, which hands back the
// status and body to serialise.
type Server struct {
	router *gin.Engine
	svc    *service.Service
	logger zerolog.Logger
}

// New constructs the HTTP server around a pipeline.
func New(svc *service.Service, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		svc:    svc,
		logger: logger.With().Str("component", "http_server").Logger(),
	}

	router := gin.New()
	router.Use(s.requestLogger())
	router.Use(gin.Recovery())

	router.GET("/health", s.health)
	router.POST("/webhook/tradingview", s.webhook)

	s.router = router
	return s
}

// Router returns the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) webhook(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty body"})
		return
	}

	result := s.svc.Handle(c.Request.Context(), string(raw))
	c.JSON(result.Code, result.Body)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	}
}
