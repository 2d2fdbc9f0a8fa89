// Package httpserver is the transport surface of the interview engine:
// a session REST API plus a WebSocket endpoint per session.
package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/michalfoune/rizma-heygen/internal/avatar"
	"github.com/michalfoune/rizma-heygen/internal/interview"
	"github.com/michalfoune/rizma-heygen/internal/metrics"
	"github.com/michalfoune/rizma-heygen/internal/persona"
)

// Server bundles the echo instance and its dependencies.
type Server struct {
	Echo *echo.Echo

	orchestrator *interview.Orchestrator
	avatars      *avatar.Client
	personas     *persona.Registry
	metrics      *metrics.Metrics
	log          zerolog.Logger
}

// New constructs the HTTP server with all routes registered.
func New(orch *interview.Orchestrator, avatars *avatar.Client, personas *persona.Registry, m *metrics.Metrics, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	s := &Server{
		Echo:         e,
		orchestrator: orch,
		avatars:      avatars,
		personas:     personas,
		metrics:      m,
		log:          log,
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/sessions")
	api.POST("/start", s.startSession)
	api.GET("/:id/status", s.sessionStatus)
	api.POST("/:id/end", s.endSession)
	api.GET("/:id/transcript", s.sessionTranscript)

	e.GET("/api/avatars", s.listAvatars)
	e.GET("/api/personalities", s.listPersonalities)

	e.GET("/ws/:session_id", s.serveWS)

	return s
}

// Start runs the server until Shutdown.
func (s *Server) Start(address string) error {
	s.log.Info().Str("address", address).Msg("server listening")
	return s.Echo.Start(address)
}

// Shutdown drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}
