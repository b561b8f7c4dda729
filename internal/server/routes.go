package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Chat gateway entry point: one endpoint per parsed command.
	s.echo.POST("/api/commands", s.handleCommand, s.throttleSubmissions)

	// Ratings API
	s.echo.POST("/api/ratings", s.handleSubmitRating, s.throttleSubmissions)
	s.echo.GET("/api/users/:id/rating", s.handleGetRating)
	s.echo.GET("/api/users/:id/ratings", s.handleListRatings)
	s.echo.GET("/api/leaderboard", s.handleLeaderboard)
}
