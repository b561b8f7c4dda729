package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/ucfjimg/mmb/internal/command"
	"github.com/ucfjimg/mmb/internal/config"
	"github.com/ucfjimg/mmb/internal/domain"
	apperrors "github.com/ucfjimg/mmb/internal/errors"
)

// Submission burst limits for the ratings endpoint. These guard the process,
// not the per-pair cooldown, which the engine enforces.
const (
	submitRatePerSecond = 25
	submitBurst         = 50
)

type Server struct {
	echo       *echo.Echo
	config     *config.Config
	engine     domain.Engine
	dispatcher *command.Dispatcher
	pool       *pgxpool.Pool
	limiter    *rate.Limiter
}

func NewServer(cfg *config.Config, engine domain.Engine, dispatcher *command.Dispatcher, pool *pgxpool.Pool) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:       e,
		config:     cfg,
		engine:     engine,
		dispatcher: dispatcher,
		pool:       pool,
		limiter:    rate.NewLimiter(rate.Limit(submitRatePerSecond), submitBurst),
	}

	srv.registerRoutes()
	return srv
}

// throttleSubmissions rejects requests beyond the instance-wide rate.
func (s *Server) throttleSubmissions(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.limiter.Allow() {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
		}
		return next(c)
	}
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
