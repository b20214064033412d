// Package server exposes the research engine over HTTP: a JSON API for
// one-shot runs, an SSE endpoint for streamed progress, and the run archive.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FRAMEEE17/MonkeyResearcher/config"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/research"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/store"
)

// Runner abstracts the research graph for the handlers.
type Runner interface {
	Run(ctx context.Context, topic string) (*research.Result, error)
	RunStream(ctx context.Context, topic string, events chan<- research.Event) (*research.Result, error)
}

// Server holds the API dependencies. Archive may be nil (archiving off).
type Server struct {
	cfg     *config.Config
	runner  Runner
	archive *store.Store
	logger  *log.Logger
}

// New builds the API server.
func New(cfg *config.Config, runner Runner, archive *store.Store) *Server {
	return &Server{
		cfg:     cfg,
		runner:  runner,
		archive: archive,
		logger:  log.New(log.Writer(), "[HTTP] ", log.LstdFlags),
	}
}

// Echo assembles the routed echo instance without starting it.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.POST("/auth/token", s.issueToken)

	protected := api.Group("")
	if s.authConfigured() {
		protected.Use(jwtMiddleware([]byte(s.cfg.Server.JWTSecret)))
	}
	protected.POST("/research", s.runResearch)
	protected.POST("/research/stream", s.streamResearch)
	protected.GET("/runs", s.listRuns)
	protected.GET("/runs/:id", s.getRun)

	return e
}

// authConfigured reports whether the API requires bearer JWTs. With neither
// a JWT secret nor an access-token hash configured the server runs open,
// which is the local development setup.
func (s *Server) authConfigured() bool {
	return s.cfg.Server.JWTSecret != "" || s.cfg.Server.AuthTokenHash != ""
}

// Run starts the listener and blocks until it exits.
func (s *Server) Run(addr string) error {
	if addr == "" {
		addr = s.cfg.Server.Addr
	}
	if s.cfg.Server.AuthTokenHash != "" && s.cfg.Server.JWTSecret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}
	if !s.authConfigured() {
		s.logger.Printf("auth not configured, serving the API open")
	}
	e := s.Echo()
	s.logger.Printf("listening on %s", addr)
	return e.Start(addr)
}
