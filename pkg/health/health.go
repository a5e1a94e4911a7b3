// Package health serves the liveness page, readiness probes and Prometheus
// metrics over HTTP.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/logger"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readinessProbeTimeout = 5 * time.Second

// Check is a named readiness check
type Check struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server is the health HTTP server
type Server struct {
	echo      *echo.Echo
	port      string
	checks    []Check
	clock     clockwork.Clock
	startTime time.Time
	logger    *logger.Logger
}

// New creates a health server listening on port
func New(port string, clock clockwork.Clock, checks ...Check) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		port:      port,
		checks:    checks,
		clock:     clock,
		startTime: clock.Now(),
		logger:    logger.New("health"),
	}

	e.GET("/", s.handleRoot)
	e.GET("/health/live", s.handleLiveness)
	e.GET("/health/ready", s.handleReadiness)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Health server listening on :%s", s.port)
		errCh <- s.echo.Start(":" + s.port)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start health server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown health server: %w", err)
	}
	return nil
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.String(http.StatusOK, "Bot is running!")
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": s.clock.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	for _, check := range s.checks {
		if err := check.Check(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":       "unhealthy",
				"failed_check": check.Name,
				"error":        err.Error(),
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
