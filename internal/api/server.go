package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lexiqai/scribe-gateway/internal/observability"
)

// ServerOptions wires the pieces served by NewServer.
type ServerOptions struct {
	Handler        *Handler
	WebSocket      echo.HandlerFunc
	Readiness      []observability.DependencyCheck
	AllowOrigins   []string
	MetricsEnabled bool
	Logger         zerolog.Logger
}

// NewServer creates the HTTP server: the REST API, the WebSocket endpoint,
// liveness, readiness and metrics.
func NewServer(opts ServerOptions) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	logger := opts.Logger.With().Str("component", "http").Logger()

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := logger.Info()
			if v.Error != nil {
				ev = logger.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("HTTP request")
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: opts.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, "ngrok-skip-browser-warning"},
	}))

	e.GET("/health", echo.WrapHandler(observability.HealthCheckHandler()))
	e.GET("/ready", echo.WrapHandler(observability.ReadinessHandler(opts.Readiness...)))

	if opts.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	if opts.WebSocket != nil {
		e.GET("/ws", opts.WebSocket)
	}

	if opts.Handler != nil {
		opts.Handler.RegisterRoutes(e)
	}

	return e
}
