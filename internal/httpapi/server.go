// Package httpapi exposes the gateway over HTTP with echo.
package httpapi

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/skylane-tw/tdx-air-gateway/pkg/cache"
	"github.com/skylane-tw/tdx-air-gateway/pkg/gateway"
	"github.com/skylane-tw/tdx-air-gateway/pkg/metrics"
)

// Service is the gateway surface the routes call. *gateway.Gateway implements it.
type Service interface {
	Departures(ctx context.Context, code string, limit int) (*gateway.Result, error)
	Arrivals(ctx context.Context, code string, limit int) (*gateway.Result, error)
	Realtime(ctx context.Context, code string, limit int) (*gateway.RealtimeResult, error)
	Weather(ctx context.Context, code string) (*gateway.Result, error)
	Schedule(ctx context.Context, code, startDate, endDate string) (*gateway.Result, error)
	Airlines(ctx context.Context) (*gateway.Result, error)
	CacheStatus() map[string]cache.EntryStatus
	ClearCache(key string) bool
	RateLimitStatus() map[string]gateway.WindowStatus
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the HTTP layer configuration.
type Config struct {
	// StaticDir is served at / when set.
	StaticDir string

	// Ready is checked by /ready. Nil means always ready.
	Ready Pinger

	// Now is the clock for envelope timestamps (default time.Now).
	Now func() time.Time
}

// New builds the echo instance with middleware and routes registered.
func New(svc Service, cfg Config, logger zerolog.Logger) *echo.Echo {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogError:     true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := logger.Info()
			if v.Error != nil || v.Status >= 500 {
				event = logger.Error().Err(v.Error)
			}
			event.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("Request completed")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h := &handlers{svc: svc, ready: cfg.Ready, now: cfg.Now, logger: logger}

	e.GET("/health", h.health)
	e.GET("/ready", h.readiness)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api")
	api.GET("/departures/:airport", h.departures)
	api.GET("/flights/:airport", h.departures)
	api.GET("/arrivals/:airport", h.arrivals)
	api.GET("/realtime/:airport", h.realtime)
	api.GET("/weather/:airport", h.weather)
	api.GET("/schedule/:airport", h.schedule)
	api.GET("/airlines", h.airlines)
	api.GET("/airlines/:airport", h.airlines)
	api.GET("/airports", h.airports)
	api.GET("/cache/status", h.cacheStatus)
	api.DELETE("/cache", h.clearCache)

	if cfg.StaticDir != "" {
		e.Static("/", cfg.StaticDir)
	}

	return e
}
