package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Parthmh361/pure-harvest/internal/app"
	"github.com/Parthmh361/pure-harvest/internal/events"
	"github.com/Parthmh361/pure-harvest/internal/handlers"
	"github.com/Parthmh361/pure-harvest/internal/middleware"
	"github.com/Parthmh361/pure-harvest/internal/realtime"
	"github.com/Parthmh361/pure-harvest/internal/services"
)

const (
	defaultRateLimit       = 100
	defaultRateLimitWindow = time.Minute
	defaultMetricsEndpoint = "/metrics"
)

// Dependencies carries the collaborators the HTTP surface is built from.
type Dependencies struct {
	Notifications *services.NotificationService
	Tokens        middleware.TokenValidator
	Hub           *realtime.Hub
	Events        events.Sink
	RateStore     middleware.RateStore
	HealthChecks  []handlers.HealthCheck
}

// NewRouter builds the Gin engine, wires middleware and registers the
// notification, event and health routes.
func NewRouter(deps Dependencies, cfg *app.Config) (*gin.Engine, error) {
	if deps.Notifications == nil {
		return nil, errors.New("notification service must be provided")
	}
	if deps.Tokens == nil {
		return nil, errors.New("token validator must be provided")
	}
	if cfg == nil {
		return nil, errors.New("config must be provided")
	}

	rateStore := deps.RateStore
	if rateStore == nil {
		rateStore = middleware.NewMemoryRateStore()
	}
	limit, window := cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window
	if limit <= 0 {
		limit = defaultRateLimit
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}

	metricsEndpoint := cfg.Monitoring.Prometheus.Endpoint
	if metricsEndpoint == "" {
		metricsEndpoint = defaultMetricsEndpoint
	}

	r := gin.New()

	// Logger runs first so the request ID is set before a panic is recovered.
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics(metricsEndpoint))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins...))

	registerHealthRoutes(r, deps.HealthChecks)

	if cfg.Monitoring.Prometheus.Enabled {
		r.GET(metricsEndpoint, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")

	notificationHandler, err := handlers.NewNotificationHandler(deps.Notifications)
	if err != nil {
		return nil, err
	}

	// The stream route authenticates from the query string because browsers
	// cannot set headers on websocket upgrades. It is not rate limited.
	if deps.Hub != nil {
		api.GET("/notifications/stream",
			middleware.StreamAuth(deps.Tokens),
			handlers.NewRealtimeHandler(deps.Hub).Stream,
		)
	}

	protected := api.Group("")
	protected.Use(middleware.Auth(deps.Tokens))
	protected.Use(middleware.RateLimit(rateStore, limit, window))

	registerNotificationRoutes(protected, notificationHandler)

	if deps.Events != nil {
		eventHandler, err := handlers.NewEventHandler(deps.Events)
		if err != nil {
			return nil, err
		}
		registerEventRoutes(protected, eventHandler)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
