package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Parthmh361/pure-harvest/internal/api"
	"github.com/Parthmh361/pure-harvest/internal/app"
	iauth "github.com/Parthmh361/pure-harvest/internal/auth"
	sharedtestutil "github.com/Parthmh361/pure-harvest/internal/database/testutil"
	"github.com/Parthmh361/pure-harvest/internal/events"
	"github.com/Parthmh361/pure-harvest/internal/middleware"
	"github.com/Parthmh361/pure-harvest/internal/models"
	"github.com/Parthmh361/pure-harvest/internal/realtime"
	"github.com/Parthmh361/pure-harvest/internal/repository"
	"github.com/Parthmh361/pure-harvest/internal/services"
	"github.com/Parthmh361/pure-harvest/pkg/response"
)

const jwtSecret = "test-suite-super-secret-key-32-bytes!!"

// Env is the full API wired over a private SQLite database.
type Env struct {
	T       *testing.T
	DB      *gorm.DB
	Router  *gin.Engine
	JWT     *iauth.JWTService
	Hub     *realtime.Hub
	Service *services.NotificationService
}

// EnvOption adjusts the configuration used to build the router.
type EnvOption func(*app.Config)

// WithRateLimit overrides the per-route request limit.
func WithRateLimit(requests int, window time.Duration) EnvOption {
	return func(cfg *app.Config) {
		cfg.Server.RateLimit = app.RateLimitConfig{Requests: requests, Window: window}
	}
}

// NewEnv builds an Env with a generous rate limit and metrics on /metrics.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.NewDB(t)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         jwtSecret,
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	notificationStore, err := repository.NewGormNotificationStore(db)
	require.NoError(t, err)
	userStore, err := repository.NewGormUserStore(db)
	require.NoError(t, err)

	hub := realtime.NewHub()
	service, err := services.NewNotificationService(notificationStore, userStore,
		services.WithPublisher(hub),
		services.WithPublicURL("https://pureharvest.test"),
	)
	require.NoError(t, err)

	eventHandler, err := events.NewHandler(service)
	require.NoError(t, err)

	cfg := &app.Config{
		Server: app.ServerConfig{
			RateLimit: app.RateLimitConfig{Requests: 1000, Window: time.Minute},
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	router, err := api.NewRouter(api.Dependencies{
		Notifications: service,
		Tokens:        jwtSvc,
		Hub:           hub,
		Events:        eventHandler,
		RateStore:     middleware.NewMemoryRateStore(),
	}, cfg)
	require.NoError(t, err)

	return &Env{
		T:       t,
		DB:      db,
		Router:  router,
		JWT:     jwtSvc,
		Hub:     hub,
		Service: service,
	}
}

// CreateUser stores an active user.
func (e *Env) CreateUser(id, role string, mutate ...func(*models.User)) models.User {
	e.T.Helper()
	return sharedtestutil.MustCreateUser(e.T, e.DB, id, role, mutate...)
}

// Token signs an access token for user.
func (e *Env) Token(user models.User) string {
	e.T.Helper()
	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{UserID: user.ID, Role: user.Role})
	require.NoError(e.T, err)
	return token
}

// Envelope mirrors the JSON body every handler writes.
type Envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// Decode parses the envelope in w.
func Decode(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

// DecodeData parses the envelope in w and unmarshals its data into dest.
func DecodeData(t *testing.T, w *httptest.ResponseRecorder, dest any) {
	t.Helper()
	data := Decode(t, w).Data
	require.NotEmpty(t, data, "response carries no data: %s", w.Body.String())
	require.NoError(t, json.Unmarshal(data, dest))
}

// Request sends method path to the router. A non-nil body is JSON encoded
// and a non-empty token goes in the Authorization header.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(e.T, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.RemoteAddr = "192.0.2.10:40000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// Get is shorthand for an authenticated GET.
func (e *Env) Get(path, token string) *httptest.ResponseRecorder {
	e.T.Helper()
	return e.Request(http.MethodGet, path, nil, token)
}
