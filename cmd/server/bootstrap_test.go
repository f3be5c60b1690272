package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Parthmh361/pure-harvest/internal/app"
	"github.com/Parthmh361/pure-harvest/internal/notifier"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()
	return &app.Config{
		Server: app.ServerConfig{
			RateLimit: app.RateLimitConfig{Requests: 100, Window: time.Minute},
		},
		Database: app.DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "pureharvest.sqlite"),
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{Secret: "bootstrap-secret", TTL: time.Hour},
		},
		Notifications: app.NotificationsConfig{
			RetentionDays:   30,
			CleanupSchedule: "@daily",
		},
		Providers: app.ProvidersConfig{
			Breaker: app.BreakerConfig{Enabled: true, MaxFailures: 3},
		},
	}
}

func TestBootstrapRuntimeWithSQLite(t *testing.T) {
	cfg := testConfig(t)

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.NotNil(t, stack.DB)
	require.Nil(t, stack.Mongo)
	require.Nil(t, stack.Consumer)
	require.Nil(t, stack.Producer)
	require.NotNil(t, stack.Service)
	require.NotNil(t, stack.Cleaner)

	rec := httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"database":"ok"`)
}

func TestBootstrapRuntimeRejectsBadSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notifications.CleanupSchedule = "every so often"

	_, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "start maintenance jobs")
}

func TestBootstrapRuntimeKafkaModeUsesProducer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Events.Kafka = app.KafkaConfig{
		Mode:    app.EventsModeKafka,
		Brokers: []string{"127.0.0.1:9092"},
		Topic:   "marketplace.events",
		GroupID: "pureharvest-notifications",
	}

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.NotNil(t, stack.Producer)
	require.Nil(t, stack.Consumer)
}

func TestBuildSendersDefaultsToLogStub(t *testing.T) {
	email, sms, err := buildSenders(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &notifier.LogSender{}, email)
	require.IsType(t, &notifier.LogSender{}, sms)
}

func TestBuildSendersWrapsProvidersInBreakers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Email.SMTP = app.SMTPConfig{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "PureHarvest <no-reply@example.com>",
	}
	cfg.SMS = app.SMSConfig{
		Provider: app.SMSProviderTwilio,
		Twilio: app.TwilioConfig{
			AccountSID: "AC123",
			AuthToken:  "token",
			From:       "+15550001111",
		},
	}

	email, sms, err := buildSenders(cfg, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &notifier.BreakingEmailSender{}, email)
	require.IsType(t, &notifier.BreakingSMSSender{}, sms)

	cfg.Providers.Breaker.Enabled = false
	email, sms, err = buildSenders(cfg, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &notifier.SMTPEmailSender{}, email)
	require.IsType(t, &notifier.TwilioSMSSender{}, sms)
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	require.NoError(t, loadEnvFile(""))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PUREHARVEST_BOOTSTRAP_TEST=from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PUREHARVEST_BOOTSTRAP_TEST") })

	require.NoError(t, loadEnvFile(path))
	require.Equal(t, "from-file", os.Getenv("PUREHARVEST_BOOTSTRAP_TEST"))
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "nope"))
	require.ErrorContains(t, err, "does not exist")
}
