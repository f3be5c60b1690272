package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PUREHARVEST_SERVER_PORT.
const EnvPrefix = "PUREHARVEST"

// Config represents the runtime configuration for the notification service.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Email         EmailConfig         `mapstructure:"email"`
	SMS           SMSConfig           `mapstructure:"sms"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Events        EventsConfig        `mapstructure:"events"`
	Providers     ProvidersConfig     `mapstructure:"providers"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	LogLevel        string          `mapstructure:"log_level"`
	LogFormat       string          `mapstructure:"log_format"`
	AllowedOrigins  []string        `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds requests per caller and route.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string        `mapstructure:"driver"`
	Path     string        `mapstructure:"path"`
	DSN      string        `mapstructure:"dsn"`
	Postgres DBAuthConfig  `mapstructure:"postgres"`
	MySQL    DBAuthConfig  `mapstructure:"mysql"`
	MongoDB  MongoDBConfig `mapstructure:"mongodb"`
	Pool     DBPoolConfig  `mapstructure:"pool"`
}

// DBPoolConfig bounds the SQL connection pool. Zero leaves the driver default.
type DBPoolConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SlowQuery       time.Duration `mapstructure:"slow_query"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// MongoDBConfig holds the document store connection used when driver is mongodb.
type MongoDBConfig struct {
	URI      string        `mapstructure:"uri"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Prefix   string        `mapstructure:"prefix"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// AuthConfig captures authentication settings shared with the marketplace API.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures JWT verification.
type JWTSettings struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	TTL      time.Duration `mapstructure:"access_token_ttl"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	SMTP SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SMS providers.
const (
	SMSProviderLog    = "log"
	SMSProviderTwilio = "twilio"
)

// SMSConfig selects the SMS provider.
type SMSConfig struct {
	Provider string       `mapstructure:"provider"`
	Twilio   TwilioConfig `mapstructure:"twilio"`
}

// TwilioConfig holds Twilio REST credentials.
type TwilioConfig struct {
	AccountSID string        `mapstructure:"account_sid"`
	AuthToken  string        `mapstructure:"auth_token"`
	From       string        `mapstructure:"from"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// NotificationsConfig tunes the dispatcher and the retention job.
type NotificationsConfig struct {
	PublicURL       string `mapstructure:"public_url"`
	RetentionDays   int    `mapstructure:"retention_days"`
	CleanupSchedule string `mapstructure:"cleanup_schedule"`
}

// Event ingestion modes.
const (
	EventsModeInline = "inline"
	EventsModeKafka  = "kafka"
)

// EventsConfig configures marketplace event ingestion.
type EventsConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig configures the marketplace events topic. With Enabled set the
// consumer runs; Mode decides whether HTTP ingestion publishes to the topic
// (kafka) or dispatches in-process (inline).
type KafkaConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Mode     string        `mapstructure:"mode"`
	Brokers  []string      `mapstructure:"brokers"`
	Topic    string        `mapstructure:"topic"`
	GroupID  string        `mapstructure:"group_id"`
	MinBytes int           `mapstructure:"min_bytes"`
	MaxBytes int           `mapstructure:"max_bytes"`
	MaxWait  time.Duration `mapstructure:"max_wait"`
}

// ProvidersConfig tunes the resilience wrappers around email and SMS providers.
type ProvidersConfig struct {
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig configures the provider circuit breakers.
type BreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxFailures uint32        `mapstructure:"max_failures"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "postgres", "postgresql", "mysql":
	case "mongodb":
		if strings.TrimSpace(c.Database.MongoDB.URI) == "" {
			return errors.New("config: database.mongodb.uri is required for the mongodb driver")
		}
	default:
		return fmt.Errorf("config: unsupported database.driver %q", c.Database.Driver)
	}

	switch strings.ToLower(c.SMS.Provider) {
	case SMSProviderLog, "":
	case SMSProviderTwilio:
		if c.SMS.Twilio.AccountSID == "" || c.SMS.Twilio.AuthToken == "" || c.SMS.Twilio.From == "" {
			return errors.New("config: sms.twilio account_sid, auth_token and from are required")
		}
	default:
		return fmt.Errorf("config: unsupported sms.provider %q", c.SMS.Provider)
	}

	switch strings.ToLower(c.Events.Kafka.Mode) {
	case EventsModeInline, "":
	case EventsModeKafka:
		if len(c.Events.Kafka.Brokers) == 0 {
			return errors.New("config: events.kafka.brokers is required in kafka mode")
		}
	default:
		return fmt.Errorf("config: unsupported events.kafka.mode %q", c.Events.Kafka.Mode)
	}

	if c.Events.Kafka.Enabled && len(c.Events.Kafka.Brokers) == 0 {
		return errors.New("config: events.kafka.brokers is required when the consumer is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.rate_limit.requests", 120)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/pureharvest.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.mongodb.uri", "")
	v.SetDefault("database.mongodb.database", "pureharvest")
	v.SetDefault("database.mongodb.timeout", "10s")
	v.SetDefault("database.pool.max_open_conns", 0)
	v.SetDefault("database.pool.max_idle_conns", 0)
	v.SetDefault("database.pool.conn_max_lifetime", "30m")
	v.SetDefault("database.pool.slow_query", "500ms")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")
	v.SetDefault("cache.redis.prefix", "pureharvest:")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")

	v.SetDefault("auth.jwt.issuer", "")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")

	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.from", "PureHarvest <no-reply@pureharvest.in>")
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("sms.provider", SMSProviderLog)
	v.SetDefault("sms.twilio.base_url", "https://api.twilio.com")
	v.SetDefault("sms.twilio.timeout", "10s")

	v.SetDefault("notifications.public_url", "")
	v.SetDefault("notifications.retention_days", 90)
	v.SetDefault("notifications.cleanup_schedule", "@daily")

	v.SetDefault("events.kafka.enabled", false)
	v.SetDefault("events.kafka.mode", EventsModeInline)
	v.SetDefault("events.kafka.brokers", []string{})
	v.SetDefault("events.kafka.topic", "marketplace.events")
	v.SetDefault("events.kafka.group_id", "pureharvest-notifications")
	v.SetDefault("events.kafka.min_bytes", 1)
	v.SetDefault("events.kafka.max_bytes", 10<<20)
	v.SetDefault("events.kafka.max_wait", "1s")

	v.SetDefault("providers.breaker.enabled", true)
	v.SetDefault("providers.breaker.max_failures", 5)
	v.SetDefault("providers.breaker.interval", "1m")
	v.SetDefault("providers.breaker.timeout", "30s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
