package app

import (
	"strings"

	"github.com/Parthmh361/pure-harvest/internal/auth"
	"github.com/Parthmh361/pure-harvest/internal/cache"
	"github.com/Parthmh361/pure-harvest/internal/database"
	"github.com/Parthmh361/pure-harvest/internal/events"
	"github.com/Parthmh361/pure-harvest/internal/notifier"
	"github.com/Parthmh361/pure-harvest/pkg/mail"
)

// Adapters from the decoded configuration to the option structs each
// package constructor takes.

func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	cfg := auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		Audience:       c.JWT.Audience,
		AccessTokenTTL: c.JWT.TTL,
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = auth.DefaultAccessTokenTTL
	}
	return cfg
}

func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	r := c.Redis
	return cache.RedisConfig{
		Address:  strings.TrimSpace(r.Address),
		Username: strings.TrimSpace(r.Username),
		Password: r.Password,
		DB:       r.DB,
		TLS:      r.TLS,
		Timeout:  r.Timeout,
		Prefix:   r.Prefix,
	}
}

// SMTPSettings is a field-for-field copy; host and sender are trimmed.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	s := c.SMTP
	return mail.SMTPSettings{
		Enabled:  s.Enabled,
		Host:     strings.TrimSpace(s.Host),
		Port:     s.Port,
		Username: s.Username,
		Password: s.Password,
		From:     strings.TrimSpace(s.From),
		UseTLS:   s.UseTLS,
		Timeout:  s.Timeout,
	}
}

// IsMongo reports whether notifications live in MongoDB rather than a SQL database.
func (c DatabaseConfig) IsMongo() bool {
	return strings.EqualFold(strings.TrimSpace(c.Driver), "mongodb")
}

// GormConfig converts DatabaseConfig into the relational connection options.
func (c DatabaseConfig) GormConfig() database.Config {
	cfg := database.Config{
		Driver:          strings.ToLower(strings.TrimSpace(c.Driver)),
		DSN:             c.DSN,
		MaxOpenConns:    c.Pool.MaxOpenConns,
		MaxIdleConns:    c.Pool.MaxIdleConns,
		ConnMaxLifetime: c.Pool.ConnMaxLifetime,
		SlowQuery:       c.Pool.SlowQuery,
	}

	var host DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql":
		host = c.Postgres
	case "mysql":
		host = c.MySQL
	default:
		cfg.Path = c.Path
		return cfg
	}

	cfg.Host = host.Host
	cfg.Port = host.Port
	cfg.Name = host.Database
	cfg.User = host.Username
	cfg.Password = host.Password
	return cfg
}

// MongoConfig converts the mongodb section into connection options.
func (c DatabaseConfig) MongoConfig() database.MongoConfig {
	return database.MongoConfig{
		URI:      strings.TrimSpace(c.MongoDB.URI),
		Database: strings.TrimSpace(c.MongoDB.Database),
		Timeout:  c.MongoDB.Timeout,
	}
}

// UsesTwilio reports whether SMS goes through Twilio instead of the log stub.
func (c SMSConfig) UsesTwilio() bool {
	return strings.EqualFold(strings.TrimSpace(c.Provider), SMSProviderTwilio)
}

// TwilioSettings converts the twilio section into the notifier representation.
func (c SMSConfig) TwilioSettings() notifier.TwilioConfig {
	return notifier.TwilioConfig{
		AccountSID: c.Twilio.AccountSID,
		AuthToken:  c.Twilio.AuthToken,
		From:       c.Twilio.From,
		BaseURL:    c.Twilio.BaseURL,
		Timeout:    c.Twilio.Timeout,
	}
}

// BreakerSettings converts the breaker section into the notifier representation.
func (c ProvidersConfig) BreakerSettings() notifier.BreakerConfig {
	return notifier.BreakerConfig{
		MaxFailures: c.Breaker.MaxFailures,
		Interval:    c.Breaker.Interval,
		Timeout:     c.Breaker.Timeout,
	}
}

// PublishesToKafka reports whether HTTP ingestion writes to the topic.
func (c KafkaConfig) PublishesToKafka() bool {
	return strings.EqualFold(strings.TrimSpace(c.Mode), EventsModeKafka)
}

// ClientConfig converts KafkaConfig into the events package representation.
func (c KafkaConfig) ClientConfig() events.KafkaConfig {
	brokers := make([]string, 0, len(c.Brokers))
	for _, broker := range c.Brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return events.KafkaConfig{
		Brokers:  brokers,
		Topic:    c.Topic,
		GroupID:  c.GroupID,
		MinBytes: c.MinBytes,
		MaxBytes: c.MaxBytes,
		MaxWait:  c.MaxWait,
	}
}
