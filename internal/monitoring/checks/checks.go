// Package checks builds the dependency probes served on /health.
package checks

import (
	"cmp"
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/Parthmh361/pure-harvest/internal/handlers"
)

const (
	defaultStoreTimeout = 2 * time.Second
	defaultKafkaTimeout = 3 * time.Second
)

// RedisPinger is the part of the cache client a probe needs.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

type kafkaDialer func(ctx context.Context, network, address string) (*kafka.Conn, error)

// probe bounds fn by timeout, or fallback when timeout is not positive.
func probe(name string, timeout, fallback time.Duration, fn func(context.Context) error) handlers.HealthCheck {
	timeout = cmp.Or(max(timeout, 0), fallback)
	return handlers.HealthCheck{
		Name: name,
		Check: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return fn(ctx)
		},
	}
}

// Database pings the relational store.
func Database(db *gorm.DB, timeout time.Duration) handlers.HealthCheck {
	return probe("database", timeout, defaultStoreTimeout, func(ctx context.Context) error {
		if db == nil {
			return errors.New("database not configured")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
}

// Mongo pings the primary of the document store. It reports under the same
// name as Database since only one of them is configured.
func Mongo(client *mongo.Client, timeout time.Duration) handlers.HealthCheck {
	return probe("database", timeout, defaultStoreTimeout, func(ctx context.Context) error {
		if client == nil {
			return errors.New("database not configured")
		}
		return client.Ping(ctx, readpref.Primary())
	})
}

// Redis pings the rate limit cache.
func Redis(client RedisPinger, timeout time.Duration) handlers.HealthCheck {
	return probe("redis", timeout, defaultStoreTimeout, func(ctx context.Context) error {
		if client == nil {
			return errors.New("redis not configured")
		}
		return client.Ping(ctx)
	})
}

// Kafka succeeds as soon as one broker accepts a connection and returns
// partition metadata for topic. Otherwise every broker's error is reported.
func Kafka(brokers []string, topic string, timeout time.Duration) handlers.HealthCheck {
	return kafkaCheck(brokers, topic, timeout, kafka.DialContext)
}

func kafkaCheck(brokers []string, topic string, timeout time.Duration, dial kafkaDialer) handlers.HealthCheck {
	return probe("kafka", timeout, defaultKafkaTimeout, func(ctx context.Context) error {
		if len(brokers) == 0 {
			return errors.New("no kafka brokers configured")
		}
		var errs error
		for _, broker := range brokers {
			conn, err := dial(ctx, "tcp", broker)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			_, err = conn.ReadPartitions(topic)
			_ = conn.Close()
			if err == nil {
				return nil
			}
			errs = multierr.Append(errs, err)
		}
		return errs
	})
}
