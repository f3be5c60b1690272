package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultMongoTimeout = 10 * time.Second

// MongoConfig describes the document database connection.
type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// OpenMongo connects to MongoDB and verifies the primary is reachable.
func OpenMongo(ctx context.Context, cfg MongoConfig) (*mongo.Client, *mongo.Database, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, nil, errors.New("mongodb: uri is required")
	}
	name := strings.TrimSpace(cfg.Database)
	if name == "" {
		return nil, nil, errors.New("mongodb: database name is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultMongoTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri).SetTimeout(timeout))
	if err != nil {
		return nil, nil, fmt.Errorf("mongodb: connect: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongodb: ping: %w", err)
	}

	return client, client.Database(name), nil
}
