package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Parthmh361/pure-harvest/pkg/logger"
)

// KafkaConfig configures the marketplace events topic.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
	MaxWait  time.Duration
}

func (c KafkaConfig) validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("events: at least one kafka broker is required")
	}
	if c.Topic == "" {
		return errors.New("events: kafka topic is required")
	}
	return nil
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads events from Kafka and hands them to a Handler. Offsets are
// committed after handling whether or not the handler succeeded; failed
// events are logged and not redelivered.
type Consumer struct {
	reader  messageReader
	handler *Handler
	backoff time.Duration
	log     *zap.Logger
}

// NewConsumer constructs a consumer group reader for cfg.
func NewConsumer(cfg KafkaConfig, handler *Handler) (*Consumer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, errors.New("events: handler is required")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "pureharvest-notifications"
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = time.Second
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
		MaxWait:  cfg.MaxWait,
	})
	return newConsumer(reader, handler), nil
}

func newConsumer(reader messageReader, handler *Handler) *Consumer {
	return &Consumer{
		reader:  reader,
		handler: handler,
		backoff: time.Second,
		log:     logger.WithModule("events"),
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("event consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("kafka fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		c.process(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("kafka commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	event, err := Decode(msg.Value)
	if err != nil {
		c.log.Warn("discarding malformed event",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return
	}

	created, err := c.handler.Handle(ctx, event)
	if err != nil {
		c.log.Error("event handling failed",
			zap.String("type", event.Type),
			zap.Int64("offset", msg.Offset),
			zap.Int("created", len(created)),
			zap.Error(err),
		)
		return
	}
	c.log.Debug("event handled", zap.String("type", event.Type), zap.Int("created", len(created)))
}

// Close releases the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Producer publishes events to the marketplace topic.
type Producer struct {
	writer messageWriter
	now    func() time.Time
}

// NewProducer constructs a producer for cfg.
func NewProducer(cfg KafkaConfig) (*Producer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{writer: writer, now: time.Now}, nil
}

// Publish writes the event keyed by its entity id.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	value, err := Encode(event)
	if err != nil {
		return fmt.Errorf("events: encode: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Key()),
		Value: value,
		Time:  p.now(),
	}); err != nil {
		return fmt.Errorf("events: publish: %w", err)
	}
	return nil
}

// Close flushes and releases the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
