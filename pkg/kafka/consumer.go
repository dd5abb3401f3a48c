// Package kafka wraps segmentio/kafka-go for the index-complete event: the
// builder publishes one JSON event per snapshot and the searcher consumes
// them to reload.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/config"
)

// Handler processes one decoded event. key is the message key.
type Handler[T any] func(ctx context.Context, key string, event T) error

// messageReader is the part of *kafka.Reader the consume loop uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer decodes JSON messages from one topic into T and hands them to a
// Handler. A message is committed once handled, or once it is found to be
// undecodable; a handler error leaves it uncommitted so the group redelivers
// it after a restart.
type Consumer[T any] struct {
	reader  messageReader
	handler Handler[T]
	logger  *slog.Logger
	backoff time.Duration
}

// NewConsumer joins cfg.ConsumerGroup on topic, starting from the newest
// offset.
func NewConsumer[T any](cfg config.KafkaConfig, topic string, handler Handler[T]) *Consumer[T] {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    1e6,
		StartOffset: kafka.LastOffset,
		MaxWait:     time.Second,
	})
	return newConsumer(r, handler, slog.Default().With("component", "kafka-consumer", "topic", topic))
}

func newConsumer[T any](r messageReader, handler Handler[T], logger *slog.Logger) *Consumer[T] {
	return &Consumer[T]{
		reader:  r,
		handler: handler,
		logger:  logger,
		backoff: time.Second,
	}
}

// Start consumes until ctx is cancelled, then closes the reader.
func (c *Consumer[T]) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("closing reader", "error", err)
		}
	}()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}
		if c.process(ctx, msg) {
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error("failed to commit message",
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
			}
		}
	}
}

// process reports whether msg is done with and may be committed.
func (c *Consumer[T]) process(ctx context.Context, msg kafka.Message) bool {
	log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
	event, err := DecodeJSON[T](msg.Value)
	if err != nil {
		log.Warn("skipping undecodable message", "value_size", len(msg.Value), "error", err)
		return true
	}
	if err := c.handler(ctx, string(msg.Key), event); err != nil {
		log.Error("failed to process message", "key", string(msg.Key), "error", err)
		return false
	}
	log.Debug("message processed", "key", string(msg.Key))
	return true
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
