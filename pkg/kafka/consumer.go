package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/laas-platform/laas/pkg/logger"
	"github.com/laas-platform/laas/pkg/tracing"
)

const (
	defaultMaxRetries   = 3
	defaultRetryBackoff = 100 * time.Millisecond
	fetchErrorBackoff   = time.Second
	consumerTracerName  = "github.com/laas-platform/laas/pkg/kafka"
)

// Handler processes one decoded event. A non-nil error triggers a retry.
type Handler func(ctx context.Context, event *Event) error

// MessageReader is the part of *kafka.Reader the consumer drives.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DeadLetterPublisher receives messages the handler gave up on.
type DeadLetterPublisher interface {
	Publish(ctx context.Context, msg kafka.Message, cause error, consumerGroup string) error
}

type ConsumerConfig struct {
	Brokers      []string
	GroupID      string
	Topic        string
	MinBytes     int
	MaxBytes     int
	MaxRetries   int
	RetryBackoff time.Duration
}

// Consumer reads one topic in a consumer group, decodes each message into an
// Event and runs the handler with linear-backoff retries. A message is
// committed once it succeeds, is undecodable, or exhausts its retries; in the
// last two cases it is forwarded to the dead-letter publisher when one is set.
type Consumer struct {
	reader     MessageReader
	cfg        ConsumerConfig
	handler    Handler
	deadLetter DeadLetterPublisher
	logger     *slog.Logger
	closeOnce  sync.Once
}

type ConsumerOption func(*Consumer)

// WithDeadLetter forwards poison messages to p before they are committed.
func WithDeadLetter(p DeadLetterPublisher) ConsumerOption {
	return func(c *Consumer) { c.deadLetter = p }
}

// WithReader swaps the broker reader, mainly for tests.
func WithReader(r MessageReader) ConsumerOption {
	return func(c *Consumer) { c.reader = r }
}

func NewConsumer(cfg ConsumerConfig, handler Handler, l *slog.Logger, opts ...ConsumerOption) *Consumer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	c := &Consumer{
		cfg:     cfg,
		handler: handler,
		logger:  l.With(slog.String("topic", cfg.Topic), slog.String("consumer_group", cfg.GroupID)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.reader == nil {
		c.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
		})
	}
	return c
}

// Start consumes until ctx is canceled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer func() { _ = c.Close() }()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping")
				return nil
			}
			c.logger.Error("fetch message failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchErrorBackoff):
			}
			continue
		}
		consumerReceived.WithLabelValues(msg.Topic, c.cfg.GroupID).Inc()

		c.process(ctx, msg)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	labels := []string{msg.Topic, c.cfg.GroupID}
	start := time.Now()
	defer func() { consumerDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds()) }()

	ctx = otel.GetTextMapPropagator().Extract(ctx, NewHeaderCarrier(&msg.Headers))
	ctx, span := otel.Tracer(consumerTracerName).Start(ctx, "consume "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		),
	)

	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.ErrorContext(ctx, "undecodable message",
			slog.String("error", err.Error()),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
		)
		consumerFailed.WithLabelValues(labels...).Inc()
		c.giveUp(ctx, msg, err)
		tracing.End(span, err)
		return
	}
	if event.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, event.CorrelationID)
	}
	if event.TenantID != "" {
		ctx = logger.WithTenantID(ctx, event.TenantID)
	}

	err = c.handleWithRetry(ctx, msg, event)
	switch {
	case err == nil:
		consumerProcessed.WithLabelValues(labels...).Inc()
	case errors.Is(err, ErrDuplicate):
		consumerDuplicate.WithLabelValues(labels...).Inc()
		err = nil
	case ctx.Err() != nil:
		// Shutting down: leave the offset uncommitted so the message is redelivered.
		tracing.End(span, err)
		return
	default:
		consumerFailed.WithLabelValues(labels...).Inc()
		logger.WithContext(ctx, c.logger).ErrorContext(ctx, "handler failed after retries, skipping message",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.Int("retries", c.cfg.MaxRetries),
			slog.String("error", err.Error()),
		)
		c.giveUp(ctx, msg, err)
		tracing.End(span, err)
		return
	}

	c.commit(ctx, msg)
	tracing.End(span, err)
}

func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message, event *Event) error {
	var err error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err = c.handler(ctx, event); err == nil || errors.Is(err, ErrDuplicate) {
			return err
		}
		c.logger.WarnContext(ctx, "handler failed",
			slog.String("event_type", event.EventType),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		if attempt == c.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.cfg.RetryBackoff):
		}
	}
	return err
}

// giveUp dead-letters msg when a publisher is configured and then commits it.
func (c *Consumer) giveUp(ctx context.Context, msg kafka.Message, cause error) {
	if c.deadLetter != nil {
		if err := c.deadLetter.Publish(ctx, msg, cause, c.cfg.GroupID); err != nil {
			// Leave it uncommitted; it will be redelivered after a rebalance.
			c.logger.ErrorContext(ctx, "dead-letter publish failed", slog.String("error", err.Error()))
			return
		}
		consumerDeadLettered.WithLabelValues(msg.Topic, c.cfg.GroupID).Inc()
	}
	c.commit(ctx, msg)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.ErrorContext(ctx, "commit failed",
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
	}
}

// Close closes the reader. Safe to call more than once.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.reader.Close() })
	return err
}
