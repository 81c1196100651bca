package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	orderdomain "github.com/dmehra2102/volt-storefront/internal/order/domain"
	"github.com/dmehra2102/volt-storefront/internal/payment/application"
	"github.com/dmehra2102/volt-storefront/pkg/idempotency"
	"github.com/dmehra2102/volt-storefront/pkg/tracing"
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	log    *slog.Logger
	reader MessageReader
	svc    *application.Service
	idem   idempotency.Guard
	tracer trace.Tracer

	retryDelay    time.Duration
	maxRetryDelay time.Duration
}

type ConsumerOption func(*Consumer)

// WithRetryDelay sets the first wait before a failed message is handled
// again. The wait doubles up to maxDelay.
func WithRetryDelay(first, maxDelay time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.retryDelay = first
		c.maxRetryDelay = maxDelay
	}
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

func NewConsumer(log *slog.Logger, reader MessageReader, svc *application.Service, idem idempotency.Guard, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		log:           log,
		reader:        reader,
		svc:           svc,
		idem:          idem,
		tracer:        otel.Tracer("reconciler-consumer"),
		retryDelay:    500 * time.Millisecond,
		maxRetryDelay: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes until ctx is cancelled. A message is committed only once it
// has been handled, so a failed reconcile is retried in place and a message
// interrupted by shutdown is redelivered to the next member.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.process(ctx, msg); err != nil {
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

// process retries handle with backoff. It only gives up when ctx ends.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	delay := c.retryDelay
	for {
		err := c.handle(ctx, msg)
		if err == nil {
			return nil
		}
		c.log.Warn("message handling failed, retrying", "offset", msg.Offset, "retry_in", delay, "err", err)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay = min(delay*2, c.maxRetryDelay)
	}
}

// handle returns an error only for failures worth retrying. Foreign event
// types and undecodable payloads are logged and dropped.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	if eventType := tracing.HeaderValue(msg.Headers, "event_type"); eventType != orderdomain.EventOrderCommitted {
		c.log.Debug("event skipped", "type", eventType, "offset", msg.Offset)
		return nil
	}

	var event orderdomain.OrderCommitted
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.log.Error("unmarshal failed", "offset", msg.Offset, "err", err)
		return nil
	}

	key := idempotency.MessageKey(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return nil
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ReconcileOrderCommitted")
	defer span.End()

	recorded, err := c.svc.Reconcile(msgCtx, event)
	if err != nil {
		span.RecordError(err)
		if relErr := c.idem.Release(context.WithoutCancel(ctx), key); relErr != nil {
			c.log.Error("idempotency release failed", "key", key, "err", relErr)
		}
		return fmt.Errorf("reconcile %s: %w", event.OrderID, err)
	}
	c.log.Info("order reconciled", "order_id", event.OrderID, "verification", event.Verification, "discrepancy", recorded)
	return nil
}
