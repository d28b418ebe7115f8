// Package consumer applies appointment events from other instances to the local
// availability cache.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Inbox deduplicates deliveries per consumer group.
type Inbox interface {
	Record(ctx context.Context, consumer, eventID, eventType string) (bool, error)
}

type Invalidator interface {
	InvalidateDay(ctx context.Context, t time.Time)
}

type Config struct {
	Brokers []string
	GroupID string
	Topics  []string
}

type Consumer struct {
	reader  *kafka.Reader
	groupID string
	logger  *slog.Logger
	inbox   Inbox
	handler Handler
}

// New returns a consumer reading cfg.Topics. inbox may be nil.
func New(logger *slog.Logger, inbox Inbox, cfg Config, handler Handler) *Consumer {
	c := &Consumer{
		groupID: cfg.GroupID,
		logger:  logger,
		inbox:   inbox,
		handler: handler,
	}
	if len(cfg.Brokers) > 0 {
		c.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.GroupID,
			GroupTopics: cfg.Topics,
			MinBytes:    1,
			MaxBytes:    10e6,
			StartOffset: kafka.LastOffset,
		})
	}
	return c
}

func (c *Consumer) Run(ctx context.Context) {
	if c.reader == nil {
		c.logger.Warn("event consumer disabled (no kafka brokers configured)")
		return
	}
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctx, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	if c.inbox != nil && meta.EventID != "" {
		ok, err := c.inbox.Record(ctx, c.groupID, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "err", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		if !ok {
			c.logger.Debug("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			return
		}
	}

	if err := c.handler(ctx, msg); err != nil {
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// InvalidateAvailability drops cached availability for the day of each appointment event.
func InvalidateAvailability(inv Invalidator) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var p outbox.AppointmentPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode appointment event: %w", err)
		}
		if p.StartTime.IsZero() {
			return fmt.Errorf("appointment event %s has no start_time", p.AppointmentID)
		}
		inv.InvalidateDay(ctx, p.StartTime)
		return nil
	}
}
