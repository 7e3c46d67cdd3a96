// Package consumer runs one consumer-group reader per subscribed topic and
// guards handlers against at-least-once redelivery.
package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/orderflow/libs/db"
	"github.com/md-rashed-zaman/orderflow/libs/inbox"
	"github.com/md-rashed-zaman/orderflow/libs/kafkax"
)

// Handler executes the business effect for one event. It runs inside the
// transaction that also records the processed-event marker, so a crash
// mid-effect aborts both and the event is re-run from the start.
type Handler func(ctx context.Context, tx pgx.Tx, msg kafka.Message) error

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

type Consumer struct {
	reader  *kafka.Reader
	pool    *db.Pool
	inbox   *inbox.Repository
	logger  *slog.Logger
	handler Handler
}

func New(logger *slog.Logger, pool *db.Pool, inboxRepo *inbox.Repository, cfg Config, handler Handler) *Consumer {
	return &Consumer{
		reader:  newReader(cfg),
		pool:    pool,
		inbox:   inboxRepo,
		logger:  logger,
		handler: handler,
	}
}

func newReader(cfg Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch error", "err", err, "topic", c.reader.Config().Topic)
			time.Sleep(1 * time.Second)
			continue
		}

		if c.process(ctx, msg) {
			if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				c.logger.Error("kafka commit error", "err", err)
			}
		}
		// On failure the offset stays uncommitted; the consumer group
		// redelivers from the last committed offset after restart or
		// rebalance, and the inbox marker absorbs anything that did land.
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)

	tx, err := c.pool.Begin(ctxSpan)
	if err != nil {
		c.logger.Error("db begin failed", "err", err)
		span.RecordError(err)
		return false
	}
	defer func() { _ = tx.Rollback(ctxSpan) }()

	fresh, err := c.inbox.Record(ctxSpan, tx, meta.EventID, meta.EventType)
	if err != nil {
		c.logger.Error("inbox record failed", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
		return false
	}
	if !fresh {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return true
	}

	if err := c.handler(ctxSpan, tx, msg); err != nil {
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID, "topic", msg.Topic)
		span.RecordError(err)
		return false
	}

	if err := tx.Commit(ctxSpan); err != nil {
		c.logger.Error("commit failed", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
		return false
	}
	return true
}
