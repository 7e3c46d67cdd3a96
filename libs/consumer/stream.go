package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/orderflow/libs/kafkax"
)

// StreamHandler processes one message without a local database transaction.
type StreamHandler func(ctx context.Context, msg kafka.Message) error

// Stream is the runner for stateless stream processors (the windowed join
// and the status fold). Their handlers must be idempotent on their own:
// re-applying the same event yields the same state, so no inbox is kept.
type Stream struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler StreamHandler
}

func NewStream(logger *slog.Logger, cfg Config, handler StreamHandler) *Stream {
	return &Stream{
		reader:  newReader(cfg),
		logger:  logger,
		handler: handler,
	}
}

func (s *Stream) Run(ctx context.Context) {
	defer s.reader.Close()

	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("kafka fetch error", "err", err, "topic", s.reader.Config().Topic)
			time.Sleep(1 * time.Second)
			continue
		}

		ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		if err := s.handler(ctxSpan, msg); err != nil {
			s.logger.Error("handler error", "err", err, "topic", msg.Topic)
			span.RecordError(err)
			span.End()
			continue
		}
		span.End()

		if err := s.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			s.logger.Error("kafka commit error", "err", err)
		}
	}
}
