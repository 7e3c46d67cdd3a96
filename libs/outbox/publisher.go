package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/orderflow/libs/db"
	"github.com/md-rashed-zaman/orderflow/libs/kafkax"
	otelx "github.com/md-rashed-zaman/orderflow/libs/otel"
)

// Publisher is the relay half of the outbox: a ticker loop that drains
// unpublished rows to Kafka and marks them shipped. A row whose publish
// fails stays unpublished and is retried on the next cycle, indefinitely;
// a crash between publish and mark yields a duplicate, which consumers
// absorb via their inbox markers.
type Publisher struct {
	pool      *db.Pool
	repo      *Repository
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(pool *db.Pool, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		pool:      pool,
		repo:      repo,
		logger:    logger,
		brokers:   brokers,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := kafkax.NewWriter(p.brokers)
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.publishBatch(ctx, writer); err != nil {
				p.logger.Error("outbox publish cycle failed", "err", err)
			}
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context, writer *kafka.Writer) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return tx.Commit(ctx)
	}

	// One record's publish failure must not block the rest of the batch;
	// only the successfully acknowledged ids get marked.
	var published []int64
	for _, r := range records {
		msgCtx := otelx.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
		if err := writer.WriteMessages(ctx, p.buildMessage(msgCtx, r)); err != nil {
			p.logger.Error("outbox publish failed, will retry",
				"err", err, "outbox_id", r.ID, "event_type", r.EventType, "aggregate_id", r.AggregateID)
			continue
		}
		published = append(published, r.ID)
	}

	if err := p.repo.MarkPublished(ctx, tx, published); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Publisher) buildMessage(ctx context.Context, r Record) kafka.Message {
	headers := []kafka.Header{
		{Key: kafkax.HeaderEventID, Value: []byte(r.EventID)},
		{Key: kafkax.HeaderEventType, Value: []byte(r.EventType)},
		{Key: kafkax.HeaderOutboxCreatedAt, Value: []byte(r.CreatedAt.UTC().Format(time.RFC3339))},
	}
	for k, v := range r.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = kafkax.InjectTraceHeaders(ctx, headers)
	return kafka.Message{
		Topic:   r.EventType,
		Key:     []byte(r.AggregateID),
		Value:   r.Payload,
		Headers: headers,
	}
}
