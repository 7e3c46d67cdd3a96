package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/orderflow/libs/config"
	"github.com/md-rashed-zaman/orderflow/libs/consumer"
	"github.com/md-rashed-zaman/orderflow/libs/db"
	"github.com/md-rashed-zaman/orderflow/libs/events"
	"github.com/md-rashed-zaman/orderflow/libs/httpx"
	"github.com/md-rashed-zaman/orderflow/libs/inbox"
	"github.com/md-rashed-zaman/orderflow/libs/kafkax"
	otelx "github.com/md-rashed-zaman/orderflow/libs/otel"
	"github.com/md-rashed-zaman/orderflow/libs/outbox"
	"github.com/md-rashed-zaman/orderflow/libs/runtime"
	"github.com/md-rashed-zaman/orderflow/services/payment-service/internal/handlers"
	"github.com/md-rashed-zaman/orderflow/services/payment-service/internal/payments"
	"github.com/md-rashed-zaman/orderflow/services/payment-service/internal/provider"
	"github.com/md-rashed-zaman/orderflow/services/payment-service/internal/retry"
	"github.com/md-rashed-zaman/orderflow/services/payment-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "payment-service")
	port, err := config.Port("PORT", "8082")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "payment-service")

	outboxRepo := outbox.NewRepository(pool)
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	janitor := outbox.NewJanitor(outboxRepo, logger,
		config.Duration("OUTBOX_CLEANUP_INTERVAL", time.Hour),
		config.Duration("OUTBOX_RETENTION", 7*24*time.Hour),
	)
	go janitor.Run(ctx)

	clock := clockwork.NewRealClock()
	svc := payments.NewService(
		storage.NewProcessedOrders(),
		outboxRepo,
		newProvider(logger),
		clock,
		logger,
		config.Int("PAYMENT_MAX_ATTEMPTS", 3),
		config.Duration("PAYMENT_RETRY_BASE_DELAY", 2*time.Second),
		config.Duration("PAYMENT_RETRY_MAX_DELAY", 60*time.Second),
	)

	scheduler := retry.NewScheduler(clock,
		config.Duration("RETRY_SWEEP_INTERVAL", time.Second),
		func(ctx context.Context, t retry.Ticket) error {
			tx, err := pool.Begin(ctx)
			if err != nil {
				return err
			}
			defer tx.Rollback(ctx)
			if err := svc.HandleRetryDue(ctx, tx, t.Payload, t.Attempt); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}, logger)
	go scheduler.Run(ctx)

	inboxRepo := inbox.NewRepository()

	orderCreated := consumer.New(logger, pool, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   events.TopicOrderCreated,
	}, func(ctx context.Context, tx pgx.Tx, msg kafka.Message) error {
		var evt events.OrderCreated
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid order created payload", "err", err)
			return nil
		}
		if evt.OrderID == "" {
			logger.Error("missing order created fields")
			return nil
		}
		return svc.HandleOrderCreated(ctx, tx, evt)
	})
	go orderCreated.Run(ctx)

	// The handler only parks the ticket; the actual attempt runs when the
	// scheduler releases it. Parking runs without an inbox marker so a
	// redelivered envelope can rebuild tickets lost to a restart; the
	// attempt itself is guarded by the processed-orders attempt counter.
	retryRequested := consumer.NewStream(logger, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   events.TopicPaymentRetry,
	}, func(ctx context.Context, msg kafka.Message) error {
		var evt events.PaymentRetryRequested
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid payment retry payload", "err", err)
			return nil
		}
		if evt.OrderID == "" {
			logger.Error("missing payment retry fields")
			return nil
		}
		meta := kafkax.ExtractRetryMeta(msg)
		if meta.Attempt < 1 {
			meta.Attempt = 1
		}
		notBefore := meta.ScheduledAt
		if notBefore.IsZero() {
			notBefore = clock.Now().Add(meta.Delay)
		}
		scheduler.Schedule(retry.Ticket{
			Attempt:   meta.Attempt,
			NotBefore: notBefore,
			Payload:   evt,
		})
		return nil
	})
	go retryRequested.Run(ctx)

	paymentFailed := consumer.New(logger, pool, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   events.TopicPaymentFailed,
	}, func(ctx context.Context, tx pgx.Tx, msg kafka.Message) error {
		var evt events.PaymentFailed
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid payment failed payload", "err", err)
			return nil
		}
		if evt.OrderID == "" {
			logger.Error("missing payment failed fields")
			return nil
		}
		return svc.HandleCompensatingFailure(ctx, tx, evt)
	})
	go paymentFailed.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handlers.New(storage.NewReader(pool), logger).Register(mux)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "payment")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// newProvider selects the gateway: Stripe when an API key is configured,
// otherwise the seeded simulator.
func newProvider(logger *slog.Logger) provider.Provider {
	if key := config.String("STRIPE_API_KEY", ""); key != "" {
		logger.Info("using stripe payment provider")
		return provider.NewStripe(key, config.String("STRIPE_PAYMENT_METHOD", "pm_card_visa"))
	}
	seed := int64(config.Int("PAYMENT_SIM_SEED", int(time.Now().UnixNano())))
	rate := float64(config.Int("PAYMENT_SIM_SUCCESS_PERCENT", 70)) / 100
	logger.Info("using simulated payment provider", "success_rate", rate)
	return provider.NewSimulated(seed, rate)
}
