package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
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
	"github.com/md-rashed-zaman/orderflow/services/inventory-service/internal/handlers"
	"github.com/md-rashed-zaman/orderflow/services/inventory-service/internal/reservation"
	"github.com/md-rashed-zaman/orderflow/services/inventory-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "inventory-service")
	port, err := config.Port("PORT", "8081")
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
	groupID := config.String("KAFKA_GROUP_ID", "inventory-service")

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

	invRepo := storage.NewInventoryRepository(pool)
	svc := reservation.NewService(invRepo, outboxRepo, logger, config.String("WAREHOUSE_ID", "MAIN_WAREHOUSE"))
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
		if evt.OrderID == "" || len(evt.Items) == 0 {
			logger.Error("missing order created fields")
			return nil
		}
		return svc.HandleOrderCreated(ctx, tx, evt)
	})
	go orderCreated.Run(ctx)

	paymentAuthorized := consumer.New(logger, pool, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   events.TopicPaymentAuthorized,
	}, func(ctx context.Context, tx pgx.Tx, msg kafka.Message) error {
		var evt events.PaymentAuthorized
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid payment authorized payload", "err", err)
			return nil
		}
		if evt.OrderID == "" {
			logger.Error("missing payment authorized fields")
			return nil
		}
		return svc.HandlePaymentAuthorized(ctx, tx, evt)
	})
	go paymentAuthorized.Run(ctx)

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
		return svc.HandlePaymentFailed(ctx, tx, evt)
	})
	go paymentFailed.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handlers.New(invRepo, logger).Register(mux)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "inventory")
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
