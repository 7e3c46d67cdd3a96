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
	"github.com/md-rashed-zaman/orderflow/libs/runtime"
	"github.com/md-rashed-zaman/orderflow/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/orderflow/services/notification-service/internal/handlers"
	"github.com/md-rashed-zaman/orderflow/services/notification-service/internal/notify"
	"github.com/md-rashed-zaman/orderflow/services/notification-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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

	sender := email.NewSMTPSender(
		config.String("SMTP_HOST", "localhost"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", ""),
	)
	recipient := config.String("NOTIFY_RECIPIENT", "orders@orderflow.local")

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")

	repo := storage.NewRepository()
	inboxRepo := inbox.NewRepository()

	send := func(ctx context.Context, tx pgx.Tx, orderID string, msg notify.Message) error {
		status := "SENT"
		if err := sender.Send(recipient, msg.Subject, msg.Body); err != nil {
			// Record the failure but do not fail the event: a broken relay
			// should not wedge the topic.
			logger.Error("email send failed", "order_id", orderID, "err", err)
			status = "FAILED"
		}
		return repo.Insert(ctx, tx, storage.Notification{
			OrderID:   orderID,
			Channel:   "email",
			Recipient: recipient,
			Subject:   msg.Subject,
			Status:    status,
		})
	}

	completed := consumer.New(logger, pool, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   events.TopicOrderCompleted,
	}, func(ctx context.Context, tx pgx.Tx, msg kafka.Message) error {
		var evt events.OrderCompleted
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid order completed payload", "err", err)
			return nil
		}
		if evt.OrderID == "" {
			logger.Error("missing order completed fields")
			return nil
		}
		return send(ctx, tx, evt.OrderID, notify.OrderCompletedMessage(evt))
	})
	go completed.Run(ctx)

	cancelled := consumer.New(logger, pool, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   events.TopicOrderCancelled,
	}, func(ctx context.Context, tx pgx.Tx, msg kafka.Message) error {
		var evt events.OrderCancelled
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid order cancelled payload", "err", err)
			return nil
		}
		if evt.OrderID == "" {
			logger.Error("missing order cancelled fields")
			return nil
		}
		return send(ctx, tx, evt.OrderID, notify.OrderCancelledMessage(evt))
	})
	go cancelled.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handlers.New(storage.NewReader(pool), logger).Register(mux)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
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
