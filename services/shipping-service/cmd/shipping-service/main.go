package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/orderflow/libs/config"
	"github.com/md-rashed-zaman/orderflow/libs/consumer"
	"github.com/md-rashed-zaman/orderflow/libs/events"
	"github.com/md-rashed-zaman/orderflow/libs/httpx"
	"github.com/md-rashed-zaman/orderflow/libs/kafkax"
	otelx "github.com/md-rashed-zaman/orderflow/libs/otel"
	"github.com/md-rashed-zaman/orderflow/libs/runtime"
	"github.com/md-rashed-zaman/orderflow/services/shipping-service/internal/join"
	"github.com/md-rashed-zaman/orderflow/services/shipping-service/internal/shipping"
)

func main() {
	service := config.String("SERVICE_NAME", "shipping-service")
	port, err := config.Port("PORT", "8083")
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

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "shipping-service")

	writer := kafkax.NewWriter(kafkax.SplitBrokers(brokers))
	defer writer.Close()

	clock := clockwork.NewRealClock()
	window := join.NewWindow(clock,
		config.Duration("JOIN_WINDOW", 15*time.Minute),
		logger,
	)
	go window.Run(ctx, config.Duration("JOIN_SWEEP_INTERVAL", time.Minute))

	svc := shipping.NewService(writer, clock, logger)

	payments := consumer.NewStream(logger, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   events.TopicPaymentAuthorized,
	}, func(ctx context.Context, msg kafka.Message) error {
		var evt events.PaymentAuthorized
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid payment authorized payload", "err", err)
			return nil
		}
		if evt.OrderID == "" {
			logger.Error("missing payment authorized fields")
			return nil
		}
		if pair, ok := window.OfferPayment(evt); ok {
			if err := svc.Schedule(ctx, pair); err != nil {
				return err
			}
			window.Commit(evt.OrderID)
		}
		return nil
	})
	go payments.Run(ctx)

	reservations := consumer.NewStream(logger, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   events.TopicInventoryReserved,
	}, func(ctx context.Context, msg kafka.Message) error {
		var evt events.InventoryReserved
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid inventory reserved payload", "err", err)
			return nil
		}
		if evt.OrderID == "" {
			logger.Error("missing inventory reserved fields")
			return nil
		}
		if pair, ok := window.OfferReservation(evt); ok {
			if err := svc.Schedule(ctx, pair); err != nil {
				return err
			}
			window.Commit(evt.OrderID)
		}
		return nil
	})
	go reservations.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "shipping")
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
