// Package shipping turns matched payment/reservation pairs into shipment
// schedules.
package shipping

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/orderflow/libs/events"
	"github.com/md-rashed-zaman/orderflow/libs/kafkax"
	"github.com/md-rashed-zaman/orderflow/services/shipping-service/internal/carrier"
	"github.com/md-rashed-zaman/orderflow/services/shipping-service/internal/join"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Service struct {
	writer messageWriter
	clock  clockwork.Clock
	logger *slog.Logger
}

func NewService(writer messageWriter, clock clockwork.Clock, logger *slog.Logger) *Service {
	return &Service{writer: writer, clock: clock, logger: logger}
}

// Schedule assigns a carrier to the matched order and publishes the
// shipment. Publishing is direct rather than through an outbox: the join
// buffer is in memory, so there is no database state to keep consistent.
func (s *Service) Schedule(ctx context.Context, pair join.Pair) error {
	items := 0
	for _, it := range pair.Reservation.Items {
		items += it.Qty
	}
	assignment := carrier.Select(pair.Payment.Amount, items)

	now := s.clock.Now().UTC()
	evt := events.ShippingScheduled{
		OrderID:     pair.Payment.OrderID,
		ShipmentID:  newShipmentID(),
		Carrier:     assignment.Carrier,
		ETA:         now.AddDate(0, 0, assignment.ETADays).Format(time.RFC3339),
		ScheduledAt: now.Format(time.RFC3339),
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshaling shipping scheduled for order %s: %w", evt.OrderID, err)
	}

	headers := []kafka.Header{
		{Key: kafkax.HeaderEventID, Value: []byte(uuid.NewString())},
		{Key: kafkax.HeaderEventType, Value: []byte(events.TopicShippingScheduled)},
	}
	msg := kafka.Message{
		Topic:   events.TopicShippingScheduled,
		Key:     []byte(evt.OrderID),
		Value:   body,
		Headers: kafkax.InjectTraceHeaders(ctx, headers),
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing shipping scheduled for order %s: %w", evt.OrderID, err)
	}

	s.logger.Info("shipment scheduled",
		"order_id", evt.OrderID,
		"shipment_id", evt.ShipmentID,
		"carrier", evt.Carrier,
		"eta", evt.ETA)
	return nil
}

func newShipmentID() string {
	return "SH-" + strings.ToUpper(uuid.NewString()[:8])
}
