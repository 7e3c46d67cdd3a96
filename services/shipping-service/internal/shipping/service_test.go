package shipping

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/orderflow/libs/events"
	"github.com/md-rashed-zaman/orderflow/services/shipping-service/internal/carrier"
	"github.com/md-rashed-zaman/orderflow/services/shipping-service/internal/join"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestSchedulePublishesShipment(t *testing.T) {
	writer := &captureWriter{}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(writer, clock, slog.New(slog.NewTextHandler(io.Discard, nil)))

	pair := join.Pair{
		Payment: events.PaymentAuthorized{OrderID: "ORD-7", PaymentID: "TXN-1", Amount: 620},
		Reservation: events.InventoryReserved{
			OrderID: "ORD-7",
			Items:   []events.ReservedItem{{SKU: "SKU1", Qty: 2}},
		},
	}
	if err := svc.Schedule(context.Background(), pair); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	if len(writer.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(writer.msgs))
	}
	msg := writer.msgs[0]
	if msg.Topic != events.TopicShippingScheduled {
		t.Fatalf("topic = %s, want %s", msg.Topic, events.TopicShippingScheduled)
	}
	if string(msg.Key) != "ORD-7" {
		t.Fatalf("key = %s, want ORD-7", msg.Key)
	}

	var evt events.ShippingScheduled
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if evt.Carrier != carrier.FedEx {
		t.Fatalf("carrier = %s, want %s for a high-value order", evt.Carrier, carrier.FedEx)
	}
	if !strings.HasPrefix(evt.ShipmentID, "SH-") {
		t.Fatalf("shipment id = %s, want SH- prefix", evt.ShipmentID)
	}
	if evt.ETA != "2025-03-03T12:00:00Z" {
		t.Fatalf("eta = %s, want 2025-03-03T12:00:00Z", evt.ETA)
	}
}
