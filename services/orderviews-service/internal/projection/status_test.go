package projection

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/md-rashed-zaman/orderflow/libs/events"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestFoldPreservesIdentityFields(t *testing.T) {
	created := mustJSON(t, events.OrderCreated{
		OrderID:   "ORD-1",
		UserID:    "user-42",
		Total:     150.25,
		CreatedAt: "2025-03-01T10:00:00Z",
	})
	authorized := mustJSON(t, events.PaymentAuthorized{
		OrderID:      "ORD-1",
		PaymentID:    "TXN-9",
		Amount:       150.25,
		AuthorizedAt: "2025-03-01T10:00:05Z",
	})

	first, ok, err := FromEvent(events.TopicOrderCreated, created)
	if err != nil || !ok {
		t.Fatalf("FromEvent(order created) ok=%v err=%v", ok, err)
	}
	second, ok, err := FromEvent(events.TopicPaymentAuthorized, authorized)
	if err != nil || !ok {
		t.Fatalf("FromEvent(payment authorized) ok=%v err=%v", ok, err)
	}

	view := Merge(OrderStatus{}, first)
	view = Merge(view, second)

	if view.Status != StatusPaymentAuthorized {
		t.Fatalf("status = %s, want %s", view.Status, StatusPaymentAuthorized)
	}
	if view.UserID != "user-42" {
		t.Fatalf("user id = %q, want user-42", view.UserID)
	}
	if view.Total != 150.25 {
		t.Fatalf("total = %v, want 150.25", view.Total)
	}
	if view.PaymentID != "TXN-9" {
		t.Fatalf("payment id = %q, want TXN-9", view.PaymentID)
	}
	if want := time.Date(2025, 3, 1, 10, 0, 5, 0, time.UTC); !view.LastUpdated.Equal(want) {
		t.Fatalf("last updated = %v, want %v", view.LastUpdated, want)
	}
}

func TestMergeKeepsFailureReasonAcrossUpdates(t *testing.T) {
	rejected := OrderStatus{
		OrderID:       "ORD-2",
		Status:        StatusInventoryRejected,
		FailureReason: "insufficient stock for SKU SKU2: requested 1, available 0",
	}
	cancelled := OrderStatus{
		OrderID: "ORD-2",
		Status:  StatusCancelled,
	}

	view := Merge(rejected, cancelled)
	if view.Status != StatusCancelled {
		t.Fatalf("status = %s, want %s", view.Status, StatusCancelled)
	}
	if view.FailureReason == "" {
		t.Fatal("failure reason lost in merge")
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	base := OrderStatus{OrderID: "ORD-3", UserID: "u", Total: 10, Status: StatusCreated}
	update := OrderStatus{OrderID: "ORD-3", Status: StatusInventoryReserved}

	once := Merge(base, update)
	twice := Merge(once, update)
	if once != twice {
		t.Fatalf("re-applying the same update changed the view: %+v vs %+v", once, twice)
	}
}

func TestFromEventCoversEveryTopic(t *testing.T) {
	payloads := map[string][]byte{
		events.TopicOrderCreated:      mustJSON(t, events.OrderCreated{OrderID: "O"}),
		events.TopicPaymentAuthorized: mustJSON(t, events.PaymentAuthorized{OrderID: "O"}),
		events.TopicPaymentFailed:     mustJSON(t, events.PaymentFailed{OrderID: "O"}),
		events.TopicInventoryReserved: mustJSON(t, events.InventoryReserved{OrderID: "O"}),
		events.TopicInventoryRejected: mustJSON(t, events.InventoryRejected{OrderID: "O"}),
		events.TopicShippingScheduled: mustJSON(t, events.ShippingScheduled{OrderID: "O"}),
		events.TopicOrderCompleted:    mustJSON(t, events.OrderCompleted{OrderID: "O"}),
		events.TopicOrderCancelled:    mustJSON(t, events.OrderCancelled{OrderID: "O"}),
	}
	for _, topic := range Topics() {
		update, ok, err := FromEvent(topic, payloads[topic])
		if err != nil {
			t.Fatalf("FromEvent(%s): %v", topic, err)
		}
		if !ok {
			t.Fatalf("FromEvent(%s) not handled", topic)
		}
		if update.OrderID != "O" {
			t.Fatalf("FromEvent(%s) order id = %q", topic, update.OrderID)
		}
		if update.Status == "" {
			t.Fatalf("FromEvent(%s) produced no status", topic)
		}
	}
}

func TestFromEventUnknownTopicSkipped(t *testing.T) {
	if _, ok, err := FromEvent("some.other.topic", []byte(`{}`)); ok || err != nil {
		t.Fatalf("unknown topic: ok=%v err=%v, want skipped", ok, err)
	}
}
