package notify

import (
	"strings"
	"testing"

	"github.com/md-rashed-zaman/orderflow/libs/events"
)

func TestOrderCompletedMessage(t *testing.T) {
	msg := OrderCompletedMessage(events.OrderCompleted{
		OrderID:     "ORD-1",
		CompletedAt: "2025-03-01T12:00:00Z",
	})
	if msg.Subject != "Order ORD-1 completed" {
		t.Fatalf("subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "2025-03-01T12:00:00Z") {
		t.Fatalf("body missing completion time: %q", msg.Body)
	}
}

func TestOrderCancelledMessageDefaultsReason(t *testing.T) {
	msg := OrderCancelledMessage(events.OrderCancelled{OrderID: "ORD-2"})
	if !strings.Contains(msg.Body, "Reason: not specified") {
		t.Fatalf("body missing default reason: %q", msg.Body)
	}
}
