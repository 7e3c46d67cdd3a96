// Package projection folds saga events into the per-order status view.
package projection

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/orderflow/libs/events"
)

// Status is the customer-facing lifecycle state of an order.
type Status string

const (
	StatusCreated           Status = "CREATED"
	StatusPaymentAuthorized Status = "PAYMENT_AUTHORIZED"
	StatusPaymentFailed     Status = "PAYMENT_FAILED"
	StatusInventoryReserved Status = "INVENTORY_RESERVED"
	StatusInventoryRejected Status = "INVENTORY_REJECTED"
	StatusShippingScheduled Status = "SHIPPING_SCHEDULED"
	StatusCompleted         Status = "COMPLETED"
	StatusCancelled         Status = "CANCELLED"
)

// OrderStatus is the materialized view row. Events each carry a slice of
// it; the fold merges slices into the full picture.
type OrderStatus struct {
	OrderID       string    `json:"order_id"`
	UserID        string    `json:"user_id,omitempty"`
	Status        Status    `json:"status"`
	Total         float64   `json:"total,omitempty"`
	PaymentID     string    `json:"payment_id,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Merge folds an update into the existing view. The update always wins on
// status and recency; identity fields the update does not carry are kept
// from the prior state, so a late PaymentAuthorized never blanks the user
// or total that OrderCreated established.
func Merge(existing, update OrderStatus) OrderStatus {
	merged := update
	if merged.UserID == "" {
		merged.UserID = existing.UserID
	}
	if merged.Total == 0 {
		merged.Total = existing.Total
	}
	if merged.PaymentID == "" {
		merged.PaymentID = existing.PaymentID
	}
	if merged.FailureReason == "" {
		merged.FailureReason = existing.FailureReason
	}
	return merged
}

// Topics lists every stream the view folds over.
func Topics() []string {
	return []string{
		events.TopicOrderCreated,
		events.TopicPaymentAuthorized,
		events.TopicPaymentFailed,
		events.TopicInventoryReserved,
		events.TopicInventoryRejected,
		events.TopicShippingScheduled,
		events.TopicOrderCompleted,
		events.TopicOrderCancelled,
	}
}

// FromEvent maps a raw event payload to its partial status update. Unknown
// topics report ok=false and are skipped by the caller.
func FromEvent(topic string, payload []byte) (OrderStatus, bool, error) {
	switch topic {
	case events.TopicOrderCreated:
		var evt events.OrderCreated
		if err := decode(topic, payload, &evt); err != nil {
			return OrderStatus{}, false, err
		}
		return OrderStatus{
			OrderID:     evt.OrderID,
			UserID:      evt.UserID,
			Total:       evt.Total,
			Status:      StatusCreated,
			LastUpdated: eventTime(evt.CreatedAt),
		}, true, nil

	case events.TopicPaymentAuthorized:
		var evt events.PaymentAuthorized
		if err := decode(topic, payload, &evt); err != nil {
			return OrderStatus{}, false, err
		}
		return OrderStatus{
			OrderID:     evt.OrderID,
			PaymentID:   evt.PaymentID,
			Status:      StatusPaymentAuthorized,
			LastUpdated: eventTime(evt.AuthorizedAt),
		}, true, nil

	case events.TopicPaymentFailed:
		var evt events.PaymentFailed
		if err := decode(topic, payload, &evt); err != nil {
			return OrderStatus{}, false, err
		}
		return OrderStatus{
			OrderID:       evt.OrderID,
			PaymentID:     evt.PaymentID,
			FailureReason: evt.Reason,
			Status:        StatusPaymentFailed,
			LastUpdated:   eventTime(evt.FailedAt),
		}, true, nil

	case events.TopicInventoryReserved:
		var evt events.InventoryReserved
		if err := decode(topic, payload, &evt); err != nil {
			return OrderStatus{}, false, err
		}
		return OrderStatus{
			OrderID:     evt.OrderID,
			Status:      StatusInventoryReserved,
			LastUpdated: eventTime(evt.ReservedAt),
		}, true, nil

	case events.TopicInventoryRejected:
		var evt events.InventoryRejected
		if err := decode(topic, payload, &evt); err != nil {
			return OrderStatus{}, false, err
		}
		return OrderStatus{
			OrderID:       evt.OrderID,
			FailureReason: evt.Reason,
			Status:        StatusInventoryRejected,
			LastUpdated:   eventTime(evt.RejectedAt),
		}, true, nil

	case events.TopicShippingScheduled:
		var evt events.ShippingScheduled
		if err := decode(topic, payload, &evt); err != nil {
			return OrderStatus{}, false, err
		}
		return OrderStatus{
			OrderID:     evt.OrderID,
			Status:      StatusShippingScheduled,
			LastUpdated: eventTime(evt.ScheduledAt),
		}, true, nil

	case events.TopicOrderCompleted:
		var evt events.OrderCompleted
		if err := decode(topic, payload, &evt); err != nil {
			return OrderStatus{}, false, err
		}
		return OrderStatus{
			OrderID:     evt.OrderID,
			Status:      StatusCompleted,
			LastUpdated: eventTime(evt.CompletedAt),
		}, true, nil

	case events.TopicOrderCancelled:
		var evt events.OrderCancelled
		if err := decode(topic, payload, &evt); err != nil {
			return OrderStatus{}, false, err
		}
		return OrderStatus{
			OrderID:       evt.OrderID,
			FailureReason: evt.Reason,
			Status:        StatusCancelled,
			LastUpdated:   eventTime(evt.CancelledAt),
		}, true, nil
	}
	return OrderStatus{}, false, nil
}

func decode(topic string, payload []byte, out any) error {
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decoding %s: %w", topic, err)
	}
	return nil
}

// eventTime parses the event's own timestamp, falling back to wall time so
// a malformed timestamp never blocks the fold.
func eventTime(value string) time.Time {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Now().UTC()
}
