// Package events defines the saga's wire-level event payloads.
//
// Every event is published to a topic named after its type, keyed by the
// order id, so Kafka preserves per-order ordering. Events are immutable
// facts; schema changes bump the version field and the topic suffix.
package events

// Topic names, one per event type.
const (
	TopicOrderCreated      = "order.created.v1"
	TopicInventoryReserved = "inventory.reserved.v1"
	TopicInventoryRejected = "inventory.rejected.v1"
	TopicPaymentAuthorized = "payment.authorized.v1"
	TopicPaymentFailed     = "payment.failed.v1"
	TopicPaymentRetry      = "payment.retry.v1"
	TopicPaymentDLQ        = "payment.dlq.v1"
	TopicShippingScheduled = "shipping.scheduled.v1"
	TopicOrderCompleted    = "order.completed.v1"
	TopicOrderCancelled    = "order.cancelled.v1"
)

// SchemaVersion is the current payload schema revision for versioned events.
const SchemaVersion = 1

type OrderItem struct {
	SKU   string  `json:"sku"`
	Qty   int     `json:"qty"`
	Price float64 `json:"price"`
}

type OrderCreated struct {
	OrderID   string      `json:"order_id"`
	UserID    string      `json:"user_id"`
	Total     float64     `json:"total"`
	Items     []OrderItem `json:"items"`
	CreatedAt string      `json:"created_at"`
	Version   int         `json:"version"`
}

type ReservedItem struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

type InventoryReserved struct {
	OrderID     string         `json:"order_id"`
	Items       []ReservedItem `json:"items"`
	WarehouseID string         `json:"warehouse_id"`
	ReservedAt  string         `json:"reserved_at"`
	Version     int            `json:"version"`
}

type InventoryRejected struct {
	OrderID    string `json:"order_id"`
	Reason     string `json:"reason"`
	RejectedAt string `json:"rejected_at"`
	Version    int    `json:"version"`
}

type PaymentAuthorized struct {
	OrderID      string  `json:"order_id"`
	PaymentID    string  `json:"payment_id"`
	Amount       float64 `json:"amount"`
	AuthorizedAt string  `json:"authorized_at"`
}

type PaymentFailed struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason"`
	FailedAt  string `json:"failed_at"`
}

// PaymentRetryRequested is the durable retry envelope. Scheduling metadata
// (attempt, delay, dispatch deadline) rides out-of-band in Kafka headers.
type PaymentRetryRequested struct {
	OrderID     string  `json:"order_id"`
	PaymentID   string  `json:"payment_id"`
	UserID      string  `json:"user_id"`
	Amount      float64 `json:"amount"`
	RequestedAt string  `json:"requested_at"`
}

type ShippingScheduled struct {
	OrderID     string `json:"order_id"`
	ShipmentID  string `json:"shipment_id"`
	Carrier     string `json:"carrier"`
	ETA         string `json:"eta"`
	ScheduledAt string `json:"scheduled_at"`
}

type OrderCompleted struct {
	OrderID     string `json:"order_id"`
	CompletedAt string `json:"completed_at"`
}

type OrderCancelled struct {
	OrderID     string `json:"order_id"`
	Reason      string `json:"reason"`
	CancelledAt string `json:"cancelled_at"`
}
