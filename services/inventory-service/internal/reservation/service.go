package reservation

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/orderflow/libs/events"
	"github.com/md-rashed-zaman/orderflow/libs/outbox"
	"github.com/md-rashed-zaman/orderflow/services/inventory-service/internal/storage"
)

// Service holds the inventory side of the saga: reserve on OrderCreated,
// commit on PaymentAuthorized, release on PaymentFailed. All methods run
// inside the consumer's transaction, alongside the inbox marker.
type Service struct {
	repo        *storage.InventoryRepository
	outboxRepo  *outbox.Repository
	logger      *slog.Logger
	warehouseID string
}

func NewService(repo *storage.InventoryRepository, outboxRepo *outbox.Repository, logger *slog.Logger, warehouseID string) *Service {
	if warehouseID == "" {
		warehouseID = "MAIN_WAREHOUSE"
	}
	return &Service{repo: repo, outboxRepo: outboxRepo, logger: logger, warehouseID: warehouseID}
}

// HandleOrderCreated locks the order's stock rows, checks every line item,
// and either reserves everything or rejects with zero mutation. A rejection
// stages both InventoryRejected and a compensating PaymentFailed carrying a
// placeholder payment id, so a payment consumer that has not yet authorized
// treats the order as already failed.
func (s *Service) HandleOrderCreated(ctx context.Context, tx pgx.Tx, evt events.OrderCreated) error {
	available, err := s.repo.FetchForUpdate(ctx, tx, SKUs(evt.Items))
	if err != nil {
		return err
	}

	plan, reason := Plan(available, evt.Items)
	if reason != "" {
		return s.reject(ctx, tx, evt.OrderID, reason)
	}

	for _, item := range plan {
		if err := s.repo.Reserve(ctx, tx, evt.OrderID, item.SKU, item.Qty); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(events.InventoryReserved{
		OrderID:     evt.OrderID,
		Items:       plan,
		WarehouseID: s.warehouseID,
		ReservedAt:  time.Now().UTC().Format(time.RFC3339),
		Version:     events.SchemaVersion,
	})
	if err != nil {
		return err
	}
	if err := s.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "inventory",
		AggregateID:   evt.OrderID,
		EventType:     events.TopicInventoryReserved,
		Payload:       payload,
	}); err != nil {
		return err
	}

	s.logger.Info("inventory reserved", "order_id", evt.OrderID, "items", len(plan))
	return nil
}

func (s *Service) reject(ctx context.Context, tx pgx.Tx, orderID, reason string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	rejected, err := json.Marshal(events.InventoryRejected{
		OrderID:    orderID,
		Reason:     reason,
		RejectedAt: now,
		Version:    events.SchemaVersion,
	})
	if err != nil {
		return err
	}
	if err := s.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "inventory",
		AggregateID:   orderID,
		EventType:     events.TopicInventoryRejected,
		Payload:       rejected,
	}); err != nil {
		return err
	}

	// The payment may not have been attempted yet, hence the placeholder id.
	failed, err := json.Marshal(events.PaymentFailed{
		OrderID:   orderID,
		PaymentID: "PENDING-" + orderID,
		Reason:    "inventory reservation failed: " + reason,
		FailedAt:  now,
	})
	if err != nil {
		return err
	}
	if err := s.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "inventory",
		AggregateID:   orderID,
		EventType:     events.TopicPaymentFailed,
		Payload:       failed,
	}); err != nil {
		return err
	}

	s.logger.Warn("inventory rejected", "order_id", orderID, "reason", reason)
	return nil
}

// HandlePaymentAuthorized turns the order's hold into a permanent deduction.
func (s *Service) HandlePaymentAuthorized(ctx context.Context, tx pgx.Tx, evt events.PaymentAuthorized) error {
	if err := s.repo.Commit(ctx, tx, evt.OrderID); err != nil {
		return err
	}
	s.logger.Info("reservation committed", "order_id", evt.OrderID, "payment_id", evt.PaymentID)
	return nil
}

// HandlePaymentFailed unwinds the order's hold, returning stock to available.
// When the failure originated from this service's own rejection there is no
// hold to release and the call is a no-op.
//
// Known gap, kept deliberately: a payment that authorized BEFORE the
// rejection's compensating event is not reversed here; there is no refund or
// reconciliation path in this design.
func (s *Service) HandlePaymentFailed(ctx context.Context, tx pgx.Tx, evt events.PaymentFailed) error {
	released, err := s.repo.Release(ctx, tx, evt.OrderID)
	if err != nil {
		return err
	}
	if released > 0 {
		s.logger.Info("reservation released", "order_id", evt.OrderID, "skus", released, "reason", evt.Reason)
	}
	return nil
}
