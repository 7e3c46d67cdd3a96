// Package payments authorizes order payments and drives the bounded retry
// loop. Every outcome is staged through the outbox in the same transaction
// as the processed-orders state change.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"

	"github.com/md-rashed-zaman/orderflow/libs/events"
	"github.com/md-rashed-zaman/orderflow/libs/kafkax"
	"github.com/md-rashed-zaman/orderflow/libs/outbox"
	"github.com/md-rashed-zaman/orderflow/services/payment-service/internal/provider"
	"github.com/md-rashed-zaman/orderflow/services/payment-service/internal/retry"
	"github.com/md-rashed-zaman/orderflow/services/payment-service/internal/storage"
)

const aggregateOrder = "order"

type orderStore interface {
	Get(ctx context.Context, tx pgx.Tx, orderID string) (storage.ProcessedOrder, bool, error)
	Insert(ctx context.Context, tx pgx.Tx, po storage.ProcessedOrder) error
	SetStatus(ctx context.Context, tx pgx.Tx, orderID, status string, attempts int) error
}

type eventStager interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type Service struct {
	orders   orderStore
	outbox   eventStager
	provider provider.Provider
	clock    clockwork.Clock
	logger   *slog.Logger

	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func NewService(orders orderStore, stager eventStager, p provider.Provider, clock clockwork.Clock, logger *slog.Logger, maxAttempts int, baseDelay, maxDelay time.Duration) *Service {
	return &Service{
		orders:      orders,
		outbox:      stager,
		provider:    p,
		clock:       clock,
		logger:      logger,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// HandleOrderCreated runs the first authorization attempt. An order already
// on record is skipped whatever its status: a FAILED row means a
// compensating failure arrived before the order itself, and the payment
// must not be attempted at all.
func (s *Service) HandleOrderCreated(ctx context.Context, tx pgx.Tx, evt events.OrderCreated) error {
	existing, found, err := s.orders.Get(ctx, tx, evt.OrderID)
	if err != nil {
		return err
	}
	if found {
		s.logger.Info("order already processed, skipping",
			"order_id", evt.OrderID, "status", existing.Status)
		return nil
	}
	if err := s.orders.Insert(ctx, tx, storage.ProcessedOrder{
		OrderID:  evt.OrderID,
		Status:   storage.StatusProcessing,
		Attempts: 1,
	}); err != nil {
		return err
	}
	req := events.PaymentRetryRequested{
		OrderID: evt.OrderID,
		UserID:  evt.UserID,
		Amount:  evt.Total,
	}
	return s.attempt(ctx, tx, req, 1)
}

// HandleRetryDue re-attempts an order whose retry deadline has passed. The
// attempt is skipped if the order reached a terminal status in the
// meantime, or if its attempt number is not ahead of the recorded count —
// retry envelopes are parked without dedup, so the same ticket may be
// rebuilt after a restart and dispatched more than once.
func (s *Service) HandleRetryDue(ctx context.Context, tx pgx.Tx, evt events.PaymentRetryRequested, attempt int) error {
	existing, found, err := s.orders.Get(ctx, tx, evt.OrderID)
	if err != nil {
		return err
	}
	if found && existing.Status != storage.StatusProcessing {
		s.logger.Info("retry superseded, skipping",
			"order_id", evt.OrderID, "status", existing.Status, "attempt", attempt)
		return nil
	}
	if found && existing.Attempts >= attempt {
		s.logger.Info("retry already attempted, skipping",
			"order_id", evt.OrderID, "attempts", existing.Attempts, "attempt", attempt)
		return nil
	}
	if !found {
		if err := s.orders.Insert(ctx, tx, storage.ProcessedOrder{
			OrderID:  evt.OrderID,
			Status:   storage.StatusProcessing,
			Attempts: attempt,
		}); err != nil {
			return err
		}
	} else if err := s.orders.SetStatus(ctx, tx, evt.OrderID, storage.StatusProcessing, attempt); err != nil {
		return err
	}
	return s.attempt(ctx, tx, evt, attempt)
}

// HandleCompensatingFailure records a failure produced by another service,
// for example inventory rejecting the order before payment ran. Inserting a
// FAILED row up front makes a later OrderCreated delivery a no-op.
func (s *Service) HandleCompensatingFailure(ctx context.Context, tx pgx.Tx, evt events.PaymentFailed) error {
	existing, found, err := s.orders.Get(ctx, tx, evt.OrderID)
	if err != nil {
		return err
	}
	if !found {
		return s.orders.Insert(ctx, tx, storage.ProcessedOrder{
			OrderID: evt.OrderID,
			Status:  storage.StatusFailed,
		})
	}
	if existing.Status == storage.StatusAuthorized {
		// The payment went through before the failure arrived. There is no
		// refund path here; surface it loudly so the hold can be voided by hand.
		s.logger.Error("payment failure received for an authorized order, manual void required",
			"order_id", evt.OrderID, "reason", evt.Reason)
		return nil
	}
	return s.orders.SetStatus(ctx, tx, evt.OrderID, storage.StatusFailed, existing.Attempts)
}

func (s *Service) attempt(ctx context.Context, tx pgx.Tx, req events.PaymentRetryRequested, attempt int) error {
	auth, err := s.provider.Authorize(ctx, req.OrderID, req.Amount, req.UserID)
	if err == nil {
		return s.authorized(ctx, tx, req, attempt, auth)
	}

	s.logger.Warn("payment authorization failed",
		"order_id", req.OrderID,
		"attempt", attempt,
		"declined", provider.IsDeclined(err),
		"error", err)

	if attempt >= s.maxAttempts {
		return s.deadLetter(ctx, tx, req, attempt, err)
	}
	return s.scheduleRetry(ctx, tx, req, attempt)
}

func (s *Service) authorized(ctx context.Context, tx pgx.Tx, req events.PaymentRetryRequested, attempt int, auth provider.Authorization) error {
	if err := s.orders.SetStatus(ctx, tx, req.OrderID, storage.StatusAuthorized, attempt); err != nil {
		return err
	}
	evt := events.PaymentAuthorized{
		OrderID:      req.OrderID,
		PaymentID:    auth.PaymentID,
		Amount:       req.Amount,
		AuthorizedAt: s.clock.Now().UTC().Format(time.RFC3339),
	}
	if err := s.stage(ctx, tx, req.OrderID, events.TopicPaymentAuthorized, evt, nil); err != nil {
		return err
	}
	s.logger.Info("payment authorized",
		"order_id", req.OrderID, "payment_id", auth.PaymentID, "attempt", attempt)
	return nil
}

func (s *Service) scheduleRetry(ctx context.Context, tx pgx.Tx, req events.PaymentRetryRequested, attempt int) error {
	delay := retry.Backoff(attempt, s.baseDelay, s.maxDelay)
	next := attempt + 1
	notBefore := s.clock.Now().Add(delay)

	req.RequestedAt = s.clock.Now().UTC().Format(time.RFC3339)
	headers := kafkax.RetryHeaderMap(next, delay, notBefore)
	if err := s.stage(ctx, tx, req.OrderID, events.TopicPaymentRetry, req, headers); err != nil {
		return err
	}
	s.logger.Info("payment retry staged",
		"order_id", req.OrderID, "next_attempt", next, "delay", delay)
	return nil
}

func (s *Service) deadLetter(ctx context.Context, tx pgx.Tx, req events.PaymentRetryRequested, attempt int, cause error) error {
	if err := s.orders.SetStatus(ctx, tx, req.OrderID, storage.StatusFailed, attempt); err != nil {
		return err
	}
	dlqHeaders := map[string]string{
		kafkax.HeaderErrorCode:       errorCode(cause),
		kafkax.HeaderErrorMessage:    cause.Error(),
		kafkax.HeaderRetriesExceeded: strconv.Itoa(s.maxAttempts),
	}
	req.RequestedAt = s.clock.Now().UTC().Format(time.RFC3339)
	if err := s.stage(ctx, tx, req.OrderID, events.TopicPaymentDLQ, req, dlqHeaders); err != nil {
		return err
	}
	failed := events.PaymentFailed{
		OrderID:   req.OrderID,
		PaymentID: "FAILED-" + req.OrderID,
		Reason:    provider.FailureReason(cause),
		FailedAt:  s.clock.Now().UTC().Format(time.RFC3339),
	}
	if err := s.stage(ctx, tx, req.OrderID, events.TopicPaymentFailed, failed, nil); err != nil {
		return err
	}
	s.logger.Error("payment attempts exhausted, order dead-lettered",
		"order_id", req.OrderID, "attempts", attempt, "error", cause)
	return nil
}

func (s *Service) stage(ctx context.Context, tx pgx.Tx, orderID, eventType string, payload any, headers map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s for order %s: %w", eventType, orderID, err)
	}
	return s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: aggregateOrder,
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       body,
		Headers:       headers,
	})
}

func errorCode(err error) string {
	if provider.IsDeclined(err) {
		return "PAYMENT_DECLINED"
	}
	return "PROCESSING_ERROR"
}
