package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/orderflow/libs/events"
	"github.com/md-rashed-zaman/orderflow/libs/outbox"
	"github.com/md-rashed-zaman/orderflow/services/order-service/internal/model"
	"github.com/md-rashed-zaman/orderflow/services/order-service/internal/storage"
)

type Handler struct {
	repo       *storage.OrderRepository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
}

func New(repo *storage.OrderRepository, outboxRepo *outbox.Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, outboxRepo: outboxRepo, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.CreateOrder)
	mux.HandleFunc("GET /orders/{orderID}", h.GetOrder)
	mux.HandleFunc("POST /orders/{orderID}/complete", h.CompleteOrder)
	mux.HandleFunc("POST /orders/{orderID}/cancel", h.CancelOrder)
}

type createOrderRequest struct {
	UserID string            `json:"user_id"`
	Items  []model.OrderItem `json:"items"`
}

func validateCreateOrder(req createOrderRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return errors.New("user_id is required")
	}
	if len(req.Items) == 0 {
		return errors.New("at least one item is required")
	}
	for i, item := range req.Items {
		if strings.TrimSpace(item.SKU) == "" {
			return fmt.Errorf("items[%d].sku is required", i)
		}
		if item.Qty <= 0 {
			return fmt.Errorf("items[%d].qty must be positive", i)
		}
		if item.Price < 0 {
			return fmt.Errorf("items[%d].price must not be negative", i)
		}
	}
	return nil
}

func newOrderID() string {
	return "ORD-" + strings.ToUpper(uuid.NewString()[:8])
}

// CreateOrder persists the order and stages OrderCreated in one transaction.
// The response is an acceptance: there is no synchronous failure channel for
// downstream rejections; callers observe outcomes via the order-status view.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := validateCreateOrder(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	order := model.Order{
		OrderID:   newOrderID(),
		UserID:    req.UserID,
		Total:     model.Total(req.Items),
		Items:     req.Items,
		Status:    model.StatusNew,
		CreatedAt: now,
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		h.logger.Error("db begin failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.Create(ctx, tx, order); err != nil {
		h.logger.Error("order insert failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	eventItems := make([]events.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		eventItems = append(eventItems, events.OrderItem{SKU: item.SKU, Qty: item.Qty, Price: item.Price})
	}
	payload, err := json.Marshal(events.OrderCreated{
		OrderID:   order.OrderID,
		UserID:    order.UserID,
		Total:     order.Total,
		Items:     eventItems,
		CreatedAt: now.Format(time.RFC3339),
		Version:   events.SchemaVersion,
	})
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "order",
		AggregateID:   order.OrderID,
		EventType:     events.TopicOrderCreated,
		Payload:       payload,
	}); err != nil {
		h.logger.Error("outbox insert failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.logger.Error("commit failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("order accepted", "order_id", order.OrderID, "user_id", order.UserID, "total", order.Total)
	writeJSON(w, http.StatusAccepted, order)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderID")
	order, err := h.repo.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		h.logger.Error("order lookup failed", "err", err, "order_id", orderID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderID")
	now := time.Now().UTC()
	payload, err := json.Marshal(events.OrderCompleted{
		OrderID:     orderID,
		CompletedAt: now.Format(time.RFC3339),
	})
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.transition(w, r, orderID, model.StatusCompleted, events.TopicOrderCompleted, payload)
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderID")
	var req cancelOrderRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if strings.TrimSpace(req.Reason) == "" {
		req.Reason = "cancelled by user"
	}

	now := time.Now().UTC()
	payload, err := json.Marshal(events.OrderCancelled{
		OrderID:     orderID,
		Reason:      req.Reason,
		CancelledAt: now.Format(time.RFC3339),
	})
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.transition(w, r, orderID, model.StatusCancelled, events.TopicOrderCancelled, payload)
}

// transition flips the local status and stages the terminal event atomically.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, orderID string, status model.OrderStatus, eventType string, payload []byte) {
	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		h.logger.Error("db begin failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	previous, err := h.repo.UpdateStatus(ctx, tx, orderID, status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		h.logger.Error("status update failed", "err", err, "order_id", orderID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if previous == status {
		// Already transitioned; do not stage the event twice.
		writeJSON(w, http.StatusOK, map[string]string{"order_id": orderID, "status": string(status)})
		return
	}

	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "order",
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		h.logger.Error("outbox insert failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.logger.Error("commit failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("order status changed", "order_id", orderID, "from", previous, "to", status)
	writeJSON(w, http.StatusOK, map[string]string{"order_id": orderID, "status": string(status)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
