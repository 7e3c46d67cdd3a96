package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/orderflow/services/notification-service/internal/storage"
)

type notificationReader interface {
	ListByOrder(ctx context.Context, orderID string) ([]storage.Notification, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type Handler struct {
	notifications notificationReader
	logger        *slog.Logger
}

func New(notifications notificationReader, logger *slog.Logger) *Handler {
	return &Handler{notifications: notifications, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /notifications/summary", h.Summary)
	mux.HandleFunc("GET /notifications/{orderID}", h.ListByOrder)
}

func (h *Handler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderID")
	notifications, err := h.notifications.ListByOrder(r.Context(), orderID)
	if err != nil {
		h.logger.Error("notification lookup failed", "order_id", orderID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if len(notifications) == 0 {
		http.Error(w, "no notifications for order", http.StatusNotFound)
		return
	}

	views := make([]notificationView, 0, len(notifications))
	for _, n := range notifications {
		views = append(views, notificationView{
			OrderID:   n.OrderID,
			Channel:   n.Channel,
			Recipient: n.Recipient,
			Subject:   n.Subject,
			Status:    n.Status,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

type notificationView struct {
	OrderID   string `json:"order_id"`
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Status    string `json:"status"`
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	counts, err := h.notifications.CountByStatus(r.Context())
	if err != nil {
		h.logger.Error("notification summary failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
