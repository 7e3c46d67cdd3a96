package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/md-rashed-zaman/orderflow/services/payment-service/internal/storage"
)

type paymentReader interface {
	GetByOrder(ctx context.Context, orderID string) (storage.ProcessedOrder, bool, error)
	List(ctx context.Context, limit int) ([]storage.ProcessedOrder, error)
}

type Handler struct {
	payments paymentReader
	logger   *slog.Logger
}

func New(payments paymentReader, logger *slog.Logger) *Handler {
	return &Handler{payments: payments, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /payments", h.ListPayments)
	mux.HandleFunc("GET /payments/{orderID}", h.GetPayment)
}

type paymentView struct {
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderID")
	po, found, err := h.payments.GetByOrder(r.Context(), orderID)
	if err != nil {
		h.logger.Error("payment lookup failed", "order_id", orderID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "payment not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, paymentView{OrderID: po.OrderID, Status: po.Status, Attempts: po.Attempts})
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = n
	}
	payments, err := h.payments.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("payment list failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	views := make([]paymentView, 0, len(payments))
	for _, po := range payments {
		views = append(views, paymentView{OrderID: po.OrderID, Status: po.Status, Attempts: po.Attempts})
	}
	writeJSON(w, http.StatusOK, views)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
