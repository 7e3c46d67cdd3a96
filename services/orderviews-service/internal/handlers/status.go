package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/orderflow/services/orderviews-service/internal/store"
)

type Handler struct {
	views  store.Store
	logger *slog.Logger
}

func New(views store.Store, logger *slog.Logger) *Handler {
	return &Handler{views: views, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /orders/{orderID}/status", h.GetStatus)
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderID")
	view, found, err := h.views.Get(r.Context(), orderID)
	if err != nil {
		h.logger.Error("status lookup failed", "order_id", orderID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(view); err != nil {
		h.logger.Error("encoding status response", "order_id", orderID, "err", err)
	}
}
