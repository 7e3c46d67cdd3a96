package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/orderflow/services/inventory-service/internal/storage"
)

type Handler struct {
	repo   *storage.InventoryRepository
	logger *slog.Logger
}

func New(repo *storage.InventoryRepository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /inventory/seed", h.Seed)
	mux.HandleFunc("GET /inventory", h.List)
	mux.HandleFunc("GET /inventory/{sku}", h.Get)
}

type seedRequest struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	var req seedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.SKU) == "" || req.Qty <= 0 {
		http.Error(w, "sku and a positive qty are required", http.StatusBadRequest)
		return
	}

	if err := h.repo.Seed(r.Context(), req.SKU, req.Qty); err != nil {
		h.logger.Error("seed failed", "err", err, "sku", req.SKU)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	stock, err := h.repo.Get(r.Context(), req.SKU)
	if err != nil {
		h.logger.Error("stock lookup failed", "err", err, "sku", req.SKU)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stock)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("stock list failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stocks)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sku := r.PathValue("sku")
	stock, err := h.repo.Get(r.Context(), sku)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "sku not found", http.StatusNotFound)
			return
		}
		h.logger.Error("stock lookup failed", "err", err, "sku", sku)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stock)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
