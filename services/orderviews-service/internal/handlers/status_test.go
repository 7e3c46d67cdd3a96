package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/md-rashed-zaman/orderflow/services/orderviews-service/internal/projection"
)

type memStore struct {
	views map[string]projection.OrderStatus
}

func (m *memStore) Get(ctx context.Context, orderID string) (projection.OrderStatus, bool, error) {
	v, ok := m.views[orderID]
	return v, ok, nil
}

func (m *memStore) Apply(ctx context.Context, update projection.OrderStatus) error {
	existing := m.views[update.OrderID]
	m.views[update.OrderID] = projection.Merge(existing, update)
	return nil
}

func newTestMux(views map[string]projection.OrderStatus) *http.ServeMux {
	mux := http.NewServeMux()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	New(&memStore{views: views}, logger).Register(mux)
	return mux
}

func TestGetStatusFound(t *testing.T) {
	mux := newTestMux(map[string]projection.OrderStatus{
		"ORD-1": {OrderID: "ORD-1", UserID: "u-1", Status: projection.StatusPaymentAuthorized, Total: 99.95},
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/ORD-1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var view projection.OrderStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if view.Status != projection.StatusPaymentAuthorized {
		t.Fatalf("view status = %s, want %s", view.Status, projection.StatusPaymentAuthorized)
	}
	if view.Total != 99.95 {
		t.Fatalf("view total = %v, want 99.95", view.Total)
	}
}

func TestGetStatusNotFound(t *testing.T) {
	mux := newTestMux(map[string]projection.OrderStatus{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/ORD-MISSING/status", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
