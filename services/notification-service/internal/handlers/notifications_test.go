package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/md-rashed-zaman/orderflow/services/notification-service/internal/storage"
)

type fakeReader struct {
	byOrder map[string][]storage.Notification
	counts  map[string]int
}

func (f *fakeReader) ListByOrder(_ context.Context, orderID string) ([]storage.Notification, error) {
	return f.byOrder[orderID], nil
}

func (f *fakeReader) CountByStatus(_ context.Context) (map[string]int, error) {
	return f.counts, nil
}

func newTestHandler(reader *fakeReader) *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	New(reader, logger).Register(mux)
	return mux
}

func TestListNotificationsByOrder(t *testing.T) {
	reader := &fakeReader{byOrder: map[string][]storage.Notification{
		"ORD-1": {
			{OrderID: "ORD-1", Channel: "email", Recipient: "a@example.com", Subject: "Order shipped", Status: "SENT"},
			{OrderID: "ORD-1", Channel: "email", Recipient: "a@example.com", Subject: "Order confirmed", Status: "SENT"},
		},
	}}
	mux := newTestHandler(reader)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications/ORD-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var views []notificationView
	if err := json.NewDecoder(rec.Body).Decode(&views); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d notifications, want 2", len(views))
	}
	if views[0].Subject != "Order shipped" || views[0].Status != "SENT" {
		t.Fatalf("unexpected first view: %+v", views[0])
	}
}

func TestListNotificationsUnknownOrder(t *testing.T) {
	mux := newTestHandler(&fakeReader{byOrder: map[string][]storage.Notification{}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications/ORD-MISSING", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestNotificationSummary(t *testing.T) {
	mux := newTestHandler(&fakeReader{counts: map[string]int{"SENT": 5, "FAILED": 1}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications/summary", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var counts map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&counts); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if counts["SENT"] != 5 || counts["FAILED"] != 1 {
		t.Fatalf("unexpected summary: %v", counts)
	}
}
