package payments

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"

	"github.com/md-rashed-zaman/orderflow/libs/events"
	"github.com/md-rashed-zaman/orderflow/libs/kafkax"
	"github.com/md-rashed-zaman/orderflow/libs/outbox"
	"github.com/md-rashed-zaman/orderflow/services/payment-service/internal/provider"
	"github.com/md-rashed-zaman/orderflow/services/payment-service/internal/storage"
)

type fakeOrders struct {
	rows map[string]storage.ProcessedOrder
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{rows: make(map[string]storage.ProcessedOrder)}
}

func (f *fakeOrders) Get(ctx context.Context, tx pgx.Tx, orderID string) (storage.ProcessedOrder, bool, error) {
	po, ok := f.rows[orderID]
	return po, ok, nil
}

func (f *fakeOrders) Insert(ctx context.Context, tx pgx.Tx, po storage.ProcessedOrder) error {
	f.rows[po.OrderID] = po
	return nil
}

func (f *fakeOrders) SetStatus(ctx context.Context, tx pgx.Tx, orderID, status string, attempts int) error {
	po := f.rows[orderID]
	po.OrderID = orderID
	po.Status = status
	po.Attempts = attempts
	f.rows[orderID] = po
	return nil
}

type fakeStager struct {
	staged []outbox.Event
}

func (f *fakeStager) Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error {
	f.staged = append(f.staged, evt)
	return nil
}

func (f *fakeStager) byType(eventType string) []outbox.Event {
	var out []outbox.Event
	for _, e := range f.staged {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type decliningProvider struct {
	calls int
}

func (p *decliningProvider) Authorize(ctx context.Context, orderID string, amount float64, userID string) (provider.Authorization, error) {
	p.calls++
	return provider.Authorization{}, &provider.DeclinedError{Code: "INSUFFICIENT_FUNDS", Message: "declined"}
}

type grantingProvider struct {
	calls int
}

func (p *grantingProvider) Authorize(ctx context.Context, orderID string, amount float64, userID string) (provider.Authorization, error) {
	p.calls++
	return provider.Authorization{PaymentID: "TXN-TEST"}, nil
}

func newTestService(orders *fakeOrders, stager *fakeStager, p provider.Provider) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(orders, stager, p, clockwork.NewFakeClock(), logger, 3, 2*time.Second, 60*time.Second)
}

func TestAuthorizationSuccessStagesAuthorizedEvent(t *testing.T) {
	orders := newFakeOrders()
	stager := &fakeStager{}
	p := &grantingProvider{}
	svc := newTestService(orders, stager, p)

	evt := events.OrderCreated{OrderID: "ORD-OK", UserID: "user-1", Total: 120.50}
	if err := svc.HandleOrderCreated(context.Background(), nil, evt); err != nil {
		t.Fatalf("HandleOrderCreated: %v", err)
	}

	auth := stager.byType(events.TopicPaymentAuthorized)
	if len(auth) != 1 {
		t.Fatalf("staged %d authorized events, want 1", len(auth))
	}
	if got := orders.rows["ORD-OK"].Status; got != storage.StatusAuthorized {
		t.Fatalf("order status = %s, want %s", got, storage.StatusAuthorized)
	}
}

func TestRedeliveredOrderCreatedIsNoOp(t *testing.T) {
	orders := newFakeOrders()
	stager := &fakeStager{}
	p := &grantingProvider{}
	svc := newTestService(orders, stager, p)

	evt := events.OrderCreated{OrderID: "ORD-DUP", UserID: "user-1", Total: 10}
	for i := 0; i < 3; i++ {
		if err := svc.HandleOrderCreated(context.Background(), nil, evt); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if p.calls != 1 {
		t.Fatalf("provider called %d times, want 1", p.calls)
	}
}

func TestRetryExhaustionDeadLettersAfterMaxAttempts(t *testing.T) {
	orders := newFakeOrders()
	stager := &fakeStager{}
	p := &decliningProvider{}
	svc := newTestService(orders, stager, p)
	ctx := context.Background()

	created := events.OrderCreated{OrderID: "ORD-X", UserID: "user-9", Total: 75}
	if err := svc.HandleOrderCreated(ctx, nil, created); err != nil {
		t.Fatalf("attempt 1: %v", err)
	}

	// Replay each staged retry envelope as the scheduler would.
	for attempt := 2; attempt <= 3; attempt++ {
		retries := stager.byType(events.TopicPaymentRetry)
		if len(retries) != attempt-1 {
			t.Fatalf("before attempt %d: %d retry events staged, want %d", attempt, len(retries), attempt-1)
		}
		last := retries[len(retries)-1]
		if got := last.Headers[kafkax.HeaderRetryAttempt]; got != strconv.Itoa(attempt) {
			t.Fatalf("retry header attempt = %s, want %d", got, attempt)
		}
		req := events.PaymentRetryRequested{OrderID: "ORD-X", UserID: "user-9", Amount: 75}
		if err := svc.HandleRetryDue(ctx, nil, req, attempt); err != nil {
			t.Fatalf("attempt %d: %v", attempt, err)
		}
	}

	if p.calls != 3 {
		t.Fatalf("provider called %d times, want exactly 3", p.calls)
	}
	if dlq := stager.byType(events.TopicPaymentDLQ); len(dlq) != 1 {
		t.Fatalf("staged %d dead-letter events, want 1", len(dlq))
	}
	failed := stager.byType(events.TopicPaymentFailed)
	if len(failed) != 1 {
		t.Fatalf("staged %d failed events, want 1", len(failed))
	}
	if got := orders.rows["ORD-X"].Status; got != storage.StatusFailed {
		t.Fatalf("order status = %s, want %s", got, storage.StatusFailed)
	}

	// A stale retry envelope after exhaustion must not trigger a 4th attempt.
	req := events.PaymentRetryRequested{OrderID: "ORD-X", UserID: "user-9", Amount: 75}
	if err := svc.HandleRetryDue(ctx, nil, req, 4); err != nil {
		t.Fatalf("stale retry: %v", err)
	}
	if p.calls != 3 {
		t.Fatalf("provider called %d times after stale retry, want 3", p.calls)
	}
}

func TestDuplicateRetryTicketSkipped(t *testing.T) {
	orders := newFakeOrders()
	stager := &fakeStager{}
	p := &decliningProvider{}
	svc := newTestService(orders, stager, p)
	ctx := context.Background()

	if err := svc.HandleOrderCreated(ctx, nil, events.OrderCreated{OrderID: "ORD-D", Total: 12}); err != nil {
		t.Fatalf("attempt 1: %v", err)
	}
	req := events.PaymentRetryRequested{OrderID: "ORD-D", Amount: 12}

	// The same envelope dispatched twice, as after a restart rebuilt the
	// ticket: only the first dispatch may reach the provider.
	for i := 0; i < 2; i++ {
		if err := svc.HandleRetryDue(ctx, nil, req, 2); err != nil {
			t.Fatalf("dispatch %d: %v", i+1, err)
		}
	}
	if p.calls != 2 {
		t.Fatalf("provider called %d times, want 2 (attempt 1 + one attempt 2)", p.calls)
	}
	if got := len(stager.byType(events.TopicPaymentRetry)); got != 2 {
		t.Fatalf("staged %d retry events, want 2", got)
	}
}

func TestRetryDelayHeadersFollowBackoff(t *testing.T) {
	orders := newFakeOrders()
	stager := &fakeStager{}
	svc := newTestService(orders, stager, &decliningProvider{})
	ctx := context.Background()

	if err := svc.HandleOrderCreated(ctx, nil, events.OrderCreated{OrderID: "ORD-B", Total: 5}); err != nil {
		t.Fatalf("attempt 1: %v", err)
	}
	req := events.PaymentRetryRequested{OrderID: "ORD-B", Amount: 5}
	if err := svc.HandleRetryDue(ctx, nil, req, 2); err != nil {
		t.Fatalf("attempt 2: %v", err)
	}

	retries := stager.byType(events.TopicPaymentRetry)
	if len(retries) != 2 {
		t.Fatalf("staged %d retry events, want 2", len(retries))
	}
	wantDelays := []string{"2000", "4000"}
	for i, want := range wantDelays {
		if got := retries[i].Headers[kafkax.HeaderRetryDelayMs]; got != want {
			t.Fatalf("retry %d delay header = %sms, want %sms", i+1, got, want)
		}
	}
}

func TestCompensatingFailureBlocksLaterOrderCreated(t *testing.T) {
	orders := newFakeOrders()
	stager := &fakeStager{}
	p := &grantingProvider{}
	svc := newTestService(orders, stager, p)
	ctx := context.Background()

	failure := events.PaymentFailed{OrderID: "ORD-C", PaymentID: "PENDING-ORD-C", Reason: "insufficient stock"}
	if err := svc.HandleCompensatingFailure(ctx, nil, failure); err != nil {
		t.Fatalf("HandleCompensatingFailure: %v", err)
	}
	if err := svc.HandleOrderCreated(ctx, nil, events.OrderCreated{OrderID: "ORD-C", Total: 30}); err != nil {
		t.Fatalf("HandleOrderCreated: %v", err)
	}

	if p.calls != 0 {
		t.Fatalf("provider called %d times for a failed order, want 0", p.calls)
	}
	if len(stager.staged) != 0 {
		t.Fatalf("staged %d events, want 0", len(stager.staged))
	}
}

func TestUnknownErrorsAreRetriedLikeDeclines(t *testing.T) {
	orders := newFakeOrders()
	stager := &fakeStager{}
	p := &flakyProvider{err: errors.New("gateway timeout")}
	svc := newTestService(orders, stager, p)

	if err := svc.HandleOrderCreated(context.Background(), nil, events.OrderCreated{OrderID: "ORD-T", Total: 9}); err != nil {
		t.Fatalf("HandleOrderCreated: %v", err)
	}
	if got := len(stager.byType(events.TopicPaymentRetry)); got != 1 {
		t.Fatalf("staged %d retry events, want 1", got)
	}
}

type flakyProvider struct {
	err error
}

func (p *flakyProvider) Authorize(ctx context.Context, orderID string, amount float64, userID string) (provider.Authorization, error) {
	return provider.Authorization{}, p.err
}
