package retry

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/md-rashed-zaman/orderflow/libs/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ticketFor(orderID string, attempt int, notBefore time.Time) Ticket {
	return Ticket{
		Attempt:   attempt,
		NotBefore: notBefore,
		Payload:   events.PaymentRetryRequested{OrderID: orderID, Amount: 49.99},
	}
}

func TestSchedulerDispatchesOnlyDueTickets(t *testing.T) {
	clock := clockwork.NewFakeClock()
	dispatched := make(chan Ticket, 16)
	s := NewScheduler(clock, time.Second, func(ctx context.Context, tk Ticket) error {
		dispatched <- tk
		return nil
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	clock.BlockUntil(1)

	s.Schedule(ticketFor("ORD-1", 2, clock.Now().Add(2*time.Second)))
	s.Schedule(ticketFor("ORD-2", 2, clock.Now().Add(30*time.Second)))

	clock.Advance(time.Second)
	select {
	case tk := <-dispatched:
		t.Fatalf("ticket for %s dispatched before its deadline", tk.Payload.OrderID)
	case <-time.After(100 * time.Millisecond):
	}

	clock.Advance(time.Second)
	select {
	case tk := <-dispatched:
		if tk.Payload.OrderID != "ORD-1" {
			t.Fatalf("dispatched order %s, want ORD-1", tk.Payload.OrderID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("due ticket was not dispatched")
	}

	if got := s.Pending(); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}
}

func TestSchedulerReleasesInDeadlineOrder(t *testing.T) {
	clock := clockwork.NewFakeClock()
	dispatched := make(chan Ticket, 16)
	s := NewScheduler(clock, time.Second, func(ctx context.Context, tk Ticket) error {
		dispatched <- tk
		return nil
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	clock.BlockUntil(1)

	s.Schedule(ticketFor("ORD-LATE", 3, clock.Now().Add(800*time.Millisecond)))
	s.Schedule(ticketFor("ORD-EARLY", 2, clock.Now().Add(200*time.Millisecond)))

	clock.Advance(time.Second)

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case tk := <-dispatched:
			got = append(got, tk.Payload.OrderID)
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of 2 tickets dispatched", len(got))
		}
	}
	if got[0] != "ORD-EARLY" || got[1] != "ORD-LATE" {
		t.Fatalf("dispatch order = %v, want [ORD-EARLY ORD-LATE]", got)
	}
}
