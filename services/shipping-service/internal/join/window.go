// Package join correlates payment authorizations with inventory
// reservations for the same order. Either side may arrive first; a side is
// buffered until its counterpart shows up or the window closes.
package join

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/md-rashed-zaman/orderflow/libs/events"
)

// Pair is one matched authorization/reservation couple.
type Pair struct {
	Payment     events.PaymentAuthorized
	Reservation events.InventoryReserved
}

type paymentEntry struct {
	evt events.PaymentAuthorized
	// ts is the event's own timestamp; the match is gated on it so a
	// replay from the start of the log joins the same pairs.
	ts   time.Time
	seen time.Time
}

type reservationEntry struct {
	evt  events.InventoryReserved
	ts   time.Time
	seen time.Time
}

// Window buffers the two event streams keyed by order id. Two sides match
// when their event timestamps lie within the window span of each other;
// arrival time is used only to expire stale buffer entries. A match is not
// consumed until Commit, so a failed downstream publish can re-form the
// pair from the still-buffered sides. Committed order ids stay on record
// for one span so redelivered events do not emit a second pair.
type Window struct {
	clock  clockwork.Clock
	span   time.Duration
	logger *slog.Logger

	mu           sync.Mutex
	payments     map[string]paymentEntry
	reservations map[string]reservationEntry
	matched      map[string]time.Time
}

func NewWindow(clock clockwork.Clock, span time.Duration, logger *slog.Logger) *Window {
	return &Window{
		clock:        clock,
		span:         span,
		logger:       logger,
		payments:     make(map[string]paymentEntry),
		reservations: make(map[string]reservationEntry),
		matched:      make(map[string]time.Time),
	}
}

// OfferPayment records an authorization and reports whether a pair is
// ready. An offer for an already committed order is swallowed.
func (w *Window) OfferPayment(evt events.PaymentAuthorized) (Pair, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	if _, done := w.matched[evt.OrderID]; done {
		return Pair{}, false
	}
	ts := eventTime(evt.AuthorizedAt, now)
	w.payments[evt.OrderID] = paymentEntry{evt: evt, ts: ts, seen: now}
	if res, ok := w.reservations[evt.OrderID]; ok && w.within(ts, res.ts) {
		return Pair{Payment: evt, Reservation: res.evt}, true
	}
	return Pair{}, false
}

// OfferReservation is the mirror of OfferPayment for the inventory side.
func (w *Window) OfferReservation(evt events.InventoryReserved) (Pair, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	if _, done := w.matched[evt.OrderID]; done {
		return Pair{}, false
	}
	ts := eventTime(evt.ReservedAt, now)
	w.reservations[evt.OrderID] = reservationEntry{evt: evt, ts: ts, seen: now}
	if pay, ok := w.payments[evt.OrderID]; ok && w.within(pay.ts, ts) {
		return Pair{Payment: pay.evt, Reservation: evt}, true
	}
	return Pair{}, false
}

// Commit consumes a matched pair once its result is safely published.
// Until then the sides stay buffered and a retry can match them again.
func (w *Window) Commit(orderID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.payments, orderID)
	delete(w.reservations, orderID)
	w.matched[orderID] = w.clock.Now()
}

// Sweep drops buffered sides whose arrival is older than the window span
// and forgets committed order ids past retention. It returns the order ids
// that expired unmatched.
func (w *Window) Sweep() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	var expired []string
	for id, e := range w.payments {
		if !w.within(now, e.seen) {
			delete(w.payments, id)
			expired = append(expired, id)
			w.logger.Warn("payment expired unmatched", "order_id", id)
		}
	}
	for id, e := range w.reservations {
		if !w.within(now, e.seen) {
			delete(w.reservations, id)
			expired = append(expired, id)
			w.logger.Warn("reservation expired unmatched", "order_id", id)
		}
	}
	for id, at := range w.matched {
		if !w.within(now, at) {
			delete(w.matched, id)
		}
	}
	return expired
}

// Run sweeps on a fixed cadence until the context is cancelled.
func (w *Window) Run(ctx context.Context, every time.Duration) {
	ticker := w.clock.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			w.Sweep()
		}
	}
}

func (w *Window) within(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= w.span
}

// eventTime parses the event's embedded timestamp; a malformed one falls
// back to arrival time rather than blocking the stream.
func eventTime(value string, fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return fallback
}
