package retry

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/md-rashed-zaman/orderflow/libs/events"
)

// Ticket is a pending re-attempt for one order's payment.
type Ticket struct {
	Attempt   int
	NotBefore time.Time
	Payload   events.PaymentRetryRequested
}

// DispatchFunc runs a due ticket. Dispatch errors are logged; the durable
// retry event is the recovery path, not the in-memory queue.
type DispatchFunc func(ctx context.Context, t Ticket) error

// Scheduler holds tickets in a min-heap ordered by NotBefore and releases
// them on a fixed sweep interval.
type Scheduler struct {
	clock    clockwork.Clock
	interval time.Duration
	dispatch DispatchFunc
	logger   *slog.Logger

	mu      sync.Mutex
	pending ticketHeap
}

func NewScheduler(clock clockwork.Clock, interval time.Duration, dispatch DispatchFunc, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		clock:    clock,
		interval: interval,
		dispatch: dispatch,
		logger:   logger,
	}
}

func (s *Scheduler) Schedule(t Ticket) {
	s.mu.Lock()
	heap.Push(&s.pending, t)
	n := s.pending.Len()
	s.mu.Unlock()
	s.logger.Info("retry scheduled",
		"order_id", t.Payload.OrderID,
		"attempt", t.Attempt,
		"not_before", t.NotBefore.Format(time.RFC3339),
		"pending", n)
}

// Pending reports how many tickets are waiting.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len()
}

// Run sweeps due tickets until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			for _, t := range s.takeDue(s.clock.Now()) {
				if err := s.dispatch(ctx, t); err != nil {
					s.logger.Error("retry dispatch failed",
						"order_id", t.Payload.OrderID,
						"attempt", t.Attempt,
						"error", err)
				}
			}
		}
	}
}

func (s *Scheduler) takeDue(now time.Time) []Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Ticket
	for s.pending.Len() > 0 && !s.pending[0].NotBefore.After(now) {
		due = append(due, heap.Pop(&s.pending).(Ticket))
	}
	return due
}

type ticketHeap []Ticket

func (h ticketHeap) Len() int           { return len(h) }
func (h ticketHeap) Less(i, j int) bool { return h[i].NotBefore.Before(h[j].NotBefore) }
func (h ticketHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *ticketHeap) Push(x any)        { *h = append(*h, x.(Ticket)) }
func (h *ticketHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}
