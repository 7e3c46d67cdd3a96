package provider

import (
	"context"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Simulated is a gateway stand-in for local runs and demos. A seeded
// source makes a given run reproducible.
type Simulated struct {
	mu          sync.Mutex
	rng         *rand.Rand
	successRate float64
}

func NewSimulated(seed int64, successRate float64) *Simulated {
	return &Simulated{
		rng:         rand.New(rand.NewSource(seed)),
		successRate: successRate,
	}
}

func (s *Simulated) Authorize(ctx context.Context, orderID string, amount float64, userID string) (Authorization, error) {
	s.mu.Lock()
	roll := s.rng.Float64()
	s.mu.Unlock()

	if roll >= s.successRate {
		return Authorization{}, &DeclinedError{
			Code:    "INSUFFICIENT_FUNDS",
			Message: "payment authorization declined",
		}
	}
	return Authorization{PaymentID: "TXN-" + strings.ToUpper(uuid.NewString()[:8])}, nil
}
