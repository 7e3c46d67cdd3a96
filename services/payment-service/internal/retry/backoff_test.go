package retry

import (
	"testing"
	"time"
)

func TestBackoffDoubles(t *testing.T) {
	base := 2 * time.Second
	cap := 60 * time.Second

	want := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
	}
	for i, expect := range want {
		attempt := i + 1
		if got := Backoff(attempt, base, cap); got != expect {
			t.Fatalf("Backoff(%d) = %v, want %v", attempt, got, expect)
		}
	}
}

func TestBackoffCapped(t *testing.T) {
	base := 2 * time.Second
	cap := 60 * time.Second

	for attempt := 6; attempt <= 20; attempt++ {
		if got := Backoff(attempt, base, cap); got != cap {
			t.Fatalf("Backoff(%d) = %v, want cap %v", attempt, got, cap)
		}
	}
}

func TestBackoffClampsInvalidAttempt(t *testing.T) {
	if got := Backoff(0, 2*time.Second, 60*time.Second); got != 2*time.Second {
		t.Fatalf("Backoff(0) = %v, want %v", got, 2*time.Second)
	}
}
