// Package retry schedules delayed payment re-attempts in process. Tickets
// are also staged as durable retry events, so a ticket lost to a restart
// reappears when the retry topic is consumed again.
package retry

import "time"

// Backoff returns the delay before the attempt following failed attempt n,
// doubling from base up to cap: base, 2*base, 4*base, ...
func Backoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}
