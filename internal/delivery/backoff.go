// internal/delivery/backoff.go

package delivery

import "time"

// BackoffFunc maps a zero-based attempt number to the delay inserted before
// the next retry. Implementations must be monotonically non-decreasing in
// the attempt number.
type BackoffFunc func(attempt int) time.Duration

const (
	backoffBase = 100 * time.Millisecond
	backoffCap  = 30 * time.Second
)

// ExponentialBackoff doubles the delay per attempt, starting at 100ms and
// capped at 30s.
func ExponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := backoffBase
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= backoffCap {
			return backoffCap
		}
	}
	return d
}

// NoBackoff retries immediately. Used to keep retry tests fast and
// deterministic.
func NoBackoff(int) time.Duration {
	return 0
}
