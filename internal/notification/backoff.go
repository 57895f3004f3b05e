package notification

import "time"

// Backoff returns base doubled per previous attempt, capped at max
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		return 0
	}
	if attempt > 32 {
		return max
	}
	d := base << uint(attempt-1)
	if d <= 0 || (max > 0 && d > max) {
		return max
	}
	return d
}
