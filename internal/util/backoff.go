package util

import (
	"math/rand"
	"time"
)

const maxBackoff = 30 * time.Second

// Backoff returns an exponential delay with up to 25% jitter either way.
// Attempt 0 returns zero so the first try runs immediately.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 || base <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}

	delay := base * time.Duration(1<<uint(attempt-1))
	if delay > maxBackoff || delay <= 0 {
		delay = maxBackoff
	}

	half := int64(delay / 2)
	if half <= 0 {
		return delay
	}
	jitter := time.Duration(rand.Int63n(half)) - delay/4
	return delay + jitter
}
