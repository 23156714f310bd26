package webhook

import (
	"math/rand"
	"time"
)

// retrySchedule holds the base delay before each redelivery attempt.
// The spacing widens quickly so a dead endpoint costs little, while a
// briefly unavailable one still sees a retry within minutes.
var retrySchedule = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
	12 * time.Hour,
}

const (
	// DefaultMaxAttempts is the delivery attempt cap per event.
	DefaultMaxAttempts = 5

	// retryJitter is the fraction of the base delay randomized in both
	// directions, so endpoints recovering from an outage are not hit by
	// every pending delivery at once.
	retryJitter = 0.2
)

// NextRetryDelay returns the backoff delay after the given number of
// failed attempts, with jitter applied. Counts beyond the schedule
// reuse its last entry.
func NextRetryDelay(attemptCount int) time.Duration {
	if attemptCount < 0 {
		attemptCount = 0
	}
	if attemptCount >= len(retrySchedule) {
		attemptCount = len(retrySchedule) - 1
	}

	base := retrySchedule[attemptCount]
	jitter := (rand.Float64()*2 - 1) * float64(base) * retryJitter

	return time.Duration(float64(base) + jitter)
}

// NextRetryAt returns the wall-clock time of the next retry attempt.
func NextRetryAt(attemptCount int) time.Time {
	return time.Now().Add(NextRetryDelay(attemptCount))
}

// IsExhausted reports whether the attempt budget is spent.
func IsExhausted(attemptCount, maxAttempts int) bool {
	return attemptCount >= maxAttempts
}
