// Package webhook implements the retry timing and payload signing for
// asynchronous event delivery. The HTTP transport itself is injected.
package webhook

import "time"

const (
	// BaseDelaySeconds is the delay before the second attempt.
	BaseDelaySeconds = 30
	// MaxDelaySeconds caps the exponential backoff.
	MaxDelaySeconds = 3600
	// DefaultMaxAttempts is how many deliveries are tried before giving up.
	DefaultMaxAttempts = 6
)

// DelaySeconds returns the backoff before the given attempt:
// min(MaxDelaySeconds, BaseDelaySeconds * 2^(attempt-1)).
func DelaySeconds(attemptNumber int) int {
	if attemptNumber < 1 {
		attemptNumber = 1
	}
	delay := BaseDelaySeconds
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= MaxDelaySeconds {
			return MaxDelaySeconds
		}
	}
	return delay
}

// NextAttemptAt schedules the next delivery relative to now.
func NextAttemptAt(attemptNumber int, now time.Time) time.Time {
	return now.Add(time.Duration(DelaySeconds(attemptNumber)) * time.Second)
}

// IsExhausted reports whether delivery should stop retrying.
func IsExhausted(attemptCount, maxAttempts int) bool {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return attemptCount >= maxAttempts
}
