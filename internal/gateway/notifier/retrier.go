package notifier

import (
	"context"
	"time"

	"stacker/internal/logger"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = 300 * time.Millisecond
)

// Retrier retries a Notifier a bounded number of times with a fixed delay.
// Send never fails: the last error is logged and dropped.
type Retrier struct {
	next     Notifier
	attempts int
	delay    time.Duration
}

func NewRetrier(next Notifier, attempts int, delay time.Duration) *Retrier {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Retrier{next: next, attempts: attempts, delay: delay}
}

// Send reports whether the message was delivered.
func (r *Retrier) Send(ctx context.Context, destination, text string, severity Severity) bool {
	if r == nil || r.next == nil {
		return false
	}
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		lastErr = r.next.SendMessage(ctx, destination, text, severity)
		if lastErr == nil {
			return true
		}
		if attempt == r.attempts {
			break
		}
		logger.Debugf("notify attempt %d/%d failed: %v", attempt, r.attempts, lastErr)
		if !sleepCtx(ctx, r.delay) {
			lastErr = ctx.Err()
			break
		}
	}
	logger.With("severity", severity.String()).
		Error("notification dropped", "attempts", r.attempts, "err", lastErr)
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
