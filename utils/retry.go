package utils

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// RetryPolicy is a bounded retry loop with a fixed pause between attempts.
// It knows nothing about what it retries: Succeeded decides whether an
// attempt's result ends the loop.
type RetryPolicy[T any] struct {
	MaxAttempts int
	Delay       time.Duration
	// Succeeded reports whether an attempt's outcome ends the loop.
	// Defaults to err == nil.
	Succeeded func(result T, err error) bool
	Logger    EventSink
	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// ErrAttemptsExhausted is returned when no attempt succeeded.
var ErrAttemptsExhausted = eris.New("retry: attempts exhausted")

// Do runs fn until Succeeded holds or MaxAttempts is reached. attempt is
// 1-based. It returns the last result and the number of attempts made.
func (p RetryPolicy[T]) Do(ctx context.Context, operation string, fn func(ctx context.Context, attempt int) (T, error)) (T, int, error) {
	succeeded := p.Succeeded
	if succeeded == nil {
		succeeded = func(_ T, err error) bool { return err == nil }
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		result  T
		lastErr error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if p.Logger != nil {
				p.Logger.Warn("[retry] %s: attempt %d/%d after %v", operation, attempt, maxAttempts, p.Delay)
			}
			if err := sleep(ctx, p.Delay); err != nil {
				return result, attempt - 1, eris.Wrapf(err, "%s: interrupted", operation)
			}
		}

		result, lastErr = fn(ctx, attempt)
		if succeeded(result, lastErr) {
			return result, attempt, nil
		}
		if p.Logger != nil && lastErr != nil {
			p.Logger.Warn("[retry] %s failed (attempt %d/%d): %v", operation, attempt, maxAttempts, lastErr)
		}
	}

	if lastErr != nil {
		return result, maxAttempts, eris.Wrapf(lastErr, "%s failed after %d attempts", operation, maxAttempts)
	}
	return result, maxAttempts, eris.Wrapf(ErrAttemptsExhausted, "%s failed after %d attempts", operation, maxAttempts)
}

// SleepContext sleeps for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
