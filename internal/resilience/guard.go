package resilience

import (
	"context"
	"time"
)

// Guard combines a breaker with bounded retries for a single dependency. A nil
// Breaker disables circuit breaking.
type Guard struct {
	Breaker     *Breaker
	MaxAttempts int
	BaseBackoff time.Duration
	Jitter      float64
	// Permanent reports errors that must neither be retried nor counted as
	// dependency failures, such as "not found" answers.
	Permanent func(error) bool
	Target    string
}

// Call runs fn under g. Only transient errors are retried; the last error is
// returned once the attempts are exhausted or the breaker refuses the call.
func Call[T any](ctx context.Context, g Guard, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	breaker := g.Breaker
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if breaker != nil && !breaker.Allow(ctx) {
			if lastErr == nil {
				lastErr = ErrOpenCircuit
			}
			return zero, lastErr
		}
		v, err := fn(ctx)
		permanent := err != nil && g.Permanent != nil && g.Permanent(err)
		if breaker != nil {
			breaker.Report(ctx, err == nil || permanent)
		}
		if err == nil {
			return v, nil
		}
		if permanent {
			return zero, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		RetryAttempts.WithLabelValues(targetOrDefault(g.Target)).Inc()
		timer := time.NewTimer(Backoff(g.BaseBackoff, attempt, g.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func targetOrDefault(target string) string {
	if target == "" {
		return "default"
	}
	return target
}
