package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy retries rate-limited calls with exponential backoff.
// Any other error is returned at once.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	Multiplier     float64
	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *zap.Logger
}

// DefaultRetryPolicy returns three attempts starting at one second, doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialBackoff: time.Second, Multiplier: 2}
}

// Do runs fn up to MaxRetries times. A rate limit on the last attempt yields
// ErrRetriesExhausted wrapping the provider error.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	backoff := p.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRateLimited(err) {
			return err
		}
		if attempt >= attempts {
			return fmt.Errorf("%s: %w: %w", op, ErrRetriesExhausted, err)
		}
		if p.Logger != nil {
			p.Logger.Warn("rate limited, backing off",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)
		}
		if err := sleep(ctx, backoff); err != nil {
			return err
		}
		if p.Multiplier > 0 {
			backoff = time.Duration(float64(backoff) * p.Multiplier)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
