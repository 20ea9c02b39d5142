package poster

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// rateLimitSlack is added to X's reset time before retrying.
const rateLimitSlack = 10 * time.Second

// Retrying wraps a Poster with the posting retry policy: rate limits wait for
// the window to reopen, other failures back off linearly.
type Retrying struct {
	Poster        Poster
	MaxRetries    int
	RateLimitWait time.Duration

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewRetrying(p Poster, maxRetries int, rateLimitWait time.Duration) *Retrying {
	return &Retrying{
		Poster:        p,
		MaxRetries:    maxRetries,
		RateLimitWait: rateLimitWait,
		Now:           time.Now,
		Sleep:         Sleep,
	}
}

func (r *Retrying) Post(ctx context.Context, text string) (string, error) {
	attempts := max(r.MaxRetries, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		id, err := r.Poster.Post(ctx, text)
		if err == nil {
			slog.Info("posted", "tweet_id", id)
			return id, nil
		}
		lastErr = err

		var (
			rl   *RateLimitError
			wait time.Duration
		)
		if errors.As(err, &rl) {
			wait = r.RateLimitDelay(rl)
			slog.Warn("429 Too Many Requests", "wait", wait, "attempt", attempt, "max", attempts)
		} else {
			wait = time.Duration(attempt) * 10 * time.Second
			slog.Error("post failed", "attempt", attempt, "err", err)
		}

		if attempt == attempts {
			break
		}
		if err := r.Sleep(ctx, wait); err != nil {
			return "", err
		}
	}

	slog.Error("max retries exceeded for posting")
	return "", lastErr
}

// RateLimitDelay is how long to wait after rl: until X's reset time plus a
// little slack, or the configured default when no reset time was sent.
func (r *Retrying) RateLimitDelay(rl *RateLimitError) time.Duration {
	if rl.Reset.IsZero() {
		return r.RateLimitWait
	}
	return max(rl.Reset.Sub(r.Now())+rateLimitSlack, 0)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
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
