package retry

import (
	"context"
	"errors"
	"slices"
	"time"

	"smartnotes/internal/ai/aierr"
)

// Config is the per-call-site retry configuration.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including the first one).
	// The per-type ceilings of ShouldRetry also apply: RATE_LIMIT stops after
	// 3 invocations and API after 4 whatever MaxAttempts says, so only
	// NETWORK errors use a budget above 4 (up to 6 invocations).
	MaxAttempts int
	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration
	// MaxDelay caps the backoff for this call site
	MaxDelay time.Duration
	// RetryableTypes is the call-site allowlist; other types stop the loop
	RetryableTypes []aierr.Type
	// Now returns current time (for testing, defaults to time.Now)
	Now func() time.Time
	// After creates a timer channel (for testing, defaults to time.After)
	After func(d time.Duration) <-chan time.Time
}

// DefaultMaxAttempts is the attempt budget of DefaultConfig. RetryState
// progress is expressed against it.
const DefaultMaxAttempts = 3

// DefaultConfig returns the configuration used by AI generation.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    DefaultMaxAttempts,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		RetryableTypes: []aierr.Type{aierr.TypeNetwork, aierr.TypeAPI, aierr.TypeRateLimit},
	}
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if c.MaxAttempts <= 0 {
		return errors.New("retry: MaxAttempts must be positive")
	}
	if c.BaseDelay < 0 || c.MaxDelay < 0 {
		return errors.New("retry: delays cannot be negative")
	}
	if c.MaxDelay > 0 && c.BaseDelay > c.MaxDelay {
		return errors.New("retry: BaseDelay cannot be greater than MaxDelay")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = MaxBackoff
	}
	if c.BaseDelay > c.MaxDelay {
		c.BaseDelay = c.MaxDelay
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.After == nil {
		c.After = time.After
	}
	return c
}

func (c Config) allows(t aierr.Type) bool {
	return slices.Contains(c.RetryableTypes, t)
}

// Result is the single outcome of Execute.
type Result[T any] struct {
	Success bool
	Data    T
	// Err is the last classified failure; nil on success.
	Err *aierr.Error
	// Attempts is the number of times the operation was invoked.
	Attempts  int
	TotalTime time.Duration
}

// Operation is the unit of work driven by Execute.
type Operation[T any] func(ctx context.Context) (T, error)

// OnRetryFunc is called before each retry with the 1-based retry number and
// the error that triggered it.
type OnRetryFunc func(attempt int, err *aierr.Error)

// Execute invokes op until it succeeds or the retry budget runs out. Attempts
// are strictly sequential. A failure stops the loop when its type is not in
// cfg.RetryableTypes, when it is not retryable, or when ShouldRetry declines.
// Cancellation of ctx ends the loop with the classified context error.
func Execute[T any](ctx context.Context, cfg Config, op Operation[T], onRetry OnRetryFunc) Result[T] {
	cfg = cfg.withDefaults()
	start := cfg.Now()

	var res Result[T]
loop:
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Err = aierr.Classify(err)
			break
		}

		res.Attempts++
		v, err := op(ctx)
		if err == nil {
			res.Success = true
			res.Data = v
			res.Err = nil
			break
		}
		res.Err = aierr.Classify(err)

		if !cfg.allows(res.Err.Type) || !res.Err.CanRetry {
			break
		}
		if !ShouldRetry(res.Err, attempt, cfg.MaxAttempts) {
			break
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		if onRetry != nil {
			onRetry(attempt+1, res.Err)
		}

		wait := min(Delay(attempt, cfg.BaseDelay), cfg.MaxDelay)
		select {
		case <-ctx.Done():
			res.Err = aierr.Classify(ctx.Err())
			break loop
		case <-cfg.After(wait):
		}
	}

	res.TotalTime = cfg.Now().Sub(start)
	return res
}
