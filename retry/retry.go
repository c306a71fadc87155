// Package retry wraps fallible operations with bounded exponential backoff.
//
// Only errors marked transient (wrapping ErrTemporary) are retried. Clients
// classify transport errors at the call site, typically mapping timeouts,
// connection failures, 429 and 5xx responses onto ErrTemporary.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrTemporary marks an error as transient. Wrap with
// fmt.Errorf("%w: ...", retry.ErrTemporary) to make an operation retryable.
var ErrTemporary = errors.New("temporary error")

const (
	DefaultMaxAttempts   = 3
	DefaultInitialDelay  = time.Second
	DefaultBackoffFactor = 2.0
)

type Options struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	BackoffFactor float64
	Logger        *slog.Logger
}

type Option func(*Options)

func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxAttempts = n
		}
	}
}

func WithInitialDelay(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.InitialDelay = d
		}
	}
}

func WithBackoffFactor(f float64) Option {
	return func(o *Options) {
		if f >= 1 {
			o.BackoffFactor = f
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// Do runs fn, retrying transient failures with exponential backoff until it
// succeeds or the attempt budget is spent. The last underlying error is
// returned unchanged after exhaustion. Non-transient errors propagate
// immediately without delay. The inter-attempt wait is context-aware so a
// cancelled caller never sits in a backoff sleep.
func Do[T any](ctx context.Context, op string, fn func(context.Context) (T, error), opts ...Option) (T, error) {
	o := Options{
		MaxAttempts:   DefaultMaxAttempts,
		InitialDelay:  DefaultInitialDelay,
		BackoffFactor: DefaultBackoffFactor,
		Logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	var lastErr error
	delay := o.InitialDelay

	for attempt := 1; attempt <= o.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !errors.Is(err, ErrTemporary) {
			return zero, err
		}
		if attempt == o.MaxAttempts {
			break
		}

		o.Logger.Warn("transient failure, retrying",
			"op", op,
			"attempt", attempt,
			"max_attempts", o.MaxAttempts,
			"delay", delay,
			"error", err.Error())

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * o.BackoffFactor)
	}

	o.Logger.Error("all attempts failed", "op", op, "attempts", o.MaxAttempts, "error", lastErr.Error())
	return zero, lastErr
}
