// Package retry runs an operation with bounded attempts and geometric backoff.
//
// The delay before attempt n+1 is min(InitialDelay * BackoffFactor^(n-1), MaxDelay).
// The final error is returned exactly as the operation produced it.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
	goretry "github.com/sethvargo/go-retry"
)

// Policy controls how many attempts are made and how long to wait between them.
type Policy struct {
	MaxAttempts   int           // total attempts including the first
	InitialDelay  time.Duration // wait before the second attempt
	MaxDelay      time.Duration // upper bound for any single wait
	BackoffFactor float64       // multiplier applied after each wait

	// ShouldRetry decides whether an error is worth another attempt.
	// nil retries every error.
	ShouldRetry func(error) bool
}

// DefaultPolicy returns 3 attempts waiting 1s then 2s, capped at 10s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
	}
}

// normalized fills zero or invalid fields from DefaultPolicy.
func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.InitialDelay > p.MaxDelay {
		p.InitialDelay = p.MaxDelay
	}
	if p.BackoffFactor < 1 || math.IsNaN(p.BackoffFactor) || math.IsInf(p.BackoffFactor, 0) {
		p.BackoffFactor = def.BackoffFactor
	}
	return p
}

// Backoff returns the wait sequence for p: one value per retry, then stop.
func (p Policy) Backoff() goretry.Backoff {
	p = p.normalized()

	next := float64(p.InitialDelay)
	geometric := goretry.BackoffFunc(func() (time.Duration, bool) {
		d := time.Duration(next)
		if next >= float64(p.MaxDelay) {
			d = p.MaxDelay
		} else {
			next *= p.BackoffFactor
		}
		return d, false
	})

	return goretry.WithMaxRetries(uint64(p.MaxAttempts-1), geometric)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Executor applies a Policy to operations.
type Executor struct {
	policy Policy
	sleep  Sleeper
	logger zerolog.Logger
}

// Option customizes an Executor.
type Option func(*Executor)

// WithSleeper replaces the wait implementation.
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) {
		if s != nil {
			e.sleep = s
		}
	}
}

// WithLogger sets the logger used to report failed attempts.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// New creates an Executor for policy.
func New(policy Policy, opts ...Option) *Executor {
	e := &Executor{
		policy: policy.normalized(),
		sleep:  SleepContext,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the normalized policy in use.
func (e *Executor) Policy() Policy { return e.policy }

// Do invokes op until it succeeds, a non-retryable error occurs or attempts run out.
func Do[T any](ctx context.Context, e *Executor, op func(context.Context) (T, error)) (T, error) {
	var zero T
	backoff := e.policy.Backoff()

	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if e.policy.ShouldRetry != nil && !e.policy.ShouldRetry(err) {
			e.logger.Debug().
				Int("attempt", attempt).
				Err(err).
				Msg("Operation failed with non-retryable error")
			return zero, err
		}

		delay, stop := backoff.Next()
		if stop {
			e.logger.Warn().
				Int("attempt", attempt).
				Int("max_attempts", e.policy.MaxAttempts).
				Err(err).
				Msg("Operation failed, attempts exhausted")
			return zero, err
		}

		e.logger.Warn().
			Int("attempt", attempt).
			Int("max_attempts", e.policy.MaxAttempts).
			Dur("next_delay", delay).
			Err(err).
			Msg("Operation failed, retrying")

		if serr := e.sleep(ctx, delay); serr != nil {
			return zero, serr
		}
	}
}
