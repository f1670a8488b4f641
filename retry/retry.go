package retry

import (
	"errors"
	"fmt"
	"time"

	"github.com/gaborage/go-bricks-harness/logger"
)

const (
	// DefaultAttempts is the attempt limit used by the HTTP client
	DefaultAttempts = 3

	// DefaultBackoff is the base delay used by the HTTP client
	DefaultBackoff = 1 * time.Second
)

// ErrInvalidPolicy is returned by New when the policy violates its invariants
var ErrInvalidPolicy = errors.New("retry: invalid policy")

// Policy describes how an operation is retried.
type Policy struct {
	// Attempts is the total number of tries, including the first one. Must be >= 1.
	Attempts int
	// Backoff is the base delay. The wait after attempt k is Backoff * k.
	Backoff time.Duration
	// Retryable decides which failures are eligible for another attempt.
	// A nil predicate treats every error as retryable.
	Retryable func(error) bool
}

// Observer is notified each time a retry is scheduled, before the sleep.
type Observer func(name string, attempt int, delay time.Duration, err error)

// Retrier executes operations according to a Policy.
type Retrier struct {
	policy    Policy
	log       logger.Logger
	sleep     func(time.Duration)
	observers []Observer
}

// Option configures a Retrier
type Option func(*Retrier)

// WithLogger sets the logger used for per-attempt entries
func WithLogger(log logger.Logger) Option {
	return func(r *Retrier) {
		if log != nil {
			r.log = log
		}
	}
}

// WithSleep replaces time.Sleep. Tests use it to record delays.
func WithSleep(sleep func(time.Duration)) Option {
	return func(r *Retrier) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithObserver registers an observer for scheduled retries
func WithObserver(o Observer) Option {
	return func(r *Retrier) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// New validates the policy and creates a Retrier
func New(policy Policy, opts ...Option) (*Retrier, error) {
	if policy.Attempts < 1 {
		return nil, fmt.Errorf("%w: attempts must be >= 1, got %d", ErrInvalidPolicy, policy.Attempts)
	}
	if policy.Backoff < 0 {
		return nil, fmt.Errorf("%w: backoff must be >= 0, got %v", ErrInvalidPolicy, policy.Backoff)
	}

	r := &Retrier{
		policy: policy,
		log:    logger.Nop(),
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// MustNew is like New but panics on an invalid policy
func MustNew(policy Policy, opts ...Option) *Retrier {
	r, err := New(policy, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Policy returns a copy of the retrier's policy
func (r *Retrier) Policy() Policy {
	return r.policy
}

// Delay returns the wait after the given 1-based attempt
func (r *Retrier) Delay(attempt int) time.Duration {
	return r.policy.Backoff * time.Duration(attempt)
}

// Execute runs op under the policy. name only labels log entries.
func (r *Retrier) Execute(name string, op func() error) error {
	_, err := Do(r, name, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// Do runs op under r's policy and returns its result.
func Do[T any](r *Retrier, name string, op func() (T, error)) (T, error) {
	attempts := r.policy.Attempts
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		r.log.Debug().
			Str("operation", name).
			Int("attempt", attempt).
			Int("attempts", attempts).
			Msg("retry attempt")

		result, err := op()
		if err == nil {
			r.log.Debug().
				Str("operation", name).
				Int("attempt", attempt).
				Msg("retry attempt succeeded")
			return result, nil
		}

		if !r.retryable(err) {
			var zero T
			return zero, err
		}

		lastErr = err
		r.log.Warn().
			Str("operation", name).
			Int("attempt", attempt).
			Err(err).
			Msg("retry attempt failed")

		if attempt < attempts {
			delay := r.Delay(attempt)
			for _, o := range r.observers {
				o(name, attempt, delay, err)
			}
			r.log.Info().
				Str("operation", name).
				Dur("sleep", delay).
				Msg("sleeping before next attempt")
			if delay > 0 {
				r.sleep(delay)
			}
		}
	}

	r.log.Error().
		Str("operation", name).
		Int("attempts", attempts).
		Err(lastErr).
		Msg("all retry attempts failed")

	var zero T
	return zero, lastErr
}

func (r *Retrier) retryable(err error) bool {
	if r.policy.Retryable == nil {
		return true
	}
	return r.policy.Retryable(err)
}
