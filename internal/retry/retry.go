// Package retry runs operations against flaky collaborators under a bounded
// attempt budget with linear backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Class tells the retry loop what to do with an error.
type Class int

const (
	// Terminal errors end the loop immediately.
	Terminal Class = iota
	// Retryable errors are retried after the backoff delay.
	Retryable
	// Reauth errors run the policy's Reauth hook and then retry.
	Reauth
)

func (c Class) String() string {
	switch c {
	case Retryable:
		return "retryable"
	case Reauth:
		return "reauth"
	default:
		return "terminal"
	}
}

// Classifier maps an error to a Class.
type Classifier func(error) Class

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts int
	// Backoff is multiplied by the attempt number: 1x, 2x, 3x...
	Backoff    time.Duration
	MaxBackoff time.Duration
	// Reauth refreshes credentials after an authentication-class error.
	// A failing Reauth ends the loop.
	Reauth func(ctx context.Context) error
	// OnRetry is called before each delay, for logging.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns three attempts with 500ms linear backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     500 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
	}
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Delay returns the wait before the attempt following attempt n (1-based).
func (p Policy) Delay(n int) time.Duration {
	d := p.Backoff * time.Duration(n)
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// Do runs op until it succeeds, returns a terminal error, the context ends,
// or MaxAttempts is spent.
func Do[T any](ctx context.Context, p Policy, classify Classifier, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for n := 1; n <= attempts; n++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		last = err

		// The caller's context ending is never worth another attempt.
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		class := classify(err)
		if class == Terminal {
			return zero, err
		}
		if n == attempts {
			break
		}
		if class == Reauth && p.Reauth != nil {
			if rerr := p.Reauth(ctx); rerr != nil {
				return zero, fmt.Errorf("refresh credentials: %w", errors.Join(rerr, err))
			}
		}

		delay := p.Delay(n)
		if p.OnRetry != nil {
			p.OnRetry(n, err, delay)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return zero, &ExhaustedError{Attempts: attempts, Last: last}
}
