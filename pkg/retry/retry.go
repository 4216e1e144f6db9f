// Package retry runs operations against flaky backends with exponential
// backoff and jitter. Only errors classified as transient are retried.
package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds how an operation is retried.
type Policy struct {
	// Retries is the number of attempts after the first one.
	Retries uint

	// BaseDelay is the wait before the first retry; each following wait doubles.
	BaseDelay time.Duration

	// MaxDelay caps a single wait.
	MaxDelay time.Duration

	// Jitter is the randomization factor applied to every wait, in [0, 1].
	Jitter float64
}

// DefaultPolicy retries three times starting at 200ms.
func DefaultPolicy() Policy {
	return Policy{
		Retries:   3,
		BaseDelay: 200 * time.Millisecond,
		MaxDelay:  5 * time.Second,
		Jitter:    0.5,
	}
}

// Classifier reports whether an error is worth another attempt.
type Classifier func(error) bool

// Do runs op until it succeeds, returns a non-transient error, the retries are
// exhausted or ctx is done.
func Do(ctx context.Context, p Policy, transient Classifier, op func(ctx context.Context) error) error {
	_, err := Value(ctx, p, transient, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, transient Classifier, op func(ctx context.Context) (T, error)) (T, error) {
	if transient == nil {
		transient = IsTransient
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op(ctx)
		if err != nil && !transient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(p.Retries+1),
		backoff.WithMaxElapsedTime(0),
	)
}

func (p Policy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = p.Jitter
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	return b
}

// IsTransient treats network timeouts and dropped connections as transient.
// Context cancellation never is.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
