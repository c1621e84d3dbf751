// Package retry runs an operation a bounded number of times with a fixed
// delay between attempts.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy is an attempt budget: at most Attempts calls, Delay apart.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// ExhaustedError is returned once every attempt of a Policy failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Notify is called after each failed attempt that will be retried. attempt
// counts from 1.
type Notify func(attempt int, err error, next time.Duration)

// Fixed calls op until it succeeds or the policy is spent. op receives the
// 1-based attempt number. Context cancellation stops the wait between
// attempts and is returned as is.
func Fixed[T any](ctx context.Context, p Policy, op func(attempt int) (T, error), notify Notify) (T, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := p.Delay
	if delay < 0 {
		delay = 0
	}

	attempt := 0
	var last error
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op(attempt)
		if err != nil {
			last = err
		}
		return v, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(delay)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			if notify != nil {
				notify(attempt, err, next)
			}
		}),
	)
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	return res, &ExhaustedError{Attempts: attempt, Last: last}
}
