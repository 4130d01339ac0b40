package queue

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrClosed  = errors.New("queue closed")
	ErrPayload = errors.New("queue: invalid payload")
)

// NoRetry marks a handler error as permanent. The job goes straight to the
// failed set regardless of the attempts left.
//
//	return queue.NoRetry(fmt.Errorf("user blocked the bot: %w", err))
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return noRetryError{err: err}
}

// IsNoRetry reports whether err is wrapped with NoRetry.
func IsNoRetry(err error) bool {
	var e noRetryError
	return errors.As(err, &e)
}

type noRetryError struct{ err error }

func (e noRetryError) Error() string { return fmt.Sprintf("no-retry: %v", e.err) }
func (e noRetryError) Unwrap() error { return e.err }

// RetryAfter attaches a minimum delay before the next attempt, typically the
// retry_after a rate-limited API returned.
func RetryAfter(err error, after time.Duration) error {
	if err == nil {
		return nil
	}
	if after < 0 {
		after = 0
	}
	return retryAfterError{err: err, after: after}
}

// RetryAfterError is implemented by errors that carry an explicit retry delay.
type RetryAfterError interface {
	error
	RetryAfter() time.Duration
}

type retryAfterError struct {
	err   error
	after time.Duration
}

func (e retryAfterError) Error() string             { return fmt.Sprintf("retry-after(%s): %v", e.after, e.err) }
func (e retryAfterError) Unwrap() error             { return e.err }
func (e retryAfterError) RetryAfter() time.Duration { return e.after }

// RetryDelay is the wait before attempt n+1 after attempt n failed with err:
// exponential from base, never shorter than a retry-after hint.
func RetryDelay(base time.Duration, attempt int, err error) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > time.Hour {
			d = time.Hour
			break
		}
	}
	var ra RetryAfterError
	if err != nil && errors.As(err, &ra) {
		if h := ra.RetryAfter(); h > d {
			d = h
		}
	}
	return d
}
