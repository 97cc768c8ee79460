package retry

import (
	"errors"
	"time"

	"github.com/code-payments/token-escrow/pkg/retry/backoff"
)

// Strategy decides whether a failed action gets another attempt. attempts
// counts the failures so far, starting at 1. Strategies may block.
type Strategy func(attempts uint, err error) bool

// Limit allows at most maxAttempts attempts in total.
func Limit(maxAttempts uint) Strategy {
	return func(attempts uint, _ error) bool {
		return attempts < maxAttempts
	}
}

// NonRetriableErrors stops on any error matching one of errs.
func NonRetriableErrors(errs ...error) Strategy {
	return NonRetriableIf(func(err error) bool {
		for _, target := range errs {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	})
}

// RetriableIf only retries errors for which isRetriable returns true.
func RetriableIf(isRetriable func(err error) bool) Strategy {
	return func(_ uint, err error) bool {
		return isRetriable(err)
	}
}

// NonRetriableIf stops on errors for which isNonRetriable returns true.
func NonRetriableIf(isNonRetriable func(err error) bool) Strategy {
	return func(_ uint, err error) bool {
		return !isNonRetriable(err)
	}
}

// Backoff sleeps for the delay given by strategy, capped at maxDelay, and
// always allows the retry.
func Backoff(strategy backoff.Strategy, maxDelay time.Duration) Strategy {
	return func(attempts uint, _ error) bool {
		delay := strategy(attempts)
		if delay > maxDelay {
			delay = maxDelay
		}
		sleep(delay)
		return true
	}
}

var sleep = time.Sleep
