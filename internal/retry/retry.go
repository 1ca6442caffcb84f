// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

// Package retry provides the single retry combinator used across the module.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	retrygo "github.com/avast/retry-go"
)

// defaultAttempts defines attempts amount used when none provided.
const defaultAttempts uint = 3

// Options describes retry policy.
type Options struct {
	// MaxAttempts is the total amount of calls, including the first one.
	MaxAttempts uint
	// BaseDelay is the delay before the first retry, doubled on every next one.
	BaseDelay time.Duration
	// MaxDelay caps a single delay, zero means no cap.
	MaxDelay time.Duration
	// Jitter adds random delay in [0, Jitter) to every wait.
	Jitter time.Duration
	// Retryable decides if error is worth another attempt, nil retries everything.
	Retryable func(error) bool
	// OnRetry is invoked before each retry with the number of the next attempt (1-based retry counter).
	OnRetry func(retry uint, err error)
}

// Do calls fn until it succeeds, the attempts are exhausted, the error is not retryable
// or the context is done. Returns the last error of fn or the context error.
func Do(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = defaultAttempts
	}

	delayType := retrygo.BackOffDelay
	if opts.Jitter > 0 {
		delayType = retrygo.CombineDelay(retrygo.BackOffDelay, retrygo.RandomDelay)
	}

	retryable := func(err error) bool {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return false
		}
		if opts.Retryable == nil {
			return true
		}

		return opts.Retryable(err)
	}

	retryOpts := []retrygo.Option{
		retrygo.Context(ctx),
		retrygo.Attempts(opts.MaxAttempts),
		retrygo.Delay(opts.BaseDelay),
		retrygo.DelayType(delayType),
		retrygo.LastErrorOnly(true),
		retrygo.RetryIf(retryable),
		retrygo.OnRetry(func(n uint, err error) {
			// retry-go notifies after the last attempt too.
			if opts.OnRetry != nil && n+1 < opts.MaxAttempts {
				opts.OnRetry(n+1, err)
			}
		}),
	}
	if opts.MaxDelay > 0 {
		retryOpts = append(retryOpts, retrygo.MaxDelay(opts.MaxDelay))
	}
	if opts.Jitter > 0 {
		retryOpts = append(retryOpts, retrygo.MaxJitter(opts.Jitter))
	}

	return retrygo.Do(func() error { return fn(ctx) }, retryOpts...)
}

// Backoff returns min(base * 2^round, max) delay for provided zero-based round.
// Zero max means no cap.
func Backoff(base, max time.Duration, round uint) time.Duration {
	delay := base
	for i := uint(0); i < round; i++ {
		if delay > math.MaxInt64/2 {
			delay = math.MaxInt64
			break
		}
		delay *= 2
		if max > 0 && delay >= max {
			break
		}
	}

	if max > 0 && delay > max {
		return max
	}

	return delay
}
