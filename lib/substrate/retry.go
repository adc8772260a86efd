// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package substrate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/cryptopatrick/xfiles/lib/clock"
)

// RetryConfig holds the retry and backoff parameters for the wrapper
// returned by [WithRetry].
type RetryConfig struct {
	// MaxAttempts is the total number of attempts per call, including
	// the first. Defaults to 3 if zero.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt. Defaults
	// to 100ms if zero.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between attempts. Defaults to 30s if
	// zero. A rate-limited response carrying an explicit reset window
	// uses that window instead of the exponential schedule, still
	// capped here.
	MaxBackoff time.Duration

	// Multiplier grows the backoff between attempts. Defaults to 2.
	Multiplier float64
}

// withDefaults returns cfg with zero fields replaced by defaults.
func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2
	}
	return cfg
}

// WithRetry wraps inner so that every call first acquires a slot from
// the shared budget and then retries on transient failure:
//
//   - rate-limit responses: exponential backoff, bounded by the
//     substrate's announced reset window when it announces one and by
//     MaxBackoff always; after MaxAttempts the rate-limit error
//     surfaces.
//   - transient failures (5xx, connection errors, timeouts): bounded
//     retries on the exponential schedule, then the error surfaces.
//   - not-found, auth, and too-large responses: surface immediately,
//     no retry.
//
// This wrapper is the only place in the module where retry policy
// lives. budget is shared across every adapter call from one engine
// instance, because the substrate's rate limit is global rather than
// per-file.
func WithRetry(inner Adapter, cfg RetryConfig, budget *Budget, clk clock.Clock, logger *slog.Logger) Adapter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &retryAdapter{
		inner:  inner,
		cfg:    cfg.withDefaults(),
		budget: budget,
		clock:  clk,
		logger: logger,
	}
}

type retryAdapter struct {
	inner  Adapter
	cfg    RetryConfig
	budget *Budget
	clock  clock.Clock
	logger *slog.Logger
}

func (r *retryAdapter) Post(ctx context.Context, content []byte, replyTo PostID) (PostID, error) {
	return retryCall(r, ctx, "post", func() (PostID, error) {
		return r.inner.Post(ctx, content, replyTo)
	})
}

func (r *retryAdapter) Get(ctx context.Context, id PostID) (*Post, error) {
	return retryCall(r, ctx, "get", func() (*Post, error) {
		return r.inner.Get(ctx, id)
	})
}

func (r *retryAdapter) GetReplies(ctx context.Context, id PostID) ([]PostID, error) {
	return retryCall(r, ctx, "get_replies", func() ([]PostID, error) {
		return r.inner.GetReplies(ctx, id)
	})
}

// retryCall runs one adapter operation under the retry policy. Each
// attempt draws from the shared budget; backoff happens between
// attempts, never before the first.
func retryCall[T any](r *retryAdapter, ctx context.Context, op string, call func() (T, error)) (T, error) {
	var zero T
	var lastError error
	backoff := r.cfg.InitialBackoff

	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoff
			if retryAfter := rateLimitResetWindow(lastError); retryAfter > 0 {
				delay = retryAfter
			}
			if delay > r.cfg.MaxBackoff {
				delay = r.cfg.MaxBackoff
			}
			select {
			case <-r.clock.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
			backoff = time.Duration(float64(backoff) * r.cfg.Multiplier)
			if backoff > r.cfg.MaxBackoff {
				backoff = r.cfg.MaxBackoff
			}
		}

		if err := r.budget.Acquire(ctx); err != nil {
			return zero, err
		}

		result, err := call()
		if err == nil {
			return result, nil
		}
		lastError = err

		if !isRetryable(err) {
			return zero, err
		}

		r.logger.Warn("transient substrate failure, retrying",
			"op", op,
			"attempt", attempt+1,
			"max_attempts", r.cfg.MaxAttempts,
			"error", err,
		)
	}
	return zero, lastError
}

// isRetryable reports whether an error is worth retrying: rate limits
// and transient server failures are, and so are raw transport errors
// (connection refused, timeout, EOF), which arrive unclassified.
// Structured not-found, auth, and too-large errors are permanent.
func isRetryable(err error) bool {
	var substrateErr *Error
	if errors.As(err, &substrateErr) {
		switch substrateErr.Code {
		case CodeRateLimited, CodeUnavailable:
			return true
		default:
			return false
		}
	}
	return true
}

// rateLimitResetWindow returns the reset window a rate-limit error
// carried, or zero for any other error.
func rateLimitResetWindow(err error) time.Duration {
	var substrateErr *Error
	if errors.As(err, &substrateErr) && substrateErr.Code == CodeRateLimited {
		return substrateErr.RetryAfter
	}
	return 0
}
