package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"time"
)

// retryClient wraps any Client with retry logic. Only failures that happen
// before the first delta reaches the caller are retried; once output has been
// delivered an error is final.
type retryClient struct {
	inner      Client
	maxRetries int
	baseDelay  time.Duration
}

// wrapWithRetry wraps a client with retry logic.
func wrapWithRetry(client Client, maxRetries int) Client {
	if maxRetries <= 1 {
		return client
	}
	return &retryClient{
		inner:      client,
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
	}
}

func (r *retryClient) Stream(ctx context.Context, req *Request, onDelta DeltaFunc) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		started := false
		resp, err := r.inner.Stream(ctx, req, func(delta string) error {
			started = true
			if onDelta != nil {
				return onDelta(delta)
			}
			return nil
		})
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if started || !isRetryableError(err) {
			return nil, err
		}

		delay := r.backoffDelay(attempt)
		slog.Warn("LLM request failed, retrying",
			"provider", r.inner.Provider(),
			"attempt", attempt+1,
			"max_retries", r.maxRetries,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("max retries (%d) exceeded: %w", r.maxRetries, lastErr)
}

func (r *retryClient) Provider() Provider {
	return r.inner.Provider()
}

func (r *retryClient) Close() error {
	return r.inner.Close()
}

func (r *retryClient) backoffDelay(attempt int) time.Duration {
	delay := float64(r.baseDelay) * math.Pow(2, float64(attempt))
	maxDelay := 30 * time.Second
	if time.Duration(delay) > maxDelay {
		return maxDelay
	}
	return time.Duration(delay)
}

// isRetryableError reports rate limits, server errors, and network timeouts.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
