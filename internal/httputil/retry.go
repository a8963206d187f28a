// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers for model downloads.
package httputil

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/transcript-engine/internal/logging"
)

// RetryBaseDelay is the first backoff delay. Tests override it.
var RetryBaseDelay = 2 * time.Second

const defaultMaxRetries = 5

// Retryable reports whether a response status is worth retrying. Model
// hosts answer 429 when rate limiting and 502-504 while a CDN edge warms up.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// DoWithRetry executes req and retries retryable statuses with exponential
// backoff starting at RetryBaseDelay. When maxRetries is 0 the default (5)
// is used. After exhausting retries the last response is returned so the
// caller can inspect it. A context cancelled during a wait returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	delay := RetryBaseDelay
	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if !Retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		logging.L().Warn("retrying request",
			"url", req.URL.Redacted(), "status", resp.StatusCode,
			"attempt", attempt+1, "of", maxRetries, "wait", delay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
