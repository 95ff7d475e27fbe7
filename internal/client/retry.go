// Copyright (c) 2024 OData MCP Contributors
// SPDX-License-Identifier: MIT

package client

import (
	"math"
	"math/rand"
	"net/http"
	"slices"
	"strconv"
	"time"
)

// RetryConfig defines retry behavior for metadata requests
type RetryConfig struct {
	MaxRetries        int           // Maximum number of retry attempts (0 = no retries)
	InitialBackoff    time.Duration // Initial delay before first retry
	MaxBackoff        time.Duration // Maximum delay between retries
	BackoffMultiplier float64       // Multiplier for exponential backoff
	JitterFraction    float64       // Random jitter fraction (0.0-1.0)
	RetryableStatuses []int         // HTTP status codes that trigger retry
}

// DefaultRetryConfig returns sensible defaults for retry behavior
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
		RetryableStatuses: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// CalculateBackoff returns the delay for a given attempt (0-indexed)
// attempt 0 returns InitialBackoff, subsequent attempts grow exponentially
func (c *RetryConfig) CalculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return c.InitialBackoff
	}

	backoff := float64(c.InitialBackoff) * math.Pow(c.BackoffMultiplier, float64(attempt))
	if backoff > float64(c.MaxBackoff) {
		backoff = float64(c.MaxBackoff)
	}

	// jitter is +/-(backoff * JitterFraction)
	if c.JitterFraction > 0 {
		jitterRange := backoff * c.JitterFraction
		backoff += (rand.Float64()*2 - 1) * jitterRange
		if backoff < 0 {
			backoff = 0
		}
	}

	return time.Duration(backoff)
}

// ShouldRetry determines if a request should be retried based on status code and attempt count
func (c *RetryConfig) ShouldRetry(statusCode int, attempt int) bool {
	if attempt >= c.MaxRetries {
		return false
	}
	return c.IsRetryableStatus(statusCode)
}

// IsRetryableStatus checks if a status code is in the retryable list
func (c *RetryConfig) IsRetryableStatus(statusCode int) bool {
	return slices.Contains(c.RetryableStatuses, statusCode)
}

// RetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func RetryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait, true
		}
		return 0, true
	}
	return 0, false
}
