// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures client-side request pacing.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained request rate. Zero disables limiting.
	RequestsPerSecond float64

	// BurstCapacity is the maximum burst of requests allowed (default: 1).
	BurstCapacity int
}

// RateLimiter paces model calls from all concurrent conversations that share
// one provider. A nil *RateLimiter never waits.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter returns nil when the config disables limiting.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	if cfg.BurstCapacity <= 0 {
		cfg.BurstCapacity = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstCapacity)}
}

// Wait blocks until a request may be sent or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	if err := rl.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// IsRetryableError reports whether a failed model call is worth repeating:
// throttling, server-side failures and dropped connections. Authentication
// and request validation errors are not.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range retryableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

var retryableMarkers = []string{
	"429", "too many requests", "throttl", "rate limit", "rate_limit",
	"500", "502", "503", "504", "529", "overloaded", "internal server error",
	"connection refused", "connection reset", "eof", "timeout",
}
