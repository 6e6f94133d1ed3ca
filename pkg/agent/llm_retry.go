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

package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/teradata-labs/pgobserve/pkg/llm"
	"github.com/teradata-labs/pgobserve/pkg/shuttle"
	"github.com/teradata-labs/pgobserve/pkg/types"
)

// RetryConfig controls retries of transient model failures.
type RetryConfig struct {
	Enabled      bool
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig retries twice, starting at one second.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Enabled:      true,
		MaxRetries:   2,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// chatWithRetry wraps LLM Chat calls with exponential backoff retry logic.
// Only errors llm.IsRetryableError accepts are retried.
func chatWithRetry(ctx context.Context, provider types.LLMProvider, cfg RetryConfig, logger *zap.Logger,
	messages []types.Message, tools []shuttle.Tool) (*types.LLMResponse, error) {
	if !cfg.Enabled || cfg.MaxRetries <= 0 {
		return provider.Chat(ctx, messages, tools)
	}

	b := backoff.NewExponentialBackOff()
	if cfg.InitialDelay > 0 {
		b.InitialInterval = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		b.MaxInterval = cfg.MaxDelay
	}
	if cfg.Multiplier > 1 {
		b.Multiplier = cfg.Multiplier
	}

	attempt := 0
	resp, err := backoff.Retry(ctx, func() (*types.LLMResponse, error) {
		attempt++
		resp, err := provider.Chat(ctx, messages, tools)
		if err != nil && (ctx.Err() != nil || !llm.IsRetryableError(err)) {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(cfg.MaxRetries+1)),
		backoff.WithNotify(func(err error, delay time.Duration) {
			logger.Warn("llm call failed, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", cfg.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("llm call failed after %d attempts: %w", attempt, err)
	}
	if attempt > 1 {
		logger.Info("llm retry succeeded", zap.Int("attempt", attempt))
	}
	return resp, nil
}
