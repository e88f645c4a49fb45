package utils

import (
	"context"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"
)

// NavigationMaxAttempts bounds how often a single page fetch is retried
// before the target is marked failed.
const NavigationMaxAttempts = 3

// NavigationRetry runs fn with the standard navigation retry policy:
// exponential backoff starting at 2s (2s, 4s, 8s) plus random jitter.
// Exhausting the attempts returns the last error; the caller decides whether
// the collector can continue with partial results.
func NavigationRetry(ctx context.Context, logger *zap.SugaredLogger, name string, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(NavigationMaxAttempts),
		retry.Delay(2*time.Second),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(1500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			logger.Warnf("[retry] %s failed (attempt %d/%d): %v",
				name, attempt+1, NavigationMaxAttempts, err)
		}),
	)
}
