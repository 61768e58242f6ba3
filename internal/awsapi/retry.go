package awsapi

import (
	"context"
	"time"

	"github.com/aiqs4/builder-space/internal/utils/logging"
)

const (
	retryMaxAttempts  = 3
	retryInitialDelay = time.Second
)

// stubbed in tests to avoid real sleeps
var timeAfter = time.After

// RetryWithBackoff runs op, retrying with doubling delay while the failure
// classifies as retryable. Conflicts and unexpected errors return
// immediately; the final retryable error is returned after the attempts are
// exhausted.
func RetryWithBackoff[T any](ctx context.Context, op func(context.Context) (T, error), logger logging.Logger) (T, error) {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	var zero T
	delay := retryInitialDelay
	var lastErr error
	for attempt := 1; attempt <= retryMaxAttempts; attempt++ {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return zero, Classify(err)
		}
		if attempt == retryMaxAttempts {
			break
		}
		logger.Warn("attempt failed, backing off", logging.Fields{
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		})
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timeAfter(delay):
		}
		delay *= 2
	}
	return zero, Classify(lastErr)
}
