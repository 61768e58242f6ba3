package awsapi

import (
	"context"
	sterrors "errors"
	"testing"
	"time"

	"github.com/aiqs4/builder-space/internal/awsapi/internal/testutil"
)

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	delays := &[]time.Duration{}
	orig := timeAfter
	timeAfter = func(d time.Duration) <-chan time.Time {
		*delays = append(*delays, d)
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	t.Cleanup(func() { timeAfter = orig })
	return delays
}

func TestRetryWithBackoff_SucceedsFirstTry(t *testing.T) {
	stubSleep(t)
	calls := 0
	got, err := RetryWithBackoff(context.Background(), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	}, nil)
	if err != nil || got != "ok" || calls != 1 {
		t.Fatalf("got %q calls=%d err=%v", got, calls, err)
	}
}

func TestRetryWithBackoff_RetriesThrottleThenSucceeds(t *testing.T) {
	delays := stubSleep(t)
	l := &testutil.BufferLogger{}
	calls := 0
	got, err := RetryWithBackoff(context.Background(), func(context.Context) (bool, error) {
		calls++
		if calls < 3 {
			return false, apiErr{"ThrottlingException"}
		}
		return true, nil
	}, l)
	if err != nil || !got {
		t.Fatalf("expected success after retries, got %v err %v", got, err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(*delays) != 2 || (*delays)[0] != time.Second || (*delays)[1] != 2*time.Second {
		t.Fatalf("expected doubling delays [1s 2s], got %v", *delays)
	}
	if len(l.Calls) != 2 || l.Calls[0] != "warn" {
		t.Fatalf("expected warn per retry, got %v", l.Calls)
	}
}

func TestRetryWithBackoff_StopsOnNonRetryable(t *testing.T) {
	stubSleep(t)
	calls := 0
	_, err := RetryWithBackoff(context.Background(), func(context.Context) (string, error) {
		calls++
		return "", apiErr{"BucketAlreadyExists"}
	}, nil)
	if err == nil || calls != 1 {
		t.Fatalf("conflict should not retry: calls=%d err=%v", calls, err)
	}
	var c *ConflictError
	if !sterrors.As(err, &c) {
		t.Fatalf("expected ConflictError, got %T", err)
	}
}

func TestRetryWithBackoff_ExhaustsAttempts(t *testing.T) {
	stubSleep(t)
	calls := 0
	_, err := RetryWithBackoff(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, apiErr{"SlowDown"}
	}, nil)
	if err == nil || calls != retryMaxAttempts {
		t.Fatalf("expected exhaustion after %d attempts, got calls=%d err=%v", retryMaxAttempts, calls, err)
	}
	var r *RetryableError
	if !sterrors.As(err, &r) {
		t.Fatalf("expected RetryableError, got %T", err)
	}
}
