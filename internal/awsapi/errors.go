package awsapi

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// ConflictError indicates the resource already exists or an ownership
// conflict; callers should adopt the live resource instead of retrying.
type ConflictError struct{ Cause error }

func (e *ConflictError) Error() string { return fmt.Sprintf("conflict: %v", e.Cause) }
func (e *ConflictError) Unwrap() error { return e.Cause }

// RetryableError indicates the request may succeed on retry with backoff.
type RetryableError struct{ Cause error }

func (e *RetryableError) Error() string { return fmt.Sprintf("retryable: %v", e.Cause) }
func (e *RetryableError) Unwrap() error { return e.Cause }

// OpError is a generic wrapper for unexpected failures.
type OpError struct{ Cause error }

func (e *OpError) Error() string { return fmt.Sprintf("op error: %v", e.Cause) }
func (e *OpError) Unwrap() error { return e.Cause }

// Classify maps smithy errors to the categories the bootstrap relies on.
// The conflict set covers the "already exists" family the create path
// tolerates; the retryable set covers throttling.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var api smithy.APIError
	if errors.As(err, &api) {
		switch api.ErrorCode() {
		case "BucketAlreadyOwnedByYou", "BucketAlreadyExists", "ResourceInUseException", "ConditionalCheckFailedException":
			return &ConflictError{Cause: err}
		case "ThrottlingException", "Throttling", "RequestLimitExceeded", "SlowDown", "ProvisionedThroughputExceededException":
			return &RetryableError{Cause: err}
		}
	}
	return &OpError{Cause: err}
}

// IsConflict reports whether err classifies as a tolerable creation conflict.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(Classify(err), &c)
}

// IsRetryable reports whether err classifies as worth retrying.
func IsRetryable(err error) bool {
	var r *RetryableError
	return errors.As(Classify(err), &r)
}
