package awsapi

import (
	sterrors "errors"
	"testing"

	"github.com/aws/smithy-go"

	"github.com/aiqs4/builder-space/internal/awsapi/internal/testutil"
)

// smithy APIError minimal fake that satisfies smithy.APIError
type apiErr struct{ code string }

func (e apiErr) Error() string                 { return e.code }
func (e apiErr) ErrorCode() string             { return e.code }
func (e apiErr) ErrorMessage() string          { return e.code }
func (e apiErr) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

var _ smithy.APIError = (*apiErr)(nil)

func TestClassifyErrors(t *testing.T) {
	tests := []struct {
		in   error
		want string
	}{
		{apiErr{"BucketAlreadyOwnedByYou"}, "conflict"},
		{apiErr{"BucketAlreadyExists"}, "conflict"},
		{apiErr{"ResourceInUseException"}, "conflict"},
		{apiErr{"ThrottlingException"}, "retryable"},
		{apiErr{"SlowDown"}, "retryable"},
		{apiErr{"RequestLimitExceeded"}, "retryable"},
		{apiErr{"AccessDenied"}, "op error"},
		{sterrors.New("boom"), "op error"},
	}
	for _, tt := range tests {
		got := Classify(tt.in)
		if got == nil {
			t.Fatalf("classify(%v) => nil", tt.in)
		}
		if !testutil.Contains(got.Error(), tt.want) {
			t.Fatalf("classify(%v) => %v; want contains %q", tt.in, got, tt.want)
		}
	}
	if Classify(nil) != nil {
		t.Fatalf("classify(nil) should be nil")
	}
}

func TestClassifyUnwraps(t *testing.T) {
	cause := apiErr{"ThrottlingException"}
	got := Classify(cause)
	var api smithy.APIError
	if !sterrors.As(got, &api) || api.ErrorCode() != "ThrottlingException" {
		t.Fatalf("classified error should unwrap to the cause, got %v", got)
	}
}

func TestIsConflictAndIsRetryable(t *testing.T) {
	if !IsConflict(apiErr{"BucketAlreadyExists"}) {
		t.Fatalf("BucketAlreadyExists should be a conflict")
	}
	if IsConflict(apiErr{"ThrottlingException"}) {
		t.Fatalf("throttling is not a conflict")
	}
	if !IsRetryable(apiErr{"Throttling"}) {
		t.Fatalf("Throttling should be retryable")
	}
	if IsRetryable(sterrors.New("boom")) {
		t.Fatalf("plain errors are not retryable")
	}
}
