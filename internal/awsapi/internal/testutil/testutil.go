package testutil

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aiqs4/builder-space/internal/utils/logging"
)

// FakeS3Client is a minimal fake for HeadBucket used in tests.
type FakeS3Client struct {
	In  *s3.HeadBucketInput
	Err error
}

// HeadBucket records the input and returns the configured error.
func (f *FakeS3Client) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.In = in
	return &s3.HeadBucketOutput{}, f.Err
}

// FakeDynamoClient is a minimal fake for DescribeTable used in tests.
type FakeDynamoClient struct {
	In  *dynamodb.DescribeTableInput
	Err error
}

// DescribeTable records the input and returns the configured error.
func (f *FakeDynamoClient) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.In = in
	return &dynamodb.DescribeTableOutput{}, f.Err
}

// FakeEC2Client serves DescribeVpcs with a canned response.
type FakeEC2Client struct {
	In  *ec2.DescribeVpcsInput
	Out *ec2.DescribeVpcsOutput
	Err error
}

// DescribeVpcs records the input and returns the configured response.
func (f *FakeEC2Client) DescribeVpcs(_ context.Context, in *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	f.In = in
	if f.Out == nil {
		return &ec2.DescribeVpcsOutput{}, f.Err
	}
	return f.Out, f.Err
}

// FakeEKSClient serves DescribeCluster with a canned response.
type FakeEKSClient struct {
	In  *eks.DescribeClusterInput
	Out *eks.DescribeClusterOutput
	Err error
}

// DescribeCluster records the input and returns the configured response.
func (f *FakeEKSClient) DescribeCluster(_ context.Context, in *eks.DescribeClusterInput, _ ...func(*eks.Options)) (*eks.DescribeClusterOutput, error) {
	f.In = in
	if f.Out == nil {
		return &eks.DescribeClusterOutput{}, f.Err
	}
	return f.Out, f.Err
}

// BufferLogger is a buffer-backed logger that records calls for assertions.
type BufferLogger struct {
	Calls   []string
	Entries []string
}

// Debug records a debug-level log entry.
func (l *BufferLogger) Debug(msg string, ctx logging.Fields) { l.record("debug", msg, ctx) }

// Info records an info-level log entry.
func (l *BufferLogger) Info(msg string, ctx logging.Fields) { l.record("info", msg, ctx) }

// Warn records a warn-level log entry.
func (l *BufferLogger) Warn(msg string, ctx logging.Fields) { l.record("warn", msg, ctx) }

func (l *BufferLogger) record(level, msg string, ctx logging.Fields) {
	l.Calls = append(l.Calls, level)
	// simple human-readable capture for assertions; not a JSON serializer
	l.Entries = append(l.Entries, fmt.Sprintf("%s: %s ctx=%v", level, msg, ctx))
}

var _ logging.Logger = (*BufferLogger)(nil)

// Contains reports whether s contains sub; exported for reuse across tests.
func Contains(s, sub string) bool { return strings.Contains(s, sub) }
