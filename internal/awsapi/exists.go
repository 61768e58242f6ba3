package awsapi

import (
	"context"
	"errors"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/aiqs4/builder-space/internal/utils/logging"
)

// BucketExists probes an S3 bucket by name. Not-found is a result, not an
// error; every other failure is classified and returned.
func BucketExists(
	ctx context.Context,
	client interface {
		HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	},
	name string,
	logger logging.Logger,
) (bool, error) {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: awsv2.String(name)})
	if err != nil {
		if isNotFound(err, "NotFound", "NoSuchBucket") {
			logger.Debug("bucket not found", logging.Fields{"bucket": name})
			return false, nil
		}
		return false, Classify(err)
	}
	logger.Debug("bucket exists", logging.Fields{"bucket": name})
	return true, nil
}

// TableExists probes a DynamoDB table by name.
func TableExists(
	ctx context.Context,
	client interface {
		DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	},
	name string,
	logger logging.Logger,
) (bool, error) {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: awsv2.String(name)})
	if err != nil {
		if isNotFound(err, "ResourceNotFoundException") {
			logger.Debug("table not found", logging.Fields{"table": name})
			return false, nil
		}
		return false, Classify(err)
	}
	logger.Debug("table exists", logging.Fields{"table": name})
	return true, nil
}

func isNotFound(err error, codes ...string) bool {
	var api smithy.APIError
	if !errors.As(err, &api) {
		return false
	}
	for _, code := range codes {
		if api.ErrorCode() == code {
			return true
		}
	}
	return false
}
