package statestorage

import (
	"context"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aiqs4/builder-space/internal/awsapi"
	"github.com/aiqs4/builder-space/internal/utils/logging"
)

// SDKProber answers existence probes with live AWS API calls.
type SDKProber struct {
	s3Client     *s3.Client
	dynamoClient *dynamodb.Client
	logger       logging.Logger
}

// NewSDKProber builds a prober from a loaded AWS configuration.
func NewSDKProber(cfg awsv2.Config, logger logging.Logger) *SDKProber {
	return &SDKProber{
		s3Client:     s3.NewFromConfig(cfg),
		dynamoClient: dynamodb.NewFromConfig(cfg),
		logger:       logger,
	}
}

// BucketExists probes the state bucket via HeadBucket.
func (p *SDKProber) BucketExists(ctx context.Context, name string) (bool, error) {
	return awsapi.BucketExists(ctx, p.s3Client, name, p.logger)
}

// TableExists probes the lock table via DescribeTable.
func (p *SDKProber) TableExists(ctx context.Context, name string) (bool, error) {
	return awsapi.TableExists(ctx, p.dynamoClient, name, p.logger)
}
