// Package statestorage provisions the Pulumi state backend: an S3 bucket
// for state and a DynamoDB table for locking. Both are created with
// create-or-import semantics so re-running the bootstrap against a live
// backend adopts the existing resources instead of failing.
package statestorage

import (
	"context"
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/dynamodb"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/s3"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/aiqs4/builder-space/internal/awsapi"
	"github.com/aiqs4/builder-space/internal/utils/logging"
)

// Prober answers whether the backend resources already exist. The SDK-backed
// implementation lives in prober.go; tests inject fakes.
type Prober interface {
	BucketExists(ctx context.Context, name string) (bool, error)
	TableExists(ctx context.Context, name string) (bool, error)
}

// Args configures the bootstrap resources.
type Args struct {
	ClusterName string
	Region      string
	Tags        map[string]string

	// Prober decides the create-vs-import branch. Nil always creates fresh,
	// which is what unit tests and first-time bootstraps want.
	Prober Prober
	Logger logging.Logger
}

// Resources holds the provisioned backend and its derived names.
type Resources struct {
	BucketName string
	TableName  string

	Bucket *s3.Bucket
	Table  *dynamodb.Table
}

// NewResources provisions (or adopts) the state bucket and lock table.
func NewResources(ctx *pulumi.Context, args Args) (*Resources, error) {
	logger := args.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}

	res := &Resources{
		BucketName: fmt.Sprintf("%s-pulumi-state-%s", args.ClusterName, args.Region),
		TableName:  fmt.Sprintf("%s-pulumi-state-lock", args.ClusterName),
	}

	bucket, err := createOrImportBucket(ctx, args, res.BucketName, logger)
	if err != nil {
		return nil, fmt.Errorf("state bucket: %w", err)
	}
	res.Bucket = bucket

	if err := configureBucket(ctx, args.ClusterName, bucket); err != nil {
		return nil, fmt.Errorf("state bucket configuration: %w", err)
	}

	table, err := createOrImportTable(ctx, args, res.TableName, logger)
	if err != nil {
		return nil, fmt.Errorf("state lock table: %w", err)
	}
	res.Table = table

	return res, nil
}

func createOrImportBucket(ctx *pulumi.Context, args Args, bucketName string, logger logging.Logger) (*s3.Bucket, error) {
	exists, err := probe(ctx.Context(), args.Prober, bucketName, logger, func(c context.Context, p Prober) (bool, error) {
		return p.BucketExists(c, bucketName)
	})
	if err != nil {
		return nil, err
	}

	var opts []pulumi.ResourceOption
	if exists {
		logger.Info("bucket exists, importing into state", logging.Fields{"bucket": bucketName})
		opts = append(opts, pulumi.Import(pulumi.ID(bucketName)))
	} else {
		logger.Info("creating state bucket", logging.Fields{"bucket": bucketName})
	}

	bucket, err := s3.NewBucket(ctx, fmt.Sprintf("%s-pulumi-state-bucket", args.ClusterName), &s3.BucketArgs{
		Bucket: pulumi.String(bucketName),
		Tags: tagMap(args.Tags, map[string]string{
			"Name":    fmt.Sprintf("%s-pulumi-state", args.ClusterName),
			"Purpose": "Pulumi state storage",
			"Module":  "state-storage",
		}),
	}, opts...)
	if err != nil {
		return nil, err
	}
	return bucket, nil
}

func configureBucket(ctx *pulumi.Context, clusterName string, bucket *s3.Bucket) error {
	dependsOnBucket := pulumi.DependsOn([]pulumi.Resource{bucket})

	_, err := s3.NewBucketVersioningV2(ctx, fmt.Sprintf("%s-state-bucket-versioning", clusterName), &s3.BucketVersioningV2Args{
		Bucket: bucket.ID(),
		VersioningConfiguration: &s3.BucketVersioningV2VersioningConfigurationArgs{
			Status: pulumi.String("Enabled"),
		},
	}, dependsOnBucket)
	if err != nil {
		return err
	}

	_, err = s3.NewBucketServerSideEncryptionConfigurationV2(ctx, fmt.Sprintf("%s-state-bucket-encryption", clusterName), &s3.BucketServerSideEncryptionConfigurationV2Args{
		Bucket: bucket.ID(),
		Rules: s3.BucketServerSideEncryptionConfigurationV2RuleArray{
			&s3.BucketServerSideEncryptionConfigurationV2RuleArgs{
				ApplyServerSideEncryptionByDefault: &s3.BucketServerSideEncryptionConfigurationV2RuleApplyServerSideEncryptionByDefaultArgs{
					SseAlgorithm: pulumi.String("AES256"),
				},
				BucketKeyEnabled: pulumi.Bool(true),
			},
		},
	}, dependsOnBucket)
	if err != nil {
		return err
	}

	_, err = s3.NewBucketPublicAccessBlock(ctx, fmt.Sprintf("%s-state-bucket-pab", clusterName), &s3.BucketPublicAccessBlockArgs{
		Bucket:                bucket.ID(),
		BlockPublicAcls:       pulumi.Bool(true),
		BlockPublicPolicy:     pulumi.Bool(true),
		IgnorePublicAcls:      pulumi.Bool(true),
		RestrictPublicBuckets: pulumi.Bool(true),
	}, dependsOnBucket)
	if err != nil {
		return err
	}

	_, err = s3.NewBucketLifecycleConfigurationV2(ctx, fmt.Sprintf("%s-state-bucket-lifecycle", clusterName), &s3.BucketLifecycleConfigurationV2Args{
		Bucket: bucket.ID(),
		Rules: s3.BucketLifecycleConfigurationV2RuleArray{
			&s3.BucketLifecycleConfigurationV2RuleArgs{
				Id:     pulumi.String("state_lifecycle"),
				Status: pulumi.String("Enabled"),
				Filter: &s3.BucketLifecycleConfigurationV2RuleFilterArgs{
					Prefix: pulumi.String(""),
				},
				NoncurrentVersionExpiration: &s3.BucketLifecycleConfigurationV2RuleNoncurrentVersionExpirationArgs{
					NoncurrentDays: pulumi.Int(30),
				},
				AbortIncompleteMultipartUpload: &s3.BucketLifecycleConfigurationV2RuleAbortIncompleteMultipartUploadArgs{
					DaysAfterInitiation: pulumi.Int(1),
				},
			},
		},
	}, dependsOnBucket)
	return err
}

func createOrImportTable(ctx *pulumi.Context, args Args, tableName string, logger logging.Logger) (*dynamodb.Table, error) {
	exists, err := probe(ctx.Context(), args.Prober, tableName, logger, func(c context.Context, p Prober) (bool, error) {
		return p.TableExists(c, tableName)
	})
	if err != nil {
		return nil, err
	}

	var opts []pulumi.ResourceOption
	if exists {
		logger.Info("lock table exists, importing into state", logging.Fields{"table": tableName})
		opts = append(opts, pulumi.Import(pulumi.ID(tableName)))
	} else {
		logger.Info("creating state lock table", logging.Fields{"table": tableName})
	}

	table, err := dynamodb.NewTable(ctx, fmt.Sprintf("%s-pulumi-state-lock-table", args.ClusterName), &dynamodb.TableArgs{
		Name:        pulumi.String(tableName),
		BillingMode: pulumi.String("PAY_PER_REQUEST"),
		HashKey:     pulumi.String("LockID"),
		Attributes: dynamodb.TableAttributeArray{
			&dynamodb.TableAttributeArgs{Name: pulumi.String("LockID"), Type: pulumi.String("S")},
		},
		ServerSideEncryption: &dynamodb.TableServerSideEncryptionArgs{
			Enabled: pulumi.Bool(true),
		},
		// Point-in-time recovery stays off to keep the dev backend cheap.
		PointInTimeRecovery: &dynamodb.TablePointInTimeRecoveryArgs{
			Enabled: pulumi.Bool(false),
		},
		Tags: tagMap(args.Tags, map[string]string{
			"Name":    tableName,
			"Purpose": "Pulumi state locking",
			"Module":  "state-storage",
		}),
	}, opts...)
	if err != nil {
		return nil, err
	}
	return table, nil
}

// probe runs one existence check through the retry wrapper. A nil prober
// means no backend to ask, so the fresh-create branch is taken. Probe
// errors from the already-exists family count as existence, so the caller
// adopts the live resource instead of failing the bootstrap.
func probe(ctx context.Context, p Prober, name string, logger logging.Logger, check func(context.Context, Prober) (bool, error)) (bool, error) {
	if p == nil {
		return false, nil
	}
	exists, err := awsapi.RetryWithBackoff(ctx, func(c context.Context) (bool, error) {
		return check(c, p)
	}, logger)
	if err != nil {
		if awsapi.IsConflict(err) {
			logger.Warn("probe reported an existing resource, adopting it", logging.Fields{"name": name, "error": err.Error()})
			return true, nil
		}
		return false, fmt.Errorf("existence probe for %s: %w", name, err)
	}
	return exists, nil
}

// BackendConfig is the exported backend_config map.
func (r *Resources) BackendConfig(region string) map[string]string {
	return map[string]string{
		"backend_type":   "s3",
		"bucket":         r.BucketName,
		"region":         region,
		"dynamodb_table": r.TableName,
		"encrypt":        "true",
	}
}

// ConfigurationCommands lists the shell steps to point Pulumi at the backend.
func (r *Resources) ConfigurationCommands(region string) []string {
	return []string{
		"# Configure Pulumi to use S3 backend:",
		fmt.Sprintf("export PULUMI_BACKEND_URL=s3://%s", r.BucketName),
		"",
		"# Initialize Pulumi project with S3 backend:",
		"pulumi stack init dev --secrets-provider=awskms://alias/pulumi-secrets",
		"",
		"# Set AWS region:",
		fmt.Sprintf("pulumi config set aws:region %s", region),
		"",
		"# Deploy infrastructure:",
		"pulumi up",
		"",
		"# Note: Ensure AWS credentials are configured before running these commands",
	}
}

// ValidationCommands lists the shell steps to verify the backend works.
func (r *Resources) ValidationCommands() []string {
	return []string{
		"# Validate S3 bucket:",
		fmt.Sprintf("aws s3 ls s3://%s/", r.BucketName),
		"",
		"# Validate DynamoDB table:",
		fmt.Sprintf("aws dynamodb describe-table --table-name %s", r.TableName),
		"",
		"# Test Pulumi backend connectivity:",
		"pulumi stack ls",
		"",
		"# Refresh Pulumi state:",
		"pulumi refresh",
	}
}

func tagMap(base, extra map[string]string) pulumi.StringMap {
	out := pulumi.StringMap{}
	for k, v := range base {
		out[k] = pulumi.String(v)
	}
	for k, v := range extra {
		out[k] = pulumi.String(v)
	}
	return out
}
