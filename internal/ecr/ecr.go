// Package ecr declares the container registry layer: pull-through caches
// that sidestep upstream rate limits, an encrypted repository for custom
// images, and a push policy for CI.
package ecr

import (
	"encoding/json"
	"fmt"

	awsecr "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ecr"
	awsiam "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/kms"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/secretsmanager"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const replicationRegion = "eu-west-1"

// Args configures the registry layer.
type Args struct {
	ClusterName string
	AccountID   string
	Region      string

	// Docker Hub credentials raise the pull-through rate limits. Both
	// must be set for the authenticated cache rule.
	DockerhubUsername string
	DockerhubPassword pulumi.StringInput

	Tags map[string]string
}

// Resources holds the registry layer.
type Resources struct {
	DockerhubSecret *secretsmanager.Secret
	DockerhubCache  *awsecr.PullThroughCacheRule
	K8sCache        *awsecr.PullThroughCacheRule
	Key             *kms.Key
	Repository      *awsecr.Repository
	PushPolicy      *awsiam.Policy
	Replication     *awsecr.ReplicationConfiguration
}

// NewResources declares the cache rules, repository, and CI policy.
func NewResources(ctx *pulumi.Context, args Args) (*Resources, error) {
	if args.ClusterName == "" {
		args.ClusterName = "builder-space"
	}
	tags := tagMap(args.Tags)
	res := &Resources{}

	if err := createCaches(ctx, args, tags, res); err != nil {
		return nil, err
	}
	if err := createRepository(ctx, args, tags, res); err != nil {
		return nil, err
	}

	var err error
	res.PushPolicy, err = awsiam.NewPolicy(ctx, "ecr-push-policy", &awsiam.PolicyArgs{
		Name:        pulumi.Sprintf("%s-ecr-push-policy", args.ClusterName),
		Description: pulumi.String("Allows pushing images to ECR repositories"),
		Policy: res.Repository.Arn.ApplyT(func(arn string) (string, error) {
			b, err := json.Marshal(map[string]any{
				"Version": "2012-10-17",
				"Statement": []map[string]any{
					{
						"Effect":   "Allow",
						"Action":   []string{"ecr:GetAuthorizationToken"},
						"Resource": "*",
					},
					{
						"Effect": "Allow",
						"Action": []string{
							"ecr:BatchCheckLayerAvailability",
							"ecr:GetDownloadUrlForLayer",
							"ecr:BatchGetImage",
							"ecr:PutImage",
							"ecr:InitiateLayerUpload",
							"ecr:UploadLayerPart",
							"ecr:CompleteLayerUpload",
						},
						"Resource": arn,
					},
				},
			})
			return string(b), err
		}).(pulumi.StringOutput),
		Tags: tags,
	})
	if err != nil {
		return nil, err
	}

	res.Replication, err = awsecr.NewReplicationConfiguration(ctx, "ecr-replication", &awsecr.ReplicationConfigurationArgs{
		ReplicationConfiguration: &awsecr.ReplicationConfigurationReplicationConfigurationArgs{
			Rules: awsecr.ReplicationConfigurationReplicationConfigurationRuleArray{
				&awsecr.ReplicationConfigurationReplicationConfigurationRuleArgs{
					Destinations: awsecr.ReplicationConfigurationReplicationConfigurationRuleDestinationArray{
						&awsecr.ReplicationConfigurationReplicationConfigurationRuleDestinationArgs{
							Region:     pulumi.String(replicationRegion),
							RegistryId: pulumi.String(args.AccountID),
						},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func createCaches(ctx *pulumi.Context, args Args, tags pulumi.StringMap, res *Resources) error {
	if args.DockerhubUsername != "" && args.DockerhubPassword != nil {
		secret, err := secretsmanager.NewSecret(ctx, "dockerhub-credentials", &secretsmanager.SecretArgs{
			// ECR requires the ecr-pullthroughcache/ prefix on cache
			// credential secrets.
			Name:        pulumi.Sprintf("ecr-pullthroughcache/%s-dockerhub", args.ClusterName),
			Description: pulumi.String("Docker Hub credentials for ECR pull-through cache"),
			Tags:        tags,
		})
		if err != nil {
			return err
		}
		version, err := secretsmanager.NewSecretVersion(ctx, "dockerhub-credentials-version", &secretsmanager.SecretVersionArgs{
			SecretId: secret.ID(),
			SecretString: pulumi.All(pulumi.String(args.DockerhubUsername).ToStringOutput(), args.DockerhubPassword).ApplyT(func(vs []any) (string, error) {
				b, err := json.Marshal(map[string]string{
					"username": vs[0].(string),
					"password": vs[1].(string),
				})
				return string(b), err
			}).(pulumi.StringOutput),
		})
		if err != nil {
			return err
		}
		res.DockerhubSecret = secret
		res.DockerhubCache, err = awsecr.NewPullThroughCacheRule(ctx, "dockerhub-cache", &awsecr.PullThroughCacheRuleArgs{
			EcrRepositoryPrefix: pulumi.String("docker-hub"),
			UpstreamRegistryUrl: pulumi.String("registry-1.docker.io"),
			CredentialArn:       secret.Arn,
		}, pulumi.DependsOn([]pulumi.Resource{version}))
		if err != nil {
			return err
		}
	}

	var err error
	res.K8sCache, err = awsecr.NewPullThroughCacheRule(ctx, "k8s-cache", &awsecr.PullThroughCacheRuleArgs{
		EcrRepositoryPrefix: pulumi.String("k8s"),
		UpstreamRegistryUrl: pulumi.String("registry.k8s.io"),
	})
	return err
}

func createRepository(ctx *pulumi.Context, args Args, tags pulumi.StringMap, res *Resources) error {
	key, err := kms.NewKey(ctx, "ecr-kms-key", &kms.KeyArgs{
		Description:          pulumi.Sprintf("KMS key for %s ECR encryption", args.ClusterName),
		DeletionWindowInDays: pulumi.Int(7),
		Tags:                 tags,
	})
	if err != nil {
		return err
	}
	_, err = kms.NewAlias(ctx, "ecr-kms-alias", &kms.AliasArgs{
		Name:        pulumi.Sprintf("alias/%s-ecr", args.ClusterName),
		TargetKeyId: key.KeyId,
	})
	if err != nil {
		return err
	}
	res.Key = key

	repo, err := awsecr.NewRepository(ctx, "custom-apps", &awsecr.RepositoryArgs{
		Name:               pulumi.Sprintf("%s/custom-apps", args.ClusterName),
		ImageTagMutability: pulumi.String("MUTABLE"),
		ImageScanningConfiguration: &awsecr.RepositoryImageScanningConfigurationArgs{
			ScanOnPush: pulumi.Bool(true),
		},
		EncryptionConfigurations: awsecr.RepositoryEncryptionConfigurationArray{
			&awsecr.RepositoryEncryptionConfigurationArgs{
				EncryptionType: pulumi.String("KMS"),
				KmsKey:         key.Arn,
			},
		},
		Tags: tags,
	})
	if err != nil {
		return err
	}
	res.Repository = repo

	lifecycle, err := json.Marshal(map[string]any{
		"rules": []map[string]any{
			{
				"rulePriority": 1,
				"description":  "Keep last 10 images",
				"selection": map[string]any{
					"tagStatus":   "any",
					"countType":   "imageCountMoreThan",
					"countNumber": 10,
				},
				"action": map[string]any{"type": "expire"},
			},
		},
	})
	if err != nil {
		return err
	}
	_, err = awsecr.NewLifecyclePolicy(ctx, "custom-apps-lifecycle", &awsecr.LifecyclePolicyArgs{
		Repository: repo.Name,
		Policy:     pulumi.String(lifecycle),
	})
	return err
}

// RegistryURL returns the account's regional registry hostname.
func RegistryURL(accountID, region string) string {
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com", accountID, region)
}

func tagMap(tags map[string]string) pulumi.StringMap {
	out := pulumi.StringMap{}
	for k, v := range tags {
		out[k] = pulumi.String(v)
	}
	return out
}
