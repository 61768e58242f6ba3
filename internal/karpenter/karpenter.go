// Package karpenter installs the Karpenter autoscaler: controller IAM with
// pod identity, the Helm release, and the default NodePool/EC2NodeClass
// custom resources loaded from embedded manifests.
package karpenter

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws"
	awseks "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/eks"
	awsiam "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	kubernetes "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes"
	"github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/apiextensions"
	helmv3 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/helm/v3"
	metav1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/meta/v1"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"gopkg.in/yaml.v3"

	"github.com/aiqs4/builder-space/internal/utils"
)

//go:embed assets/*.yaml
var manifestFS embed.FS

const (
	chartVersion       = "1.0.6"
	chartRepository    = "oci://public.ecr.aws/karpenter"
	podIdentityService = "pods.eks.amazonaws.com"
)

// Args configures the Karpenter installation.
type Args struct {
	ClusterName  string
	Cluster      *awseks.Cluster
	NodeRoleArn  pulumi.StringInput
	NodeRoleName pulumi.StringInput
	Provider     *kubernetes.Provider
}

// Resources holds the installed pieces.
type Resources struct {
	ControllerRole  *awsiam.Role
	PodIdentity     *awseks.PodIdentityAssociation
	Release         *helmv3.Release
	CustomResources []*apiextensions.CustomResource
}

// Install declares the Karpenter controller and its default capacity pools.
func Install(ctx *pulumi.Context, args Args) (*Resources, error) {
	current, err := aws.GetCallerIdentity(ctx, nil)
	if err != nil {
		return nil, err
	}

	policy, err := controllerPolicy(ctx, args, current.AccountId)
	if err != nil {
		return nil, fmt.Errorf("controller policy: %w", err)
	}

	role, err := awsiam.NewRole(ctx, "karpenter-controller-role", &awsiam.RoleArgs{
		AssumeRolePolicy: pulumi.String(fmt.Sprintf(
			`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"Service":%q},"Action":["sts:AssumeRole","sts:TagSession"]}]}`,
			podIdentityService,
		)),
	})
	if err != nil {
		return nil, err
	}
	_, err = awsiam.NewRolePolicyAttachment(ctx, "karpenter-policy-attach", &awsiam.RolePolicyAttachmentArgs{
		Role:      role.Name,
		PolicyArn: policy.Arn,
	})
	if err != nil {
		return nil, err
	}

	podIdentity, err := awseks.NewPodIdentityAssociation(ctx, "karpenter-pod-identity", &awseks.PodIdentityAssociationArgs{
		ClusterName:    args.Cluster.Name,
		Namespace:      pulumi.String("kube-system"),
		ServiceAccount: pulumi.String("karpenter"),
		RoleArn:        role.Arn,
	})
	if err != nil {
		return nil, err
	}

	release, err := helmv3.NewRelease(ctx, "karpenter", &helmv3.ReleaseArgs{
		Chart:     pulumi.String("karpenter"),
		Version:   pulumi.String(chartVersion),
		Namespace: pulumi.String("kube-system"),
		RepositoryOpts: &helmv3.RepositoryOptsArgs{
			Repo: pulumi.String(chartRepository),
		},
		Values: pulumi.Map{
			"settings": pulumi.Map{
				"clusterName":       pulumi.String(args.ClusterName),
				"clusterEndpoint":   args.Cluster.Endpoint,
				"interruptionQueue": pulumi.String(args.ClusterName),
			},
			"serviceAccount": pulumi.Map{
				"name":        pulumi.String("karpenter"),
				"annotations": pulumi.Map{},
			},
			"controller": pulumi.Map{
				"resources": pulumi.Map{
					"requests": pulumi.Map{
						"cpu":    pulumi.String("100m"),
						"memory": pulumi.String("256Mi"),
					},
				},
			},
		},
	}, pulumi.Provider(args.Provider), pulumi.DependsOn([]pulumi.Resource{podIdentity}))
	if err != nil {
		return nil, err
	}

	crs, err := installManifests(ctx, args, release)
	if err != nil {
		return nil, fmt.Errorf("capacity manifests: %w", err)
	}

	return &Resources{
		ControllerRole:  role,
		PodIdentity:     podIdentity,
		Release:         release,
		CustomResources: crs,
	}, nil
}

func controllerPolicy(ctx *pulumi.Context, args Args, accountID string) (*awsiam.Policy, error) {
	doc := pulumi.All(args.NodeRoleArn, args.Cluster.Arn).ApplyT(func(vs []any) (string, error) {
		nodeRoleArn := vs[0].(string)
		clusterArn := vs[1].(string)
		pol := map[string]any{
			"Version": "2012-10-17",
			"Statement": []map[string]any{
				{
					"Effect": "Allow",
					"Action": []string{
						"ec2:CreateFleet",
						"ec2:CreateLaunchTemplate",
						"ec2:CreateTags",
						"ec2:DescribeAvailabilityZones",
						"ec2:DescribeImages",
						"ec2:DescribeInstances",
						"ec2:DescribeInstanceTypeOfferings",
						"ec2:DescribeInstanceTypes",
						"ec2:DescribeLaunchTemplates",
						"ec2:DescribeSecurityGroups",
						"ec2:DescribeSpotPriceHistory",
						"ec2:DescribeSubnets",
						"ec2:RunInstances",
						"ec2:TerminateInstances",
					},
					"Resource": "*",
				},
				{
					"Effect":   "Allow",
					"Action":   "iam:PassRole",
					"Resource": nodeRoleArn,
				},
				{
					"Effect":   "Allow",
					"Action":   []string{"eks:DescribeCluster"},
					"Resource": clusterArn,
				},
				{
					"Effect":   "Allow",
					"Action":   []string{"pricing:GetProducts"},
					"Resource": "*",
				},
				{
					"Effect": "Allow",
					"Action": []string{
						"sqs:DeleteMessage",
						"sqs:GetQueueAttributes",
						"sqs:GetQueueUrl",
						"sqs:ReceiveMessage",
					},
					"Resource": fmt.Sprintf("arn:aws:sqs:*:%s:%s", accountID, args.ClusterName),
				},
			},
		}
		b, err := json.Marshal(pol)
		return string(b), err
	}).(pulumi.StringOutput)

	return awsiam.NewPolicy(ctx, "karpenter-controller-policy", &awsiam.PolicyArgs{
		Policy: doc,
	})
}

type manifest struct {
	APIVersion string         `yaml:"apiVersion"`
	Kind       string         `yaml:"kind"`
	Metadata   manifestMeta   `yaml:"metadata"`
	Spec       map[string]any `yaml:"spec"`
}

type manifestMeta struct {
	Name      string `yaml:"name"`
	Namespace string `yaml:"namespace"`
}

func installManifests(ctx *pulumi.Context, args Args, release *helmv3.Release) ([]*apiextensions.CustomResource, error) {
	paths, err := utils.GlobRecursive(manifestFS, "assets", "assets/**/*.yaml")
	if err != nil {
		return nil, err
	}

	var out []*apiextensions.CustomResource
	for _, path := range paths {
		raw, err := manifestFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading embedded manifest %s: %w", path, err)
		}
		text := strings.ReplaceAll(string(raw), "${CLUSTER_NAME}", args.ClusterName)

		var m manifest
		if err := yaml.Unmarshal([]byte(text), &m); err != nil {
			return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
		}

		// The node role is only known at apply time, so the placeholder is
		// replaced with the live output rather than a rendered string.
		if roleVal, ok := m.Spec["role"]; ok && roleVal == "${NODE_ROLE}" {
			m.Spec["role"] = args.NodeRoleName
		}
		otherFields := kubernetes.UntypedArgs{"spec": m.Spec}

		cr, err := apiextensions.NewCustomResource(ctx, fmt.Sprintf("default-%s", strings.ToLower(m.Kind)), &apiextensions.CustomResourceArgs{
			ApiVersion: pulumi.String(m.APIVersion),
			Kind:       pulumi.String(m.Kind),
			Metadata: &metav1.ObjectMetaArgs{
				Name:      pulumi.String(m.Metadata.Name),
				Namespace: pulumi.String(m.Metadata.Namespace),
			},
			OtherFields: otherFields,
		}, pulumi.Provider(args.Provider), pulumi.DependsOn([]pulumi.Resource{release}))
		if err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, nil
}
