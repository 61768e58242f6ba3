// Package eks provisions the control plane, managed node group, and managed
// add-ons for the legacy EKS deployment, with secrets encryption and
// control-plane logging.
package eks

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/cloudwatch"
	awseks "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/eks"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/kms"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// Args configures the cluster resources.
type Args struct {
	ClusterName    string
	ClusterVersion string

	ClusterRoleArn pulumi.StringInput
	NodeRoleArn    pulumi.StringInput
	SubnetIDs      pulumi.StringArrayInput
	ClusterSGID    pulumi.StringInput
	NodeSGID       pulumi.StringInput

	NodeInstanceTypes []string
	NodeDesiredSize   int
	NodeMaxSize       int
	NodeMinSize       int
	NodeDiskSize      int
	CapacityType      string

	ClusterEnabledLogTypes []string
	LogRetentionDays       int

	UseExistingKmsKey bool
	ExistingKmsKeyArn string

	EnableVpcCniAddon    bool
	EnableCorednsAddon   bool
	EnableKubeProxyAddon bool

	EndpointPrivateAccess bool
	EndpointPublicAccess  bool
	PublicAccessCidrs     []string

	Tags map[string]string
}

// Resources holds the provisioned cluster layer.
type Resources struct {
	LogGroup  *cloudwatch.LogGroup
	KmsKey    *kms.Key
	KmsKeyArn pulumi.StringInput
	Cluster   *awseks.Cluster
	NodeGroup *awseks.NodeGroup
	Addons    map[string]*awseks.Addon
}

func normalize(args *Args) {
	if args.CapacityType == "" {
		args.CapacityType = "ON_DEMAND"
	}
	if len(args.ClusterEnabledLogTypes) == 0 {
		args.ClusterEnabledLogTypes = []string{"api", "audit", "authenticator"}
	}
	if len(args.PublicAccessCidrs) == 0 {
		args.PublicAccessCidrs = []string{"0.0.0.0/0"}
	}
	if !args.EndpointPrivateAccess {
		args.EndpointPublicAccess = true
	}
}

// NewResources provisions the cluster, node group, and managed add-ons.
func NewResources(ctx *pulumi.Context, args Args) (*Resources, error) {
	normalize(&args)
	res := &Resources{Addons: map[string]*awseks.Addon{}}

	if err := res.createLogGroup(ctx, args); err != nil {
		return nil, fmt.Errorf("log group: %w", err)
	}
	if err := res.createEncryptionKey(ctx, args); err != nil {
		return nil, fmt.Errorf("kms key: %w", err)
	}
	if err := res.createCluster(ctx, args); err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}
	if err := res.createNodeGroup(ctx, args); err != nil {
		return nil, fmt.Errorf("node group: %w", err)
	}
	if err := res.createAddons(ctx, args); err != nil {
		return nil, fmt.Errorf("addons: %w", err)
	}
	return res, nil
}

func (r *Resources) createLogGroup(ctx *pulumi.Context, args Args) error {
	lg, err := cloudwatch.NewLogGroup(ctx, fmt.Sprintf("%s-eks-log-group", args.ClusterName), &cloudwatch.LogGroupArgs{
		Name:            pulumi.String(fmt.Sprintf("/aws/eks/%s/cluster", args.ClusterName)),
		RetentionInDays: pulumi.Int(args.LogRetentionDays),
		Tags: tagMap(args.Tags, map[string]string{
			"Name":   fmt.Sprintf("%s-eks-log-group", args.ClusterName),
			"Module": "eks",
		}),
	})
	if err != nil {
		return err
	}
	r.LogGroup = lg
	return nil
}

func (r *Resources) createEncryptionKey(ctx *pulumi.Context, args Args) error {
	if args.UseExistingKmsKey && args.ExistingKmsKeyArn != "" {
		r.KmsKeyArn = pulumi.String(args.ExistingKmsKeyArn)
		return nil
	}

	key, err := kms.NewKey(ctx, fmt.Sprintf("%s-eks-kms-key", args.ClusterName), &kms.KeyArgs{
		Description: pulumi.String(fmt.Sprintf("EKS Secret Encryption Key for %s", args.ClusterName)),
		Tags: tagMap(args.Tags, map[string]string{
			"Name":   fmt.Sprintf("%s-eks-kms-key", args.ClusterName),
			"Module": "eks",
		}),
	})
	if err != nil {
		return err
	}
	_, err = kms.NewAlias(ctx, fmt.Sprintf("%s-eks-kms-alias", args.ClusterName), &kms.AliasArgs{
		Name:        pulumi.String(fmt.Sprintf("alias/%s-eks", args.ClusterName)),
		TargetKeyId: key.KeyId,
	})
	if err != nil {
		return err
	}
	r.KmsKey = key
	r.KmsKeyArn = key.Arn
	return nil
}

func (r *Resources) createCluster(ctx *pulumi.Context, args Args) error {
	cluster, err := awseks.NewCluster(ctx, fmt.Sprintf("%s-cluster", args.ClusterName), &awseks.ClusterArgs{
		Name:    pulumi.String(args.ClusterName),
		Version: pulumi.String(args.ClusterVersion),
		RoleArn: args.ClusterRoleArn,
		VpcConfig: &awseks.ClusterVpcConfigArgs{
			SubnetIds:             args.SubnetIDs,
			EndpointPrivateAccess: pulumi.Bool(args.EndpointPrivateAccess),
			EndpointPublicAccess:  pulumi.Bool(args.EndpointPublicAccess),
			PublicAccessCidrs:     pulumi.ToStringArray(args.PublicAccessCidrs),
			SecurityGroupIds:      pulumi.StringArray{args.ClusterSGID},
		},
		EnabledClusterLogTypes: pulumi.ToStringArray(args.ClusterEnabledLogTypes),
		EncryptionConfig: &awseks.ClusterEncryptionConfigArgs{
			Provider: &awseks.ClusterEncryptionConfigProviderArgs{
				KeyArn: r.KmsKeyArn,
			},
			Resources: pulumi.StringArray{pulumi.String("secrets")},
		},
		Tags: tagMap(args.Tags, map[string]string{
			"Name":   fmt.Sprintf("%s-cluster", args.ClusterName),
			"Module": "eks",
		}),
	}, pulumi.DependsOn([]pulumi.Resource{r.LogGroup}))
	if err != nil {
		return err
	}
	r.Cluster = cluster
	return nil
}

func (r *Resources) createNodeGroup(ctx *pulumi.Context, args Args) error {
	ngArgs := &awseks.NodeGroupArgs{
		ClusterName:   r.Cluster.Name,
		NodeGroupName: pulumi.String(fmt.Sprintf("%s-nodes", args.ClusterName)),
		NodeRoleArn:   args.NodeRoleArn,
		SubnetIds:     args.SubnetIDs,
		CapacityType:  pulumi.String(args.CapacityType),
		InstanceTypes: pulumi.ToStringArray(args.NodeInstanceTypes),
		DiskSize:      pulumi.Int(args.NodeDiskSize),
		ScalingConfig: &awseks.NodeGroupScalingConfigArgs{
			DesiredSize: pulumi.Int(args.NodeDesiredSize),
			MaxSize:     pulumi.Int(args.NodeMaxSize),
			MinSize:     pulumi.Int(args.NodeMinSize),
		},
		UpdateConfig: &awseks.NodeGroupUpdateConfigArgs{
			MaxUnavailablePercentage: pulumi.Int(25),
		},
		Tags: tagMap(args.Tags, map[string]string{
			"Name":   fmt.Sprintf("%s-node-group", args.ClusterName),
			"Module": "eks",
		}),
	}
	if args.NodeSGID != nil {
		// No SSH key; management access goes through SSM.
		ngArgs.RemoteAccess = &awseks.NodeGroupRemoteAccessArgs{
			SourceSecurityGroupIds: pulumi.StringArray{args.NodeSGID},
		}
	}

	ng, err := awseks.NewNodeGroup(ctx, fmt.Sprintf("%s-node-group", args.ClusterName), ngArgs,
		pulumi.DependsOn([]pulumi.Resource{r.Cluster}))
	if err != nil {
		return err
	}
	r.NodeGroup = ng
	return nil
}

func (r *Resources) createAddons(ctx *pulumi.Context, args Args) error {
	type addonSpec struct {
		key     string
		name    string
		enabled bool
		opts    []pulumi.ResourceOption
	}
	specs := []addonSpec{
		{"vpc_cni", "vpc-cni", args.EnableVpcCniAddon, nil},
		// coredns needs schedulable nodes before it can go healthy.
		{"coredns", "coredns", args.EnableCorednsAddon, []pulumi.ResourceOption{pulumi.DependsOn([]pulumi.Resource{r.NodeGroup})}},
		{"kube_proxy", "kube-proxy", args.EnableKubeProxyAddon, nil},
	}
	for _, spec := range specs {
		if !spec.enabled {
			continue
		}
		addon, err := awseks.NewAddon(ctx, fmt.Sprintf("%s-%s-addon", args.ClusterName, spec.name), &awseks.AddonArgs{
			ClusterName:              r.Cluster.Name,
			AddonName:                pulumi.String(spec.name),
			ResolveConflictsOnCreate: pulumi.String("OVERWRITE"),
			ResolveConflictsOnUpdate: pulumi.String("OVERWRITE"),
			Tags: tagMap(args.Tags, map[string]string{
				"Name":   fmt.Sprintf("%s-%s-addon", args.ClusterName, spec.name),
				"Module": "eks",
			}),
		}, spec.opts...)
		if err != nil {
			return err
		}
		r.Addons[spec.key] = addon
	}
	return nil
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
