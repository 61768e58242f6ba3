// Package cluster declares the current-generation EKS control plane with
// API-mode authentication, its IAM roles, and the primary node group.
package cluster

import (
	"fmt"

	awseks "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/eks"
	awsiam "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const clusterAssumeRolePolicy = `{"Version":"2012-10-17","Statement":[{"Action":"sts:AssumeRole","Effect":"Allow","Principal":{"Service":"eks.amazonaws.com"}}]}`

const nodeAssumeRolePolicy = `{"Version":"2012-10-17","Statement":[{"Action":"sts:AssumeRole","Effect":"Allow","Principal":{"Service":"ec2.amazonaws.com"}}]}`

// SSM core included so nodes are reachable through Session Manager.
var nodePolicyArns = []string{
	"arn:aws:iam::aws:policy/AmazonEKSWorkerNodePolicy",
	"arn:aws:iam::aws:policy/AmazonEKS_CNI_Policy",
	"arn:aws:iam::aws:policy/AmazonEC2ContainerRegistryReadOnly",
	"arn:aws:iam::aws:policy/AmazonSSMManagedInstanceCore",
}

// Args configures the cluster.
type Args struct {
	ClusterName  string
	SubnetIDs    pulumi.StringArrayInput
	NodeCount    int
	InstanceType string

	// When set, the GitHub Actions deploy role gets an access entry plus
	// cluster-admin policy association.
	GithubRoleArn string
}

// Resources holds the control plane and the roles downstream stacks need.
type Resources struct {
	Cluster     *awseks.Cluster
	NodeGroup   *awseks.NodeGroup
	NodeRole    *awsiam.Role
	ClusterName string
}

func normalize(args *Args) {
	if args.ClusterName == "" {
		args.ClusterName = "builder-space"
	}
	if args.NodeCount == 0 {
		args.NodeCount = 3
	}
	if args.InstanceType == "" {
		args.InstanceType = "t3.xlarge"
	}
}

// Create declares the cluster, its roles, access entries, and node group.
func Create(ctx *pulumi.Context, args Args) (*Resources, error) {
	normalize(&args)

	clusterRole, err := awsiam.NewRole(ctx, "eks-cluster-role", &awsiam.RoleArgs{
		AssumeRolePolicy: pulumi.String(clusterAssumeRolePolicy),
	})
	if err != nil {
		return nil, err
	}
	_, err = awsiam.NewRolePolicyAttachment(ctx, "eks-cluster-policy", &awsiam.RolePolicyAttachmentArgs{
		PolicyArn: pulumi.String("arn:aws:iam::aws:policy/AmazonEKSClusterPolicy"),
		Role:      clusterRole.Name,
	})
	if err != nil {
		return nil, err
	}

	nodeRole, err := awsiam.NewRole(ctx, "eks-node-role", &awsiam.RoleArgs{
		AssumeRolePolicy: pulumi.String(nodeAssumeRolePolicy),
	})
	if err != nil {
		return nil, err
	}
	for _, arn := range nodePolicyArns {
		_, err := awsiam.NewRolePolicyAttachment(ctx, fmt.Sprintf("node-policy-%s", lastSegment(arn)), &awsiam.RolePolicyAttachmentArgs{
			PolicyArn: pulumi.String(arn),
			Role:      nodeRole.Name,
		})
		if err != nil {
			return nil, err
		}
	}

	eksCluster, err := awseks.NewCluster(ctx, "cluster", &awseks.ClusterArgs{
		Name:    pulumi.String(args.ClusterName),
		RoleArn: clusterRole.Arn,
		Version: pulumi.String("1.31"),
		VpcConfig: &awseks.ClusterVpcConfigArgs{
			SubnetIds:             args.SubnetIDs,
			EndpointPublicAccess:  pulumi.Bool(true),
			EndpointPrivateAccess: pulumi.Bool(true),
		},
		AccessConfig: &awseks.ClusterAccessConfigArgs{
			AuthenticationMode: pulumi.String("API"),
		},
		EnabledClusterLogTypes: pulumi.ToStringArray([]string{"api", "audit", "authenticator"}),
	})
	if err != nil {
		return nil, err
	}

	if args.GithubRoleArn != "" {
		_, err := awseks.NewAccessEntry(ctx, "github-actions-access", &awseks.AccessEntryArgs{
			ClusterName:  eksCluster.Name,
			PrincipalArn: pulumi.String(args.GithubRoleArn),
			Type:         pulumi.String("STANDARD"),
		})
		if err != nil {
			return nil, err
		}
		_, err = awseks.NewAccessPolicyAssociation(ctx, "github-actions-admin", &awseks.AccessPolicyAssociationArgs{
			ClusterName:  eksCluster.Name,
			PrincipalArn: pulumi.String(args.GithubRoleArn),
			PolicyArn:    pulumi.String("arn:aws:eks::aws:cluster-access-policy/AmazonEKSClusterAdminPolicy"),
			AccessScope: &awseks.AccessPolicyAssociationAccessScopeArgs{
				Type: pulumi.String("cluster"),
			},
		})
		if err != nil {
			return nil, err
		}
	}

	nodeGroup, err := awseks.NewNodeGroup(ctx, "primary-nodes", &awseks.NodeGroupArgs{
		ClusterName:   eksCluster.Name,
		NodeRoleArn:   nodeRole.Arn,
		SubnetIds:     args.SubnetIDs,
		InstanceTypes: pulumi.ToStringArray([]string{args.InstanceType}),
		CapacityType:  pulumi.String("ON_DEMAND"),
		ScalingConfig: &awseks.NodeGroupScalingConfigArgs{
			DesiredSize: pulumi.Int(args.NodeCount),
			MaxSize:     pulumi.Int(args.NodeCount + 2),
			MinSize:     pulumi.Int(1),
		},
		DiskSize: pulumi.Int(100),
		Tags: pulumi.StringMap{
			"Name": pulumi.String(fmt.Sprintf("%s-primary-nodes", args.ClusterName)),
		},
	})
	if err != nil {
		return nil, err
	}

	return &Resources{
		Cluster:     eksCluster,
		NodeGroup:   nodeGroup,
		NodeRole:    nodeRole,
		ClusterName: args.ClusterName,
	}, nil
}

func lastSegment(arn string) string {
	for i := len(arn) - 1; i >= 0; i-- {
		if arn[i] == '/' {
			return arn[i+1:]
		}
	}
	return arn
}
