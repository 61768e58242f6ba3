// Package iam provisions the cluster and node group roles for the legacy
// EKS deployment. Both roles support reuse of a pre-existing role by name.
package iam

import (
	"fmt"

	awsiam "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const clusterAssumeRolePolicy = `{"Version":"2012-10-17","Statement":[{"Action":"sts:AssumeRole","Effect":"Allow","Principal":{"Service":"eks.amazonaws.com"}}]}`

const nodeAssumeRolePolicy = `{"Version":"2012-10-17","Statement":[{"Action":"sts:AssumeRole","Effect":"Allow","Principal":{"Service":"ec2.amazonaws.com"}}]}`

// Managed policies every node role needs. SSM core is included so nodes can
// be reached through Session Manager without SSH keys.
var nodePolicies = []struct {
	suffix string
	arn    string
}{
	{"worker", "arn:aws:iam::aws:policy/AmazonEKSWorkerNodePolicy"},
	{"cni", "arn:aws:iam::aws:policy/AmazonEKS_CNI_Policy"},
	{"registry", "arn:aws:iam::aws:policy/AmazonEC2ContainerRegistryReadOnly"},
	{"ssm", "arn:aws:iam::aws:policy/AmazonSSMManagedInstanceCore"},
}

// Args configures the IAM resources.
type Args struct {
	ClusterName string

	UseExistingClusterRole  bool
	ExistingClusterRoleName string
	UseExistingNodeRole     bool
	ExistingNodeRoleName    string

	Tags map[string]string
}

// Resources exposes the role identities the cluster module consumes.
type Resources struct {
	ClusterRoleArn  pulumi.StringOutput
	ClusterRoleName pulumi.StringOutput
	NodeRoleArn     pulumi.StringOutput
	NodeRoleName    pulumi.StringOutput

	// Nil when the corresponding existing-role toggle is on.
	ClusterRole         *awsiam.Role
	NodeRole            *awsiam.Role
	NodeInstanceProfile *awsiam.InstanceProfile
}

// NewResources provisions (or looks up) the cluster and node roles.
func NewResources(ctx *pulumi.Context, args Args) (*Resources, error) {
	res := &Resources{}
	if err := res.createClusterRole(ctx, args); err != nil {
		return nil, fmt.Errorf("cluster role: %w", err)
	}
	if err := res.createNodeRole(ctx, args); err != nil {
		return nil, fmt.Errorf("node role: %w", err)
	}
	return res, nil
}

func (r *Resources) createClusterRole(ctx *pulumi.Context, args Args) error {
	if args.UseExistingClusterRole && args.ExistingClusterRoleName != "" {
		existing, err := awsiam.LookupRole(ctx, &awsiam.LookupRoleArgs{Name: args.ExistingClusterRoleName})
		if err != nil {
			return err
		}
		r.ClusterRoleArn = pulumi.String(existing.Arn).ToStringOutput()
		r.ClusterRoleName = pulumi.String(existing.Name).ToStringOutput()
		return nil
	}

	role, err := awsiam.NewRole(ctx, fmt.Sprintf("%s-cluster-role", args.ClusterName), &awsiam.RoleArgs{
		Name:             pulumi.String(fmt.Sprintf("%s-cluster-role", args.ClusterName)),
		AssumeRolePolicy: pulumi.String(clusterAssumeRolePolicy),
		Tags: tagMap(args.Tags, map[string]string{
			"Name":   fmt.Sprintf("%s-cluster-role", args.ClusterName),
			"Module": "iam",
		}),
	})
	if err != nil {
		return err
	}
	r.ClusterRole = role
	r.ClusterRoleArn = role.Arn
	r.ClusterRoleName = role.Name

	_, err = awsiam.NewRolePolicyAttachment(ctx, fmt.Sprintf("%s-cluster-policy", args.ClusterName), &awsiam.RolePolicyAttachmentArgs{
		PolicyArn: pulumi.String("arn:aws:iam::aws:policy/AmazonEKSClusterPolicy"),
		Role:      role.Name,
	})
	return err
}

func (r *Resources) createNodeRole(ctx *pulumi.Context, args Args) error {
	if args.UseExistingNodeRole && args.ExistingNodeRoleName != "" {
		existing, err := awsiam.LookupRole(ctx, &awsiam.LookupRoleArgs{Name: args.ExistingNodeRoleName})
		if err != nil {
			return err
		}
		r.NodeRoleArn = pulumi.String(existing.Arn).ToStringOutput()
		r.NodeRoleName = pulumi.String(existing.Name).ToStringOutput()
		return nil
	}

	role, err := awsiam.NewRole(ctx, fmt.Sprintf("%s-ng-role", args.ClusterName), &awsiam.RoleArgs{
		Name:             pulumi.String(fmt.Sprintf("%s-ng-role", args.ClusterName)),
		AssumeRolePolicy: pulumi.String(nodeAssumeRolePolicy),
		Tags: tagMap(args.Tags, map[string]string{
			"Name":   fmt.Sprintf("%s-node-group-role", args.ClusterName),
			"Module": "iam",
		}),
	})
	if err != nil {
		return err
	}
	r.NodeRole = role
	r.NodeRoleArn = role.Arn
	r.NodeRoleName = role.Name

	for _, p := range nodePolicies {
		_, err := awsiam.NewRolePolicyAttachment(ctx, fmt.Sprintf("%s-node-%s-policy", args.ClusterName, p.suffix), &awsiam.RolePolicyAttachmentArgs{
			PolicyArn: pulumi.String(p.arn),
			Role:      role.Name,
		})
		if err != nil {
			return err
		}
	}

	profile, err := awsiam.NewInstanceProfile(ctx, fmt.Sprintf("%s-node-instance-profile", args.ClusterName), &awsiam.InstanceProfileArgs{
		Name: pulumi.String(fmt.Sprintf("%s-node-instance-profile", args.ClusterName)),
		Role: role.Name,
		Tags: tagMap(args.Tags, map[string]string{
			"Name":   fmt.Sprintf("%s-node-instance-profile", args.ClusterName),
			"Module": "iam",
		}),
	})
	if err != nil {
		return err
	}
	r.NodeInstanceProfile = profile
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
