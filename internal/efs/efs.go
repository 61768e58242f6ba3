// Package efs declares the shared multi-AZ file system workloads mount over
// NFS.
package efs

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	awsefs "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/efs"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/kms"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// Args configures the file system.
type Args struct {
	ClusterName string
	VpcID       pulumi.StringInput
	SubnetIDs   pulumi.StringArrayOutput
	Tags        map[string]string
}

// Resources holds the storage layer.
type Resources struct {
	Key           *kms.Key
	SecurityGroup *ec2.SecurityGroup
	FileSystem    *awsefs.FileSystem
	MountTargets  []*awsefs.MountTarget
}

// NewResources declares the KMS key, NFS security group, encrypted file
// system, and mount targets in the first two subnets.
func NewResources(ctx *pulumi.Context, args Args) (*Resources, error) {
	if args.ClusterName == "" {
		args.ClusterName = "builder-space"
	}
	tags := tagMap(args.Tags)

	key, err := kms.NewKey(ctx, "efs-kms-key", &kms.KeyArgs{
		Description:          pulumi.Sprintf("KMS key for %s EFS encryption", args.ClusterName),
		DeletionWindowInDays: pulumi.Int(7),
		Tags:                 tags,
	})
	if err != nil {
		return nil, err
	}
	_, err = kms.NewAlias(ctx, "efs-kms-alias", &kms.AliasArgs{
		Name:        pulumi.Sprintf("alias/%s-efs", args.ClusterName),
		TargetKeyId: key.KeyId,
	})
	if err != nil {
		return nil, err
	}

	sg, err := ec2.NewSecurityGroup(ctx, "efs-sg", &ec2.SecurityGroupArgs{
		Name:        pulumi.Sprintf("%s-efs-sg", args.ClusterName),
		Description: pulumi.String("Allow NFS traffic from EKS nodes to EFS"),
		VpcId:       args.VpcID,
		Ingress: ec2.SecurityGroupIngressArray{
			&ec2.SecurityGroupIngressArgs{
				Protocol:   pulumi.String("tcp"),
				FromPort:   pulumi.Int(2049),
				ToPort:     pulumi.Int(2049),
				CidrBlocks: pulumi.StringArray{pulumi.String("10.0.0.0/16")},
			},
		},
		Egress: ec2.SecurityGroupEgressArray{
			&ec2.SecurityGroupEgressArgs{
				Protocol:   pulumi.String("-1"),
				FromPort:   pulumi.Int(0),
				ToPort:     pulumi.Int(0),
				CidrBlocks: pulumi.StringArray{pulumi.String("0.0.0.0/0")},
			},
		},
		Tags: tags,
	})
	if err != nil {
		return nil, err
	}

	fsTags := tagMap(args.Tags)
	fsTags["Name"] = pulumi.Sprintf("%s-efs", args.ClusterName)
	fs, err := awsefs.NewFileSystem(ctx, "efs", &awsefs.FileSystemArgs{
		Encrypted:       pulumi.Bool(true),
		KmsKeyId:        key.Arn,
		PerformanceMode: pulumi.String("generalPurpose"),
		ThroughputMode:  pulumi.String("bursting"),
		LifecyclePolicies: awsefs.FileSystemLifecyclePolicyArray{
			&awsefs.FileSystemLifecyclePolicyArgs{
				TransitionToIa: pulumi.String("AFTER_30_DAYS"),
			},
		},
		Tags: fsTags,
	})
	if err != nil {
		return nil, err
	}

	res := &Resources{Key: key, SecurityGroup: sg, FileSystem: fs}
	// Two mount targets cover the AZs the node groups span.
	for i := 0; i < 2; i++ {
		idx := i
		target, err := awsefs.NewMountTarget(ctx, fmt.Sprintf("efs-mount-%d", i+1), &awsefs.MountTargetArgs{
			FileSystemId: fs.ID(),
			SubnetId: args.SubnetIDs.ApplyT(func(subnets []string) (string, error) {
				if idx >= len(subnets) {
					return "", fmt.Errorf("subnet %d not available, stack exported %d subnets", idx, len(subnets))
				}
				return subnets[idx], nil
			}).(pulumi.StringOutput),
			SecurityGroups: pulumi.StringArray{sg.ID()},
		})
		if err != nil {
			return nil, err
		}
		res.MountTargets = append(res.MountTargets, target)
	}
	return res, nil
}

// DNSName returns the regional EFS endpoint for the file system.
func (r *Resources) DNSName(region string) pulumi.StringOutput {
	return pulumi.Sprintf("%s.efs.%s.amazonaws.com", r.FileSystem.ID(), region)
}

func tagMap(tags map[string]string) pulumi.StringMap {
	out := pulumi.StringMap{}
	for k, v := range tags {
		out[k] = pulumi.String(v)
	}
	return out
}
