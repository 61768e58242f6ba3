package awsapi

import (
	"context"
	"fmt"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/eks"
)

// VpcIDByName resolves a VPC id from its Name tag. Used by the migration
// helper to fill real ids into generated import commands.
func VpcIDByName(
	ctx context.Context,
	client interface {
		DescribeVpcs(ctx context.Context, in *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
	},
	name string,
) (string, error) {
	out, err := client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{{
			Name:   awsv2.String("tag:Name"),
			Values: []string{name},
		}},
	})
	if err != nil {
		return "", Classify(err)
	}
	if len(out.Vpcs) == 0 {
		return "", fmt.Errorf("no VPC tagged Name=%s", name)
	}
	return awsv2.ToString(out.Vpcs[0].VpcId), nil
}

// ClusterARN resolves an EKS cluster ARN from its name.
func ClusterARN(
	ctx context.Context,
	client interface {
		DescribeCluster(ctx context.Context, in *eks.DescribeClusterInput, optFns ...func(*eks.Options)) (*eks.DescribeClusterOutput, error)
	},
	name string,
) (string, error) {
	out, err := client.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: awsv2.String(name)})
	if err != nil {
		return "", Classify(err)
	}
	if out.Cluster == nil {
		return "", fmt.Errorf("cluster %s not found", name)
	}
	return awsv2.ToString(out.Cluster.Arn), nil
}
