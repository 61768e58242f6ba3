// Minimal EKS deployment built from high-level components. AWS defaults
// cover the networking and IAM detail the other generations manage by hand.
package main

import (
	"github.com/pulumi/pulumi-awsx/sdk/v2/go/awsx/ec2"
	"github.com/pulumi/pulumi-eks/sdk/v3/go/eks"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const (
	clusterName  = "builder-space"
	nodeCount    = 3
	instanceType = "t4g.small"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		vpc, err := ec2.NewVpc(ctx, clusterName, &ec2.VpcArgs{})
		if err != nil {
			return err
		}

		cluster, err := eks.NewCluster(ctx, "cluster", &eks.ClusterArgs{
			Name:             pulumi.String(clusterName),
			VpcId:            vpc.VpcId,
			PublicSubnetIds:  vpc.PublicSubnetIds,
			PrivateSubnetIds: vpc.PrivateSubnetIds,
			InstanceType:     pulumi.String(instanceType),
			DesiredCapacity:  pulumi.Int(nodeCount),
			MinSize:          pulumi.Int(1),
			MaxSize:          pulumi.Int(nodeCount + 1),
			// Spot keeps the dev cluster cheap; workloads must tolerate
			// node churn.
			SpotPrice: pulumi.String("0.05"),
		})
		if err != nil {
			return err
		}

		ctx.Export("cluster_name", pulumi.String(clusterName))
		ctx.Export("cluster_endpoint", cluster.EksCluster.Endpoint())
		ctx.Export("kubeconfig", cluster.Kubeconfig)
		ctx.Export("kubeconfig_command", pulumi.Sprintf(
			"aws eks update-kubeconfig --name %s", clusterName))
		return nil
	})
}
