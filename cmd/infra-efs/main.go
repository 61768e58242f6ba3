// Shared EFS storage for the cluster, reachable from the VPC the EKS stack
// exports.
package main

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	pulumiconfig "github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/aiqs4/builder-space/internal/efs"
	"github.com/aiqs4/builder-space/internal/utils/stackref"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		cfg := pulumiconfig.New(ctx, "")
		awsCfg := pulumiconfig.New(ctx, "aws")

		clusterName := cfg.Get("cluster_name")
		if clusterName == "" {
			clusterName = "builder-space"
		}
		region := awsCfg.Get("region")
		if region == "" {
			region = "af-south-1"
		}
		eksStack := cfg.Get("eks_stack")
		if eksStack == "" {
			eksStack = "organization/builder-space-eks/eks"
		}

		ref, err := pulumi.NewStackReference(ctx, eksStack, nil)
		if err != nil {
			return err
		}

		res, err := efs.NewResources(ctx, efs.Args{
			ClusterName: clusterName,
			VpcID:       stackref.String(ref, "vpc_id"),
			SubnetIDs:   stackref.StringArray(ref, "subnet_ids"),
			Tags: map[string]string{
				"Project":     "builder-space-eks",
				"Environment": "production",
				"ManagedBy":   "pulumi",
				"Purpose":     "efs-storage",
			},
		})
		if err != nil {
			return err
		}

		ctx.Export("efs_id", res.FileSystem.ID())
		ctx.Export("efs_dns", res.DNSName(region))
		ctx.Export("security_group_id", res.SecurityGroup.ID())
		return nil
	})
}
