// Current-generation EKS deployment: declarative network, cluster with
// API-mode access, pinned managed add-ons, and optional Karpenter,
// External DNS, and Aurora modules.
package main

import (
	"fmt"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	pulumiconfig "github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/aiqs4/builder-space/internal/addons"
	"github.com/aiqs4/builder-space/internal/cluster"
	"github.com/aiqs4/builder-space/internal/database"
	"github.com/aiqs4/builder-space/internal/externaldns"
	"github.com/aiqs4/builder-space/internal/karpenter"
	"github.com/aiqs4/builder-space/internal/kubeconfig"
	"github.com/aiqs4/builder-space/internal/network"
)

var platformDomains = []string{
	"amano.services",
	"tekanya.services",
	"lightsphere.space",
	"sosolola.cloud",
}

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		cfg := pulumiconfig.New(ctx, "")
		awsCfg := pulumiconfig.New(ctx, "aws")

		region := awsCfg.Get("region")
		if region == "" {
			region = "af-south-1"
		}

		net, err := network.Create(ctx)
		if err != nil {
			return err
		}

		nodeCount, err := cfg.TryInt("node_count")
		if err != nil {
			nodeCount = 3
		}
		eks, err := cluster.Create(ctx, cluster.Args{
			ClusterName:   cfg.Get("cluster_name"),
			SubnetIDs:     net.SubnetIDs(),
			NodeCount:     nodeCount,
			InstanceType:  cfg.Get("instance_type"),
			GithubRoleArn: cfg.Get("github_role_arn"),
		})
		if err != nil {
			return err
		}

		_, err = addons.Create(ctx, addons.Args{
			ClusterName: eks.Cluster.Name,
			NodeGroup:   eks.NodeGroup,
		})
		if err != nil {
			return err
		}

		k8sProvider, err := kubeconfig.NewProvider(ctx, "k8s", eks.Cluster.Name,
			eks.Cluster.Endpoint, eks.Cluster.CertificateAuthority.Data().Elem(),
			pulumi.String(region), pulumi.DependsOn([]pulumi.Resource{eks.Cluster}))
		if err != nil {
			return err
		}

		if enabled, _ := cfg.TryBool("enable_karpenter"); enabled {
			kp, err := karpenter.Install(ctx, karpenter.Args{
				ClusterName:  eks.ClusterName,
				Cluster:      eks.Cluster,
				NodeRoleArn:  eks.NodeRole.Arn,
				NodeRoleName: eks.NodeRole.Name,
				Provider:     k8sProvider,
			})
			if err != nil {
				return err
			}
			ctx.Export("karpenter_role_arn", kp.ControllerRole.Arn)
			ctx.Export("karpenter_status", pulumi.String("installed"))
		} else {
			ctx.Export("karpenter_status", pulumi.String("disabled"))
		}

		if enabled, _ := cfg.TryBool("enable_external_dns"); enabled {
			dns, err := externaldns.Install(ctx, externaldns.Args{
				Cluster:  eks.Cluster,
				Domains:  platformDomains,
				Provider: k8sProvider,
			})
			if err != nil {
				return err
			}
			ctx.Export("external_dns_role_arn", dns.Role.Arn)
			ctx.Export("external_dns_status", pulumi.String("installed"))
		} else {
			ctx.Export("external_dns_status", pulumi.String("disabled"))
		}

		if enabled, _ := cfg.TryBool("enable_database"); enabled {
			db, err := database.Create(ctx, database.Args{
				VpcID:          net.Vpc.ID(),
				SubnetIDs:      net.SubnetIDs(),
				MasterPassword: cfg.RequireSecret("db_password"),
			})
			if err != nil {
				return err
			}
			ctx.Export("database_endpoint", db.Cluster.Endpoint)
			ctx.Export("database_name", db.Cluster.DatabaseName)
			ctx.Export("database_status", pulumi.String("provisioned"))
		} else {
			ctx.Export("database_status", pulumi.String("disabled"))
		}

		ctx.Export("cluster_name", eks.Cluster.Name)
		ctx.Export("cluster_endpoint", eks.Cluster.Endpoint)
		ctx.Export("cluster_certificate_authority_data", eks.Cluster.CertificateAuthority.Data())
		ctx.Export("cluster_oidc_issuer", eks.Cluster.Identities.Index(pulumi.Int(0)).Oidcs().Index(pulumi.Int(0)).Issuer())
		ctx.Export("vpc_id", net.Vpc.ID())
		ctx.Export("subnet_ids", net.SubnetIDs())
		ctx.Export("node_role_arn", eks.NodeRole.Arn)
		ctx.Export("kubeconfig_command", pulumi.String(
			fmt.Sprintf("aws eks --region %s update-kubeconfig --name %s", region, eks.ClusterName)))
		return nil
	})
}
