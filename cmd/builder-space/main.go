// Legacy all-in-one EKS deployment: VPC, IAM, cluster, node group, managed
// add-ons, and in-cluster workloads in a single stack. Superseded by
// cmd/builder-space-eks but kept deployable.
package main

import (
	"fmt"
	"strings"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/aiqs4/builder-space/internal/config"
	"github.com/aiqs4/builder-space/internal/modules/addons"
	"github.com/aiqs4/builder-space/internal/modules/eks"
	"github.com/aiqs4/builder-space/internal/modules/iam"
	"github.com/aiqs4/builder-space/internal/modules/vpc"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		cfg := config.Load(ctx)

		current, err := aws.GetCallerIdentity(ctx, nil)
		if err != nil {
			return err
		}
		region, err := aws.GetRegion(ctx, nil)
		if err != nil {
			return err
		}

		network, err := vpc.NewResources(ctx, vpc.Args{
			ClusterName:         cfg.ClusterName,
			VpcCidr:             cfg.VpcCidr,
			PublicSubnetCidrs:   cfg.PublicSubnetCidrs,
			EnableDnsHostnames:  cfg.EnableDnsHostnames,
			EnableDnsSupport:    cfg.EnableDnsSupport,
			MapPublicIPOnLaunch: cfg.MapPublicIPOnLaunch,
			Tags:                cfg.CommonTags(),
		})
		if err != nil {
			return err
		}

		roles, err := iam.NewResources(ctx, iam.Args{
			ClusterName:             cfg.ClusterName,
			UseExistingClusterRole:  cfg.UseExistingClusterRole,
			ExistingClusterRoleName: cfg.ExistingClusterRoleName,
			UseExistingNodeRole:     cfg.UseExistingNodeRole,
			ExistingNodeRoleName:    cfg.ExistingNodeRoleName,
			Tags:                    cfg.CommonTags(),
		})
		if err != nil {
			return err
		}

		cluster, err := eks.NewResources(ctx, eks.Args{
			ClusterName:            cfg.ClusterName,
			ClusterVersion:         cfg.ClusterVersion,
			ClusterRoleArn:         roles.ClusterRoleArn,
			NodeRoleArn:            roles.NodeRoleArn,
			SubnetIDs:              network.PublicSubnetIDs(),
			ClusterSGID:            network.ClusterSG.ID(),
			NodeSGID:               network.NodeSG.ID(),
			NodeInstanceTypes:      cfg.OptimizedInstanceTypes(),
			NodeDesiredSize:        cfg.NodeDesiredSize,
			NodeMaxSize:            cfg.NodeMaxSize,
			NodeMinSize:            cfg.NodeMinSize,
			NodeDiskSize:           cfg.NodeDiskSize,
			CapacityType:           cfg.CapacityType(),
			ClusterEnabledLogTypes: cfg.ClusterEnabledLogTypes,
			LogRetentionDays:       cfg.LogRetentionDays,
			UseExistingKmsKey:      cfg.UseExistingKmsKey,
			ExistingKmsKeyArn:      cfg.ExistingKmsKeyArn,
			EnableVpcCniAddon:      cfg.EnableVpcCniAddon,
			EnableCorednsAddon:     cfg.EnableCorednsAddon,
			EnableKubeProxyAddon:   cfg.EnableKubeProxyAddon,
			EndpointPublicAccess:   true,
			Tags:                   cfg.CommonTags(),
		})
		if err != nil {
			return err
		}

		workloads, err := addons.NewResources(ctx, addons.Args{
			ClusterName:          cfg.ClusterName,
			ClusterEndpoint:      cluster.Cluster.Endpoint,
			ClusterCaData:        cluster.Cluster.CertificateAuthority.Data().Elem(),
			Region:               cfg.AWSRegion,
			EnableMetricsServer:  true,
			EnableTestDeployment: true,
		})
		if err != nil {
			return err
		}

		exportOutputs(ctx, cfg, current, region, network, roles, cluster, workloads)
		return nil
	})
}

func exportOutputs(
	ctx *pulumi.Context,
	cfg *config.Config,
	current *aws.GetCallerIdentityResult,
	region *aws.GetRegionResult,
	network *vpc.Resources,
	roles *iam.Resources,
	cluster *eks.Resources,
	workloads *addons.Resources,
) {
	// Individual resource outputs (kept compatible with the Terraform-era
	// consumers of this stack).
	ctx.Export("cluster_id", cluster.Cluster.ID())
	ctx.Export("cluster_arn", cluster.Cluster.Arn)
	ctx.Export("cluster_name", pulumi.String(cfg.ClusterName))
	ctx.Export("cluster_endpoint", cluster.Cluster.Endpoint)
	ctx.Export("cluster_version", cluster.Cluster.Version)
	ctx.Export("cluster_certificate_authority_data", cluster.Cluster.CertificateAuthority.Data())

	ctx.Export("cluster_info", pulumi.Map{
		"cluster_name":     pulumi.String(cfg.ClusterName),
		"cluster_endpoint": cluster.Cluster.Endpoint,
		"cluster_arn":      cluster.Cluster.Arn,
		"cluster_version":  cluster.Cluster.Version,
		"region":           pulumi.String(region.Id),
		"account_id":       pulumi.String(current.AccountId),
	})

	ctx.Export("vpc_info", pulumi.Map{
		"vpc_id":             network.Vpc.ID(),
		"vpc_cidr_block":     network.Vpc.CidrBlock,
		"public_subnet_ids":  network.PublicSubnetIDs(),
		"availability_zones": pulumi.ToStringArray(network.AvailabilityZones),
	})

	ctx.Export("iam_info", pulumi.Map{
		"cluster_role_arn":     roles.ClusterRoleArn,
		"cluster_role_name":    roles.ClusterRoleName,
		"node_group_role_arn":  roles.NodeRoleArn,
		"node_group_role_name": roles.NodeRoleName,
	})

	ctx.Export("vpc_id", network.Vpc.ID())
	ctx.Export("vpc_cidr_block", network.Vpc.CidrBlock)
	ctx.Export("public_subnet_ids", network.PublicSubnetIDs())
	ctx.Export("cluster_security_group_id", network.ClusterSG.ID())
	ctx.Export("node_security_group_id", network.NodeSG.ID())
	ctx.Export("cluster_iam_role_arn", roles.ClusterRoleArn)
	ctx.Export("node_group_iam_role_arn", roles.NodeRoleArn)
	ctx.Export("region", pulumi.String(cfg.AWSRegion))

	kubectlCmd := fmt.Sprintf("aws eks --region %s update-kubeconfig --name %s", cfg.AWSRegion, cfg.ClusterName)
	ctx.Export("kubectl_config_command", pulumi.String(kubectlCmd))

	ctx.Export("next_steps", pulumi.ToStringArray([]string{
		fmt.Sprintf("1. Configure kubectl: %s", kubectlCmd),
		"2. Verify nodes: kubectl get nodes",
		"3. Check system pods: kubectl get pods -n kube-system",
		"4. Test internet connectivity: kubectl logs -n test deployment/test-internet-app",
		"5. Verify metrics server: kubectl top nodes",
		"6. View estimated costs below",
	}))

	ctx.Export("test_commands", pulumi.ToStringArray([]string{
		"# Check cluster status",
		"kubectl cluster-info",
		"",
		"# Check nodes",
		"kubectl get nodes -o wide",
		"",
		"# Check system pods",
		"kubectl get pods -n kube-system",
		"",
		"# Test internet connectivity",
		"kubectl logs -n test deployment/test-internet-app --tail=10",
		"",
		"# Check resource usage",
		"kubectl top nodes",
		"kubectl top pods -A",
	}))

	exportCostEstimate(ctx, cfg)
	exportConfigurationSummary(ctx, cfg, workloads)
}

func exportCostEstimate(ctx *pulumi.Context, cfg *config.Config) {
	nodeCost := "~$28.80"
	totalCost := "~$108-115/month (on-demand instances)"
	savingsInfo := "Potential: Enable spot instances to save ~$20/month"
	if cfg.EnableSpotInstances {
		nodeCost = "~$8.64"
		totalCost = "~$88-95/month (with spot instances)"
		savingsInfo = "Current: Using spot instances"
	}
	capacityKind := "on-demand"
	if cfg.EnableSpotInstances {
		capacityKind = "spot"
	}
	capacityInfo := fmt.Sprintf("(%dx %s %s instances)", cfg.NodeDesiredSize, strings.Join(cfg.OptimizedInstanceTypes(), ", "), capacityKind)

	ctx.Export("estimated_monthly_cost", pulumi.StringMap{
		"eks_cluster_cost":  pulumi.String("$72.00"),
		"node_group_cost":   pulumi.String(fmt.Sprintf("%s %s", nodeCost, capacityInfo)),
		"storage_cost":      pulumi.String(fmt.Sprintf("~$%.2f", float64(cfg.NodeDesiredSize*cfg.NodeDiskSize)*0.10)),
		"total_estimated":   pulumi.String(totalCost),
		"savings_potential": pulumi.String(savingsInfo),
	})
}

func exportConfigurationSummary(ctx *pulumi.Context, cfg *config.Config, workloads *addons.Resources) {
	flag := func(enabled bool, disabledHint string) string {
		if enabled {
			return "enabled"
		}
		return disabledHint
	}
	ctx.Export("configuration_summary", pulumi.Map{
		"cluster_name":        pulumi.String(cfg.ClusterName),
		"cluster_version":     pulumi.String(cfg.ClusterVersion),
		"node_instance_types": pulumi.ToStringArray(cfg.OptimizedInstanceTypes()),
		"capacity_type":       pulumi.String(cfg.CapacityType()),
		"node_count":          pulumi.String(fmt.Sprintf("%d-%d (desired: %d)", cfg.NodeMinSize, cfg.NodeMaxSize, cfg.NodeDesiredSize)),
		"cost_optimizations": pulumi.StringMap{
			"spot_instances":     pulumi.String(flag(cfg.EnableSpotInstances, "disabled (enable for ~70% savings)")),
			"reserved_instances": pulumi.String(flag(cfg.EnableReservedInstances, "disabled")),
			"cluster_autoscaler": pulumi.String(flag(cfg.EnableClusterAutoscaler, "disabled")),
			"scheduled_scaling":  pulumi.String(flag(cfg.EnableScheduledScaling, "disabled")),
		},
		"addons_status": pulumi.StringMap{
			"metrics_server":               pulumi.String(workloads.Status["metrics_server"]),
			"aws_load_balancer_controller": pulumi.String(workloads.Status["aws_load_balancer_controller"]),
			"test_deployment":              pulumi.String(workloads.Status["test_deployment"]),
		},
	})
}
