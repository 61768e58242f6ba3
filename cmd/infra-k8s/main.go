// Argo CD deployment onto the existing EKS cluster, looked up by name.
package main

import (
	"fmt"

	awseks "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/eks"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	pulumiconfig "github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/aiqs4/builder-space/internal/argocd"
	"github.com/aiqs4/builder-space/internal/kubeconfig"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		cfg := pulumiconfig.New(ctx, "")
		awsCfg := pulumiconfig.New(ctx, "aws")

		clusterName := cfg.Get("cluster_name")
		if clusterName == "" {
			clusterName = "builder-space"
		}
		namespace := cfg.Get("argocd_namespace")
		if namespace == "" {
			namespace = "argocd"
		}
		region := awsCfg.Get("region")
		if region == "" {
			region = "af-south-1"
		}

		cluster, err := awseks.LookupCluster(ctx, &awseks.LookupClusterArgs{Name: clusterName})
		if err != nil {
			return fmt.Errorf("looking up cluster %s: %w", clusterName, err)
		}

		provider, err := kubeconfig.NewProvider(ctx, "k8s-provider",
			pulumi.String(clusterName),
			pulumi.String(cluster.Endpoint),
			pulumi.String(cluster.CertificateAuthorities[0].Data),
			pulumi.String(region))
		if err != nil {
			return err
		}

		res, err := argocd.Install(ctx, argocd.Args{
			Namespace: namespace,
			Provider:  provider,
		})
		if err != nil {
			return err
		}

		ctx.Export("cluster_name", pulumi.String(clusterName))
		ctx.Export("argocd_namespace", pulumi.String(namespace))
		ctx.Export("argocd_endpoint", res.Endpoint())
		ctx.Export("argocd_username", pulumi.String("admin"))
		ctx.Export("argocd_password_command", pulumi.String(fmt.Sprintf(
			"kubectl get secret argocd-initial-admin-secret -n %s -o jsonpath='{.data.password}' | base64 -d", namespace)))
		ctx.Export("kubectl_argocd_commands", pulumi.ToStringArray([]string{
			fmt.Sprintf("aws eks --region %s update-kubeconfig --name %s", region, clusterName),
			fmt.Sprintf("kubectl get svc -n %s", namespace),
			fmt.Sprintf("kubectl get secret argocd-initial-admin-secret -n %s -o jsonpath='{.data.password}' | base64 -d", namespace),
			fmt.Sprintf("kubectl port-forward svc/argocd-server -n %s 8080:443", namespace),
		}))
		return nil
	})
}
