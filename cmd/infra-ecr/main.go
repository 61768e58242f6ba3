// Container registry: ECR pull-through caches, a KMS-encrypted repository
// for custom images, and the CI push policy.
package main

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	pulumiconfig "github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/aiqs4/builder-space/internal/ecr"
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

		current, err := aws.GetCallerIdentity(ctx, nil)
		if err != nil {
			return err
		}

		args := ecr.Args{
			ClusterName:       clusterName,
			AccountID:         current.AccountId,
			Region:            region,
			DockerhubUsername: cfg.Get("dockerhub_username"),
			Tags: map[string]string{
				"Project":     "builder-space-eks",
				"Environment": "production",
				"ManagedBy":   "pulumi",
				"Purpose":     "container-registry",
			},
		}
		if password, err := cfg.TrySecret("dockerhub_password"); err == nil {
			args.DockerhubPassword = password
		}

		res, err := ecr.NewResources(ctx, args)
		if err != nil {
			return err
		}

		registry := ecr.RegistryURL(current.AccountId, region)
		ctx.Export("ecr_registry_url", pulumi.String(registry))
		ctx.Export("ecr_registry_id", pulumi.String(current.AccountId))

		cacheStatus := "Docker Hub cache disabled, set dockerhub_username and dockerhub_password to enable"
		if res.DockerhubCache != nil {
			cacheStatus = "Docker Hub and K8s registry caches enabled"
		}
		ctx.Export("pull_through_cache_rules", pulumi.Map{
			"k8s":        pulumi.Sprintf("%s/k8s", registry),
			"docker_hub": pulumi.Sprintf("%s/docker-hub", registry),
			"status":     pulumi.String(cacheStatus),
		})

		ctx.Export("custom_repositories", pulumi.Map{
			"custom_apps": res.Repository.RepositoryUrl,
		})
		ctx.Export("docker_login_command", pulumi.String(fmt.Sprintf(
			"aws ecr get-login-password --region %s | docker login --username AWS --password-stdin %s", region, registry)))
		ctx.Export("usage_examples", pulumi.Map{
			"pull_k8s_image":    pulumi.Sprintf("docker pull %s/k8s/coredns/coredns:latest", registry),
			"push_custom_image": pulumi.Sprintf("docker push %s/%s/custom-apps:v1.0.0", registry, clusterName),
		})
		ctx.Export("iam_policy_arn_for_cicd", res.PushPolicy.Arn)
		return nil
	})
}
