// State storage bootstrap: provisions the S3 bucket and DynamoDB lock table
// backing the Pulumi S3 backend for every other stack in this repository.
package main

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	pulumiconfig "github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/aiqs4/builder-space/internal/awsapi"
	"github.com/aiqs4/builder-space/internal/statestorage"
	"github.com/aiqs4/builder-space/internal/utils/logging"
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

		tags := map[string]string{
			"Project":     "builder-space-eks",
			"Environment": "development",
			"CostCenter":  "development",
			"ManagedBy":   "pulumi",
			"Purpose":     "state-storage-bootstrap",
		}

		args := statestorage.Args{
			ClusterName: clusterName,
			Region:      region,
			Tags:        tags,
			Logger:      logging.NopLogger{},
		}

		// Dry runs never call AWS, so the existence probe only wires up for
		// real deployments.
		if !ctx.DryRun() {
			awsCfgV2, err := awsapi.LoadDefault(ctx.Context(), region)
			if err != nil {
				return err
			}
			args.Prober = statestorage.NewSDKProber(awsCfgV2, args.Logger)
		}

		storage, err := statestorage.NewResources(ctx, args)
		if err != nil {
			return err
		}

		ctx.Export("backend_config", pulumi.ToStringMap(storage.BackendConfig(region)))
		ctx.Export("bucket_name", storage.Bucket.ID())
		ctx.Export("dynamodb_table_name", storage.Table.Name)
		ctx.Export("backend_configuration_commands", pulumi.ToStringArray(storage.ConfigurationCommands(region)))
		ctx.Export("validation_commands", pulumi.ToStringArray(storage.ValidationCommands()))
		ctx.Export("next_steps", pulumi.ToStringArray([]string{
			"1. Record the bucket and table names above",
			"2. Update GitHub secrets with these values if needed",
			"3. Configure main Pulumi project to use S3 backend",
			"4. Deploy main infrastructure with: pulumi up",
		}))
		return nil
	})
}
