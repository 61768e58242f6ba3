// Standalone Aurora PostgreSQL stack. Network identifiers come from the
// EKS stack by reference so the database lifecycle stays independent of
// the cluster's.
package main

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	pulumiconfig "github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/aiqs4/builder-space/internal/database"
	"github.com/aiqs4/builder-space/internal/utils/stackref"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		cfg := pulumiconfig.New(ctx, "")

		eksStack := cfg.Get("eks_stack")
		if eksStack == "" {
			eksStack = "organization/builder-space-eks/eks"
		}
		ref, err := pulumi.NewStackReference(ctx, eksStack, nil)
		if err != nil {
			return err
		}

		db, err := database.Create(ctx, database.Args{
			VpcID:             stackref.String(ref, "vpc_id"),
			SubnetIDs:         stackref.StringArray(ref, "subnet_ids"),
			ClusterIdentifier: "lightsphere-postgres",
			MasterPassword:    cfg.RequireSecret("db_password"),
			AvailabilityZones: []string{"af-south-1a", "af-south-1b", "af-south-1c"},
			SubnetGroupName:   "aurora-subnet-group",
		})
		if err != nil {
			return err
		}

		ctx.Export("database_endpoint", db.Cluster.Endpoint)
		ctx.Export("reader_endpoint", db.Cluster.ReaderEndpoint)
		ctx.Export("database_port", db.Cluster.Port)
		ctx.Export("database_name", db.Cluster.DatabaseName)
		ctx.Export("master_username", db.Cluster.MasterUsername)
		ctx.Export("password_note", pulumi.String(
			"master password lives in the db_password stack secret, retrieve it with pulumi config get db_password --show-secrets"))
		return nil
	})
}
