// Package database declares the Aurora PostgreSQL Serverless v2 cluster the
// platform workloads use, reachable only from inside the VPC.
package database

import (
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/rds"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// Args configures the database cluster.
type Args struct {
	VpcID     pulumi.StringInput
	SubnetIDs pulumi.StringArrayInput

	// ClusterIdentifier defaults to builder-space-postgres.
	ClusterIdentifier string
	MasterPassword    pulumi.StringInput

	// AvailabilityZones pins the cluster AZs; empty lets RDS choose.
	AvailabilityZones []string
	SubnetGroupName   string
}

// Resources holds the provisioned database layer.
type Resources struct {
	SecurityGroup *ec2.SecurityGroup
	SubnetGroup   *rds.SubnetGroup
	Cluster       *rds.Cluster
	Instance      *rds.ClusterInstance
}

// Create declares the security group, subnet group, cluster, and the single
// serverless writer instance.
func Create(ctx *pulumi.Context, args Args) (*Resources, error) {
	if args.ClusterIdentifier == "" {
		args.ClusterIdentifier = "builder-space-postgres"
	}
	if args.SubnetGroupName == "" {
		args.SubnetGroupName = "aurora-subnet-group"
	}

	sg, err := ec2.NewSecurityGroup(ctx, "db-sg", &ec2.SecurityGroupArgs{
		VpcId:       args.VpcID,
		Description: pulumi.String("Aurora PostgreSQL security group"),
		Ingress: ec2.SecurityGroupIngressArray{
			&ec2.SecurityGroupIngressArgs{
				Protocol: pulumi.String("tcp"),
				FromPort: pulumi.Int(5432),
				ToPort:   pulumi.Int(5432),
				// VPC CIDR only; the database is never internet-reachable.
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
	})
	if err != nil {
		return nil, err
	}

	subnetGroup, err := rds.NewSubnetGroup(ctx, args.SubnetGroupName, &rds.SubnetGroupArgs{
		SubnetIds: args.SubnetIDs,
		Tags:      pulumi.StringMap{"Name": pulumi.String(args.SubnetGroupName)},
	})
	if err != nil {
		return nil, err
	}

	clusterArgs := &rds.ClusterArgs{
		ClusterIdentifier:   pulumi.String(args.ClusterIdentifier),
		Engine:              pulumi.String("aurora-postgresql"),
		EngineMode:          pulumi.String("provisioned"),
		EngineVersion:       pulumi.String("16.4"),
		DatabaseName:        pulumi.String("builderspace"),
		MasterUsername:      pulumi.String("postgres"),
		MasterPassword:      args.MasterPassword,
		DbSubnetGroupName:   subnetGroup.Name,
		VpcSecurityGroupIds: pulumi.StringArray{sg.ID()},
		SkipFinalSnapshot:   pulumi.Bool(true),
		Serverlessv2ScalingConfiguration: &rds.ClusterServerlessv2ScalingConfigurationArgs{
			MaxCapacity: pulumi.Float64(2.0),
			MinCapacity: pulumi.Float64(0.5),
		},
		IamDatabaseAuthenticationEnabled: pulumi.Bool(true),
		StorageEncrypted:                 pulumi.Bool(true),
		BackupRetentionPeriod:            pulumi.Int(7),
		PreferredBackupWindow:            pulumi.String("03:00-04:00"),
		PreferredMaintenanceWindow:       pulumi.String("mon:04:00-mon:05:00"),
	}
	if len(args.AvailabilityZones) > 0 {
		clusterArgs.AvailabilityZones = pulumi.ToStringArray(args.AvailabilityZones)
	}

	cluster, err := rds.NewCluster(ctx, "aurora-postgres", clusterArgs)
	if err != nil {
		return nil, err
	}

	instance, err := rds.NewClusterInstance(ctx, "aurora-instance", &rds.ClusterInstanceArgs{
		ClusterIdentifier: cluster.ID(),
		InstanceClass:     pulumi.String("db.serverless"),
		Engine:            cluster.Engine,
		EngineVersion:     cluster.EngineVersion,
	})
	if err != nil {
		return nil, err
	}

	return &Resources{
		SecurityGroup: sg,
		SubnetGroup:   subnetGroup,
		Cluster:       cluster,
		Instance:      instance,
	}, nil
}
