// Migration helper: prints the pulumi import commands needed to adopt a
// legacy deployment's AWS resources into this repository's stacks. With
// -resolve it queries AWS and substitutes live ids for the placeholders.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aiqs4/builder-space/internal/awsapi"
	"github.com/aiqs4/builder-space/internal/utils/logging"
)

// resolved carries the live ids found in AWS. Zero-value ids keep the
// placeholder text in the generated commands; the notes annotate the state
// storage lines with the probe outcome (found, not found, or the probe
// error) so a failed probe is not mistaken for a missing resource.
type resolved struct {
	VpcID      string
	ClusterARN string
	BucketNote string
	TableNote  string
}

func main() {
	clusterName := flag.String("cluster", "builder-space", "cluster name the legacy resources were created under")
	region := flag.String("region", "af-south-1", "AWS region of the legacy deployment")
	resolve := flag.Bool("resolve", false, "query AWS and substitute live resource ids")
	flag.Parse()

	logger := stderrLogger{}

	var ids resolved
	if *resolve {
		ids = resolveIDs(context.Background(), *clusterName, *region, logger)
	}

	for _, line := range importCommands(*clusterName, *region, ids) {
		fmt.Println(line)
	}
	fmt.Println()
	for _, line := range lookupCommands(*clusterName) {
		fmt.Println(line)
	}
}

func resolveIDs(ctx context.Context, clusterName, region string, logger logging.Logger) resolved {
	cfg, err := awsapi.LoadDefault(ctx, region)
	if err != nil {
		logger.Warn("could not load AWS configuration, keeping placeholders", logging.Fields{"error": err.Error()})
		return resolved{}
	}

	var ids resolved
	ids.VpcID, err = awsapi.VpcIDByName(ctx, ec2.NewFromConfig(cfg), clusterName+"-vpc")
	if err != nil {
		logger.Warn("vpc lookup failed", logging.Fields{"name": clusterName + "-vpc", "error": err.Error()})
	}
	ids.ClusterARN, err = awsapi.ClusterARN(ctx, eks.NewFromConfig(cfg), clusterName)
	if err != nil {
		logger.Warn("cluster lookup failed", logging.Fields{"cluster": clusterName, "error": err.Error()})
	}
	bucketExists, err := awsapi.BucketExists(ctx, s3.NewFromConfig(cfg), stateBucketName(clusterName, region), logger)
	ids.BucketNote = probeNote("bucket", bucketExists, err)
	if err != nil {
		logger.Warn("bucket probe failed", logging.Fields{"error": err.Error()})
	}
	tableExists, err := awsapi.TableExists(ctx, dynamodb.NewFromConfig(cfg), lockTableName(clusterName), logger)
	ids.TableNote = probeNote("table", tableExists, err)
	if err != nil {
		logger.Warn("table probe failed", logging.Fields{"error": err.Error()})
	}
	return ids
}

func probeNote(kind string, exists bool, err error) string {
	switch {
	case err != nil:
		return fmt.Sprintf("# %s probe failed: %v", kind, err)
	case exists:
		return fmt.Sprintf("# %s found", kind)
	default:
		return fmt.Sprintf("# %s not found", kind)
	}
}

func stateBucketName(clusterName, region string) string {
	return fmt.Sprintf("%s-pulumi-state-%s", clusterName, region)
}

func lockTableName(clusterName string) string {
	return clusterName + "-pulumi-state-lock"
}

// importCommands returns the grouped pulumi import commands for a legacy
// deployment. Placeholder ids stay in place unless ids carries a live value.
func importCommands(clusterName, region string, ids resolved) []string {
	vpcID := ids.VpcID
	if vpcID == "" {
		vpcID = "vpc-XXXXXXXX"
	}
	clusterID := clusterName
	if ids.ClusterARN != "" {
		clusterID = ids.ClusterARN
	}

	lines := []string{
		"# Import existing AWS resources (run these commands in order):",
		"",
		"# VPC resources:",
		fmt.Sprintf("pulumi import aws:ec2/vpc:Vpc %s-vpc %s", clusterName, vpcID),
		fmt.Sprintf("pulumi import aws:ec2/internetGateway:InternetGateway %s-igw igw-XXXXXXXX", clusterName),
		fmt.Sprintf("pulumi import aws:ec2/subnet:Subnet %s-public-subnet-1 subnet-XXXXXXXX", clusterName),
		fmt.Sprintf("pulumi import aws:ec2/subnet:Subnet %s-public-subnet-2 subnet-XXXXXXXX", clusterName),
		fmt.Sprintf("pulumi import aws:ec2/routeTable:RouteTable %s-public-rt rtb-XXXXXXXX", clusterName),
		fmt.Sprintf("pulumi import aws:ec2/securityGroup:SecurityGroup %s-cluster-sg sg-XXXXXXXX", clusterName),
		fmt.Sprintf("pulumi import aws:ec2/securityGroup:SecurityGroup %s-node-sg sg-XXXXXXXX", clusterName),
		"",
		"# IAM resources:",
		fmt.Sprintf("pulumi import aws:iam/role:Role %s-cluster-role %s-cluster-role", clusterName, clusterName),
		fmt.Sprintf("pulumi import aws:iam/role:Role %s-ng-role %s-ng-role", clusterName, clusterName),
		"",
		"# EKS resources:",
		fmt.Sprintf("pulumi import aws:eks/cluster:Cluster %s-cluster %s", clusterName, clusterID),
		fmt.Sprintf("pulumi import aws:eks/nodeGroup:NodeGroup %s-node-group %s:%s-nodes", clusterName, clusterName, clusterName),
		"",
		"# State storage resources (if using):",
	}
	bucketLine := fmt.Sprintf("pulumi import aws:s3/bucket:Bucket %s-pulumi-state-bucket %s", clusterName, stateBucketName(clusterName, region))
	if ids.BucketNote != "" {
		bucketLine += "  " + ids.BucketNote
	}
	tableLine := fmt.Sprintf("pulumi import aws:dynamodb/table:Table %s-pulumi-state-lock-table %s", clusterName, lockTableName(clusterName))
	if ids.TableNote != "" {
		tableLine += "  " + ids.TableNote
	}
	lines = append(lines, bucketLine, tableLine,
		"",
		"# Instructions:",
		"# 1. Replace XXXXXXXX with actual AWS resource ids",
		"# 2. Run import commands one by one",
		"# 3. Verify with: pulumi preview (should show no changes)",
	)
	return lines
}

// lookupCommands returns the AWS CLI queries that find the real ids.
func lookupCommands(clusterName string) []string {
	return []string{
		"# To find the real resource ids:",
		fmt.Sprintf("aws ec2 describe-vpcs --filters Name=tag:Name,Values=%s-vpc --query 'Vpcs[0].VpcId'", clusterName),
		fmt.Sprintf("aws eks describe-cluster --name %s --query 'cluster.arn'", clusterName),
	}
}

type stderrLogger struct{}

func (stderrLogger) Debug(msg string, ctx logging.Fields) { emit("debug", msg, ctx) }
func (stderrLogger) Info(msg string, ctx logging.Fields)  { emit("info", msg, ctx) }
func (stderrLogger) Warn(msg string, ctx logging.Fields)  { emit("warn", msg, ctx) }

func emit(level, msg string, ctx logging.Fields) {
	entry := map[string]any{"level": level, "msg": msg}
	for k, v := range ctx {
		entry[k] = v
	}
	b, _ := json.Marshal(entry)
	fmt.Fprintln(os.Stderr, string(b))
}
