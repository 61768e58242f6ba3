package main

import (
	"errors"
	"strings"
	"testing"
)

func TestImportCommandsPlaceholders(t *testing.T) {
	t.Parallel()
	lines := importCommands("builder-space", "af-south-1", resolved{})
	joined := strings.Join(lines, "\n")

	for _, want := range []string{
		"pulumi import aws:ec2/vpc:Vpc builder-space-vpc vpc-XXXXXXXX",
		"pulumi import aws:eks/cluster:Cluster builder-space-cluster builder-space",
		"pulumi import aws:eks/nodeGroup:NodeGroup builder-space-node-group builder-space:builder-space-nodes",
		"pulumi import aws:s3/bucket:Bucket builder-space-pulumi-state-bucket builder-space-pulumi-state-af-south-1",
		"pulumi import aws:dynamodb/table:Table builder-space-pulumi-state-lock-table builder-space-pulumi-state-lock",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing line %q in output:\n%s", want, joined)
		}
	}
	if strings.Contains(joined, "# bucket found") || strings.Contains(joined, "# table found") {
		t.Fatalf("unresolved run should not mark resources found:\n%s", joined)
	}
}

func TestImportCommandsResolved(t *testing.T) {
	t.Parallel()
	lines := importCommands("builder-space", "af-south-1", resolved{
		VpcID:      "vpc-0abc",
		ClusterARN: "arn:aws:eks:af-south-1:123456789012:cluster/builder-space",
		BucketNote: "# bucket found",
		TableNote:  "# table found",
	})
	joined := strings.Join(lines, "\n")

	if !strings.Contains(joined, "pulumi import aws:ec2/vpc:Vpc builder-space-vpc vpc-0abc") {
		t.Fatalf("vpc id not substituted:\n%s", joined)
	}
	if !strings.Contains(joined, "arn:aws:eks:af-south-1:123456789012:cluster/builder-space") {
		t.Fatalf("cluster arn not substituted:\n%s", joined)
	}
	if !strings.Contains(joined, "# bucket found") || !strings.Contains(joined, "# table found") {
		t.Fatalf("existing state storage not marked:\n%s", joined)
	}
}

func TestProbeNoteOutcomes(t *testing.T) {
	t.Parallel()
	if got := probeNote("bucket", true, nil); got != "# bucket found" {
		t.Fatalf("found note = %q", got)
	}
	if got := probeNote("table", false, nil); got != "# table not found" {
		t.Fatalf("not-found note = %q", got)
	}
	got := probeNote("bucket", false, errors.New("access denied"))
	if got != "# bucket probe failed: access denied" {
		t.Fatalf("failure note = %q", got)
	}
}

func TestImportCommandsProbeFailureAnnotated(t *testing.T) {
	t.Parallel()
	lines := importCommands("builder-space", "af-south-1", resolved{
		BucketNote: "# bucket probe failed: access denied",
		TableNote:  "# table not found",
	})
	joined := strings.Join(lines, "\n")

	if !strings.Contains(joined, "builder-space-pulumi-state-af-south-1  # bucket probe failed: access denied") {
		t.Fatalf("bucket probe failure not annotated:\n%s", joined)
	}
	if !strings.Contains(joined, "builder-space-pulumi-state-lock  # table not found") {
		t.Fatalf("table not-found outcome not annotated:\n%s", joined)
	}
	if strings.Contains(joined, "# bucket found") {
		t.Fatalf("failed probe must not be reported as found:\n%s", joined)
	}
}

func TestLookupCommands(t *testing.T) {
	t.Parallel()
	lines := lookupCommands("builder-space")
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "aws ec2 describe-vpcs --filters Name=tag:Name,Values=builder-space-vpc") {
		t.Fatalf("missing vpc lookup:\n%s", joined)
	}
	if !strings.Contains(joined, "aws eks describe-cluster --name builder-space") {
		t.Fatalf("missing cluster lookup:\n%s", joined)
	}
}
