package efs

import (
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

type capturedResource struct {
	Type   string
	Name   string
	Inputs resource.PropertyMap
}

type testMocks struct {
	resources []capturedResource
}

func (m *testMocks) NewResource(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error) {
	m.resources = append(m.resources, capturedResource{Type: args.TypeToken, Name: args.Name, Inputs: args.Inputs})
	return args.Name + "_id", args.Inputs, nil
}

func (m *testMocks) Call(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
	return resource.PropertyMap{}, nil
}

func (m *testMocks) byType(typ string) []capturedResource {
	var out []capturedResource
	for _, r := range m.resources {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

func runStack(t *testing.T) *testMocks {
	t.Helper()
	mocks := &testMocks{}
	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		_, err := NewResources(ctx, Args{
			VpcID:     pulumi.String("vpc-123"),
			SubnetIDs: pulumi.ToStringArray([]string{"subnet-1", "subnet-2", "subnet-3"}).ToStringArrayOutput(),
			Tags:      map[string]string{"Purpose": "efs-storage"},
		})
		return err
	}, pulumi.WithMocks("infra-efs", "efs", mocks))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return mocks
}

func TestFileSystemShape(t *testing.T) {
	t.Parallel()
	mocks := runStack(t)

	systems := mocks.byType("aws:efs/fileSystem:FileSystem")
	if len(systems) != 1 {
		t.Fatalf("expected one file system, got %d", len(systems))
	}
	fs := systems[0]
	if !fs.Inputs["encrypted"].BoolValue() {
		t.Fatalf("file system should be encrypted")
	}
	if got := fs.Inputs["performanceMode"].StringValue(); got != "generalPurpose" {
		t.Fatalf("performance mode = %q", got)
	}
	if got := fs.Inputs["throughputMode"].StringValue(); got != "bursting" {
		t.Fatalf("throughput mode = %q", got)
	}
	policy := fs.Inputs["lifecyclePolicies"].ArrayValue()[0].ObjectValue()
	if got := policy["transitionToIa"].StringValue(); got != "AFTER_30_DAYS" {
		t.Fatalf("IA transition = %q", got)
	}
	tags := fs.Inputs["tags"].ObjectValue()
	if got := tags["Name"].StringValue(); got != "builder-space-efs" {
		t.Fatalf("Name tag = %q", got)
	}

	aliases := mocks.byType("aws:kms/alias:Alias")
	if len(aliases) != 1 || aliases[0].Inputs["name"].StringValue() != "alias/builder-space-efs" {
		t.Fatalf("kms alias wrong: %+v", aliases)
	}
}

func TestNFSSecurityGroup(t *testing.T) {
	t.Parallel()
	mocks := runStack(t)

	sgs := mocks.byType("aws:ec2/securityGroup:SecurityGroup")
	if len(sgs) != 1 {
		t.Fatalf("expected one security group, got %d", len(sgs))
	}
	ingress := sgs[0].Inputs["ingress"].ArrayValue()[0].ObjectValue()
	if got := ingress["fromPort"].NumberValue(); got != 2049 {
		t.Fatalf("ingress port = %v", got)
	}
	if got := ingress["cidrBlocks"].ArrayValue()[0].StringValue(); got != "10.0.0.0/16" {
		t.Fatalf("ingress cidr = %q", got)
	}
}

func TestMountTargetsUseFirstTwoSubnets(t *testing.T) {
	t.Parallel()
	mocks := runStack(t)

	targets := mocks.byType("aws:efs/mountTarget:MountTarget")
	if len(targets) != 2 {
		t.Fatalf("expected two mount targets, got %d", len(targets))
	}
	want := []string{"subnet-1", "subnet-2"}
	for i, target := range targets {
		if got := target.Inputs["subnetId"].StringValue(); got != want[i] {
			t.Fatalf("mount target %d subnet = %q, want %q", i, got, want[i])
		}
	}
}
