package network

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
		_, err := Create(ctx)
		return err
	}, pulumi.WithMocks("builder-space-eks", "eks", mocks))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return mocks
}

func TestVpcShape(t *testing.T) {
	t.Parallel()
	mocks := runStack(t)

	vpcs := mocks.byType("aws:ec2/vpc:Vpc")
	if len(vpcs) != 1 {
		t.Fatalf("expected one VPC, got %d", len(vpcs))
	}
	if got := vpcs[0].Inputs["cidrBlock"].StringValue(); got != "10.0.0.0/16" {
		t.Fatalf("vpc cidr = %q", got)
	}
	if igws := mocks.byType("aws:ec2/internetGateway:InternetGateway"); len(igws) != 1 {
		t.Fatalf("expected one IGW, got %d", len(igws))
	}
}

func TestThreePublicSubnets(t *testing.T) {
	t.Parallel()
	mocks := runStack(t)

	subnets := mocks.byType("aws:ec2/subnet:Subnet")
	if len(subnets) != 3 {
		t.Fatalf("expected three subnets, got %d", len(subnets))
	}
	wantCidrs := []string{"10.0.0.0/22", "10.0.4.0/22", "10.0.8.0/22"}
	wantAZs := []string{"af-south-1a", "af-south-1b", "af-south-1c"}
	for i, s := range subnets {
		if got := s.Inputs["cidrBlock"].StringValue(); got != wantCidrs[i] {
			t.Fatalf("subnet %d cidr = %q, want %q", i, got, wantCidrs[i])
		}
		if got := s.Inputs["availabilityZone"].StringValue(); got != wantAZs[i] {
			t.Fatalf("subnet %d az = %q, want %q", i, got, wantAZs[i])
		}
		if !s.Inputs["mapPublicIpOnLaunch"].BoolValue() {
			t.Fatalf("subnet %d missing public IP mapping", i)
		}
		tags := s.Inputs["tags"].ObjectValue()
		if got := tags["kubernetes.io/role/elb"].StringValue(); got != "1" {
			t.Fatalf("subnet %d elb role tag = %q", i, got)
		}
	}
}

func TestPublicRouting(t *testing.T) {
	t.Parallel()
	mocks := runStack(t)

	rts := mocks.byType("aws:ec2/routeTable:RouteTable")
	if len(rts) != 1 {
		t.Fatalf("expected one route table, got %d", len(rts))
	}
	routes := rts[0].Inputs["routes"].ArrayValue()
	if len(routes) != 1 {
		t.Fatalf("expected one route, got %d", len(routes))
	}
	if got := routes[0].ObjectValue()["cidrBlock"].StringValue(); got != "0.0.0.0/0" {
		t.Fatalf("default route destination = %q", got)
	}
	if rtas := mocks.byType("aws:ec2/routeTableAssociation:RouteTableAssociation"); len(rtas) != 3 {
		t.Fatalf("expected three route table associations, got %d", len(rtas))
	}
}
