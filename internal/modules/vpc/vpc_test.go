package vpc

import (
	"strings"
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
	if strings.Contains(args.Token, "getAvailabilityZones") {
		return resource.PropertyMap{
			"names": resource.NewArrayProperty([]resource.PropertyValue{
				resource.NewStringProperty("af-south-1a"),
				resource.NewStringProperty("af-south-1b"),
				resource.NewStringProperty("af-south-1c"),
			}),
		}, nil
	}
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

func runStack(t *testing.T, args Args) *testMocks {
	t.Helper()
	mocks := &testMocks{}
	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		_, err := NewResources(ctx, args)
		return err
	}, pulumi.WithMocks("builder-space", "dev", mocks))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return mocks
}

func defaultArgs() Args {
	return Args{
		ClusterName:         "builder-space",
		VpcCidr:             "10.0.0.0/16",
		PublicSubnetCidrs:   []string{"10.0.1.0/24", "10.0.2.0/24"},
		EnableDnsHostnames:  true,
		EnableDnsSupport:    true,
		MapPublicIPOnLaunch: true,
		Tags:                map[string]string{"Project": "builder-space-eks"},
	}
}

func TestVpcShape(t *testing.T) {
	t.Parallel()
	mocks := runStack(t, defaultArgs())

	vpcs := mocks.byType("aws:ec2/vpc:Vpc")
	if len(vpcs) != 1 {
		t.Fatalf("expected one VPC, got %d", len(vpcs))
	}
	v := vpcs[0]
	if got := v.Inputs["cidrBlock"].StringValue(); got != "10.0.0.0/16" {
		t.Fatalf("vpc cidr = %q", got)
	}
	if !v.Inputs["enableDnsHostnames"].BoolValue() || !v.Inputs["enableDnsSupport"].BoolValue() {
		t.Fatalf("DNS settings not enabled")
	}
	tags := v.Inputs["tags"].ObjectValue()
	if got := tags["kubernetes.io/cluster/builder-space"].StringValue(); got != "shared" {
		t.Fatalf("cluster tag = %q", got)
	}
	if got := tags["Project"].StringValue(); got != "builder-space-eks" {
		t.Fatalf("common tag not merged, Project = %q", got)
	}

	if igws := mocks.byType("aws:ec2/internetGateway:InternetGateway"); len(igws) != 1 {
		t.Fatalf("expected one IGW, got %d", len(igws))
	}
}

func TestSubnetFanOut(t *testing.T) {
	t.Parallel()
	mocks := runStack(t, defaultArgs())

	subnets := mocks.byType("aws:ec2/subnet:Subnet")
	if len(subnets) != 2 {
		t.Fatalf("expected two subnets, got %d", len(subnets))
	}
	wantAZs := []string{"af-south-1a", "af-south-1b"}
	wantCidrs := []string{"10.0.1.0/24", "10.0.2.0/24"}
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
		if got := tags["Type"].StringValue(); got != "public" {
			t.Fatalf("subnet %d type tag = %q", i, got)
		}
	}

	if rtas := mocks.byType("aws:ec2/routeTableAssociation:RouteTableAssociation"); len(rtas) != 2 {
		t.Fatalf("expected two route table associations, got %d", len(rtas))
	}
	routes := mocks.byType("aws:ec2/route:Route")
	if len(routes) != 1 {
		t.Fatalf("expected one default route, got %d", len(routes))
	}
	if got := routes[0].Inputs["destinationCidrBlock"].StringValue(); got != "0.0.0.0/0" {
		t.Fatalf("default route destination = %q", got)
	}
}

func TestSubnetCountExceedsAZs(t *testing.T) {
	t.Parallel()
	args := defaultArgs()
	args.PublicSubnetCidrs = []string{"10.0.1.0/24", "10.0.2.0/24", "10.0.3.0/24", "10.0.4.0/24"}
	mocks := &testMocks{}
	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		_, err := NewResources(ctx, args)
		return err
	}, pulumi.WithMocks("builder-space", "dev", mocks))
	if err == nil {
		t.Fatalf("expected error when subnets outnumber availability zones")
	}
}

func TestSecurityGroupRules(t *testing.T) {
	t.Parallel()
	mocks := runStack(t, defaultArgs())

	sgs := mocks.byType("aws:ec2/securityGroup:SecurityGroup")
	if len(sgs) != 2 {
		t.Fatalf("expected cluster and node security groups, got %d", len(sgs))
	}

	rules := mocks.byType("aws:ec2/securityGroupRule:SecurityGroupRule")
	if len(rules) != 5 {
		t.Fatalf("expected five security group rules, got %d", len(rules))
	}

	byName := map[string]capturedResource{}
	for _, r := range rules {
		byName[r.Name] = r
	}

	apiRule, ok := byName["builder-space-cluster-ingress-node"]
	if !ok {
		t.Fatalf("cluster ingress rule missing")
	}
	if got := apiRule.Inputs["fromPort"].NumberValue(); got != 443 {
		t.Fatalf("cluster ingress from port = %v", got)
	}
	if got := apiRule.Inputs["toPort"].NumberValue(); got != 443 {
		t.Fatalf("cluster ingress to port = %v", got)
	}

	kubeletRule, ok := byName["builder-space-node-ingress-cluster"]
	if !ok {
		t.Fatalf("node ingress rule missing")
	}
	if got := kubeletRule.Inputs["fromPort"].NumberValue(); got != 1025 {
		t.Fatalf("node ingress from port = %v", got)
	}

	selfRule, ok := byName["builder-space-node-ingress-self"]
	if !ok {
		t.Fatalf("node self rule missing")
	}
	if !selfRule.Inputs["self"].BoolValue() {
		t.Fatalf("node self rule should be self-referencing")
	}
}
