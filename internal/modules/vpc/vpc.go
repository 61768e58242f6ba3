// Package vpc provisions the network layer for the legacy EKS deployment:
// VPC, internet gateway, public subnets, route tables, and the cluster and
// node security groups.
package vpc

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// Args configures the VPC resources.
type Args struct {
	ClusterName         string
	VpcCidr             string
	PublicSubnetCidrs   []string
	EnableDnsHostnames  bool
	EnableDnsSupport    bool
	MapPublicIPOnLaunch bool
	Tags                map[string]string
}

// Resources holds the provisioned network layer.
type Resources struct {
	Vpc               *ec2.Vpc
	InternetGateway   *ec2.InternetGateway
	PublicSubnets     []*ec2.Subnet
	PublicRouteTable  *ec2.RouteTable
	ClusterSG         *ec2.SecurityGroup
	NodeSG            *ec2.SecurityGroup
	AvailabilityZones []string
}

// NewResources builds the network layer for the cluster.
func NewResources(ctx *pulumi.Context, args Args) (*Resources, error) {
	azs, err := aws.GetAvailabilityZones(ctx, &aws.GetAvailabilityZonesArgs{
		State: pulumi.StringRef("available"),
	})
	if err != nil {
		return nil, fmt.Errorf("listing availability zones: %w", err)
	}

	res := &Resources{AvailabilityZones: azs.Names}

	if err := res.createVpc(ctx, args); err != nil {
		return nil, err
	}
	if err := res.createSubnets(ctx, args, azs.Names); err != nil {
		return nil, err
	}
	if err := res.createRouting(ctx, args); err != nil {
		return nil, err
	}
	if err := res.createSecurityGroups(ctx, args); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Resources) createVpc(ctx *pulumi.Context, args Args) error {
	vpc, err := ec2.NewVpc(ctx, fmt.Sprintf("%s-vpc", args.ClusterName), &ec2.VpcArgs{
		CidrBlock:          pulumi.String(args.VpcCidr),
		EnableDnsHostnames: pulumi.Bool(args.EnableDnsHostnames),
		EnableDnsSupport:   pulumi.Bool(args.EnableDnsSupport),
		Tags: tagMap(args.Tags, map[string]string{
			"Name": fmt.Sprintf("%s-vpc", args.ClusterName),
			fmt.Sprintf("kubernetes.io/cluster/%s", args.ClusterName): "shared",
			"Module": "vpc",
		}),
	})
	if err != nil {
		return err
	}
	r.Vpc = vpc

	igw, err := ec2.NewInternetGateway(ctx, fmt.Sprintf("%s-igw", args.ClusterName), &ec2.InternetGatewayArgs{
		VpcId: vpc.ID(),
		Tags: tagMap(args.Tags, map[string]string{
			"Name":   fmt.Sprintf("%s-igw", args.ClusterName),
			"Module": "vpc",
		}),
	})
	if err != nil {
		return err
	}
	r.InternetGateway = igw
	return nil
}

func (r *Resources) createSubnets(ctx *pulumi.Context, args Args, azNames []string) error {
	for i, cidr := range args.PublicSubnetCidrs {
		if i >= len(azNames) {
			return fmt.Errorf("subnet %d has no availability zone (region exposes %d)", i+1, len(azNames))
		}
		subnet, err := ec2.NewSubnet(ctx, fmt.Sprintf("%s-public-subnet-%d", args.ClusterName, i+1), &ec2.SubnetArgs{
			VpcId:               r.Vpc.ID(),
			CidrBlock:           pulumi.String(cidr),
			AvailabilityZone:    pulumi.String(azNames[i]),
			MapPublicIpOnLaunch: pulumi.Bool(args.MapPublicIPOnLaunch),
			Tags: tagMap(args.Tags, map[string]string{
				"Name": fmt.Sprintf("%s-public-subnet-%d", args.ClusterName, i+1),
				"Type": "public",
				fmt.Sprintf("kubernetes.io/cluster/%s", args.ClusterName): "shared",
				"kubernetes.io/role/elb":                                  "1",
				"Module":                                                  "vpc",
			}),
		})
		if err != nil {
			return err
		}
		r.PublicSubnets = append(r.PublicSubnets, subnet)
	}
	return nil
}

func (r *Resources) createRouting(ctx *pulumi.Context, args Args) error {
	rt, err := ec2.NewRouteTable(ctx, fmt.Sprintf("%s-public-rt", args.ClusterName), &ec2.RouteTableArgs{
		VpcId: r.Vpc.ID(),
		Tags: tagMap(args.Tags, map[string]string{
			"Name":   fmt.Sprintf("%s-public-rt", args.ClusterName),
			"Module": "vpc",
		}),
	})
	if err != nil {
		return err
	}
	r.PublicRouteTable = rt

	_, err = ec2.NewRoute(ctx, fmt.Sprintf("%s-public-route", args.ClusterName), &ec2.RouteArgs{
		RouteTableId:         rt.ID(),
		DestinationCidrBlock: pulumi.String("0.0.0.0/0"),
		GatewayId:            r.InternetGateway.ID(),
	})
	if err != nil {
		return err
	}

	for i, subnet := range r.PublicSubnets {
		_, err := ec2.NewRouteTableAssociation(ctx, fmt.Sprintf("%s-public-rta-%d", args.ClusterName, i+1), &ec2.RouteTableAssociationArgs{
			SubnetId:     subnet.ID(),
			RouteTableId: rt.ID(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Resources) createSecurityGroups(ctx *pulumi.Context, args Args) error {
	clusterSG, err := ec2.NewSecurityGroup(ctx, fmt.Sprintf("%s-cluster-sg", args.ClusterName), &ec2.SecurityGroupArgs{
		NamePrefix: pulumi.String(fmt.Sprintf("%s-cluster-", args.ClusterName)),
		VpcId:      r.Vpc.ID(),
		Tags: tagMap(args.Tags, map[string]string{
			"Name":   fmt.Sprintf("%s-cluster-sg", args.ClusterName),
			"Module": "vpc",
		}),
	})
	if err != nil {
		return err
	}
	r.ClusterSG = clusterSG

	_, err = ec2.NewSecurityGroupRule(ctx, fmt.Sprintf("%s-cluster-egress", args.ClusterName), &ec2.SecurityGroupRuleArgs{
		Type:            pulumi.String("egress"),
		FromPort:        pulumi.Int(0),
		ToPort:          pulumi.Int(65535),
		Protocol:        pulumi.String("-1"),
		CidrBlocks:      pulumi.StringArray{pulumi.String("0.0.0.0/0")},
		SecurityGroupId: clusterSG.ID(),
	})
	if err != nil {
		return err
	}

	nodeSG, err := ec2.NewSecurityGroup(ctx, fmt.Sprintf("%s-node-sg", args.ClusterName), &ec2.SecurityGroupArgs{
		NamePrefix: pulumi.String(fmt.Sprintf("%s-node-", args.ClusterName)),
		VpcId:      r.Vpc.ID(),
		Tags: tagMap(args.Tags, map[string]string{
			"Name":   fmt.Sprintf("%s-node-sg", args.ClusterName),
			"Module": "vpc",
		}),
	})
	if err != nil {
		return err
	}
	r.NodeSG = nodeSG

	// node <-> node
	_, err = ec2.NewSecurityGroupRule(ctx, fmt.Sprintf("%s-node-ingress-self", args.ClusterName), &ec2.SecurityGroupRuleArgs{
		Type:            pulumi.String("ingress"),
		FromPort:        pulumi.Int(0),
		ToPort:          pulumi.Int(65535),
		Protocol:        pulumi.String("-1"),
		Self:            pulumi.Bool(true),
		SecurityGroupId: nodeSG.ID(),
	})
	if err != nil {
		return err
	}

	// API server -> kubelet and ephemeral ports
	_, err = ec2.NewSecurityGroupRule(ctx, fmt.Sprintf("%s-node-ingress-cluster", args.ClusterName), &ec2.SecurityGroupRuleArgs{
		Type:                  pulumi.String("ingress"),
		FromPort:              pulumi.Int(1025),
		ToPort:                pulumi.Int(65535),
		Protocol:              pulumi.String("tcp"),
		SourceSecurityGroupId: clusterSG.ID(),
		SecurityGroupId:       nodeSG.ID(),
	})
	if err != nil {
		return err
	}

	_, err = ec2.NewSecurityGroupRule(ctx, fmt.Sprintf("%s-node-egress", args.ClusterName), &ec2.SecurityGroupRuleArgs{
		Type:            pulumi.String("egress"),
		FromPort:        pulumi.Int(0),
		ToPort:          pulumi.Int(65535),
		Protocol:        pulumi.String("-1"),
		CidrBlocks:      pulumi.StringArray{pulumi.String("0.0.0.0/0")},
		SecurityGroupId: nodeSG.ID(),
	})
	if err != nil {
		return err
	}

	// nodes -> API server
	_, err = ec2.NewSecurityGroupRule(ctx, fmt.Sprintf("%s-cluster-ingress-node", args.ClusterName), &ec2.SecurityGroupRuleArgs{
		Type:                  pulumi.String("ingress"),
		FromPort:              pulumi.Int(443),
		ToPort:                pulumi.Int(443),
		Protocol:              pulumi.String("tcp"),
		SourceSecurityGroupId: nodeSG.ID(),
		SecurityGroupId:       clusterSG.ID(),
	})
	return err
}

// PublicSubnetIDs collects the subnet id outputs in declaration order.
func (r *Resources) PublicSubnetIDs() pulumi.StringArray {
	ids := make(pulumi.StringArray, 0, len(r.PublicSubnets))
	for _, s := range r.PublicSubnets {
		ids = append(ids, s.ID().ToStringOutput())
	}
	return ids
}

func tagMap(base, extra map[string]string) pulumi.StringMap {
	out := pulumi.StringMap{}
	for k, v := range base {
		out[k] = pulumi.String(v)
	}
	for k, v := range extra {
		out[k] = pulumi.String(v)
	}
	return out
}
