// Package network declares the current-generation VPC: three public /22
// subnets across the af-south-1 availability zones, sized for EKS plus
// Karpenter-launched capacity.
package network

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

type subnetSpec struct {
	cidr string
	az   string
	name string
}

var publicSubnets = []subnetSpec{
	{"10.0.0.0/22", "af-south-1a", "lightsphere-public-1a"},
	{"10.0.4.0/22", "af-south-1b", "lightsphere-public-1b"},
	{"10.0.8.0/22", "af-south-1c", "lightsphere-public-1c"},
}

// Resources holds the network layer consumed by the cluster and database.
type Resources struct {
	Vpc     *ec2.Vpc
	Subnets []*ec2.Subnet
}

// Create declares the VPC, subnets, and public routing.
func Create(ctx *pulumi.Context) (*Resources, error) {
	vpc, err := ec2.NewVpc(ctx, "vpc", &ec2.VpcArgs{
		CidrBlock:          pulumi.String("10.0.0.0/16"),
		EnableDnsHostnames: pulumi.Bool(true),
		EnableDnsSupport:   pulumi.Bool(true),
		Tags:               pulumi.StringMap{"Name": pulumi.String("lightsphere-vpc")},
	})
	if err != nil {
		return nil, err
	}

	igw, err := ec2.NewInternetGateway(ctx, "igw", &ec2.InternetGatewayArgs{
		VpcId: vpc.ID(),
		Tags:  pulumi.StringMap{"Name": pulumi.String("lightsphere-igw")},
	})
	if err != nil {
		return nil, err
	}

	res := &Resources{Vpc: vpc}
	for i, spec := range publicSubnets {
		subnet, err := ec2.NewSubnet(ctx, fmt.Sprintf("public-subnet-%d", i+1), &ec2.SubnetArgs{
			VpcId:               vpc.ID(),
			CidrBlock:           pulumi.String(spec.cidr),
			AvailabilityZone:    pulumi.String(spec.az),
			MapPublicIpOnLaunch: pulumi.Bool(true),
			Tags: pulumi.StringMap{
				"Name":                   pulumi.String(spec.name),
				"kubernetes.io/role/elb": pulumi.String("1"),
			},
		})
		if err != nil {
			return nil, err
		}
		res.Subnets = append(res.Subnets, subnet)
	}

	routeTable, err := ec2.NewRouteTable(ctx, "public-rt", &ec2.RouteTableArgs{
		VpcId: vpc.ID(),
		Routes: ec2.RouteTableRouteArray{
			&ec2.RouteTableRouteArgs{
				CidrBlock: pulumi.String("0.0.0.0/0"),
				GatewayId: igw.ID(),
			},
		},
		Tags: pulumi.StringMap{"Name": pulumi.String("lightsphere-public-rt")},
	})
	if err != nil {
		return nil, err
	}

	for i, subnet := range res.Subnets {
		_, err := ec2.NewRouteTableAssociation(ctx, fmt.Sprintf("subnet%d-rt", i+1), &ec2.RouteTableAssociationArgs{
			SubnetId:     subnet.ID(),
			RouteTableId: routeTable.ID(),
		})
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// SubnetIDs collects the subnet id outputs in declaration order.
func (r *Resources) SubnetIDs() pulumi.StringArray {
	ids := make(pulumi.StringArray, 0, len(r.Subnets))
	for _, s := range r.Subnets {
		ids = append(ids, s.ID().ToStringOutput())
	}
	return ids
}
