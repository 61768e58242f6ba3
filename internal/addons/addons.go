// Package addons declares the managed add-ons of the current-generation
// cluster. Versions are pinned; AWS configures the add-on service accounts,
// so no manual IRSA wiring is needed here.
package addons

import (
	awseks "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/eks"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

type addonSpec struct {
	resourceName string
	addonName    string
	version      string
}

var managedAddons = []addonSpec{
	{"vpc-cni", "vpc-cni", "v1.18.5-eksbuild.1"},
	{"coredns", "coredns", "v1.11.3-eksbuild.2"},
	{"pod-identity-agent", "eks-pod-identity-agent", "v1.3.4-eksbuild.1"},
	{"ebs-csi-driver", "aws-ebs-csi-driver", "v1.37.0-eksbuild.1"},
}

// Args configures the add-on set.
type Args struct {
	ClusterName pulumi.StringInput
	// NodeGroup gates coredns, which needs schedulable nodes to go healthy.
	NodeGroup pulumi.Resource
}

// Create declares the pinned managed add-ons.
func Create(ctx *pulumi.Context, args Args) (map[string]*awseks.Addon, error) {
	out := map[string]*awseks.Addon{}
	for _, spec := range managedAddons {
		var opts []pulumi.ResourceOption
		if spec.addonName == "coredns" && args.NodeGroup != nil {
			opts = append(opts, pulumi.DependsOn([]pulumi.Resource{args.NodeGroup}))
		}
		addon, err := awseks.NewAddon(ctx, spec.resourceName, &awseks.AddonArgs{
			ClusterName:              args.ClusterName,
			AddonName:                pulumi.String(spec.addonName),
			AddonVersion:             pulumi.String(spec.version),
			ResolveConflictsOnCreate: pulumi.String("OVERWRITE"),
			ResolveConflictsOnUpdate: pulumi.String("OVERWRITE"),
		}, opts...)
		if err != nil {
			return nil, err
		}
		out[spec.addonName] = addon
	}
	return out, nil
}
