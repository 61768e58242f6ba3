package externaldns

import (
	"strings"
	"testing"

	awseks "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/eks"
	kubernetes "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes"
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

func runStack(t *testing.T, domains []string) *testMocks {
	t.Helper()
	mocks := &testMocks{}
	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		cluster, err := awseks.NewCluster(ctx, "cluster", &awseks.ClusterArgs{
			Name:    pulumi.String("builder-space"),
			RoleArn: pulumi.String("arn:aws:iam::123456789012:role/eks-cluster-role"),
			VpcConfig: &awseks.ClusterVpcConfigArgs{
				SubnetIds: pulumi.ToStringArray([]string{"subnet-1"}),
			},
		})
		if err != nil {
			return err
		}
		provider, err := kubernetes.NewProvider(ctx, "k8s", &kubernetes.ProviderArgs{})
		if err != nil {
			return err
		}
		_, err = Install(ctx, Args{Cluster: cluster, Domains: domains, Provider: provider})
		return err
	}, pulumi.WithMocks("builder-space-eks", "eks", mocks))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return mocks
}

func TestPodIdentityWiring(t *testing.T) {
	t.Parallel()
	mocks := runStack(t, []string{"lightsphere.space"})

	assocs := mocks.byType("aws:eks/podIdentityAssociation:PodIdentityAssociation")
	if len(assocs) != 1 {
		t.Fatalf("expected one pod identity association, got %d", len(assocs))
	}
	if got := assocs[0].Inputs["serviceAccount"].StringValue(); got != "external-dns" {
		t.Fatalf("service account = %q", got)
	}

	policies := mocks.byType("aws:iam/policy:Policy")
	if len(policies) != 1 {
		t.Fatalf("expected one policy, got %d", len(policies))
	}
	doc := policies[0].Inputs["policy"].StringValue()
	if !strings.Contains(doc, "route53:ChangeResourceRecordSets") {
		t.Fatalf("policy missing record change grant: %s", doc)
	}
}

func TestDeploymentArgs(t *testing.T) {
	t.Parallel()
	domains := []string{"amano.services", "tekanya.services", "lightsphere.space", "sosolola.cloud"}
	mocks := runStack(t, domains)

	deployments := mocks.byType("kubernetes:apps/v1:Deployment")
	if len(deployments) != 1 {
		t.Fatalf("expected one deployment, got %d", len(deployments))
	}
	spec := deployments[0].Inputs["spec"].ObjectValue()
	if got := spec["replicas"].NumberValue(); got != 1 {
		t.Fatalf("replicas = %v", got)
	}
	container := spec["template"].ObjectValue()["spec"].ObjectValue()["containers"].ArrayValue()[0].ObjectValue()
	if got := container["image"].StringValue(); got != image {
		t.Fatalf("image = %q", got)
	}
	var containerArgs []string
	for _, a := range container["args"].ArrayValue() {
		containerArgs = append(containerArgs, a.StringValue())
	}
	wantFilter := "--domain-filter=" + strings.Join(domains, ";")
	found := false
	for _, a := range containerArgs {
		if a == wantFilter {
			found = true
		}
	}
	if !found {
		t.Fatalf("domain filter %q missing from args %v", wantFilter, containerArgs)
	}
	last := containerArgs[len(containerArgs)-1]
	if last != "--txt-owner-id=builder-space" {
		t.Fatalf("txt owner arg = %q", last)
	}
}
