package karpenter

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
	outputs := args.Inputs.Copy()
	if args.TypeToken == "aws:eks/cluster:Cluster" {
		outputs["arn"] = resource.NewStringProperty("arn:aws:eks:af-south-1:123456789012:cluster/builder-space")
		outputs["endpoint"] = resource.NewStringProperty("https://example.eks.amazonaws.com")
	}
	return args.Name + "_id", outputs, nil
}

func (m *testMocks) Call(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
	if strings.Contains(args.Token, "getCallerIdentity") {
		return resource.PropertyMap{
			"accountId": resource.NewStringProperty("123456789012"),
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

func runStack(t *testing.T) *testMocks {
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
		_, err = Install(ctx, Args{
			ClusterName:  "builder-space",
			Cluster:      cluster,
			NodeRoleArn:  pulumi.String("arn:aws:iam::123456789012:role/builder-space-node-role"),
			NodeRoleName: pulumi.String("builder-space-node-role"),
			Provider:     provider,
		})
		return err
	}, pulumi.WithMocks("builder-space-eks", "eks", mocks))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return mocks
}

func TestControllerWiring(t *testing.T) {
	t.Parallel()
	mocks := runStack(t)

	assocs := mocks.byType("aws:eks/podIdentityAssociation:PodIdentityAssociation")
	if len(assocs) != 1 {
		t.Fatalf("expected one pod identity association, got %d", len(assocs))
	}
	if got := assocs[0].Inputs["namespace"].StringValue(); got != "kube-system" {
		t.Fatalf("pod identity namespace = %q", got)
	}
	if got := assocs[0].Inputs["serviceAccount"].StringValue(); got != "karpenter" {
		t.Fatalf("pod identity service account = %q", got)
	}

	policies := mocks.byType("aws:iam/policy:Policy")
	if len(policies) != 1 {
		t.Fatalf("expected one controller policy, got %d", len(policies))
	}
	doc := policies[0].Inputs["policy"].StringValue()
	if !strings.Contains(doc, `"iam:PassRole"`) || !strings.Contains(doc, "arn:aws:iam::123456789012:role/builder-space-node-role") {
		t.Fatalf("policy missing node role pass-role grant: %s", doc)
	}
	if !strings.Contains(doc, "arn:aws:sqs:*:123456789012:builder-space") {
		t.Fatalf("policy missing interruption queue statement: %s", doc)
	}
}

func TestHelmRelease(t *testing.T) {
	t.Parallel()
	mocks := runStack(t)

	releases := mocks.byType("kubernetes:helm.sh/v3:Release")
	if len(releases) != 1 {
		t.Fatalf("expected one release, got %d", len(releases))
	}
	r := releases[0]
	if got := r.Inputs["chart"].StringValue(); got != "karpenter" {
		t.Fatalf("chart = %q", got)
	}
	if got := r.Inputs["version"].StringValue(); got != chartVersion {
		t.Fatalf("chart version = %q", got)
	}
	values := r.Inputs["values"].ObjectValue()
	settings := values["settings"].ObjectValue()
	if got := settings["clusterName"].StringValue(); got != "builder-space" {
		t.Fatalf("settings.clusterName = %q", got)
	}
	if got := settings["interruptionQueue"].StringValue(); got != "builder-space" {
		t.Fatalf("settings.interruptionQueue = %q", got)
	}
}

func TestEmbeddedCapacityManifests(t *testing.T) {
	t.Parallel()
	mocks := runStack(t)

	nodeClasses := mocks.byType("kubernetes:karpenter.k8s.aws/v1:EC2NodeClass")
	if len(nodeClasses) != 1 {
		t.Fatalf("expected one EC2NodeClass, got %d", len(nodeClasses))
	}
	spec := nodeClasses[0].Inputs["spec"].ObjectValue()
	if got := spec["amiFamily"].StringValue(); got != "AL2023" {
		t.Fatalf("amiFamily = %q", got)
	}
	if got := spec["role"].StringValue(); got != "builder-space-node-role" {
		t.Fatalf("role placeholder not substituted, got %q", got)
	}
	sgTerms := spec["securityGroupSelectorTerms"].ArrayValue()
	sgTags := sgTerms[0].ObjectValue()["tags"].ObjectValue()
	if _, ok := sgTags["kubernetes.io/cluster/builder-space"]; !ok {
		t.Fatalf("cluster name placeholder not substituted in selector tags: %v", sgTags)
	}

	nodePools := mocks.byType("kubernetes:karpenter.sh/v1:NodePool")
	if len(nodePools) != 1 {
		t.Fatalf("expected one NodePool, got %d", len(nodePools))
	}
	poolSpec := nodePools[0].Inputs["spec"].ObjectValue()
	limits := poolSpec["limits"].ObjectValue()
	if got := limits["cpu"].StringValue(); got != "100" {
		t.Fatalf("cpu limit = %q", got)
	}
	disruption := poolSpec["disruption"].ObjectValue()
	if got := disruption["consolidationPolicy"].StringValue(); got != "WhenEmptyOrUnderutilized" {
		t.Fatalf("consolidation policy = %q", got)
	}
}
