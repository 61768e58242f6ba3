// Package addons installs the in-cluster workloads of the legacy EKS
// deployment: metrics-server, a test namespace, and a busybox deployment
// that continuously verifies internet connectivity from the nodes.
package addons

import (
	"fmt"

	kubernetes "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes"
	appsv1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/apps/v1"
	corev1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/core/v1"
	helmv3 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/helm/v3"
	metav1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/meta/v1"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/aiqs4/builder-space/internal/kubeconfig"
)

// Args configures the in-cluster add-ons.
type Args struct {
	ClusterName     string
	ClusterEndpoint pulumi.StringInput
	ClusterCaData   pulumi.StringInput
	Region          string

	EnableMetricsServer    bool
	EnableLoadBalancerCtrl bool
	EnableTestDeployment   bool
}

// Resources holds the in-cluster add-on state and per-addon status strings.
type Resources struct {
	Provider       *kubernetes.Provider
	TestNamespace  *corev1.Namespace
	MetricsServer  *helmv3.Release
	TestDeployment *appsv1.Deployment

	Status map[string]string
}

// NewResources builds the Kubernetes provider against the fresh cluster and
// installs the enabled add-ons through it.
func NewResources(ctx *pulumi.Context, args Args) (*Resources, error) {
	res := &Resources{Status: map[string]string{}}

	provider, err := kubeconfig.NewProvider(ctx, fmt.Sprintf("%s-k8s-provider", args.ClusterName),
		pulumi.String(args.ClusterName), args.ClusterEndpoint, args.ClusterCaData, pulumi.String(args.Region))
	if err != nil {
		return nil, fmt.Errorf("kubernetes provider: %w", err)
	}
	res.Provider = provider
	providerOpt := pulumi.Provider(provider)

	ns, err := corev1.NewNamespace(ctx, fmt.Sprintf("%s-test-namespace", args.ClusterName), &corev1.NamespaceArgs{
		Metadata: &metav1.ObjectMetaArgs{
			Name: pulumi.String("test"),
			Labels: pulumi.StringMap{
				"name":       pulumi.String("test"),
				"managed-by": pulumi.String("pulumi"),
			},
		},
	}, providerOpt)
	if err != nil {
		return nil, fmt.Errorf("test namespace: %w", err)
	}
	res.TestNamespace = ns

	if args.EnableMetricsServer {
		if err := res.createMetricsServer(ctx, args, providerOpt); err != nil {
			return nil, fmt.Errorf("metrics server: %w", err)
		}
		res.Status["metrics_server"] = "enabled"
	} else {
		res.Status["metrics_server"] = "disabled"
	}

	if args.EnableLoadBalancerCtrl {
		// Needs an IRSA role and the controller chart; not wired up yet.
		res.Status["aws_load_balancer_controller"] = "available (requires additional IAM setup)"
	} else {
		res.Status["aws_load_balancer_controller"] = "disabled"
	}

	if args.EnableTestDeployment {
		if err := res.createTestDeployment(ctx, args, providerOpt); err != nil {
			return nil, fmt.Errorf("test deployment: %w", err)
		}
		res.Status["test_deployment"] = "deployed"
	} else {
		res.Status["test_deployment"] = "not deployed"
	}

	return res, nil
}

func (r *Resources) createMetricsServer(ctx *pulumi.Context, args Args, providerOpt pulumi.ResourceOption) error {
	release, err := helmv3.NewRelease(ctx, fmt.Sprintf("%s-metrics-server", args.ClusterName), &helmv3.ReleaseArgs{
		RepositoryOpts: &helmv3.RepositoryOptsArgs{
			Repo: pulumi.String("https://kubernetes-sigs.github.io/metrics-server/"),
		},
		Chart:     pulumi.String("metrics-server"),
		Name:      pulumi.String("metrics-server"),
		Namespace: pulumi.String("kube-system"),
		Values: pulumi.Map{
			"args": pulumi.ToStringArray([]string{
				"--cert-dir=/tmp",
				"--secure-port=4443",
				"--kubelet-preferred-address-types=InternalIP,ExternalIP,Hostname",
				"--kubelet-use-node-status-port",
				"--metric-resolution=15s",
			}),
		},
	}, providerOpt)
	if err != nil {
		return err
	}
	r.MetricsServer = release
	return nil
}

func (r *Resources) createTestDeployment(ctx *pulumi.Context, args Args, providerOpt pulumi.ResourceOption) error {
	labels := pulumi.StringMap{"app": pulumi.String("test-internet")}
	deployment, err := appsv1.NewDeployment(ctx, fmt.Sprintf("%s-test-internet-app", args.ClusterName), &appsv1.DeploymentArgs{
		Metadata: &metav1.ObjectMetaArgs{
			Name:      pulumi.String("test-internet-app"),
			Namespace: r.TestNamespace.Metadata.Name(),
			Labels: pulumi.StringMap{
				"app":        pulumi.String("test-internet"),
				"managed-by": pulumi.String("pulumi"),
			},
		},
		Spec: &appsv1.DeploymentSpecArgs{
			Replicas: pulumi.Int(1),
			Selector: &metav1.LabelSelectorArgs{MatchLabels: labels},
			Template: &corev1.PodTemplateSpecArgs{
				Metadata: &metav1.ObjectMetaArgs{Labels: labels},
				Spec: &corev1.PodSpecArgs{
					Containers: corev1.ContainerArray{
						&corev1.ContainerArgs{
							Name:  pulumi.String("test-internet"),
							Image: pulumi.String("busybox:1.35"),
							Command: pulumi.ToStringArray([]string{
								"sh", "-c",
								"while true; do echo 'Testing internet connectivity...'; " +
									"nslookup google.com; " +
									"if wget -qO- --timeout=5 http://httpbin.org/ip; then " +
									"echo 'Internet connectivity: OK'; else " +
									"echo 'Internet connectivity: FAILED'; fi; " +
									"sleep 30; done",
							}),
							Resources: &corev1.ResourceRequirementsArgs{
								Requests: pulumi.StringMap{
									"cpu":    pulumi.String("10m"),
									"memory": pulumi.String("32Mi"),
								},
								Limits: pulumi.StringMap{
									"cpu":    pulumi.String("50m"),
									"memory": pulumi.String("64Mi"),
								},
							},
						},
					},
					RestartPolicy: pulumi.String("Always"),
				},
			},
		},
	}, providerOpt)
	if err != nil {
		return err
	}
	r.TestDeployment = deployment
	return nil
}
