// Package argocd installs Argo CD behind an internet-facing NLB on an
// existing cluster.
package argocd

import (
	kubernetes "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes"
	corev1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/core/v1"
	helmv4 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/helm/v4"
	metav1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/meta/v1"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const chartVersion = "7.7.9"

// Args configures the installation.
type Args struct {
	Namespace string
	Provider  *kubernetes.Provider
}

// Resources holds the installed pieces.
type Resources struct {
	Namespace *corev1.Namespace
	Chart     *helmv4.Chart
	Server    *corev1.Service
}

// Install declares the namespace, the argo-cd chart, and looks up the
// server service for its load balancer hostname.
func Install(ctx *pulumi.Context, args Args) (*Resources, error) {
	if args.Namespace == "" {
		args.Namespace = "argocd"
	}
	providerOpt := pulumi.Provider(args.Provider)

	ns, err := corev1.NewNamespace(ctx, "argocd-namespace", &corev1.NamespaceArgs{
		Metadata: &metav1.ObjectMetaArgs{
			Name: pulumi.String(args.Namespace),
		},
	}, providerOpt)
	if err != nil {
		return nil, err
	}

	chart, err := helmv4.NewChart(ctx, "argocd", &helmv4.ChartArgs{
		Chart:     pulumi.String("argo-cd"),
		Version:   pulumi.String(chartVersion),
		Namespace: pulumi.String(args.Namespace),
		RepositoryOpts: &helmv4.RepositoryOptsArgs{
			Repo: pulumi.String("https://argoproj.github.io/argo-helm"),
		},
		Values: pulumi.Map{
			"server": pulumi.Map{
				"service": pulumi.Map{
					"type": pulumi.String("LoadBalancer"),
					"annotations": pulumi.Map{
						"service.beta.kubernetes.io/aws-load-balancer-type":   pulumi.String("nlb"),
						"service.beta.kubernetes.io/aws-load-balancer-scheme": pulumi.String("internet-facing"),
					},
				},
				// HTTP until TLS termination moves to the ingress layer.
				"extraArgs": pulumi.ToStringArray([]string{"--insecure"}),
			},
			"dex":        pulumi.Map{"enabled": pulumi.Bool(false)},
			"redis":      pulumi.Map{"enabled": pulumi.Bool(true)},
			"repoServer": pulumi.Map{"replicas": pulumi.Int(1)},
			"controller": pulumi.Map{"replicas": pulumi.Int(1)},
		},
	}, providerOpt, pulumi.DependsOn([]pulumi.Resource{ns}))
	if err != nil {
		return nil, err
	}

	server, err := corev1.GetService(ctx, "argocd-server-service",
		pulumi.ID(args.Namespace+"/argocd-server"), nil,
		providerOpt, pulumi.DependsOn([]pulumi.Resource{chart}))
	if err != nil {
		return nil, err
	}

	return &Resources{Namespace: ns, Chart: chart, Server: server}, nil
}

// Endpoint returns the server URL once the load balancer has a hostname.
func (r *Resources) Endpoint() pulumi.StringOutput {
	return r.Server.Status.LoadBalancer().Ingress().Index(pulumi.Int(0)).Hostname().ApplyT(func(hostname *string) string {
		if hostname == nil || *hostname == "" {
			return "LoadBalancer provisioning..."
		}
		return "http://" + *hostname
	}).(pulumi.StringOutput)
}
