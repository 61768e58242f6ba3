// Package externaldns installs External DNS with pod-identity access to
// Route53, publishing records for the platform's service and ingress
// hostnames.
package externaldns

import (
	"strings"

	awseks "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/eks"
	awsiam "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	kubernetes "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes"
	appsv1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/apps/v1"
	corev1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/core/v1"
	metav1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/meta/v1"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const image = "registry.k8s.io/external-dns/external-dns:v0.14.2"

const route53Policy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":["route53:ChangeResourceRecordSets","route53:ListResourceRecordSets"],"Resource":"arn:aws:route53:::hostedzone/*"},{"Effect":"Allow","Action":["route53:ListHostedZones","route53:ListHostedZonesByName"],"Resource":"*"}]}`

// Args configures the External DNS deployment.
type Args struct {
	Cluster *awseks.Cluster
	// Domains becomes the semicolon-joined --domain-filter argument.
	Domains  []string
	Provider *kubernetes.Provider
}

// Resources holds the installed pieces.
type Resources struct {
	Role           *awsiam.Role
	PodIdentity    *awseks.PodIdentityAssociation
	ServiceAccount *corev1.ServiceAccount
	Deployment     *appsv1.Deployment
}

// Install declares the IAM wiring and the External DNS workload.
func Install(ctx *pulumi.Context, args Args) (*Resources, error) {
	policy, err := awsiam.NewPolicy(ctx, "external-dns-policy", &awsiam.PolicyArgs{
		Policy: pulumi.String(route53Policy),
	})
	if err != nil {
		return nil, err
	}

	role, err := awsiam.NewRole(ctx, "external-dns-role", &awsiam.RoleArgs{
		AssumeRolePolicy: pulumi.String(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"Service":"pods.eks.amazonaws.com"},"Action":["sts:AssumeRole","sts:TagSession"]}]}`),
	})
	if err != nil {
		return nil, err
	}
	_, err = awsiam.NewRolePolicyAttachment(ctx, "external-dns-policy-attach", &awsiam.RolePolicyAttachmentArgs{
		Role:      role.Name,
		PolicyArn: policy.Arn,
	})
	if err != nil {
		return nil, err
	}

	podIdentity, err := awseks.NewPodIdentityAssociation(ctx, "external-dns-pod-identity", &awseks.PodIdentityAssociationArgs{
		ClusterName:    args.Cluster.Name,
		Namespace:      pulumi.String("kube-system"),
		ServiceAccount: pulumi.String("external-dns"),
		RoleArn:        role.Arn,
	})
	if err != nil {
		return nil, err
	}

	providerOpt := pulumi.Provider(args.Provider)

	sa, err := corev1.NewServiceAccount(ctx, "external-dns-sa", &corev1.ServiceAccountArgs{
		Metadata: &metav1.ObjectMetaArgs{
			Name:      pulumi.String("external-dns"),
			Namespace: pulumi.String("kube-system"),
		},
	}, providerOpt, pulumi.DependsOn([]pulumi.Resource{podIdentity}))
	if err != nil {
		return nil, err
	}

	labels := pulumi.StringMap{"app": pulumi.String("external-dns")}
	deployment, err := appsv1.NewDeployment(ctx, "external-dns", &appsv1.DeploymentArgs{
		Metadata: &metav1.ObjectMetaArgs{
			Name:      pulumi.String("external-dns"),
			Namespace: pulumi.String("kube-system"),
		},
		Spec: &appsv1.DeploymentSpecArgs{
			Replicas: pulumi.Int(1),
			Selector: &metav1.LabelSelectorArgs{MatchLabels: labels},
			Template: &corev1.PodTemplateSpecArgs{
				Metadata: &metav1.ObjectMetaArgs{Labels: labels},
				Spec: &corev1.PodSpecArgs{
					ServiceAccountName: sa.Metadata.Name(),
					Containers: corev1.ContainerArray{
						&corev1.ContainerArgs{
							Name:  pulumi.String("external-dns"),
							Image: pulumi.String(image),
							Args: pulumi.ToStringArray([]string{
								"--source=service",
								"--source=ingress",
								"--provider=aws",
								"--domain-filter=" + strings.Join(args.Domains, ";"),
								"--policy=sync",
								"--registry=txt",
								"--txt-owner-id=builder-space",
							}),
						},
					},
				},
			},
		},
	}, providerOpt, pulumi.DependsOn([]pulumi.Resource{sa, podIdentity}))
	if err != nil {
		return nil, err
	}

	return &Resources{
		Role:           role,
		PodIdentity:    podIdentity,
		ServiceAccount: sa,
		Deployment:     deployment,
	}, nil
}
