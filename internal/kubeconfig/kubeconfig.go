// Package kubeconfig renders exec-auth kubeconfigs for the cluster and
// builds Kubernetes providers from them. Access tokens come from
// `aws eks get-token` at apply time; nothing sensitive lands in state.
package kubeconfig

import (
	"fmt"

	kubernetes "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"gopkg.in/yaml.v3"
)

type clusterData struct {
	Server                   string `yaml:"server"`
	CertificateAuthorityData string `yaml:"certificate-authority-data"`
}

type clusterEntry struct {
	Cluster clusterData `yaml:"cluster"`
	Name    string      `yaml:"name"`
}

type contextData struct {
	Cluster string `yaml:"cluster"`
	User    string `yaml:"user"`
}

type contextEntry struct {
	Context contextData `yaml:"context"`
	Name    string      `yaml:"name"`
}

type execConfig struct {
	APIVersion string   `yaml:"apiVersion"`
	Command    string   `yaml:"command"`
	Args       []string `yaml:"args"`
}

type userData struct {
	Exec execConfig `yaml:"exec"`
}

type userEntry struct {
	Name string   `yaml:"name"`
	User userData `yaml:"user"`
}

type kubeConfig struct {
	APIVersion     string         `yaml:"apiVersion"`
	Kind           string         `yaml:"kind"`
	Clusters       []clusterEntry `yaml:"clusters"`
	Contexts       []contextEntry `yaml:"contexts"`
	CurrentContext string         `yaml:"current-context"`
	Users          []userEntry    `yaml:"users"`
}

// Render produces the kubeconfig YAML for an EKS cluster using exec auth.
func Render(clusterName, endpoint, caData, region string) (string, error) {
	if clusterName == "" || endpoint == "" {
		return "", fmt.Errorf("cluster name and endpoint are required")
	}
	cfg := kubeConfig{
		APIVersion: "v1",
		Kind:       "Config",
		Clusters: []clusterEntry{{
			Cluster: clusterData{Server: endpoint, CertificateAuthorityData: caData},
			Name:    clusterName,
		}},
		Contexts: []contextEntry{{
			Context: contextData{Cluster: clusterName, User: "aws"},
			Name:    clusterName,
		}},
		CurrentContext: clusterName,
		Users: []userEntry{{
			Name: "aws",
			User: userData{Exec: execConfig{
				APIVersion: "client.authentication.k8s.io/v1beta1",
				Command:    "aws",
				Args:       []string{"eks", "get-token", "--cluster-name", clusterName, "--region", region},
			}},
		}},
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshaling kubeconfig: %w", err)
	}
	return string(b), nil
}

// Output assembles the kubeconfig from cluster outputs.
func Output(clusterName, endpoint, caData, region pulumi.StringInput) pulumi.StringOutput {
	return pulumi.All(clusterName, endpoint, caData, region).ApplyT(func(vs []any) (string, error) {
		return Render(vs[0].(string), vs[1].(string), vs[2].(string), vs[3].(string))
	}).(pulumi.StringOutput)
}

// NewProvider builds a Kubernetes provider that authenticates against the
// named cluster with exec auth.
func NewProvider(ctx *pulumi.Context, name string, clusterName, endpoint, caData, region pulumi.StringInput, opts ...pulumi.ResourceOption) (*kubernetes.Provider, error) {
	return kubernetes.NewProvider(ctx, name, &kubernetes.ProviderArgs{
		Kubeconfig: Output(clusterName, endpoint, caData, region),
	}, opts...)
}
