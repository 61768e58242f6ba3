// Auth0 secret plumbing: a KMS-encrypted Secrets Manager entry holding the
// OAuth2 Proxy credentials, an IRSA role for External Secrets, and the
// SecretStore/ExternalSecret resources that sync it into the cluster.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/kms"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/secretsmanager"
	kubernetes "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes"
	"github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/apiextensions"
	corev1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/core/v1"
	metav1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/meta/v1"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	pulumiconfig "github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"
)

const (
	secretName       = "oauth2-proxy-auth0"
	defaultClientID  = "aPEUWwTH91khPenCjJBEzyZ0wyzV2dZh"
	serviceAccount   = "external-secrets"
	workloadNS       = "oauth2-proxy"
	externalSecretNS = "external-secrets"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		cfg := pulumiconfig.New(ctx, "")

		current, err := aws.GetCallerIdentity(ctx, nil)
		if err != nil {
			return err
		}
		region, err := aws.GetRegion(ctx, nil)
		if err != nil {
			return err
		}

		key, err := kms.NewKey(ctx, "auth0-secrets-key", &kms.KeyArgs{
			Description:           pulumi.String("KMS key for Auth0 OAuth2 Proxy secrets"),
			KeyUsage:              pulumi.String("ENCRYPT_DECRYPT"),
			CustomerMasterKeySpec: pulumi.String("SYMMETRIC_DEFAULT"),
		})
		if err != nil {
			return err
		}
		_, err = kms.NewAlias(ctx, "auth0-secrets-key-alias", &kms.AliasArgs{
			Name:        pulumi.String("alias/auth0-oauth2-proxy"),
			TargetKeyId: key.KeyId,
		})
		if err != nil {
			return err
		}

		secret, err := secretsmanager.NewSecret(ctx, "oauth2-proxy-secrets", &secretsmanager.SecretArgs{
			Name:        pulumi.String(secretName),
			Description: pulumi.String("Auth0 OAuth2 Proxy secrets"),
			KmsKeyId:    key.Arn,
		})
		if err != nil {
			return err
		}

		clientID := cfg.Get("auth0_client_id")
		if clientID == "" {
			clientID = defaultClientID
		}
		clientSecret, err := cfg.TrySecret("auth0_client_secret")
		if err != nil {
			clientSecret = pulumi.String("REPLACE_WITH_AUTH0_CLIENT_SECRET").ToStringOutput()
		}
		cookieSecret, err := generateCookieSecret()
		if err != nil {
			return err
		}

		secretString := clientSecret.ApplyT(func(cs string) (string, error) {
			b, err := json.Marshal(map[string]string{
				"client-id":     clientID,
				"client-secret": cs,
				"cookie-secret": cookieSecret,
			})
			return string(b), err
		}).(pulumi.StringOutput)

		_, err = secretsmanager.NewSecretVersion(ctx, "oauth2-proxy-secrets-version", &secretsmanager.SecretVersionArgs{
			SecretId:     secret.ID(),
			SecretString: pulumi.ToSecret(secretString).(pulumi.StringOutput),
		})
		if err != nil {
			return err
		}

		role, err := externalSecretsRole(ctx, cfg, current.AccountId, region.Name)
		if err != nil {
			return err
		}
		_, err = iam.NewRolePolicy(ctx, "external-secrets-policy", &iam.RolePolicyArgs{
			Role: role.ID(),
			Policy: pulumi.All(secret.Arn, key.Arn).ApplyT(func(vs []any) (string, error) {
				b, err := json.Marshal(map[string]any{
					"Version": "2012-10-17",
					"Statement": []map[string]any{
						{
							"Effect":   "Allow",
							"Action":   []string{"secretsmanager:GetSecretValue", "secretsmanager:DescribeSecret"},
							"Resource": vs[0],
						},
						{
							"Effect":   "Allow",
							"Action":   []string{"kms:Decrypt"},
							"Resource": vs[1],
						},
					},
				})
				return string(b), err
			}).(pulumi.StringOutput),
		})
		if err != nil {
			return err
		}

		if err := kubernetesResources(ctx, role, region.Name); err != nil {
			return err
		}

		ctx.Export("kms_key_id", key.KeyId)
		ctx.Export("kms_key_arn", key.Arn)
		ctx.Export("secrets_manager_arn", secret.Arn)
		ctx.Export("external_secrets_role_arn", role.Arn)
		ctx.Export("setup_instructions", pulumi.String(setupInstructions()))
		return nil
	})
}

// generateCookieSecret returns a fresh URL-safe token. OAuth2 Proxy requires
// 32 bytes once base64-decoded.
func generateCookieSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func externalSecretsRole(ctx *pulumi.Context, cfg *pulumiconfig.Config, accountID, region string) (*iam.Role, error) {
	providerID := cfg.Get("oidc_provider_id")
	if providerID == "" {
		providerID = "OIDC_PROVIDER_ID"
	}
	issuer := fmt.Sprintf("oidc.eks.%s.amazonaws.com/id/%s", region, providerID)

	doc, err := json.Marshal(map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{
			{
				"Action": "sts:AssumeRoleWithWebIdentity",
				"Effect": "Allow",
				"Principal": map[string]any{
					"Federated": fmt.Sprintf("arn:aws:iam::%s:oidc-provider/%s", accountID, issuer),
				},
				"Condition": map[string]any{
					"StringEquals": map[string]any{
						issuer + ":sub": fmt.Sprintf("system:serviceaccount:%s:%s", externalSecretNS, serviceAccount),
						issuer + ":aud": "sts.amazonaws.com",
					},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return iam.NewRole(ctx, "external-secrets-role", &iam.RoleArgs{
		AssumeRolePolicy: pulumi.String(doc),
	})
}

func kubernetesResources(ctx *pulumi.Context, role *iam.Role, region string) error {
	ns, err := corev1.NewNamespace(ctx, "external-secrets", &corev1.NamespaceArgs{
		Metadata: &metav1.ObjectMetaArgs{Name: pulumi.String(externalSecretNS)},
	})
	if err != nil {
		return err
	}
	_, err = corev1.NewServiceAccount(ctx, "external-secrets-sa", &corev1.ServiceAccountArgs{
		Metadata: &metav1.ObjectMetaArgs{
			Name:      pulumi.String(serviceAccount),
			Namespace: pulumi.String(externalSecretNS),
			Annotations: pulumi.StringMap{
				"eks.amazonaws.com/role-arn": role.Arn,
			},
		},
	}, pulumi.DependsOn([]pulumi.Resource{ns}))
	if err != nil {
		return err
	}

	_, err = apiextensions.NewCustomResource(ctx, "aws-secret-store", &apiextensions.CustomResourceArgs{
		ApiVersion: pulumi.String("external-secrets.io/v1beta1"),
		Kind:       pulumi.String("SecretStore"),
		Metadata: &metav1.ObjectMetaArgs{
			Name:      pulumi.String("aws-secrets-manager"),
			Namespace: pulumi.String(workloadNS),
		},
		OtherFields: kubernetes.UntypedArgs{
			"spec": map[string]any{
				"provider": map[string]any{
					"aws": map[string]any{
						"service": "SecretsManager",
						"region":  region,
						"auth": map[string]any{
							"serviceAccount": map[string]any{"name": serviceAccount},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return err
	}

	remoteRef := func(property string) map[string]any {
		return map[string]any{
			"secretKey": property,
			"remoteRef": map[string]any{"key": secretName, "property": property},
		}
	}
	_, err = apiextensions.NewCustomResource(ctx, "oauth2-proxy-external-secret", &apiextensions.CustomResourceArgs{
		ApiVersion: pulumi.String("external-secrets.io/v1beta1"),
		Kind:       pulumi.String("ExternalSecret"),
		Metadata: &metav1.ObjectMetaArgs{
			Name:      pulumi.String("oauth2-proxy-secrets"),
			Namespace: pulumi.String(workloadNS),
		},
		OtherFields: kubernetes.UntypedArgs{
			"spec": map[string]any{
				"refreshInterval": "1h",
				"secretStoreRef": map[string]any{
					"name": "aws-secrets-manager",
					"kind": "SecretStore",
				},
				"target": map[string]any{
					"name":           "oauth2-proxy",
					"creationPolicy": "Owner",
				},
				"data": []map[string]any{
					remoteRef("client-id"),
					remoteRef("client-secret"),
					remoteRef("cookie-secret"),
				},
			},
		},
	})
	return err
}

func setupInstructions() string {
	return `External Secrets setup complete.

1. Set the Auth0 client secret:
   pulumi config set --secret auth0_client_secret YOUR_AUTH0_CLIENT_SECRET
   pulumi up

2. Install the External Secrets Operator:
   helm repo add external-secrets https://charts.external-secrets.io
   helm install external-secrets external-secrets/external-secrets -n external-secrets --create-namespace

3. Verify the synced secret:
   kubectl get secrets -n oauth2-proxy
   kubectl describe externalsecret oauth2-proxy-secrets -n oauth2-proxy
`
}
