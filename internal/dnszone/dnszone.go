// Package dnszone declares the delegated k8s.<domain> hosted zone External
// DNS writes to, optionally signed with DNSSEC, plus the zone-scoped IRSA
// role for the controller.
package dnszone

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/kms"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/route53"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// Args configures the zone.
type Args struct {
	// Domain is the parent domain; the zone becomes k8s.<Domain>.
	Domain string
	// ParentZoneID receives the NS delegation record.
	ParentZoneID string
	// ClusterOidcIssuer is the cluster's OIDC issuer URL, scheme included.
	ClusterOidcIssuer string
	EnableDnssec      bool
}

// Resources holds the zone and its access role.
type Resources struct {
	Zone       *route53.Zone
	Delegation *route53.Record
	Policy     *iam.Policy
	Role       *iam.Role

	// Set only when DNSSEC is enabled.
	SigningKey *kms.Key
	KSK        *route53.KeySigningKey
	Dnssec     *route53.HostedZoneDnsSec
}

// NewResources declares the hosted zone, delegation, DNSSEC chain, and the
// External DNS IRSA role.
func NewResources(ctx *pulumi.Context, args Args) (*Resources, error) {
	if args.Domain == "" || args.ParentZoneID == "" || args.ClusterOidcIssuer == "" {
		return nil, fmt.Errorf("domain, parentZoneId, and clusterOidcIssuer are required")
	}

	zone, err := route53.NewZone(ctx, "eks-subdomain", &route53.ZoneArgs{
		Name: pulumi.Sprintf("k8s.%s", args.Domain),
		Tags: pulumi.StringMap{
			"Environment": pulumi.String("production"),
			"Purpose":     pulumi.String("eks-dns"),
		},
	})
	if err != nil {
		return nil, err
	}
	res := &Resources{Zone: zone}

	current, err := aws.GetCallerIdentity(ctx, nil)
	if err != nil {
		return nil, err
	}

	if args.EnableDnssec {
		if err := enableDnssec(ctx, args, current.AccountId, res); err != nil {
			return nil, fmt.Errorf("enabling DNSSEC: %w", err)
		}
	}

	res.Delegation, err = route53.NewRecord(ctx, "subdomain-delegation", &route53.RecordArgs{
		ZoneId:  pulumi.String(args.ParentZoneID),
		Name:    pulumi.Sprintf("eks.%s", args.Domain),
		Type:    pulumi.String("NS"),
		Ttl:     pulumi.Int(300),
		Records: zone.NameServers,
	})
	if err != nil {
		return nil, err
	}

	res.Policy, err = iam.NewPolicy(ctx, "eks-dns-policy", &iam.PolicyArgs{
		Policy: zone.Arn.ApplyT(func(arn string) (string, error) {
			b, err := json.Marshal(map[string]any{
				"Version": "2012-10-17",
				"Statement": []map[string]any{
					{
						"Effect":   "Allow",
						"Action":   []string{"route53:GetHostedZone", "route53:ListResourceRecordSets"},
						"Resource": arn,
					},
					{
						"Effect":   "Allow",
						"Action":   "route53:ChangeResourceRecordSets",
						"Resource": arn,
						"Condition": map[string]any{
							"ForAllValues:StringEquals": map[string]any{
								"route53:ChangeResourceRecordSetsRecordTypes": []string{"A", "AAAA", "CNAME", "TXT"},
							},
						},
					},
					{
						"Effect":   "Allow",
						"Action":   []string{"route53:ListHostedZones", "route53:GetChange"},
						"Resource": "*",
					},
				},
			})
			return string(b), err
		}).(pulumi.StringOutput),
	})
	if err != nil {
		return nil, err
	}

	res.Role, err = iam.NewRole(ctx, "eks-dns-role", &iam.RoleArgs{
		AssumeRolePolicy: pulumi.String(assumeRolePolicy(current.AccountId, args.ClusterOidcIssuer)),
	})
	if err != nil {
		return nil, err
	}
	_, err = iam.NewRolePolicyAttachment(ctx, "dns-policy-attachment", &iam.RolePolicyAttachmentArgs{
		Role:      res.Role.Name,
		PolicyArn: res.Policy.Arn,
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Route53 only signs with keys in us-east-1, so the signing key gets its
// own provider regardless of the stack's region.
func enableDnssec(ctx *pulumi.Context, args Args, accountID string, res *Resources) error {
	useast1, err := aws.NewProvider(ctx, "us-east-1", &aws.ProviderArgs{
		Region: pulumi.String("us-east-1"),
	})
	if err != nil {
		return err
	}

	policy, err := json.Marshal(map[string]any{
		"Version": "2012-10-17",
		"Id":      "route53-dnssec-key-policy",
		"Statement": []map[string]any{
			{
				"Sid":       "EnableRootPermissions",
				"Effect":    "Allow",
				"Principal": map[string]any{"AWS": fmt.Sprintf("arn:aws:iam::%s:root", accountID)},
				"Action":    "kms:*",
				"Resource":  "*",
			},
			{
				"Sid":       "AllowRoute53DNSSECService",
				"Effect":    "Allow",
				"Principal": map[string]any{"Service": "dnssec-route53.amazonaws.com"},
				"Action":    []string{"kms:DescribeKey", "kms:GetPublicKey", "kms:Sign"},
				"Resource":  "*",
			},
		},
	})
	if err != nil {
		return err
	}

	res.SigningKey, err = kms.NewKey(ctx, "eks-dnssec-kms-key", &kms.KeyArgs{
		Description:           pulumi.Sprintf("DNSSEC signing key for k8s.%s", args.Domain),
		KeyUsage:              pulumi.String("SIGN_VERIFY"),
		CustomerMasterKeySpec: pulumi.String("ECC_NIST_P256"),
		DeletionWindowInDays:  pulumi.Int(7),
		Policy:                pulumi.String(policy),
		Tags: pulumi.StringMap{
			"Environment": pulumi.String("production"),
			"Purpose":     pulumi.String("dnssec"),
		},
	}, pulumi.Provider(useast1))
	if err != nil {
		return err
	}
	_, err = kms.NewAlias(ctx, "eks-dnssec-kms-alias", &kms.AliasArgs{
		Name:        pulumi.Sprintf("alias/eks-dnssec-k8s-%s", strings.ReplaceAll(args.Domain, ".", "-")),
		TargetKeyId: res.SigningKey.KeyId,
	}, pulumi.Provider(useast1))
	if err != nil {
		return err
	}

	res.KSK, err = route53.NewKeySigningKey(ctx, "eks-dnssec-ksk", &route53.KeySigningKeyArgs{
		HostedZoneId:            res.Zone.ZoneId,
		KeyManagementServiceArn: res.SigningKey.Arn,
		Name:                    pulumi.String("ksk1"),
		Status:                  pulumi.String("ACTIVE"),
	}, pulumi.DependsOn([]pulumi.Resource{res.SigningKey}))
	if err != nil {
		return err
	}
	res.Dnssec, err = route53.NewHostedZoneDnsSec(ctx, "eks-dnssec-enable", &route53.HostedZoneDnsSecArgs{
		HostedZoneId: res.Zone.ZoneId,
	}, pulumi.DependsOn([]pulumi.Resource{res.KSK}))
	return err
}

// assumeRolePolicy trusts the cluster's OIDC provider for the External DNS
// service account only.
func assumeRolePolicy(accountID, issuerURL string) string {
	issuer := strings.TrimPrefix(issuerURL, "https://")
	doc, _ := json.Marshal(map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{
			{
				"Effect": "Allow",
				"Principal": map[string]any{
					"Federated": fmt.Sprintf("arn:aws:iam::%s:oidc-provider/%s", accountID, issuer),
				},
				"Action": "sts:AssumeRoleWithWebIdentity",
				"Condition": map[string]any{
					"StringEquals": map[string]any{
						issuer + ":sub": "system:serviceaccount:kube-system:external-dns",
						issuer + ":aud": "sts.amazonaws.com",
					},
				},
			},
		},
	})
	return string(doc)
}
