// Package auth0infra declares the Auth0 application, roles, custom domain,
// and Route53 records that front the OAuth2 Proxy login flow.
package auth0infra

import (
	"fmt"
	"strings"

	"github.com/pulumi/pulumi-auth0/sdk/v3/go/auth0"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/route53"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const (
	// DefaultTenantDomain is the Auth0 tenant the application lives in.
	DefaultTenantDomain = "tekanya.eu.auth0.com"
	// edgeTarget is the Auth0 edge hostname custom-domain CNAMEs point at.
	edgeTarget = "tekanya-cd-edaow2ksjrrcfbe8.edge.tenants.eu.auth0.com"
	// customDomainImportID adopts the live sosolola.cloud custom domain.
	customDomainImportID = "cd_edaOW2ksJRRcFBE8"
)

// DefaultDomains lists the domains that get auth.* DNS records. Only the
// primary domain becomes an Auth0 custom domain; the plan allows one.
var DefaultDomains = []string{
	"amano.services",
	"tekanya.services",
	"lightsphere.space",
	"sosolola.cloud",
}

// InternalSubdomains get callbacks without their own hosted zones here.
var InternalSubdomains = []string{"k8s.lightsphere.space"}

// Args configures the Auth0 layer.
type Args struct {
	TenantDomain  string
	PrimaryDomain string
	AuthSubdomain string
	Domains       []string
}

// Resources holds the Auth0 application and its supporting records.
type Resources struct {
	Args         Args
	Client       *auth0.Client
	AdminRole    *auth0.Role
	MemberRole   *auth0.Role
	CustomerRole *auth0.Role
	CustomDomain *auth0.CustomDomain
	CnameRecords map[string]*route53.Record
}

func normalize(args *Args) {
	if args.TenantDomain == "" {
		args.TenantDomain = DefaultTenantDomain
	}
	if args.PrimaryDomain == "" {
		args.PrimaryDomain = "sosolola.cloud"
	}
	if args.AuthSubdomain == "" {
		args.AuthSubdomain = "auth"
	}
	if len(args.Domains) == 0 {
		args.Domains = DefaultDomains
	}
}

// AuthDomains returns the auth.* hostnames for the configured domains.
func (a Args) AuthDomains() []string {
	out := make([]string, 0, len(a.Domains)+len(InternalSubdomains))
	for _, d := range a.Domains {
		out = append(out, fmt.Sprintf("%s.%s", a.AuthSubdomain, d))
	}
	for _, d := range InternalSubdomains {
		out = append(out, fmt.Sprintf("%s.%s", a.AuthSubdomain, d))
	}
	return out
}

// CallbackURLs returns the OAuth2 Proxy callback URL per auth domain.
func (a Args) CallbackURLs() []string {
	hosts := a.AuthDomains()
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, fmt.Sprintf("https://%s/oauth2/callback", h))
	}
	return out
}

func (a Args) originURLs() []string {
	hosts := a.AuthDomains()
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, fmt.Sprintf("https://%s", h))
	}
	return out
}

// NewResources declares the OAuth2 Proxy application, the user roles, the
// auth.* DNS records, and the primary custom domain.
func NewResources(ctx *pulumi.Context, args Args) (*Resources, error) {
	normalize(&args)

	client, err := auth0.NewClient(ctx, "oauth2-proxy", &auth0.ClientArgs{
		Name:              pulumi.String("OAuth2 Proxy"),
		Description:       pulumi.String("OAuth2 Proxy for Kubernetes Ingress Authentication"),
		AppType:           pulumi.String("regular_web"),
		Callbacks:         pulumi.ToStringArray(args.CallbackURLs()),
		AllowedLogoutUrls: pulumi.ToStringArray(args.originURLs()),
		WebOrigins:        pulumi.ToStringArray(args.originURLs()),
		OidcConformant:    pulumi.Bool(true),
		JwtConfiguration: &auth0.ClientJwtConfigurationArgs{
			Alg:               pulumi.String("RS256"),
			LifetimeInSeconds: pulumi.Int(36000),
		},
		GrantTypes: pulumi.ToStringArray([]string{"authorization_code", "refresh_token"}),
		RefreshToken: &auth0.ClientRefreshTokenArgs{
			RotationType:      pulumi.String("rotating"),
			ExpirationType:    pulumi.String("expiring"),
			Leeway:            pulumi.Int(0),
			TokenLifetime:     pulumi.Int(2592000),
			IdleTokenLifetime: pulumi.Int(1296000),
		},
	})
	if err != nil {
		return nil, err
	}

	res := &Resources{Args: args, Client: client, CnameRecords: map[string]*route53.Record{}}

	res.AdminRole, err = auth0.NewRole(ctx, "admin-role", &auth0.RoleArgs{
		Name:        pulumi.String("Administrator"),
		Description: pulumi.String("Full administrative access to all applications and services"),
	})
	if err != nil {
		return nil, err
	}
	res.MemberRole, err = auth0.NewRole(ctx, "member-role", &auth0.RoleArgs{
		Name:        pulumi.String("Team Member"),
		Description: pulumi.String("Access to internal tools and services"),
	})
	if err != nil {
		return nil, err
	}
	res.CustomerRole, err = auth0.NewRole(ctx, "customer-role", &auth0.RoleArgs{
		Name:        pulumi.String("Customer"),
		Description: pulumi.String("Access to customer-facing applications"),
	})
	if err != nil {
		return nil, err
	}

	for _, domain := range args.Domains {
		zone, err := route53.LookupZone(ctx, &route53.LookupZoneArgs{
			Name: pulumi.StringRef(domain + "."),
		})
		if err != nil {
			return nil, fmt.Errorf("looking up hosted zone for %s: %w", domain, err)
		}
		record, err := route53.NewRecord(ctx, fmt.Sprintf("auth-cname-%s", strings.ReplaceAll(domain, ".", "-")), &route53.RecordArgs{
			ZoneId:  pulumi.String(zone.ZoneId),
			Name:    pulumi.String(args.AuthSubdomain),
			Type:    pulumi.String("CNAME"),
			Ttl:     pulumi.Int(300),
			Records: pulumi.StringArray{pulumi.String(edgeTarget)},
		})
		if err != nil {
			return nil, err
		}
		res.CnameRecords[domain] = record
	}

	var customDomainOpts []pulumi.ResourceOption
	if args.PrimaryDomain == "sosolola.cloud" {
		customDomainOpts = append(customDomainOpts, pulumi.Import(pulumi.ID(customDomainImportID)))
	}
	res.CustomDomain, err = auth0.NewCustomDomain(ctx, fmt.Sprintf("auth-%s", strings.ReplaceAll(args.PrimaryDomain, ".", "-")), &auth0.CustomDomainArgs{
		Domain: pulumi.Sprintf("%s.%s", args.AuthSubdomain, args.PrimaryDomain),
		Type:   pulumi.String("auth0_managed_certs"),
	}, customDomainOpts...)
	if err != nil {
		return nil, err
	}

	return res, nil
}
