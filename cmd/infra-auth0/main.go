// Auth0 tenant configuration for OAuth2 Proxy: the application, user roles,
// custom domain, and the auth.* DNS records across every platform domain.
package main

import (
	"fmt"
	"strings"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	pulumiconfig "github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/aiqs4/builder-space/internal/auth0infra"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		cfg := pulumiconfig.New(ctx, "")
		auth0Cfg := pulumiconfig.New(ctx, "auth0")

		args := auth0infra.Args{
			TenantDomain:  auth0Cfg.Get("domain"),
			PrimaryDomain: cfg.Get("primary_domain"),
			AuthSubdomain: cfg.Get("auth_subdomain"),
		}
		var domains []string
		if err := cfg.TryObject("domains", &domains); err == nil {
			args.Domains = domains
		}

		res, err := auth0infra.NewResources(ctx, args)
		if err != nil {
			return err
		}
		args = res.Args

		ctx.Export("auth0_tenant_domain", pulumi.String(args.TenantDomain))
		ctx.Export("auth0_client_id", res.Client.ClientId)
		ctx.Export("auth0_application_id", res.Client.ID())
		ctx.Export("auth0_client_secret_note", pulumi.String(
			"Retrieve from Auth0 Dashboard > Applications > OAuth2 Proxy > Settings"))

		ctx.Export("role_ids", pulumi.Map{
			"admin":    res.AdminRole.ID(),
			"member":   res.MemberRole.ID(),
			"customer": res.CustomerRole.ID(),
		})

		authDomains := args.AuthDomains()
		ctx.Export("custom_domains", pulumi.ToStringArray(authDomains))
		ctx.Export("custom_domain_status", pulumi.Map{
			args.PrimaryDomain: res.CustomDomain.Status,
		})
		ctx.Export("custom_domain_origins", pulumi.Map{
			args.PrimaryDomain: res.CustomDomain.OriginDomainName,
		})

		cnames := pulumi.Map{}
		for domain, record := range res.CnameRecords {
			cnames[domain] = record.Fqdn
		}
		ctx.Export("route53_cnames", cnames)

		ctx.Export("oauth2_proxy_config", pulumi.Map{
			"tenant_domain":  pulumi.String(args.TenantDomain),
			"issuer_url":     pulumi.Sprintf("https://%s/", args.TenantDomain),
			"client_id":      res.Client.ClientId,
			"redirect_urls":  pulumi.ToStringArray(args.CallbackURLs()),
			"custom_domains": pulumi.ToStringArray(authDomains),
			"email_domains":  pulumi.ToStringArray([]string{"*"}),
		})

		ctx.Export("next_steps", res.Client.ClientId.ApplyT(func(clientID string) string {
			return nextSteps(args, authDomains, clientID)
		}).(pulumi.StringOutput))
		return nil
	})
}

func nextSteps(args auth0infra.Args, authDomains []string, clientID string) string {
	var b strings.Builder
	b.WriteString("Auth0 configuration complete.\n\nAuth domains:\n")
	for _, d := range authDomains {
		fmt.Fprintf(&b, "  - https://%s\n", d)
	}
	fmt.Fprintf(&b, `
Next steps:

1. Copy the client secret from the Auth0 dashboard
   (Applications > OAuth2 Proxy > Settings).

2. Wait for the custom domain to show Ready under
   Branding > Custom Domains; the Route53 records already exist.

3. Update the infra-k8s stack:
   pulumi config set auth0_tenant_domain %s
   pulumi config set --secret auth0_client_id %s
   pulumi config set --secret auth0_client_secret <from step 1>

4. Test the login flow on https://%s with a Google account.
`, args.TenantDomain, clientID, authDomains[0])
	return b.String()
}
