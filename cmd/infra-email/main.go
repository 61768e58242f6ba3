// Email infrastructure: SES identities, WorkMail DNS, and mail policy for
// every platform domain.
package main

import (
	"fmt"
	"strings"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	pulumiconfig "github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/aiqs4/builder-space/internal/email"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		cfg := pulumiconfig.New(ctx, "")

		args := email.Args{
			OrganizationID: cfg.Get("workmail_org_id"),
			Alias:          cfg.Get("workmail_alias"),
			PrimaryDomain:  cfg.Get("primary_domain"),
		}
		var domains []string
		if err := cfg.TryObject("domains", &domains); err == nil {
			args.Domains = domains
		}

		res, err := email.NewResources(ctx, args)
		if err != nil {
			return err
		}
		args = res.Args

		ctx.Export("workmail_organization", pulumi.Map{
			"id":             pulumi.String(args.OrganizationID),
			"alias":          pulumi.String(args.Alias),
			"region":         pulumi.String(args.Region),
			"default_domain": pulumi.Sprintf("%s.awsapps.com", args.Alias),
			"console_url":    pulumi.String(res.WebmailURL()),
		})
		ctx.Export("domains_configured", pulumi.ToStringArray(args.Domains))

		sesDomains := pulumi.Map{}
		zoneIDs := pulumi.Map{}
		dnsCreated := pulumi.Map{}
		for domain, dr := range res.Domains {
			sesDomains[domain] = pulumi.Map{
				"identity":           dr.Identity.Domain,
				"arn":                dr.Identity.Arn,
				"verification_token": dr.Identity.VerificationToken,
			}
			zoneIDs[domain] = pulumi.String(dr.ZoneID)
			dnsCreated[domain] = pulumi.Map{
				"mx":           pulumi.Sprintf("10 inbound-smtp.%s.amazonaws.com", args.Region),
				"autodiscover": pulumi.Sprintf("autodiscover.mail.%s.awsapps.com", args.Region),
				"spf":          pulumi.String("v=spf1 include:amazonses.com ~all"),
				"dmarc":        pulumi.String(email.DmarcValue(domain)),
			}
		}
		ctx.Export("ses_domains", sesDomains)
		ctx.Export("hosted_zone_ids", zoneIDs)
		ctx.Export("dns_records_created", dnsCreated)

		joined := strings.Join(args.Domains, " ")
		ctx.Export("verification_status", pulumi.Map{
			"note": pulumi.Sprintf("Check verification status with: aws ses get-identity-verification-attributes --region %s --identities %s", args.Region, joined),
		})
		ctx.Export("next_steps", pulumi.String(nextSteps(args, joined, res.WebmailURL())))
		return nil
	})
}

func nextSteps(args email.Args, joined, webmail string) string {
	var b strings.Builder
	b.WriteString("Email infrastructure configured.\n\nDomains:\n")
	for _, d := range args.Domains {
		fmt.Fprintf(&b, "  - %s\n", d)
	}
	fmt.Fprintf(&b, `
Next steps:

1. Wait for DNS propagation (5-10 minutes):
   dig MX %[1]s
   dig TXT _amazonses.%[1]s

2. Verify SES domains:
   aws ses get-identity-verification-attributes --region %[2]s --identities %[3]s

3. Check WorkMail domains:
   aws workmail list-mail-domains --organization-id %[4]s --region %[2]s

4. Access the WorkMail console: %[5]s

5. Add per-domain aliases to your WorkMail users in the console.

6. Send a test mail:
   aws ses send-email --region %[2]s --from you@%[6]s --destination ToAddresses=your.email@example.com
`, args.Domains[0], args.Region, joined, args.OrganizationID, webmail, args.PrimaryDomain)
	return b.String()
}
