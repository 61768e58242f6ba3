// Package email wires the SES identities, WorkMail DNS records, and mail
// authentication policy for every platform domain. WorkMail itself manages
// DKIM, so those CNAMEs stay out of Pulumi.
package email

import (
	"fmt"
	"strings"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/route53"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ses"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const (
	// DefaultOrganizationID is the WorkMail organization the domains
	// belong to.
	DefaultOrganizationID = "m-6e08a2a35de44418ac00d3daa51bf5f2"
	// DefaultAlias is the WorkMail organization alias.
	DefaultAlias = "tekanya"
	// DefaultRegion hosts WorkMail; it only runs in us-east-1,
	// us-west-2, and eu-west-1.
	DefaultRegion = "us-east-1"

	spfValue     = "v=spf1 include:amazonses.com ~all"
	defaultDmarc = "v=DMARC1;p=quarantine;pct=100;fo=1"
	// The rua/ruf mailbox hostname carries a long-standing typo; the
	// record is reproduced as it exists so imports stay clean.
	lightsphereDmarc = "v=DMARC1; p=none; rua=mailto:info@lightshpere.space; ruf=mailto:info@lightshpere.space; sp=none; adkim=r; aspf=r"
)

// DefaultDomains lists every domain the organization receives mail on.
var DefaultDomains = []string{
	"amano.services",
	"tekanya.services",
	"lightsphere.space",
	"sosolola.cloud",
}

// Args configures the email infrastructure.
type Args struct {
	OrganizationID string
	Alias          string
	Region         string
	Domains        []string
	PrimaryDomain  string
}

// DomainResources holds the per-domain identity and DNS records.
type DomainResources struct {
	Identity     *ses.DomainIdentity
	ZoneID       string
	Verification *route53.Record
	MailFrom     *ses.MailFrom
	MX           *route53.Record
	Autodiscover *route53.Record
	SPF          *route53.Record
	DMARC        *route53.Record
}

// Resources holds the email layer keyed by domain.
type Resources struct {
	Args    Args
	Domains map[string]*DomainResources
}

func normalize(args *Args) {
	if args.OrganizationID == "" {
		args.OrganizationID = DefaultOrganizationID
	}
	if args.Alias == "" {
		args.Alias = DefaultAlias
	}
	if args.Region == "" {
		args.Region = DefaultRegion
	}
	if len(args.Domains) == 0 {
		args.Domains = DefaultDomains
	}
	if args.PrimaryDomain == "" {
		args.PrimaryDomain = "sosolola.cloud"
	}
}

// NewResources declares the SES identity and DNS record set for each domain.
func NewResources(ctx *pulumi.Context, args Args) (*Resources, error) {
	normalize(&args)

	res := &Resources{Args: args, Domains: map[string]*DomainResources{}}
	for _, domain := range args.Domains {
		dr, err := createDomain(ctx, args, domain)
		if err != nil {
			return nil, fmt.Errorf("email setup for %s: %w", domain, err)
		}
		res.Domains[domain] = dr
	}
	return res, nil
}

func createDomain(ctx *pulumi.Context, args Args, domain string) (*DomainResources, error) {
	suffix := dashed(domain)

	// Identities and mail-routing records predate this stack, so they
	// carry protect to survive accidental replaces.
	identity, err := ses.NewDomainIdentity(ctx, fmt.Sprintf("ses-%s", suffix), &ses.DomainIdentityArgs{
		Domain: pulumi.String(domain),
	}, pulumi.Protect(true))
	if err != nil {
		return nil, err
	}

	zone, err := route53.LookupZone(ctx, &route53.LookupZoneArgs{
		Name: pulumi.StringRef(domain + "."),
	})
	if err != nil {
		return nil, fmt.Errorf("looking up hosted zone: %w", err)
	}

	verification, err := route53.NewRecord(ctx, fmt.Sprintf("ses-verification-%s", suffix), &route53.RecordArgs{
		ZoneId:  pulumi.String(zone.ZoneId),
		Name:    pulumi.Sprintf("_amazonses.%s", domain),
		Type:    pulumi.String("TXT"),
		Ttl:     pulumi.Int(300),
		Records: pulumi.StringArray{identity.VerificationToken},
	}, pulumi.Protect(true))
	if err != nil {
		return nil, err
	}

	mailFrom, err := createMailFrom(ctx, args, suffix, domain, identity, zone.ZoneId)
	if err != nil {
		return nil, err
	}

	dr := &DomainResources{
		Identity:     identity,
		ZoneID:       zone.ZoneId,
		Verification: verification,
		MailFrom:     mailFrom,
	}
	if err := createWorkmailRecords(ctx, args, suffix, domain, zone.ZoneId, dr); err != nil {
		return nil, err
	}
	return dr, nil
}

func createMailFrom(ctx *pulumi.Context, args Args, suffix, domain string, identity *ses.DomainIdentity, zoneID string) (*ses.MailFrom, error) {
	mailFromDomain := fmt.Sprintf("mail.%s", domain)
	mailFrom, err := ses.NewMailFrom(ctx, fmt.Sprintf("ses-mail-from-%s", suffix), &ses.MailFromArgs{
		Domain:              identity.Domain,
		MailFromDomain:      pulumi.String(mailFromDomain),
		BehaviorOnMxFailure: pulumi.String("UseDefaultValue"),
	})
	if err != nil {
		return nil, err
	}

	_, err = route53.NewRecord(ctx, fmt.Sprintf("mail-from-mx-%s", suffix), &route53.RecordArgs{
		ZoneId:  pulumi.String(zoneID),
		Name:    pulumi.String(mailFromDomain),
		Type:    pulumi.String("MX"),
		Ttl:     pulumi.Int(300),
		Records: pulumi.StringArray{pulumi.Sprintf("10 feedback-smtp.%s.amazonses.com.", args.Region)},
	})
	if err != nil {
		return nil, err
	}

	_, err = route53.NewRecord(ctx, fmt.Sprintf("mail-from-spf-%s", suffix), &route53.RecordArgs{
		ZoneId:  pulumi.String(zoneID),
		Name:    pulumi.String(mailFromDomain),
		Type:    pulumi.String("TXT"),
		Ttl:     pulumi.Int(300),
		Records: pulumi.StringArray{pulumi.String(spfValue)},
	})
	if err != nil {
		return nil, err
	}
	return mailFrom, nil
}

func createWorkmailRecords(ctx *pulumi.Context, args Args, suffix, domain, zoneID string, dr *DomainResources) error {
	var err error
	dr.MX, err = route53.NewRecord(ctx, fmt.Sprintf("mx-%s", suffix), &route53.RecordArgs{
		ZoneId:  pulumi.String(zoneID),
		Name:    pulumi.String(domain),
		Type:    pulumi.String("MX"),
		Ttl:     pulumi.Int(300),
		Records: pulumi.StringArray{pulumi.Sprintf("10 inbound-smtp.%s.amazonaws.com.", args.Region)},
	}, pulumi.Protect(true))
	if err != nil {
		return err
	}

	dr.Autodiscover, err = route53.NewRecord(ctx, fmt.Sprintf("autodiscover-%s", suffix), &route53.RecordArgs{
		ZoneId:  pulumi.String(zoneID),
		Name:    pulumi.Sprintf("autodiscover.%s", domain),
		Type:    pulumi.String("CNAME"),
		Ttl:     pulumi.Int(300),
		Records: pulumi.StringArray{pulumi.Sprintf("autodiscover.mail.%s.awsapps.com.", args.Region)},
	}, pulumi.Protect(true))
	if err != nil {
		return err
	}

	dr.SPF, err = route53.NewRecord(ctx, fmt.Sprintf("spf-%s", suffix), &route53.RecordArgs{
		ZoneId:  pulumi.String(zoneID),
		Name:    pulumi.String(domain),
		Type:    pulumi.String("TXT"),
		Ttl:     pulumi.Int(300),
		Records: pulumi.StringArray{pulumi.String(spfValue)},
	}, pulumi.Protect(true))
	if err != nil {
		return err
	}

	dr.DMARC, err = route53.NewRecord(ctx, fmt.Sprintf("dmarc-%s", suffix), &route53.RecordArgs{
		ZoneId:  pulumi.String(zoneID),
		Name:    pulumi.Sprintf("_dmarc.%s", domain),
		Type:    pulumi.String("TXT"),
		Ttl:     pulumi.Int(300),
		Records: pulumi.StringArray{pulumi.String(DmarcValue(domain))},
	}, pulumi.Protect(true))
	return err
}

// DmarcValue returns the DMARC policy for a domain. Most domains quarantine;
// lightsphere.space keeps its historical monitoring-only record.
func DmarcValue(domain string) string {
	if domain == "lightsphere.space" {
		return lightsphereDmarc
	}
	return defaultDmarc
}

// WebmailURL returns the WorkMail console URL for the organization alias.
func (r *Resources) WebmailURL() string {
	return fmt.Sprintf("https://%s.awsapps.com/mail", r.Args.Alias)
}

func dashed(domain string) string {
	return strings.ReplaceAll(domain, ".", "-")
}
