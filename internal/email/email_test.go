package email

import (
	"strings"
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

type capturedResource struct {
	Type   string
	Name   string
	Inputs resource.PropertyMap
}

type testMocks struct {
	resources []capturedResource
}

func (m *testMocks) NewResource(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error) {
	m.resources = append(m.resources, capturedResource{Type: args.TypeToken, Name: args.Name, Inputs: args.Inputs})
	outputs := args.Inputs.Copy()
	if args.TypeToken == "aws:ses/domainIdentity:DomainIdentity" {
		outputs["verificationToken"] = resource.NewStringProperty("token-" + args.Name)
		outputs["arn"] = resource.NewStringProperty("arn:aws:ses:us-east-1:123456789012:identity/" + args.Name)
	}
	return args.Name + "_id", outputs, nil
}

func (m *testMocks) Call(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
	if strings.Contains(args.Token, "getZone") {
		name := args.Args["name"].StringValue()
		return resource.PropertyMap{
			"zoneId": resource.NewStringProperty("Z" + strings.ToUpper(strings.ReplaceAll(strings.TrimSuffix(name, "."), ".", ""))),
			"name":   resource.NewStringProperty(name),
		}, nil
	}
	return resource.PropertyMap{}, nil
}

func (m *testMocks) byType(typ string) []capturedResource {
	var out []capturedResource
	for _, r := range m.resources {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

func (m *testMocks) record(name string) (capturedResource, bool) {
	for _, r := range m.resources {
		if r.Type == "aws:route53/record:Record" && r.Name == name {
			return r, true
		}
	}
	return capturedResource{}, false
}

func runStack(t *testing.T, args Args) *testMocks {
	t.Helper()
	mocks := &testMocks{}
	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		_, err := NewResources(ctx, args)
		return err
	}, pulumi.WithMocks("infra-email", "email", mocks))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return mocks
}

func TestPerDomainResourceSet(t *testing.T) {
	t.Parallel()
	mocks := runStack(t, Args{})

	identities := mocks.byType("aws:ses/domainIdentity:DomainIdentity")
	if len(identities) != len(DefaultDomains) {
		t.Fatalf("expected %d identities, got %d", len(DefaultDomains), len(identities))
	}
	mailFroms := mocks.byType("aws:ses/mailFrom:MailFrom")
	if len(mailFroms) != len(DefaultDomains) {
		t.Fatalf("expected %d mail-from configs, got %d", len(DefaultDomains), len(mailFroms))
	}
	// verification, mail-from MX, mail-from SPF, apex MX, autodiscover,
	// apex SPF, and DMARC per domain
	records := mocks.byType("aws:route53/record:Record")
	if want := len(DefaultDomains) * 7; len(records) != want {
		t.Fatalf("expected %d records, got %d", want, len(records))
	}
}

func TestVerificationRecord(t *testing.T) {
	t.Parallel()
	mocks := runStack(t, Args{Domains: []string{"tekanya.services"}})

	r, ok := mocks.record("ses-verification-tekanya-services")
	if !ok {
		t.Fatalf("verification record missing")
	}
	if got := r.Inputs["name"].StringValue(); got != "_amazonses.tekanya.services" {
		t.Fatalf("record name = %q", got)
	}
	if got := r.Inputs["type"].StringValue(); got != "TXT" {
		t.Fatalf("record type = %q", got)
	}
	if got := r.Inputs["ttl"].NumberValue(); got != 300 {
		t.Fatalf("record ttl = %v", got)
	}
	if got := r.Inputs["records"].ArrayValue()[0].StringValue(); !strings.HasPrefix(got, "token-") {
		t.Fatalf("verification token not wired, got %q", got)
	}
}

func TestMailRoutingRecords(t *testing.T) {
	t.Parallel()
	mocks := runStack(t, Args{Domains: []string{"sosolola.cloud"}})

	mx, ok := mocks.record("mx-sosolola-cloud")
	if !ok {
		t.Fatalf("apex MX record missing")
	}
	if got := mx.Inputs["records"].ArrayValue()[0].StringValue(); got != "10 inbound-smtp.us-east-1.amazonaws.com." {
		t.Fatalf("apex MX = %q", got)
	}

	auto, ok := mocks.record("autodiscover-sosolola-cloud")
	if !ok {
		t.Fatalf("autodiscover record missing")
	}
	if got := auto.Inputs["records"].ArrayValue()[0].StringValue(); got != "autodiscover.mail.us-east-1.awsapps.com." {
		t.Fatalf("autodiscover target = %q", got)
	}

	mailFromMx, ok := mocks.record("mail-from-mx-sosolola-cloud")
	if !ok {
		t.Fatalf("mail-from MX record missing")
	}
	if got := mailFromMx.Inputs["name"].StringValue(); got != "mail.sosolola.cloud" {
		t.Fatalf("mail-from domain = %q", got)
	}
	if got := mailFromMx.Inputs["records"].ArrayValue()[0].StringValue(); got != "10 feedback-smtp.us-east-1.amazonses.com." {
		t.Fatalf("mail-from MX = %q", got)
	}
}

func TestDmarcPolicy(t *testing.T) {
	t.Parallel()
	mocks := runStack(t, Args{Domains: []string{"lightsphere.space", "amano.services"}})

	ls, ok := mocks.record("dmarc-lightsphere-space")
	if !ok {
		t.Fatalf("lightsphere DMARC record missing")
	}
	got := ls.Inputs["records"].ArrayValue()[0].StringValue()
	if !strings.Contains(got, "p=none") || !strings.Contains(got, "info@lightshpere.space") {
		t.Fatalf("lightsphere DMARC override wrong: %q", got)
	}

	am, ok := mocks.record("dmarc-amano-services")
	if !ok {
		t.Fatalf("amano DMARC record missing")
	}
	if got := am.Inputs["records"].ArrayValue()[0].StringValue(); got != "v=DMARC1;p=quarantine;pct=100;fo=1" {
		t.Fatalf("default DMARC = %q", got)
	}
}
