package auth0infra

import (
	"strings"
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

type capturedResource struct {
	Type   string
	Name   string
	ID     string
	Inputs resource.PropertyMap
}

type testMocks struct {
	resources []capturedResource
}

func (m *testMocks) NewResource(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error) {
	id := args.Name + "_id"
	if args.ID != "" {
		id = args.ID
	}
	m.resources = append(m.resources, capturedResource{Type: args.TypeToken, Name: args.Name, ID: id, Inputs: args.Inputs})
	return id, args.Inputs, nil
}

func (m *testMocks) Call(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
	if strings.Contains(args.Token, "getZone") {
		return resource.PropertyMap{
			"zoneId": resource.NewStringProperty("Z123"),
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

func runStack(t *testing.T, args Args) *testMocks {
	t.Helper()
	mocks := &testMocks{}
	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		_, err := NewResources(ctx, args)
		return err
	}, pulumi.WithMocks("infra-auth0", "auth0", mocks))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return mocks
}

func TestClientShape(t *testing.T) {
	t.Parallel()
	mocks := runStack(t, Args{})

	clients := mocks.byType("auth0:index/client:Client")
	if len(clients) != 1 {
		t.Fatalf("expected one client, got %d", len(clients))
	}
	c := clients[0]
	if got := c.Inputs["appType"].StringValue(); got != "regular_web" {
		t.Fatalf("app type = %q", got)
	}
	if !c.Inputs["oidcConformant"].BoolValue() {
		t.Fatalf("client should be OIDC conformant")
	}
	jwt := c.Inputs["jwtConfiguration"].ObjectValue()
	if got := jwt["alg"].StringValue(); got != "RS256" {
		t.Fatalf("jwt alg = %q", got)
	}
	if got := jwt["lifetimeInSeconds"].NumberValue(); got != 36000 {
		t.Fatalf("jwt lifetime = %v", got)
	}
	refresh := c.Inputs["refreshToken"].ObjectValue()
	if got := refresh["rotationType"].StringValue(); got != "rotating" {
		t.Fatalf("refresh rotation = %q", got)
	}
	if got := refresh["tokenLifetime"].NumberValue(); got != 2592000 {
		t.Fatalf("refresh token lifetime = %v", got)
	}

	var callbacks []string
	for _, v := range c.Inputs["callbacks"].ArrayValue() {
		callbacks = append(callbacks, v.StringValue())
	}
	// four domains plus the internal k8s subdomain
	if len(callbacks) != 5 {
		t.Fatalf("expected five callbacks, got %d: %v", len(callbacks), callbacks)
	}
	found := false
	for _, cb := range callbacks {
		if cb == "https://auth.k8s.lightsphere.space/oauth2/callback" {
			found = true
		}
	}
	if !found {
		t.Fatalf("internal subdomain callback missing: %v", callbacks)
	}
}

func TestRoles(t *testing.T) {
	t.Parallel()
	mocks := runStack(t, Args{})

	roles := mocks.byType("auth0:index/role:Role")
	if len(roles) != 3 {
		t.Fatalf("expected three roles, got %d", len(roles))
	}
	names := map[string]bool{}
	for _, r := range roles {
		names[r.Inputs["name"].StringValue()] = true
	}
	for _, want := range []string{"Administrator", "Team Member", "Customer"} {
		if !names[want] {
			t.Fatalf("role %q missing", want)
		}
	}
}

func TestDNSAndCustomDomain(t *testing.T) {
	t.Parallel()
	mocks := runStack(t, Args{})

	records := mocks.byType("aws:route53/record:Record")
	if len(records) != len(DefaultDomains) {
		t.Fatalf("expected %d CNAME records, got %d", len(DefaultDomains), len(records))
	}
	for _, r := range records {
		if got := r.Inputs["type"].StringValue(); got != "CNAME" {
			t.Fatalf("record type = %q", got)
		}
		if got := r.Inputs["records"].ArrayValue()[0].StringValue(); got != edgeTarget {
			t.Fatalf("record target = %q", got)
		}
	}

	domains := mocks.byType("auth0:index/customDomain:CustomDomain")
	if len(domains) != 1 {
		t.Fatalf("expected one custom domain, got %d", len(domains))
	}
	d := domains[0]
	if got := d.Inputs["domain"].StringValue(); got != "auth.sosolola.cloud" {
		t.Fatalf("custom domain = %q", got)
	}
	if got := d.Inputs["type"].StringValue(); got != "auth0_managed_certs" {
		t.Fatalf("cert type = %q", got)
	}
	if d.ID != customDomainImportID {
		t.Fatalf("custom domain should adopt the live resource, id = %q", d.ID)
	}
}
