// Delegated DNS zone for the cluster: k8s.<domain> with optional DNSSEC
// signing and a zone-scoped role for External DNS.
package main

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	pulumiconfig "github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/aiqs4/builder-space/internal/dnszone"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		cfg := pulumiconfig.New(ctx, "")

		res, err := dnszone.NewResources(ctx, dnszone.Args{
			Domain:            cfg.Require("domain"),
			ParentZoneID:      cfg.Require("parentZoneId"),
			ClusterOidcIssuer: cfg.Require("clusterOidcIssuer"),
			EnableDnssec:      cfg.GetBool("enableDnssec"),
		})
		if err != nil {
			return err
		}

		ctx.Export("subdomain_zone_id", res.Zone.ZoneId)
		ctx.Export("subdomain_zone_name", res.Zone.Name)
		ctx.Export("subdomain_name_servers", res.Zone.NameServers)
		ctx.Export("dns_role_arn", res.Role.Arn)
		if res.KSK != nil {
			ctx.Export("dnssec_ds_record", res.KSK.DsRecord)
			ctx.Export("dnssec_kms_key_arn", res.SigningKey.Arn)
		} else {
			ctx.Export("dnssec_ds_record", pulumi.String(""))
			ctx.Export("dnssec_kms_key_arn", pulumi.String(""))
		}
		return nil
	})
}
