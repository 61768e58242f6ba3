// Package config centralizes the deployment configuration for the EKS
// programs. Every value has a sane default so a bare `pulumi up` deploys
// the standard development cluster.
package config

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	pulumiconfig "github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"
)

// Config carries the tunables shared by the cluster deployment programs.
type Config struct {
	AWSRegion string

	ClusterName    string
	ClusterVersion string

	NodeInstanceTypes []string
	NodeDesiredSize   int
	NodeMaxSize       int
	NodeMinSize       int
	NodeDiskSize      int

	VpcCidr             string
	PublicSubnetCidrs   []string
	EnableDnsHostnames  bool
	EnableDnsSupport    bool
	MapPublicIPOnLaunch bool

	EnableSpotInstances     bool
	EnableReservedInstances bool
	EnableClusterAutoscaler bool
	EnableScheduledScaling  bool
	EnableCostMonitoring    bool
	CostAlertThreshold      int

	UseExistingClusterRole  bool
	ExistingClusterRoleName string
	UseExistingNodeRole     bool
	ExistingNodeRoleName    string
	UseExistingKmsKey       bool
	ExistingKmsKeyArn       string

	ClusterEnabledLogTypes []string
	LogRetentionDays       int

	EnableVpcCniAddon    bool
	EnableCorednsAddon   bool
	EnableKubeProxyAddon bool

	AdditionalTags map[string]string
}

// Load reads the stack configuration, applying defaults for unset keys.
func Load(ctx *pulumi.Context) *Config {
	cfg := pulumiconfig.New(ctx, "")
	awsCfg := pulumiconfig.New(ctx, "aws")

	return &Config{
		AWSRegion: getString(awsCfg, "region", "af-south-1"),

		ClusterName:    getString(cfg, "cluster_name", "builder-space"),
		ClusterVersion: getString(cfg, "cluster_version", "1.32"),

		NodeInstanceTypes: getStringSlice(cfg, "node_instance_types", []string{"t4g.small", "t3.small"}),
		NodeDesiredSize:   getInt(cfg, "node_desired_size", 2),
		NodeMaxSize:       getInt(cfg, "node_max_size", 3),
		NodeMinSize:       getInt(cfg, "node_min_size", 1),
		NodeDiskSize:      getInt(cfg, "node_disk_size", 20),

		VpcCidr:             getString(cfg, "vpc_cidr", "10.0.0.0/16"),
		PublicSubnetCidrs:   getStringSlice(cfg, "public_subnet_cidrs", []string{"10.0.1.0/24", "10.0.2.0/24"}),
		EnableDnsHostnames:  getBool(cfg, "enable_dns_hostnames", true),
		EnableDnsSupport:    getBool(cfg, "enable_dns_support", true),
		MapPublicIPOnLaunch: getBool(cfg, "map_public_ip_on_launch", true),

		EnableSpotInstances:     getBool(cfg, "enable_spot_instances", false),
		EnableReservedInstances: getBool(cfg, "enable_reserved_instances", false),
		EnableClusterAutoscaler: getBool(cfg, "enable_cluster_autoscaler", false),
		EnableScheduledScaling:  getBool(cfg, "enable_scheduled_scaling", false),
		EnableCostMonitoring:    getBool(cfg, "enable_cost_monitoring", true),
		CostAlertThreshold:      getInt(cfg, "cost_alert_threshold", 100),

		UseExistingClusterRole:  getBool(cfg, "use_existing_cluster_role", false),
		ExistingClusterRoleName: getString(cfg, "existing_cluster_role_name", ""),
		UseExistingNodeRole:     getBool(cfg, "use_existing_node_role", false),
		ExistingNodeRoleName:    getString(cfg, "existing_node_role_name", ""),
		UseExistingKmsKey:       getBool(cfg, "use_existing_kms_key", false),
		ExistingKmsKeyArn:       getString(cfg, "existing_kms_key_arn", ""),

		ClusterEnabledLogTypes: getStringSlice(cfg, "cluster_enabled_log_types", []string{"api", "audit", "authenticator"}),
		LogRetentionDays:       getInt(cfg, "cloudwatch_log_group_retention_in_days", 30),

		EnableVpcCniAddon:    getBool(cfg, "enable_vpc_cni_addon", true),
		EnableCorednsAddon:   getBool(cfg, "enable_coredns_addon", true),
		EnableKubeProxyAddon: getBool(cfg, "enable_kube_proxy_addon", true),

		AdditionalTags: getStringMap(cfg, "tags"),
	}
}

// CommonTags returns the base resource tags merged with any configured extras.
func (c *Config) CommonTags() map[string]string {
	tags := map[string]string{
		"Environment": "development",
		"Project":     "builder-space-eks",
		"Repository":  "aiqs4/builder-space",
		"ManagedBy":   "pulumi",
		"CostCenter":  "development",
	}
	for k, v := range c.AdditionalTags {
		tags[k] = v
	}
	return tags
}

// CapacityType maps the spot toggle onto the node group capacity type.
func (c *Config) CapacityType() string {
	if c.EnableSpotInstances {
		return "SPOT"
	}
	return "ON_DEMAND"
}

// OptimizedInstanceTypes widens the instance pool when spot is enabled so
// interruptions have somewhere to reschedule.
func (c *Config) OptimizedInstanceTypes() []string {
	if c.EnableSpotInstances {
		return []string{"t4g.small", "t3.small", "t2.small"}
	}
	return c.NodeInstanceTypes
}

func getString(cfg *pulumiconfig.Config, key, def string) string {
	if v := cfg.Get(key); v != "" {
		return v
	}
	return def
}

func getInt(cfg *pulumiconfig.Config, key string, def int) int {
	if v, err := cfg.TryInt(key); err == nil {
		return v
	}
	return def
}

func getBool(cfg *pulumiconfig.Config, key string, def bool) bool {
	if v, err := cfg.TryBool(key); err == nil {
		return v
	}
	return def
}

func getStringSlice(cfg *pulumiconfig.Config, key string, def []string) []string {
	var v []string
	if err := cfg.TryObject(key, &v); err == nil && len(v) > 0 {
		return v
	}
	return def
}

func getStringMap(cfg *pulumiconfig.Config, key string) map[string]string {
	var v map[string]string
	if err := cfg.TryObject(key, &v); err == nil {
		return v
	}
	return map[string]string{}
}
