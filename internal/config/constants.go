package config

// Project-wide constants shared by the planner and the provisioning adapter.
const (
	ProjectName  = "IndexCards"
	DatabaseName = "card_collection"

	// AvailabilityZonesCount is the number of zones the network spans, one
	// isolated subnet per zone.
	AvailabilityZonesCount = 2

	// SubnetCIDRMask is the prefix length of every subnet carved from the VPC block.
	SubnetCIDRMask = 24

	// DatabasePort is the MySQL port opened from the compute tier.
	DatabasePort = 3306

	// FlowLogRetentionDays is fixed regardless of the environment's own log retention.
	FlowLogRetentionDays = 7

	LambdaRuntime = "python3.11"
)

// Endpoint service short names.
const (
	EndpointS3             = "s3"
	EndpointSecretsManager = "secretsmanager"
	EndpointCloudWatchLogs = "logs"
)

// Defaults for environment and config source resolution.
const (
	DefaultEnvironment = "dev"
	DefaultConfigFile  = "environments.yaml"

	EnvVarEnvironment = "INDEXNET_ENV"
	EnvVarConfig      = "INDEXNET_CONFIG"
)
