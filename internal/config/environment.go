package config

// EnvironmentEntry is one environment as written in the source document.
// Fields are pointers so that a missing key can be told apart from a zero value;
// Resolve turns an entry into an EnvironmentConfig.
type EnvironmentEntry struct {
	Region                   *string `yaml:"region"`
	VPCCIDR                  *string `yaml:"vpcCidr"`
	EnableNATGateway         *bool   `yaml:"enableNatGateway"`
	DBInstanceType           *string `yaml:"dbInstanceType"`
	DBAllocatedStorage       *int    `yaml:"dbAllocatedStorage"`
	DBMultiAZ                *bool   `yaml:"dbMultiAz"`
	DBBackupRetention        *int    `yaml:"dbBackupRetention"`
	DBDeletionProtection     *bool   `yaml:"dbDeletionProtection"`
	LambdaMemory             *int    `yaml:"lambdaMemory"`
	LambdaTimeout            *int    `yaml:"lambdaTimeout"`
	RequireApproval          *bool   `yaml:"requireApproval"`
	EnableDetailedMonitoring *bool   `yaml:"enableDetailedMonitoring"`
	LogRetentionDays         *int    `yaml:"logRetentionDays"`
}

func (e EnvironmentEntry) clone() EnvironmentEntry {
	return EnvironmentEntry{
		Region:                   clonePtr(e.Region),
		VPCCIDR:                  clonePtr(e.VPCCIDR),
		EnableNATGateway:         clonePtr(e.EnableNATGateway),
		DBInstanceType:           clonePtr(e.DBInstanceType),
		DBAllocatedStorage:       clonePtr(e.DBAllocatedStorage),
		DBMultiAZ:                clonePtr(e.DBMultiAZ),
		DBBackupRetention:        clonePtr(e.DBBackupRetention),
		DBDeletionProtection:     clonePtr(e.DBDeletionProtection),
		LambdaMemory:             clonePtr(e.LambdaMemory),
		LambdaTimeout:            clonePtr(e.LambdaTimeout),
		RequireApproval:          clonePtr(e.RequireApproval),
		EnableDetailedMonitoring: clonePtr(e.EnableDetailedMonitoring),
		LogRetentionDays:         clonePtr(e.LogRetentionDays),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// EnvironmentConfig is a validated deployment environment. It holds no
// references, so every copy is independent and the value cannot change once
// Resolve has returned it.
type EnvironmentConfig struct {
	Name                     string `json:"name" yaml:"name"`
	Region                   string `json:"region" yaml:"region"`
	VPCCIDR                  string `json:"vpcCidr" yaml:"vpcCidr"`
	EnableNATGateway         bool   `json:"enableNatGateway" yaml:"enableNatGateway"`
	DBInstanceType           string `json:"dbInstanceType" yaml:"dbInstanceType"`
	DBAllocatedStorage       int    `json:"dbAllocatedStorage" yaml:"dbAllocatedStorage"`
	DBMultiAZ                bool   `json:"dbMultiAz" yaml:"dbMultiAz"`
	DBBackupRetention        int    `json:"dbBackupRetention" yaml:"dbBackupRetention"`
	DBDeletionProtection     bool   `json:"dbDeletionProtection" yaml:"dbDeletionProtection"`
	LambdaMemory             int    `json:"lambdaMemory" yaml:"lambdaMemory"`
	LambdaTimeout            int    `json:"lambdaTimeout" yaml:"lambdaTimeout"`
	RequireApproval          bool   `json:"requireApproval" yaml:"requireApproval"`
	EnableDetailedMonitoring bool   `json:"enableDetailedMonitoring" yaml:"enableDetailedMonitoring"`
	LogRetentionDays         int    `json:"logRetentionDays" yaml:"logRetentionDays"`
}

// StackName is the deployment unit name, e.g. "IndexCards-Network-dev".
func (c EnvironmentConfig) StackName() string {
	return ProjectName + "-Network-" + c.Name
}
