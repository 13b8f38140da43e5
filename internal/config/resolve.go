package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/indexcards/indexnet/internal/netcidr"
)

var (
	regionPattern       = regexp.MustCompile(`^(us|eu|ap|sa|ca|me|af|il|mx|cn)(-gov|-iso[a-z]?)?-(north|south|east|west|central|northeast|southeast|northwest|southwest)-[1-9]$`)
	instanceTypePattern = regexp.MustCompile(`^db\.[a-z0-9]+\.[a-z0-9]+$`)
)

// logRetentionValues are the retention periods CloudWatch Logs accepts. Zero
// means the log group never expires.
var logRetentionValues = []int{
	0, 1, 3, 5, 7, 14, 30, 60, 90, 120, 150, 180, 365, 400, 545, 731,
	1096, 1827, 2192, 2557, 2922, 3288, 3653,
}

// Resolve looks up name in reg and validates it. Unknown names fail with
// *UnknownEnvironmentError as returned by the registry. Fields are checked in
// a fixed order and the first missing or invalid one fails with
// *InvalidEnvironmentConfigError.
func Resolve(reg *Registry, name string) (EnvironmentConfig, error) {
	entry, err := reg.Get(name)
	if err != nil {
		return EnvironmentConfig{}, err
	}

	v := validator{env: name}
	cfg := EnvironmentConfig{Name: name}

	cfg.Region = v.str("region", entry.Region, checkRegion)
	cfg.VPCCIDR = v.str("vpcCidr", entry.VPCCIDR, checkVPCCIDR)
	cfg.EnableNATGateway = v.boolean("enableNatGateway", entry.EnableNATGateway)
	cfg.DBInstanceType = v.str("dbInstanceType", entry.DBInstanceType, func(s string) (string, error) {
		if !instanceTypePattern.MatchString(s) {
			return "must look like db.<family>.<size>", nil
		}
		return "", nil
	})
	cfg.DBAllocatedStorage = v.intRange("dbAllocatedStorage", entry.DBAllocatedStorage, 20, 65536)
	cfg.DBMultiAZ = v.boolean("dbMultiAz", entry.DBMultiAZ)
	cfg.DBBackupRetention = v.intRange("dbBackupRetention", entry.DBBackupRetention, 0, 35)
	cfg.DBDeletionProtection = v.boolean("dbDeletionProtection", entry.DBDeletionProtection)
	cfg.LambdaMemory = v.intRange("lambdaMemory", entry.LambdaMemory, 128, 10240)
	cfg.LambdaTimeout = v.intRange("lambdaTimeout", entry.LambdaTimeout, 1, 900)
	cfg.RequireApproval = v.boolean("requireApproval", entry.RequireApproval)
	cfg.EnableDetailedMonitoring = v.boolean("enableDetailedMonitoring", entry.EnableDetailedMonitoring)
	cfg.LogRetentionDays = v.retention("logRetentionDays", entry.LogRetentionDays)

	if v.err != nil {
		return EnvironmentConfig{}, v.err
	}
	return cfg, nil
}

func checkRegion(s string) (string, error) {
	if !regionPattern.MatchString(s) {
		return "must be an AWS region such as us-east-1", nil
	}
	return "", nil
}

// checkVPCCIDR requires a block that can hold one subnet per availability zone.
func checkVPCCIDR(s string) (string, error) {
	_, err := netcidr.Split(s, SubnetCIDRMask, AvailabilityZonesCount)
	if err != nil {
		return fmt.Sprintf("must be an IPv4 CIDR with room for %d /%d subnets",
			AvailabilityZonesCount, SubnetCIDRMask), err
	}
	return "", nil
}

// validator records the first violation; later checks become no-ops.
type validator struct {
	env string
	err *InvalidEnvironmentConfigError
}

func (v *validator) fail(field, constraint string, err error) {
	if v.err == nil {
		v.err = &InvalidEnvironmentConfigError{Environment: v.env, Field: field, Constraint: constraint, Err: err}
	}
}

func (v *validator) str(field string, p *string, check func(string) (string, error)) string {
	if v.err != nil {
		return ""
	}
	if p == nil || strings.TrimSpace(*p) == "" {
		v.fail(field, "is required", nil)
		return ""
	}
	if constraint, err := check(*p); constraint != "" {
		v.fail(field, constraint, err)
		return ""
	}
	return *p
}

func (v *validator) boolean(field string, p *bool) bool {
	if v.err != nil {
		return false
	}
	if p == nil {
		v.fail(field, "is required", nil)
		return false
	}
	return *p
}

func (v *validator) intRange(field string, p *int, lo, hi int) int {
	if v.err != nil {
		return 0
	}
	if p == nil {
		v.fail(field, "is required", nil)
		return 0
	}
	if *p < lo || *p > hi {
		v.fail(field, fmt.Sprintf("must be between %d and %d, got %d", lo, hi, *p), nil)
		return 0
	}
	return *p
}

func (v *validator) retention(field string, p *int) int {
	if v.err != nil {
		return 0
	}
	if p == nil {
		v.fail(field, "is required", nil)
		return 0
	}
	for _, allowed := range logRetentionValues {
		if *p == allowed {
			return *p
		}
	}
	if *p < 0 {
		v.fail(field, fmt.Sprintf("must not be negative, got %d", *p), nil)
		return 0
	}
	values := make([]string, 0, len(logRetentionValues))
	for _, d := range logRetentionValues {
		values = append(values, strconv.Itoa(d))
	}
	v.fail(field, fmt.Sprintf("must be one of %s, got %d", strings.Join(values, ", "), *p), nil)
	return 0
}
