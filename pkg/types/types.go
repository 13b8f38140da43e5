package types

import "time"

// NATGateway represents a NAT Gateway with its metadata
type NATGateway struct {
	ID               string
	VPCID            string
	SubnetID         string
	State            string
	ConnectivityType string // "private" or "public"
	Tags             map[string]string
}

// VPCEndpoint represents a VPC endpoint
type VPCEndpoint struct {
	ID          string
	VPCID       string
	ServiceName string
	Type        string // "Gateway" or "Interface"
	State       string
	RouteTables []string
	SubnetIDs   []string // Subnets = AZs for Interface endpoints
	PrivateDNS  bool
	Tags        map[string]string
}

// RouteTable represents a VPC route table
type RouteTable struct {
	ID      string
	VPCID   string
	Routes  []Route
	Subnets []string
	Main    bool
	Tags    map[string]string
}

// Route represents a single route in a route table
type Route struct {
	DestinationCIDR string
	Target          string
	TargetType      string // "nat-gateway", "local", "vpc-endpoint", etc.
}

// Subnet represents a deployed subnet
type Subnet struct {
	ID               string
	VPCID            string
	CIDR             string
	AvailabilityZone string
	Tags             map[string]string
}

// SecurityGroup represents a deployed security group and its rules
type SecurityGroup struct {
	ID          string
	VPCID       string
	Name        string
	Description string
	Ingress     []ObservedRule
	Egress      []ObservedRule
	Tags        map[string]string
}

// ObservedRule is one permission of a deployed security group. Exactly one of
// PeerGroupID and CIDR is set.
type ObservedRule struct {
	Protocol    string // "tcp", "udp", "-1" for all
	FromPort    int32
	ToPort      int32
	PeerGroupID string
	CIDR        string
}

// FlowLog represents a VPC Flow Log
type FlowLog struct {
	ID           string
	ResourceID   string
	Status       string
	TrafficType  string
	LogGroupName string
	CreationTime time.Time
}

// LogGroup represents a CloudWatch Logs group
type LogGroup struct {
	Name          string
	RetentionDays int // 0 = never expire
}

// ObservedNetwork is everything discovered for one deployed VPC.
type ObservedNetwork struct {
	VPCID          string
	CIDR           string
	Region         string
	Tags           map[string]string
	Subnets        []Subnet
	SecurityGroups []SecurityGroup
	Endpoints      []VPCEndpoint
	NATGateways    []NATGateway
	RouteTables    []RouteTable
	FlowLogs       []FlowLog
	LogGroups      []LogGroup
}

// Finding represents a drift between a plan and a deployed network
type Finding struct {
	Type        string // "cidr-mismatch", "missing-endpoint", etc.
	Severity    string // "high", "medium", "low"
	Title       string
	Description string
	VPCID       string
	Resource    string // plan resource name, e.g. "RdsSecurityGroup"
	Action      string
}

// CostEstimate represents the fixed monthly cost of one plan component
type CostEstimate struct {
	Component   string
	Units       int     // gateways, or endpoint ENIs
	HourlyRate  float64 // per unit
	MonthlyCost float64
}
