package types

import (
	"errors"
	"fmt"
	"time"
)

// IsolationClass describes a subnet's reachability.
type IsolationClass string

// SubnetPrivateIsolated subnets have no route to the internet.
const SubnetPrivateIsolated IsolationClass = "PRIVATE_ISOLATED"

// SubnetDescriptor is one subnet carved from the VPC block.
type SubnetDescriptor struct {
	Name      string         `json:"name" yaml:"name"`
	CIDR      string         `json:"cidr" yaml:"cidr"`
	Mask      int            `json:"mask" yaml:"mask"`
	AZIndex   int            `json:"azIndex" yaml:"azIndex"`
	Isolation IsolationClass `json:"isolation" yaml:"isolation"`
}

// RuleDirection is "ingress" or "egress".
type RuleDirection string

const (
	Ingress RuleDirection = "ingress"
	Egress  RuleDirection = "egress"
)

// ProtocolAll matches every IP protocol.
const ProtocolAll = "-1"

// SecurityGroupRule is a single permission. Exactly one of PeerGroup (the
// name of another group in the same plan) and PeerCIDR is set. Ports are
// ignored when Protocol is ProtocolAll.
type SecurityGroupRule struct {
	Direction   RuleDirection `json:"direction" yaml:"direction"`
	Protocol    string        `json:"protocol" yaml:"protocol"`
	FromPort    int           `json:"fromPort" yaml:"fromPort"`
	ToPort      int           `json:"toPort" yaml:"toPort"`
	PeerGroup   string        `json:"peerGroup,omitempty" yaml:"peerGroup,omitempty"`
	PeerCIDR    string        `json:"peerCidr,omitempty" yaml:"peerCidr,omitempty"`
	Description string        `json:"description" yaml:"description"`
}

// SecurityGroupDescriptor is a security group and all of its rules. A group
// with no egress rules allows no outbound traffic.
type SecurityGroupDescriptor struct {
	Name        string              `json:"name" yaml:"name"`
	Description string              `json:"description" yaml:"description"`
	Rules       []SecurityGroupRule `json:"rules" yaml:"rules"`
}

// RulesFor returns the group's rules in the given direction.
func (g SecurityGroupDescriptor) RulesFor(d RuleDirection) []SecurityGroupRule {
	var out []SecurityGroupRule
	for _, r := range g.Rules {
		if r.Direction == d {
			out = append(out, r)
		}
	}
	return out
}

// EndpointKind matches the EC2 VpcEndpointType values.
type EndpointKind string

const (
	EndpointGateway   EndpointKind = "Gateway"
	EndpointInterface EndpointKind = "Interface"
)

// EndpointDescriptor is a private connection to a provider service.
type EndpointDescriptor struct {
	Name        string       `json:"name" yaml:"name"`
	Service     string       `json:"service" yaml:"service"`         // short identifier, e.g. "s3"
	ServiceName string       `json:"serviceName" yaml:"serviceName"` // e.g. "com.amazonaws.us-east-1.s3"
	Kind        EndpointKind `json:"kind" yaml:"kind"`
	PrivateDNS  bool         `json:"privateDns" yaml:"privateDns"`
}

// LoggingSink captures VPC traffic metadata.
type LoggingSink struct {
	Name             string `json:"name" yaml:"name"`
	LogGroupName     string `json:"logGroupName" yaml:"logGroupName"`
	TrafficType      string `json:"trafficType" yaml:"trafficType"`           // "ALL", "ACCEPT", "REJECT"
	Destination      string `json:"destination" yaml:"destination"`           // "cloud-watch-logs"
	RetentionDays    int    `json:"retentionDays" yaml:"retentionDays"`       // 0 = never expire
	RemoveOnTeardown bool   `json:"removeOnTeardown" yaml:"removeOnTeardown"` // log group deleted with the stack
}

// ExportNames are the cross-stack identifiers published after provisioning.
type ExportNames struct {
	VPCID                 string `json:"vpcId" yaml:"vpcId"`
	LambdaSecurityGroupID string `json:"lambdaSecurityGroupId" yaml:"lambdaSecurityGroupId"`
	RDSSecurityGroupID    string `json:"rdsSecurityGroupId" yaml:"rdsSecurityGroupId"`
}

// NetworkTopologyPlan fully describes the network stack of one environment.
// It is built fresh per call and never shared.
type NetworkTopologyPlan struct {
	Environment     string                    `json:"environment" yaml:"environment"`
	StackName       string                    `json:"stackName" yaml:"stackName"`
	Region          string                    `json:"region" yaml:"region"`
	VPCCIDR         string                    `json:"vpcCidr" yaml:"vpcCidr"`
	Subnets         []SubnetDescriptor        `json:"subnets" yaml:"subnets"`
	NATGatewayCount int                       `json:"natGatewayCount" yaml:"natGatewayCount"`
	SecurityGroups  []SecurityGroupDescriptor `json:"securityGroups" yaml:"securityGroups"`
	Endpoints       []EndpointDescriptor      `json:"endpoints" yaml:"endpoints"`
	FlowLog         LoggingSink               `json:"flowLog" yaml:"flowLog"`
	Tags            ResourceTagSet            `json:"tags" yaml:"tags"`
	Exports         ExportNames               `json:"exports" yaml:"exports"`
}

// SecurityGroup returns the named group.
func (p *NetworkTopologyPlan) SecurityGroup(name string) (SecurityGroupDescriptor, bool) {
	for _, g := range p.SecurityGroups {
		if g.Name == name {
			return g, true
		}
	}
	return SecurityGroupDescriptor{}, false
}

// Endpoint returns the endpoint for a short service identifier.
func (p *NetworkTopologyPlan) Endpoint(service string) (EndpointDescriptor, bool) {
	for _, e := range p.Endpoints {
		if e.Service == service {
			return e, true
		}
	}
	return EndpointDescriptor{}, false
}

// Validate checks the structural invariants of the plan: unique group names,
// no rule pointing at a group that is not in the plan, and every rule naming
// exactly one peer.
func (p *NetworkTopologyPlan) Validate() error {
	var errs []error

	names := make(map[string]bool, len(p.SecurityGroups))
	for _, g := range p.SecurityGroups {
		if names[g.Name] {
			errs = append(errs, fmt.Errorf("security group %s defined twice", g.Name))
		}
		names[g.Name] = true
	}

	for _, g := range p.SecurityGroups {
		for i, r := range g.Rules {
			switch {
			case r.PeerGroup != "" && r.PeerCIDR != "":
				errs = append(errs, fmt.Errorf("security group %s rule %d: both peer group and CIDR set", g.Name, i))
			case r.PeerGroup == "" && r.PeerCIDR == "":
				errs = append(errs, fmt.Errorf("security group %s rule %d: no peer", g.Name, i))
			case r.PeerGroup != "" && !names[r.PeerGroup]:
				errs = append(errs, fmt.Errorf("security group %s rule %d: references unknown group %s", g.Name, i, r.PeerGroup))
			}
			if r.Direction != Ingress && r.Direction != Egress {
				errs = append(errs, fmt.Errorf("security group %s rule %d: unknown direction %q", g.Name, i, r.Direction))
			}
		}
	}

	if err := p.Tags.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// StackOutputs records what was provisioned for a plan. It is written after
// apply and is the input to audit and destroy.
type StackOutputs struct {
	StackName   string            `json:"stackName" yaml:"stackName"`
	Environment string            `json:"environment" yaml:"environment"`
	Region      string            `json:"region" yaml:"region"`
	AccountID   string            `json:"accountId,omitempty" yaml:"accountId,omitempty"`
	CreatedAt   time.Time         `json:"createdAt" yaml:"createdAt"`
	Exports     map[string]string `json:"exports" yaml:"exports"` // export name -> resource id

	VPCID             string            `json:"vpcId" yaml:"vpcId"`
	SubnetIDs         []string          `json:"subnetIds" yaml:"subnetIds"`
	SecurityGroupIDs  map[string]string `json:"securityGroupIds" yaml:"securityGroupIds"` // plan name -> id
	EndpointIDs       map[string]string `json:"endpointIds" yaml:"endpointIds"`           // service -> id
	NATGatewayIDs     []string          `json:"natGatewayIds,omitempty" yaml:"natGatewayIds,omitempty"`
	FlowLogID         string            `json:"flowLogId,omitempty" yaml:"flowLogId,omitempty"`
	LogGroupName      string            `json:"logGroupName,omitempty" yaml:"logGroupName,omitempty"`
	RemoveLogGroup    bool              `json:"removeLogGroup" yaml:"removeLogGroup"`
	FlowLogRoleName   string            `json:"flowLogRoleName,omitempty" yaml:"flowLogRoleName,omitempty"`
	AvailabilityZones []string          `json:"availabilityZones" yaml:"availabilityZones"`
}
