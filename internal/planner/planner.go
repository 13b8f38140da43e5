// Package planner turns a resolved environment into a network topology plan.
// Planning is pure: no provider calls, no shared state.
package planner

import (
	"fmt"

	"github.com/indexcards/indexnet/internal/config"
	"github.com/indexcards/indexnet/internal/netcidr"
	"github.com/indexcards/indexnet/pkg/types"
)

// Logical resource names used in the plan and by the provisioner.
const (
	ComputeSecurityGroup  = "LambdaSecurityGroup"
	DatabaseSecurityGroup = "RdsSecurityGroup"

	S3Endpoint             = "S3Endpoint"
	SecretsManagerEndpoint = "SecretsManagerEndpoint"
	CloudWatchLogsEndpoint = "CloudWatchLogsEndpoint"

	FlowLogName = "VpcFlowLog"

	// FlowLogDestination is the EC2 LogDestinationType for CloudWatch Logs.
	FlowLogDestination = "cloud-watch-logs"
	FlowLogTrafficAll  = "ALL"

	subnetNamePrefix = "Private"
)

// Plan derives the network topology for cfg. A malformed vpcCidr fails with
// *netcidr.InvalidCIDRError before any subnet arithmetic; a block that cannot
// hold the isolated subnets fails with *netcidr.AddressSpaceExhaustedError.
func Plan(cfg config.EnvironmentConfig) (*types.NetworkTopologyPlan, error) {
	blocks, err := netcidr.Split(cfg.VPCCIDR, config.SubnetCIDRMask, config.AvailabilityZonesCount)
	if err != nil {
		return nil, err
	}

	subnets := make([]types.SubnetDescriptor, 0, len(blocks))
	for i, b := range blocks {
		subnets = append(subnets, types.SubnetDescriptor{
			Name:      fmt.Sprintf("%sSubnet%d", subnetNamePrefix, i+1),
			CIDR:      b.String(),
			Mask:      b.Bits(),
			AZIndex:   i,
			Isolation: types.SubnetPrivateIsolated,
		})
	}

	natCount := 0
	if cfg.EnableNATGateway {
		natCount = 1
	}

	tags, err := NewTagBuilder(cfg.Name).WithStack(StackComponentNetwork).Build()
	if err != nil {
		return nil, err
	}

	stack := cfg.StackName()
	plan := &types.NetworkTopologyPlan{
		Environment:     cfg.Name,
		StackName:       stack,
		Region:          cfg.Region,
		VPCCIDR:         cfg.VPCCIDR,
		Subnets:         subnets,
		NATGatewayCount: natCount,
		SecurityGroups:  securityGroups(),
		Endpoints:       endpoints(cfg.Region),
		FlowLog: types.LoggingSink{
			Name:             FlowLogName,
			LogGroupName:     FlowLogGroupName(stack),
			TrafficType:      FlowLogTrafficAll,
			Destination:      FlowLogDestination,
			RetentionDays:    config.FlowLogRetentionDays,
			RemoveOnTeardown: true,
		},
		Tags:    tags,
		Exports: ExportNamesFor(stack),
	}

	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("plan for %s: %w", cfg.Name, err)
	}
	return plan, nil
}

func securityGroups() []types.SecurityGroupDescriptor {
	return []types.SecurityGroupDescriptor{
		{
			Name:        ComputeSecurityGroup,
			Description: "Security group for Lambda functions",
			Rules: []types.SecurityGroupRule{{
				Direction:   types.Egress,
				Protocol:    types.ProtocolAll,
				PeerCIDR:    "0.0.0.0/0",
				Description: "Allow all outbound traffic by default",
			}},
		},
		{
			Name:        DatabaseSecurityGroup,
			Description: "Security group for RDS MySQL instance",
			Rules: []types.SecurityGroupRule{{
				Direction:   types.Ingress,
				Protocol:    "tcp",
				FromPort:    config.DatabasePort,
				ToPort:      config.DatabasePort,
				PeerGroup:   ComputeSecurityGroup,
				Description: "Allow Lambda functions to access RDS",
			}},
		},
	}
}

func endpoints(region string) []types.EndpointDescriptor {
	return []types.EndpointDescriptor{
		{
			Name:        S3Endpoint,
			Service:     config.EndpointS3,
			ServiceName: ServiceName(region, config.EndpointS3),
			Kind:        types.EndpointGateway,
		},
		{
			Name:        SecretsManagerEndpoint,
			Service:     config.EndpointSecretsManager,
			ServiceName: ServiceName(region, config.EndpointSecretsManager),
			Kind:        types.EndpointInterface,
			PrivateDNS:  true,
		},
		{
			Name:        CloudWatchLogsEndpoint,
			Service:     config.EndpointCloudWatchLogs,
			ServiceName: ServiceName(region, config.EndpointCloudWatchLogs),
			Kind:        types.EndpointInterface,
			PrivateDNS:  true,
		},
	}
}

// ServiceName returns the full endpoint service name, e.g.
// "com.amazonaws.us-east-1.s3".
func ServiceName(region, service string) string {
	return fmt.Sprintf("com.amazonaws.%s.%s", region, service)
}

// FlowLogGroupName is the CloudWatch Logs group receiving the stack's flow log.
func FlowLogGroupName(stack string) string {
	return "/aws/vpc/flowlogs/" + stack
}

// ExportNamesFor returns the cross-stack export names of a stack.
func ExportNamesFor(stack string) types.ExportNames {
	return types.ExportNames{
		VPCID:                 stack + "-VpcId",
		LambdaSecurityGroupID: stack + "-LambdaSecurityGroupId",
		RDSSecurityGroupID:    stack + "-RdsSecurityGroupId",
	}
}

// VPCName is the logical name of the stack's VPC.
const VPCName = "IndexCardsVpc"

// PhysicalName is the provider-side name of a logical resource: security
// group names and Name tags take this form.
func PhysicalName(stack, logical string) string {
	return stack + "/" + logical
}

// FlowLogRoleName is the IAM role that delivers the stack's flow log.
func FlowLogRoleName(stack string) string {
	return stack + "-FlowLogRole"
}
