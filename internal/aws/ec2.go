package aws

import (
	"context"
	"fmt"
	"sort"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	pkgtypes "github.com/indexcards/indexnet/pkg/types"
)

// EC2Client wraps AWS EC2 API calls
type EC2Client struct {
	client EC2API
}

// NewEC2Client creates a new EC2 client wrapper
func NewEC2Client(client EC2API) *EC2Client {
	return &EC2Client{client: client}
}

// AvailabilityZones returns the names of the available standard zones in the
// region, sorted.
func (c *EC2Client) AvailabilityZones(ctx context.Context) ([]string, error) {
	result, err := c.client.DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{
		Filters: []types.Filter{
			filter("state", "available"),
			filter("zone-type", "availability-zone"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe availability zones: %w", err)
	}

	var zones []string
	for _, az := range result.AvailabilityZones {
		if az.ZoneName != nil {
			zones = append(zones, *az.ZoneName)
		}
	}
	sort.Strings(zones)
	return zones, nil
}

// DescribeVPC returns the CIDR block and tags of a VPC
func (c *EC2Client) DescribeVPC(ctx context.Context, vpcID string) (cidr string, tags map[string]string, err error) {
	result, err := c.client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{vpcID}})
	if err != nil {
		return "", nil, fmt.Errorf("failed to describe VPC %s: %w", vpcID, err)
	}
	if len(result.Vpcs) == 0 {
		return "", nil, fmt.Errorf("VPC %s not found", vpcID)
	}
	vpc := result.Vpcs[0]
	return awssdk.ToString(vpc.CidrBlock), tagMap(vpc.Tags), nil
}

// DiscoverSubnets finds all subnets of a VPC
func (c *EC2Client) DiscoverSubnets(ctx context.Context, vpcID string) ([]pkgtypes.Subnet, error) {
	result, err := c.client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []types.Filter{filter("vpc-id", vpcID)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe subnets: %w", err)
	}

	var subnets []pkgtypes.Subnet
	for _, s := range result.Subnets {
		subnets = append(subnets, pkgtypes.Subnet{
			ID:               awssdk.ToString(s.SubnetId),
			VPCID:            awssdk.ToString(s.VpcId),
			CIDR:             awssdk.ToString(s.CidrBlock),
			AvailabilityZone: awssdk.ToString(s.AvailabilityZone),
			Tags:             tagMap(s.Tags),
		})
	}
	sort.Slice(subnets, func(i, j int) bool { return subnets[i].CIDR < subnets[j].CIDR })
	return subnets, nil
}

// DiscoverSecurityGroups finds all security groups of a VPC
func (c *EC2Client) DiscoverSecurityGroups(ctx context.Context, vpcID string) ([]pkgtypes.SecurityGroup, error) {
	result, err := c.client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []types.Filter{filter("vpc-id", vpcID)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe security groups: %w", err)
	}

	var groups []pkgtypes.SecurityGroup
	for _, g := range result.SecurityGroups {
		groups = append(groups, pkgtypes.SecurityGroup{
			ID:          awssdk.ToString(g.GroupId),
			VPCID:       awssdk.ToString(g.VpcId),
			Name:        awssdk.ToString(g.GroupName),
			Description: awssdk.ToString(g.Description),
			Ingress:     observedRules(g.IpPermissions),
			Egress:      observedRules(g.IpPermissionsEgress),
			Tags:        tagMap(g.Tags),
		})
	}
	return groups, nil
}

// observedRules flattens permissions to one rule per peer.
func observedRules(perms []types.IpPermission) []pkgtypes.ObservedRule {
	var rules []pkgtypes.ObservedRule
	for _, p := range perms {
		base := pkgtypes.ObservedRule{
			Protocol: awssdk.ToString(p.IpProtocol),
			FromPort: awssdk.ToInt32(p.FromPort),
			ToPort:   awssdk.ToInt32(p.ToPort),
		}
		for _, pair := range p.UserIdGroupPairs {
			r := base
			r.PeerGroupID = awssdk.ToString(pair.GroupId)
			rules = append(rules, r)
		}
		for _, rng := range p.IpRanges {
			r := base
			r.CIDR = awssdk.ToString(rng.CidrIp)
			rules = append(rules, r)
		}
	}
	return rules
}

// DiscoverNATGateways finds the live NAT Gateways of a VPC
func (c *EC2Client) DiscoverNATGateways(ctx context.Context, vpcID string) ([]pkgtypes.NATGateway, error) {
	input := &ec2.DescribeNatGatewaysInput{
		Filter: []types.Filter{filter("vpc-id", vpcID)},
	}
	result, err := c.client.DescribeNatGateways(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to describe NAT gateways: %w", err)
	}

	var nats []pkgtypes.NATGateway
	for _, nat := range result.NatGateways {
		// Skip deleted/failed NAT gateways
		if nat.State == types.NatGatewayStateDeleted || nat.State == types.NatGatewayStateFailed {
			continue
		}

		nats = append(nats, pkgtypes.NATGateway{
			ID:               awssdk.ToString(nat.NatGatewayId),
			VPCID:            awssdk.ToString(nat.VpcId),
			SubnetID:         awssdk.ToString(nat.SubnetId),
			State:            string(nat.State),
			ConnectivityType: string(nat.ConnectivityType),
			Tags:             tagMap(nat.Tags),
		})
	}

	return nats, nil
}

// DiscoverVPCEndpoints finds all live VPC endpoints for a given VPC
func (c *EC2Client) DiscoverVPCEndpoints(ctx context.Context, vpcID string) ([]pkgtypes.VPCEndpoint, error) {
	input := &ec2.DescribeVpcEndpointsInput{
		Filters: []types.Filter{filter("vpc-id", vpcID)},
	}

	result, err := c.client.DescribeVpcEndpoints(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to describe VPC endpoints: %w", err)
	}

	var endpoints []pkgtypes.VPCEndpoint
	for _, ep := range result.VpcEndpoints {
		if endpointGone(ep.State) {
			continue
		}

		endpoints = append(endpoints, pkgtypes.VPCEndpoint{
			ID:          awssdk.ToString(ep.VpcEndpointId),
			VPCID:       awssdk.ToString(ep.VpcId),
			ServiceName: awssdk.ToString(ep.ServiceName),
			Type:        string(ep.VpcEndpointType),
			State:       string(ep.State),
			RouteTables: ep.RouteTableIds,
			SubnetIDs:   ep.SubnetIds,
			PrivateDNS:  awssdk.ToBool(ep.PrivateDnsEnabled),
			Tags:        tagMap(ep.Tags),
		})
	}

	return endpoints, nil
}

// DiscoverRouteTables finds all route tables for a VPC
func (c *EC2Client) DiscoverRouteTables(ctx context.Context, vpcID string) ([]pkgtypes.RouteTable, error) {
	input := &ec2.DescribeRouteTablesInput{
		Filters: []types.Filter{filter("vpc-id", vpcID)},
	}

	result, err := c.client.DescribeRouteTables(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to describe route tables: %w", err)
	}

	var routeTables []pkgtypes.RouteTable
	for _, rt := range result.RouteTables {
		var routes []pkgtypes.Route
		for _, route := range rt.Routes {
			r := pkgtypes.Route{DestinationCIDR: awssdk.ToString(route.DestinationCidrBlock)}

			// Determine target type
			switch {
			case route.NatGatewayId != nil:
				r.Target = *route.NatGatewayId
				r.TargetType = "nat-gateway"
			case route.GatewayId != nil && *route.GatewayId == "local":
				r.Target = "local"
				r.TargetType = "local"
			case route.GatewayId != nil && strings.HasPrefix(*route.GatewayId, "vpce-"):
				r.Target = *route.GatewayId
				r.TargetType = "vpc-endpoint"
				if route.DestinationPrefixListId != nil {
					r.DestinationCIDR = *route.DestinationPrefixListId
				}
			case route.GatewayId != nil:
				r.Target = *route.GatewayId
				r.TargetType = "igw"
			}

			routes = append(routes, r)
		}

		var subnets []string
		isMain := false
		for _, assoc := range rt.Associations {
			if assoc.SubnetId != nil {
				subnets = append(subnets, *assoc.SubnetId)
			}
			if awssdk.ToBool(assoc.Main) {
				isMain = true
			}
		}

		routeTables = append(routeTables, pkgtypes.RouteTable{
			ID:      awssdk.ToString(rt.RouteTableId),
			VPCID:   awssdk.ToString(rt.VpcId),
			Routes:  routes,
			Subnets: subnets,
			Main:    isMain,
			Tags:    tagMap(rt.Tags),
		})
	}

	return routeTables, nil
}

// MainRouteTable returns the ID of the VPC's main route table
func (c *EC2Client) MainRouteTable(ctx context.Context, vpcID string) (string, error) {
	result, err := c.client.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []types.Filter{
			filter("vpc-id", vpcID),
			filter("association.main", "true"),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe route tables: %w", err)
	}
	if len(result.RouteTables) == 0 {
		return "", fmt.Errorf("VPC %s has no main route table", vpcID)
	}
	return awssdk.ToString(result.RouteTables[0].RouteTableId), nil
}

// CreateFlowLogs creates a VPC Flow Log delivering to a CloudWatch Logs group
func (c *EC2Client) CreateFlowLogs(ctx context.Context, vpcID string, sink pkgtypes.LoggingSink, deliveryRoleArn string, tags []types.Tag) (string, error) {
	input := &ec2.CreateFlowLogsInput{
		ResourceType:             types.FlowLogsResourceTypeVpc,
		ResourceIds:              []string{vpcID},
		TrafficType:              types.TrafficType(sink.TrafficType),
		LogDestinationType:       types.LogDestinationType(sink.Destination),
		LogGroupName:             awssdk.String(sink.LogGroupName),
		DeliverLogsPermissionArn: awssdk.String(deliveryRoleArn),
		TagSpecifications:        tagSpec(types.ResourceTypeVpcFlowLog, tags),
	}

	result, err := c.client.CreateFlowLogs(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to create flow logs: %w", err)
	}

	if len(result.Unsuccessful) > 0 {
		return "", fmt.Errorf("flow log creation failed: %s", unsuccessfulMessage(result.Unsuccessful[0]))
	}

	if len(result.FlowLogIds) == 0 {
		return "", fmt.Errorf("no flow log ID returned")
	}

	return result.FlowLogIds[0], nil
}

// DeleteFlowLogs deletes VPC Flow Logs
func (c *EC2Client) DeleteFlowLogs(ctx context.Context, flowLogIDs []string) error {
	if len(flowLogIDs) == 0 {
		return nil
	}

	input := &ec2.DeleteFlowLogsInput{
		FlowLogIds: flowLogIDs,
	}

	result, err := c.client.DeleteFlowLogs(ctx, input)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete flow logs: %w", err)
	}

	for _, item := range result.Unsuccessful {
		if item.Error != nil && awssdk.ToString(item.Error.Code) == "InvalidFlowLogId.NotFound" {
			continue
		}
		return fmt.Errorf("flow log deletion failed: %s", unsuccessfulMessage(item))
	}

	return nil
}

// DiscoverFlowLogs finds the flow logs attached to a VPC
func (c *EC2Client) DiscoverFlowLogs(ctx context.Context, vpcID string) ([]pkgtypes.FlowLog, error) {
	input := &ec2.DescribeFlowLogsInput{
		Filter: []types.Filter{filter("resource-id", vpcID)},
	}

	result, err := c.client.DescribeFlowLogs(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to describe flow logs: %w", err)
	}

	var flowLogs []pkgtypes.FlowLog
	for _, fl := range result.FlowLogs {
		flowLogs = append(flowLogs, pkgtypes.FlowLog{
			ID:           awssdk.ToString(fl.FlowLogId),
			ResourceID:   awssdk.ToString(fl.ResourceId),
			Status:       awssdk.ToString(fl.FlowLogStatus),
			TrafficType:  string(fl.TrafficType),
			LogGroupName: awssdk.ToString(fl.LogGroupName),
			CreationTime: awssdk.ToTime(fl.CreationTime),
		})
	}

	return flowLogs, nil
}

func filter(name string, values ...string) types.Filter {
	return types.Filter{Name: awssdk.String(name), Values: values}
}

// endpointGone reports a deleted or deleting endpoint. The API returns the
// state in lower case while the SDK constants are capitalized.
func endpointGone(state types.State) bool {
	return strings.EqualFold(string(state), string(types.StateDeleted)) ||
		strings.EqualFold(string(state), string(types.StateDeleting))
}

func unsuccessfulMessage(item types.UnsuccessfulItem) string {
	if item.Error == nil {
		return awssdk.ToString(item.ResourceId)
	}
	return fmt.Sprintf("%s: %s", awssdk.ToString(item.Error.Code), awssdk.ToString(item.Error.Message))
}
