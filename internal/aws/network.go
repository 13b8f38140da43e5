package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	pkgtypes "github.com/indexcards/indexnet/pkg/types"
)

// Upper bounds for the EC2 waiters.
const (
	vpcWaitTimeout = 5 * time.Minute
	natWaitTimeout = 10 * time.Minute
)

// CreateVPC creates a VPC, waits until it is available and enables DNS
// support and hostnames, which interface endpoints with private DNS need.
func (c *EC2Client) CreateVPC(ctx context.Context, cidr string, tags []types.Tag) (string, error) {
	result, err := c.client.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock:         awssdk.String(cidr),
		TagSpecifications: tagSpec(types.ResourceTypeVpc, tags),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create VPC: %w", err)
	}
	vpcID := awssdk.ToString(result.Vpc.VpcId)

	waiter := ec2.NewVpcAvailableWaiter(c.client)
	if err := waiter.Wait(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{vpcID}}, vpcWaitTimeout); err != nil {
		return vpcID, fmt.Errorf("VPC %s did not become available: %w", vpcID, err)
	}

	for _, attr := range []*ec2.ModifyVpcAttributeInput{
		{VpcId: awssdk.String(vpcID), EnableDnsSupport: &types.AttributeBooleanValue{Value: awssdk.Bool(true)}},
		{VpcId: awssdk.String(vpcID), EnableDnsHostnames: &types.AttributeBooleanValue{Value: awssdk.Bool(true)}},
	} {
		if _, err := c.client.ModifyVpcAttribute(ctx, attr); err != nil {
			return vpcID, fmt.Errorf("failed to enable DNS on VPC %s: %w", vpcID, err)
		}
	}

	return vpcID, nil
}

// DeleteVPC deletes a VPC. A missing VPC is not an error.
func (c *EC2Client) DeleteVPC(ctx context.Context, vpcID string) error {
	_, err := c.client.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: awssdk.String(vpcID)})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete VPC %s: %w", vpcID, err)
	}
	return nil
}

// CreateSubnet creates a subnet in the given availability zone
func (c *EC2Client) CreateSubnet(ctx context.Context, vpcID, cidr, az string, tags []types.Tag) (string, error) {
	result, err := c.client.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		VpcId:             awssdk.String(vpcID),
		CidrBlock:         awssdk.String(cidr),
		AvailabilityZone:  awssdk.String(az),
		TagSpecifications: tagSpec(types.ResourceTypeSubnet, tags),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create subnet %s: %w", cidr, err)
	}
	return awssdk.ToString(result.Subnet.SubnetId), nil
}

// DeleteSubnet deletes a subnet. A missing subnet is not an error.
func (c *EC2Client) DeleteSubnet(ctx context.Context, subnetID string) error {
	_, err := c.client.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: awssdk.String(subnetID)})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete subnet %s: %w", subnetID, err)
	}
	return nil
}

// CreateSecurityGroup creates a security group. EC2 adds an allow-all egress
// rule to every new group; keepDefaultEgress=false revokes it.
func (c *EC2Client) CreateSecurityGroup(ctx context.Context, vpcID, name, description string, keepDefaultEgress bool, tags []types.Tag) (string, error) {
	result, err := c.client.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		VpcId:             awssdk.String(vpcID),
		GroupName:         awssdk.String(name),
		Description:       awssdk.String(description),
		TagSpecifications: tagSpec(types.ResourceTypeSecurityGroup, tags),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create security group %s: %w", name, err)
	}
	groupID := awssdk.ToString(result.GroupId)

	if !keepDefaultEgress {
		_, err := c.client.RevokeSecurityGroupEgress(ctx, &ec2.RevokeSecurityGroupEgressInput{
			GroupId:       awssdk.String(groupID),
			IpPermissions: []types.IpPermission{allowAllPermission()},
		})
		if err != nil && !IsNotFound(err) {
			return groupID, fmt.Errorf("failed to revoke default egress of %s: %w", name, err)
		}
	}

	return groupID, nil
}

// AuthorizeRule adds one planned rule to a group. groupIDs resolves peer group
// names to IDs. An identical existing rule is not an error.
func (c *EC2Client) AuthorizeRule(ctx context.Context, groupID string, rule pkgtypes.SecurityGroupRule, groupIDs map[string]string) error {
	perm, err := ipPermission(rule, groupIDs)
	if err != nil {
		return err
	}

	switch rule.Direction {
	case pkgtypes.Ingress:
		_, err = c.client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       awssdk.String(groupID),
			IpPermissions: []types.IpPermission{perm},
		})
	case pkgtypes.Egress:
		_, err = c.client.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
			GroupId:       awssdk.String(groupID),
			IpPermissions: []types.IpPermission{perm},
		})
	default:
		return fmt.Errorf("unknown rule direction %q", rule.Direction)
	}
	if err != nil && !IsAlreadyExists(err) {
		return fmt.Errorf("failed to authorize %s rule on %s: %w", rule.Direction, groupID, err)
	}
	return nil
}

// AllowHTTPSFromCIDR opens TCP 443 on a group to a CIDR block. Interface
// endpoints use the VPC default group, which otherwise only admits its own
// members.
func (c *EC2Client) AllowHTTPSFromCIDR(ctx context.Context, groupID, cidr string) error {
	_, err := c.client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: awssdk.String(groupID),
		IpPermissions: []types.IpPermission{{
			IpProtocol: awssdk.String("tcp"),
			FromPort:   awssdk.Int32(443),
			ToPort:     awssdk.Int32(443),
			IpRanges:   []types.IpRange{{CidrIp: awssdk.String(cidr), Description: awssdk.String("HTTPS to interface endpoints")}},
		}},
	})
	if err != nil && !IsAlreadyExists(err) {
		return fmt.Errorf("failed to open HTTPS on %s: %w", groupID, err)
	}
	return nil
}

// DefaultSecurityGroup returns the ID of the VPC's default group
func (c *EC2Client) DefaultSecurityGroup(ctx context.Context, vpcID string) (string, error) {
	result, err := c.client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []types.Filter{filter("vpc-id", vpcID), filter("group-name", "default")},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe default security group: %w", err)
	}
	if len(result.SecurityGroups) == 0 {
		return "", fmt.Errorf("VPC %s has no default security group", vpcID)
	}
	return awssdk.ToString(result.SecurityGroups[0].GroupId), nil
}

// RevokeGroupReferences removes every ingress rule of a group that points at
// another group, so the peer can be deleted.
func (c *EC2Client) RevokeGroupReferences(ctx context.Context, groupID string) error {
	result, err := c.client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{GroupIds: []string{groupID}})
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to describe security group %s: %w", groupID, err)
	}

	for _, g := range result.SecurityGroups {
		var refs []types.IpPermission
		for _, p := range g.IpPermissions {
			if len(p.UserIdGroupPairs) > 0 {
				refs = append(refs, p)
			}
		}
		if len(refs) == 0 {
			continue
		}
		_, err := c.client.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
			GroupId:       g.GroupId,
			IpPermissions: refs,
		})
		if err != nil && !IsNotFound(err) {
			return fmt.Errorf("failed to revoke ingress of %s: %w", groupID, err)
		}
	}
	return nil
}

// DeleteSecurityGroup deletes a group. A missing group is not an error.
func (c *EC2Client) DeleteSecurityGroup(ctx context.Context, groupID string) error {
	_, err := c.client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: awssdk.String(groupID)})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete security group %s: %w", groupID, err)
	}
	return nil
}

// CreateEndpoint creates a VPC endpoint. Gateway endpoints are attached to
// routeTableIDs; interface endpoints get one ENI per subnet.
func (c *EC2Client) CreateEndpoint(ctx context.Context, vpcID string, ep pkgtypes.EndpointDescriptor, routeTableIDs, subnetIDs, securityGroupIDs []string, tags []types.Tag) (string, error) {
	input := &ec2.CreateVpcEndpointInput{
		VpcId:             awssdk.String(vpcID),
		ServiceName:       awssdk.String(ep.ServiceName),
		VpcEndpointType:   types.VpcEndpointType(ep.Kind),
		TagSpecifications: tagSpec(types.ResourceTypeVpcEndpoint, tags),
	}
	switch ep.Kind {
	case pkgtypes.EndpointGateway:
		input.RouteTableIds = routeTableIDs
	case pkgtypes.EndpointInterface:
		input.SubnetIds = subnetIDs
		input.SecurityGroupIds = securityGroupIDs
		input.PrivateDnsEnabled = awssdk.Bool(ep.PrivateDNS)
	default:
		return "", fmt.Errorf("endpoint %s: unknown kind %q", ep.Name, ep.Kind)
	}

	result, err := c.client.CreateVpcEndpoint(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to create endpoint %s: %w", ep.Name, err)
	}
	return awssdk.ToString(result.VpcEndpoint.VpcEndpointId), nil
}

// DeleteEndpoints deletes VPC endpoints and polls until they are gone.
func (c *EC2Client) DeleteEndpoints(ctx context.Context, endpointIDs []string, poll time.Duration) error {
	if len(endpointIDs) == 0 {
		return nil
	}

	result, err := c.client.DeleteVpcEndpoints(ctx, &ec2.DeleteVpcEndpointsInput{VpcEndpointIds: endpointIDs})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete endpoints: %w", err)
	}
	if result != nil {
		for _, item := range result.Unsuccessful {
			if item.Error != nil && awssdk.ToString(item.Error.Code) == "InvalidVpcEndpointId.NotFound" {
				continue
			}
			return fmt.Errorf("endpoint deletion failed: %s", unsuccessfulMessage(item))
		}
	}

	return pollUntil(ctx, poll, func() (bool, error) {
		out, err := c.client.DescribeVpcEndpoints(ctx, &ec2.DescribeVpcEndpointsInput{VpcEndpointIds: endpointIDs})
		if err != nil {
			if IsNotFound(err) {
				return true, nil
			}
			return false, err
		}
		for _, ep := range out.VpcEndpoints {
			if !strings.EqualFold(string(ep.State), string(types.StateDeleted)) {
				return false, nil
			}
		}
		return true, nil
	})
}

// CreateNATGateway creates a private NAT gateway in subnetID and waits until
// it is available.
func (c *EC2Client) CreateNATGateway(ctx context.Context, subnetID string, tags []types.Tag) (string, error) {
	result, err := c.client.CreateNatGateway(ctx, &ec2.CreateNatGatewayInput{
		SubnetId:          awssdk.String(subnetID),
		ConnectivityType:  types.ConnectivityTypePrivate,
		TagSpecifications: tagSpec(types.ResourceTypeNatgateway, tags),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create NAT gateway: %w", err)
	}
	natID := awssdk.ToString(result.NatGateway.NatGatewayId)

	waiter := ec2.NewNatGatewayAvailableWaiter(c.client)
	if err := waiter.Wait(ctx, &ec2.DescribeNatGatewaysInput{NatGatewayIds: []string{natID}}, natWaitTimeout); err != nil {
		return natID, fmt.Errorf("NAT gateway %s did not become available: %w", natID, err)
	}
	return natID, nil
}

// DeleteNATGateway deletes a NAT gateway and waits until it is gone.
func (c *EC2Client) DeleteNATGateway(ctx context.Context, natID string) error {
	_, err := c.client.DeleteNatGateway(ctx, &ec2.DeleteNatGatewayInput{NatGatewayId: awssdk.String(natID)})
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete NAT gateway %s: %w", natID, err)
	}

	waiter := ec2.NewNatGatewayDeletedWaiter(c.client)
	if err := waiter.Wait(ctx, &ec2.DescribeNatGatewaysInput{NatGatewayIds: []string{natID}}, natWaitTimeout); err != nil {
		return fmt.Errorf("NAT gateway %s was not deleted: %w", natID, err)
	}
	return nil
}

// RetryOnDependency calls fn until it stops failing with DependencyViolation,
// up to attempts times.
func RetryOnDependency(ctx context.Context, attempts int, poll time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !IsDependencyViolation(err) {
			return err
		}
		if err := sleep(ctx, poll); err != nil {
			return err
		}
	}
	return err
}

// errPollTimeout is returned when pollUntil gives up.
var errPollTimeout = errors.New("timed out waiting for resource state")

const maxPolls = 120

func pollUntil(ctx context.Context, poll time.Duration, done func() (bool, error)) error {
	for i := 0; i < maxPolls; i++ {
		ok, err := done()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if err := sleep(ctx, poll); err != nil {
			return err
		}
	}
	return errPollTimeout
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func allowAllPermission() types.IpPermission {
	return types.IpPermission{
		IpProtocol: awssdk.String(pkgtypes.ProtocolAll),
		IpRanges:   []types.IpRange{{CidrIp: awssdk.String("0.0.0.0/0")}},
	}
}

// IsAllowAll reports whether rule is the allow-all egress rule EC2 creates by default.
func IsAllowAll(rule pkgtypes.SecurityGroupRule) bool {
	return rule.Direction == pkgtypes.Egress && rule.Protocol == pkgtypes.ProtocolAll && rule.PeerCIDR == "0.0.0.0/0"
}

func ipPermission(rule pkgtypes.SecurityGroupRule, groupIDs map[string]string) (types.IpPermission, error) {
	perm := types.IpPermission{IpProtocol: awssdk.String(rule.Protocol)}
	if rule.Protocol != pkgtypes.ProtocolAll {
		perm.FromPort = awssdk.Int32(int32(rule.FromPort))
		perm.ToPort = awssdk.Int32(int32(rule.ToPort))
	}

	var desc *string
	if rule.Description != "" {
		desc = awssdk.String(rule.Description)
	}

	switch {
	case rule.PeerGroup != "":
		id, ok := groupIDs[rule.PeerGroup]
		if !ok {
			return perm, fmt.Errorf("rule references security group %s which was not created", rule.PeerGroup)
		}
		perm.UserIdGroupPairs = []types.UserIdGroupPair{{GroupId: awssdk.String(id), Description: desc}}
	case rule.PeerCIDR != "":
		perm.IpRanges = []types.IpRange{{CidrIp: awssdk.String(rule.PeerCIDR), Description: desc}}
	default:
		return perm, errors.New("rule has no peer")
	}
	return perm, nil
}
