package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/smithy-go"

	"github.com/indexcards/indexnet/internal/aws"
)

func apiErr(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

// fakeCloud is an in-memory account holding just enough EC2, CloudWatch Logs
// and IAM state to check ordering and dependency rules.
type fakeCloud struct {
	aws.EC2API
	aws.CloudWatchLogsAPI
	aws.IAMAPI

	mu    sync.Mutex
	seq   int
	calls []string

	failOn          map[string]error
	flowLogFailures int

	zones     []string
	vpcs      map[string]ec2types.Vpc
	subnets   map[string]ec2types.Subnet
	groups    map[string]*ec2types.SecurityGroup
	endpoints map[string]ec2types.VpcEndpoint
	nats      map[string]ec2types.NatGateway
	flowLogs  map[string]ec2types.FlowLog
	logGroups map[string]int32
	roles     map[string]string
	policies  map[string]string
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		failOn:    map[string]error{},
		zones:     []string{"us-east-1b", "us-east-1a", "us-east-1c"},
		vpcs:      map[string]ec2types.Vpc{},
		subnets:   map[string]ec2types.Subnet{},
		groups:    map[string]*ec2types.SecurityGroup{},
		endpoints: map[string]ec2types.VpcEndpoint{},
		nats:      map[string]ec2types.NatGateway{},
		flowLogs:  map[string]ec2types.FlowLog{},
		logGroups: map[string]int32{},
		roles:     map[string]string{},
		policies:  map[string]string{},
	}
}

func (f *fakeCloud) record(call string) error {
	f.calls = append(f.calls, call)
	return f.failOn[call]
}

func (f *fakeCloud) id(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%04d", prefix, f.seq)
}

func (f *fakeCloud) called(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func filterValue(filters []ec2types.Filter, name string) string {
	for _, flt := range filters {
		if awssdk.ToString(flt.Name) == name && len(flt.Values) > 0 {
			return flt.Values[0]
		}
	}
	return ""
}

func tagsOf(specs []ec2types.TagSpecification) []ec2types.Tag {
	if len(specs) == 0 {
		return nil
	}
	return specs[0].Tags
}

func mainTableID(vpcID string) string {
	return "rtb-main-" + strings.TrimPrefix(vpcID, "vpc-")
}

func (f *fakeCloud) DescribeAvailabilityZones(_ context.Context, _ *ec2.DescribeAvailabilityZonesInput, _ ...func(*ec2.Options)) (*ec2.DescribeAvailabilityZonesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DescribeAvailabilityZones"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeAvailabilityZonesOutput{}
	for _, z := range f.zones {
		out.AvailabilityZones = append(out.AvailabilityZones, ec2types.AvailabilityZone{ZoneName: awssdk.String(z)})
	}
	return out, nil
}

func (f *fakeCloud) CreateVpc(_ context.Context, in *ec2.CreateVpcInput, _ ...func(*ec2.Options)) (*ec2.CreateVpcOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateVpc"); err != nil {
		return nil, err
	}
	vpc := ec2types.Vpc{
		VpcId:     awssdk.String(f.id("vpc")),
		CidrBlock: in.CidrBlock,
		State:     ec2types.VpcStateAvailable,
		Tags:      tagsOf(in.TagSpecifications),
	}
	f.vpcs[*vpc.VpcId] = vpc
	sgID := f.id("sg")
	f.groups[sgID] = &ec2types.SecurityGroup{GroupId: awssdk.String(sgID), GroupName: awssdk.String("default"), VpcId: vpc.VpcId}
	return &ec2.CreateVpcOutput{Vpc: &vpc}, nil
}

func (f *fakeCloud) DescribeVpcs(_ context.Context, in *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DescribeVpcs"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeVpcsOutput{}
	for _, id := range in.VpcIds {
		vpc, ok := f.vpcs[id]
		if !ok {
			return nil, apiErr("InvalidVpcID.NotFound")
		}
		out.Vpcs = append(out.Vpcs, vpc)
	}
	return out, nil
}

func (f *fakeCloud) ModifyVpcAttribute(_ context.Context, _ *ec2.ModifyVpcAttributeInput, _ ...func(*ec2.Options)) (*ec2.ModifyVpcAttributeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &ec2.ModifyVpcAttributeOutput{}, f.record("ModifyVpcAttribute")
}

func (f *fakeCloud) DeleteVpc(_ context.Context, in *ec2.DeleteVpcInput, _ ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteVpc"); err != nil {
		return nil, err
	}
	id := awssdk.ToString(in.VpcId)
	if _, ok := f.vpcs[id]; !ok {
		return nil, apiErr("InvalidVpcID.NotFound")
	}
	for _, s := range f.subnets {
		if awssdk.ToString(s.VpcId) == id {
			return nil, apiErr("DependencyViolation")
		}
	}
	for gid, g := range f.groups {
		if awssdk.ToString(g.VpcId) != id {
			continue
		}
		if awssdk.ToString(g.GroupName) != "default" {
			return nil, apiErr("DependencyViolation")
		}
		delete(f.groups, gid)
	}
	delete(f.vpcs, id)
	return &ec2.DeleteVpcOutput{}, nil
}

func (f *fakeCloud) CreateSubnet(_ context.Context, in *ec2.CreateSubnetInput, _ ...func(*ec2.Options)) (*ec2.CreateSubnetOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateSubnet"); err != nil {
		return nil, err
	}
	s := ec2types.Subnet{
		SubnetId:         awssdk.String(f.id("subnet")),
		VpcId:            in.VpcId,
		CidrBlock:        in.CidrBlock,
		AvailabilityZone: in.AvailabilityZone,
		Tags:             tagsOf(in.TagSpecifications),
	}
	f.subnets[*s.SubnetId] = s
	return &ec2.CreateSubnetOutput{Subnet: &s}, nil
}

func (f *fakeCloud) DescribeSubnets(_ context.Context, in *ec2.DescribeSubnetsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vpcID := filterValue(in.Filters, "vpc-id")
	out := &ec2.DescribeSubnetsOutput{}
	for _, s := range f.subnets {
		if awssdk.ToString(s.VpcId) == vpcID {
			out.Subnets = append(out.Subnets, s)
		}
	}
	return out, f.record("DescribeSubnets")
}

func (f *fakeCloud) DeleteSubnet(_ context.Context, in *ec2.DeleteSubnetInput, _ ...func(*ec2.Options)) (*ec2.DeleteSubnetOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteSubnet"); err != nil {
		return nil, err
	}
	id := awssdk.ToString(in.SubnetId)
	if _, ok := f.subnets[id]; !ok {
		return nil, apiErr("InvalidSubnetID.NotFound")
	}
	for _, ep := range f.endpoints {
		if ep.State == ec2types.StateDeleted {
			continue
		}
		for _, sid := range ep.SubnetIds {
			if sid == id {
				return nil, apiErr("DependencyViolation")
			}
		}
	}
	for _, nat := range f.nats {
		if awssdk.ToString(nat.SubnetId) == id && nat.State != ec2types.NatGatewayStateDeleted {
			return nil, apiErr("DependencyViolation")
		}
	}
	delete(f.subnets, id)
	return &ec2.DeleteSubnetOutput{}, nil
}

func (f *fakeCloud) CreateSecurityGroup(_ context.Context, in *ec2.CreateSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateSecurityGroup"); err != nil {
		return nil, err
	}
	id := f.id("sg")
	f.groups[id] = &ec2types.SecurityGroup{
		GroupId:     awssdk.String(id),
		GroupName:   in.GroupName,
		Description: in.Description,
		VpcId:       in.VpcId,
		Tags:        tagsOf(in.TagSpecifications),
		IpPermissionsEgress: []ec2types.IpPermission{{
			IpProtocol: awssdk.String("-1"),
			IpRanges:   []ec2types.IpRange{{CidrIp: awssdk.String("0.0.0.0/0")}},
		}},
	}
	return &ec2.CreateSecurityGroupOutput{GroupId: awssdk.String(id)}, nil
}

func (f *fakeCloud) DescribeSecurityGroups(_ context.Context, in *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DescribeSecurityGroups"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeSecurityGroupsOutput{}
	if len(in.GroupIds) > 0 {
		for _, id := range in.GroupIds {
			g, ok := f.groups[id]
			if !ok {
				return nil, apiErr("InvalidGroup.NotFound")
			}
			out.SecurityGroups = append(out.SecurityGroups, *g)
		}
		return out, nil
	}
	vpcID := filterValue(in.Filters, "vpc-id")
	name := filterValue(in.Filters, "group-name")
	for _, g := range f.groups {
		if awssdk.ToString(g.VpcId) != vpcID {
			continue
		}
		if name != "" && awssdk.ToString(g.GroupName) != name {
			continue
		}
		out.SecurityGroups = append(out.SecurityGroups, *g)
	}
	sort.Slice(out.SecurityGroups, func(i, j int) bool {
		return *out.SecurityGroups[i].GroupId < *out.SecurityGroups[j].GroupId
	})
	return out, nil
}

func (f *fakeCloud) AuthorizeSecurityGroupIngress(_ context.Context, in *ec2.AuthorizeSecurityGroupIngressInput, _ ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AuthorizeSecurityGroupIngress"); err != nil {
		return nil, err
	}
	g, ok := f.groups[awssdk.ToString(in.GroupId)]
	if !ok {
		return nil, apiErr("InvalidGroup.NotFound")
	}
	g.IpPermissions = append(g.IpPermissions, in.IpPermissions...)
	return &ec2.AuthorizeSecurityGroupIngressOutput{}, nil
}

func (f *fakeCloud) AuthorizeSecurityGroupEgress(_ context.Context, in *ec2.AuthorizeSecurityGroupEgressInput, _ ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupEgressOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AuthorizeSecurityGroupEgress"); err != nil {
		return nil, err
	}
	g, ok := f.groups[awssdk.ToString(in.GroupId)]
	if !ok {
		return nil, apiErr("InvalidGroup.NotFound")
	}
	g.IpPermissionsEgress = append(g.IpPermissionsEgress, in.IpPermissions...)
	return &ec2.AuthorizeSecurityGroupEgressOutput{}, nil
}

func (f *fakeCloud) RevokeSecurityGroupIngress(_ context.Context, in *ec2.RevokeSecurityGroupIngressInput, _ ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupIngressOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RevokeSecurityGroupIngress"); err != nil {
		return nil, err
	}
	g, ok := f.groups[awssdk.ToString(in.GroupId)]
	if !ok {
		return nil, apiErr("InvalidGroup.NotFound")
	}
	var kept []ec2types.IpPermission
	for _, p := range g.IpPermissions {
		if len(p.UserIdGroupPairs) == 0 {
			kept = append(kept, p)
		}
	}
	g.IpPermissions = kept
	return &ec2.RevokeSecurityGroupIngressOutput{}, nil
}

func (f *fakeCloud) RevokeSecurityGroupEgress(_ context.Context, in *ec2.RevokeSecurityGroupEgressInput, _ ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupEgressOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RevokeSecurityGroupEgress"); err != nil {
		return nil, err
	}
	g, ok := f.groups[awssdk.ToString(in.GroupId)]
	if !ok {
		return nil, apiErr("InvalidGroup.NotFound")
	}
	g.IpPermissionsEgress = nil
	return &ec2.RevokeSecurityGroupEgressOutput{}, nil
}

func (f *fakeCloud) DeleteSecurityGroup(_ context.Context, in *ec2.DeleteSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteSecurityGroup"); err != nil {
		return nil, err
	}
	id := awssdk.ToString(in.GroupId)
	if _, ok := f.groups[id]; !ok {
		return nil, apiErr("InvalidGroup.NotFound")
	}
	for other, g := range f.groups {
		if other == id {
			continue
		}
		for _, p := range g.IpPermissions {
			for _, pair := range p.UserIdGroupPairs {
				if awssdk.ToString(pair.GroupId) == id {
					return nil, apiErr("DependencyViolation")
				}
			}
		}
	}
	delete(f.groups, id)
	return &ec2.DeleteSecurityGroupOutput{}, nil
}

func (f *fakeCloud) DescribeRouteTables(_ context.Context, in *ec2.DescribeRouteTablesInput, _ ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DescribeRouteTables"); err != nil {
		return nil, err
	}
	vpcID := filterValue(in.Filters, "vpc-id")
	vpc, ok := f.vpcs[vpcID]
	if !ok {
		return &ec2.DescribeRouteTablesOutput{}, nil
	}
	table := ec2types.RouteTable{
		RouteTableId: awssdk.String(mainTableID(vpcID)),
		VpcId:        vpc.VpcId,
		Associations: []ec2types.RouteTableAssociation{{Main: awssdk.Bool(true)}},
		Routes: []ec2types.Route{{
			DestinationCidrBlock: vpc.CidrBlock,
			GatewayId:            awssdk.String("local"),
		}},
	}
	for _, ep := range f.endpoints {
		if ep.State == ec2types.StateDeleted || ep.VpcEndpointType != ec2types.VpcEndpointTypeGateway {
			continue
		}
		for _, rt := range ep.RouteTableIds {
			if rt == *table.RouteTableId {
				table.Routes = append(table.Routes, ec2types.Route{
					DestinationPrefixListId: awssdk.String("pl-63a5400a"),
					GatewayId:               ep.VpcEndpointId,
				})
			}
		}
	}
	return &ec2.DescribeRouteTablesOutput{RouteTables: []ec2types.RouteTable{table}}, nil
}

func (f *fakeCloud) CreateVpcEndpoint(_ context.Context, in *ec2.CreateVpcEndpointInput, _ ...func(*ec2.Options)) (*ec2.CreateVpcEndpointOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateVpcEndpoint"); err != nil {
		return nil, err
	}
	ep := ec2types.VpcEndpoint{
		VpcEndpointId:     awssdk.String(f.id("vpce")),
		VpcId:             in.VpcId,
		ServiceName:       in.ServiceName,
		VpcEndpointType:   in.VpcEndpointType,
		State:             ec2types.State("available"),
		RouteTableIds:     in.RouteTableIds,
		SubnetIds:         in.SubnetIds,
		PrivateDnsEnabled: in.PrivateDnsEnabled,
		Tags:              tagsOf(in.TagSpecifications),
	}
	for _, id := range in.SecurityGroupIds {
		ep.Groups = append(ep.Groups, ec2types.SecurityGroupIdentifier{GroupId: awssdk.String(id)})
	}
	f.endpoints[*ep.VpcEndpointId] = ep
	return &ec2.CreateVpcEndpointOutput{VpcEndpoint: &ep}, nil
}

func (f *fakeCloud) DescribeVpcEndpoints(_ context.Context, in *ec2.DescribeVpcEndpointsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcEndpointsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DescribeVpcEndpoints"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeVpcEndpointsOutput{}
	if len(in.VpcEndpointIds) > 0 {
		for _, id := range in.VpcEndpointIds {
			if ep, ok := f.endpoints[id]; ok {
				out.VpcEndpoints = append(out.VpcEndpoints, ep)
			}
		}
		return out, nil
	}
	vpcID := filterValue(in.Filters, "vpc-id")
	for _, ep := range f.endpoints {
		if awssdk.ToString(ep.VpcId) == vpcID {
			out.VpcEndpoints = append(out.VpcEndpoints, ep)
		}
	}
	return out, nil
}

func (f *fakeCloud) DeleteVpcEndpoints(_ context.Context, in *ec2.DeleteVpcEndpointsInput, _ ...func(*ec2.Options)) (*ec2.DeleteVpcEndpointsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteVpcEndpoints"); err != nil {
		return nil, err
	}
	for _, id := range in.VpcEndpointIds {
		if ep, ok := f.endpoints[id]; ok {
			ep.State = ec2types.StateDeleted
			f.endpoints[id] = ep
		}
	}
	return &ec2.DeleteVpcEndpointsOutput{}, nil
}

func (f *fakeCloud) CreateNatGateway(_ context.Context, in *ec2.CreateNatGatewayInput, _ ...func(*ec2.Options)) (*ec2.CreateNatGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateNatGateway"); err != nil {
		return nil, err
	}
	s := f.subnets[awssdk.ToString(in.SubnetId)]
	nat := ec2types.NatGateway{
		NatGatewayId:     awssdk.String(f.id("nat")),
		SubnetId:         in.SubnetId,
		VpcId:            s.VpcId,
		ConnectivityType: in.ConnectivityType,
		State:            ec2types.NatGatewayStateAvailable,
		Tags:             tagsOf(in.TagSpecifications),
	}
	f.nats[*nat.NatGatewayId] = nat
	return &ec2.CreateNatGatewayOutput{NatGateway: &nat}, nil
}

func (f *fakeCloud) DescribeNatGateways(_ context.Context, in *ec2.DescribeNatGatewaysInput, _ ...func(*ec2.Options)) (*ec2.DescribeNatGatewaysOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DescribeNatGateways"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeNatGatewaysOutput{}
	if len(in.NatGatewayIds) > 0 {
		for _, id := range in.NatGatewayIds {
			if nat, ok := f.nats[id]; ok {
				out.NatGateways = append(out.NatGateways, nat)
			}
		}
		return out, nil
	}
	vpcID := filterValue(in.Filter, "vpc-id")
	for _, nat := range f.nats {
		if awssdk.ToString(nat.VpcId) == vpcID {
			out.NatGateways = append(out.NatGateways, nat)
		}
	}
	return out, nil
}

func (f *fakeCloud) DeleteNatGateway(_ context.Context, in *ec2.DeleteNatGatewayInput, _ ...func(*ec2.Options)) (*ec2.DeleteNatGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteNatGateway"); err != nil {
		return nil, err
	}
	id := awssdk.ToString(in.NatGatewayId)
	nat, ok := f.nats[id]
	if !ok {
		return nil, apiErr("NatGatewayNotFound")
	}
	nat.State = ec2types.NatGatewayStateDeleted
	f.nats[id] = nat
	return &ec2.DeleteNatGatewayOutput{NatGatewayId: in.NatGatewayId}, nil
}

func (f *fakeCloud) CreateFlowLogs(_ context.Context, in *ec2.CreateFlowLogsInput, _ ...func(*ec2.Options)) (*ec2.CreateFlowLogsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateFlowLogs"); err != nil {
		return nil, err
	}
	if f.flowLogFailures > 0 {
		f.flowLogFailures--
		return nil, apiErr("InvalidParameter")
	}
	id := f.id("fl")
	f.flowLogs[id] = ec2types.FlowLog{
		FlowLogId:     awssdk.String(id),
		ResourceId:    awssdk.String(in.ResourceIds[0]),
		FlowLogStatus: awssdk.String("ACTIVE"),
		TrafficType:   in.TrafficType,
		LogGroupName:  in.LogGroupName,
	}
	return &ec2.CreateFlowLogsOutput{FlowLogIds: []string{id}}, nil
}

func (f *fakeCloud) DescribeFlowLogs(_ context.Context, in *ec2.DescribeFlowLogsInput, _ ...func(*ec2.Options)) (*ec2.DescribeFlowLogsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DescribeFlowLogs"); err != nil {
		return nil, err
	}
	resource := filterValue(in.Filter, "resource-id")
	out := &ec2.DescribeFlowLogsOutput{}
	for _, fl := range f.flowLogs {
		if awssdk.ToString(fl.ResourceId) == resource {
			out.FlowLogs = append(out.FlowLogs, fl)
		}
	}
	return out, nil
}

func (f *fakeCloud) DeleteFlowLogs(_ context.Context, in *ec2.DeleteFlowLogsInput, _ ...func(*ec2.Options)) (*ec2.DeleteFlowLogsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteFlowLogs"); err != nil {
		return nil, err
	}
	for _, id := range in.FlowLogIds {
		delete(f.flowLogs, id)
	}
	return &ec2.DeleteFlowLogsOutput{}, nil
}

func (f *fakeCloud) CreateLogGroup(_ context.Context, in *cloudwatchlogs.CreateLogGroupInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateLogGroup"); err != nil {
		return nil, err
	}
	name := awssdk.ToString(in.LogGroupName)
	if _, ok := f.logGroups[name]; ok {
		return nil, &cwltypes.ResourceAlreadyExistsException{Message: awssdk.String(name)}
	}
	f.logGroups[name] = 0
	return &cloudwatchlogs.CreateLogGroupOutput{}, nil
}

func (f *fakeCloud) PutRetentionPolicy(_ context.Context, in *cloudwatchlogs.PutRetentionPolicyInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("PutRetentionPolicy"); err != nil {
		return nil, err
	}
	f.logGroups[awssdk.ToString(in.LogGroupName)] = awssdk.ToInt32(in.RetentionInDays)
	return &cloudwatchlogs.PutRetentionPolicyOutput{}, nil
}

func (f *fakeCloud) DescribeLogGroups(_ context.Context, in *cloudwatchlogs.DescribeLogGroupsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DescribeLogGroups"); err != nil {
		return nil, err
	}
	out := &cloudwatchlogs.DescribeLogGroupsOutput{}
	for name, days := range f.logGroups {
		if strings.HasPrefix(name, awssdk.ToString(in.LogGroupNamePrefix)) {
			lg := cwltypes.LogGroup{LogGroupName: awssdk.String(name)}
			if days > 0 {
				lg.RetentionInDays = awssdk.Int32(days)
			}
			out.LogGroups = append(out.LogGroups, lg)
		}
	}
	return out, nil
}

func (f *fakeCloud) DeleteLogGroup(_ context.Context, in *cloudwatchlogs.DeleteLogGroupInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DeleteLogGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteLogGroup"); err != nil {
		return nil, err
	}
	name := awssdk.ToString(in.LogGroupName)
	if _, ok := f.logGroups[name]; !ok {
		return nil, &cwltypes.ResourceNotFoundException{Message: awssdk.String(name)}
	}
	delete(f.logGroups, name)
	return &cloudwatchlogs.DeleteLogGroupOutput{}, nil
}

func (f *fakeCloud) CreateRole(_ context.Context, in *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateRole"); err != nil {
		return nil, err
	}
	name := awssdk.ToString(in.RoleName)
	if _, ok := f.roles[name]; ok {
		return nil, apiErr("EntityAlreadyExists")
	}
	f.roles[name] = "arn:aws:iam::123456789012:role/" + name
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{RoleName: in.RoleName, Arn: awssdk.String(f.roles[name])}}, nil
}

func (f *fakeCloud) GetRole(_ context.Context, in *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetRole"); err != nil {
		return nil, err
	}
	arn, ok := f.roles[awssdk.ToString(in.RoleName)]
	if !ok {
		return nil, apiErr("NoSuchEntity")
	}
	return &iam.GetRoleOutput{Role: &iamtypes.Role{RoleName: in.RoleName, Arn: awssdk.String(arn)}}, nil
}

func (f *fakeCloud) PutRolePolicy(_ context.Context, in *iam.PutRolePolicyInput, _ ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("PutRolePolicy"); err != nil {
		return nil, err
	}
	f.policies[awssdk.ToString(in.RoleName)] = awssdk.ToString(in.PolicyDocument)
	return &iam.PutRolePolicyOutput{}, nil
}

func (f *fakeCloud) DeleteRolePolicy(_ context.Context, in *iam.DeleteRolePolicyInput, _ ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteRolePolicy"); err != nil {
		return nil, err
	}
	delete(f.policies, awssdk.ToString(in.RoleName))
	return &iam.DeleteRolePolicyOutput{}, nil
}

func (f *fakeCloud) DeleteRole(_ context.Context, in *iam.DeleteRoleInput, _ ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteRole"); err != nil {
		return nil, err
	}
	name := awssdk.ToString(in.RoleName)
	if _, ok := f.roles[name]; !ok {
		return nil, apiErr("NoSuchEntity")
	}
	if _, ok := f.policies[name]; ok {
		return nil, apiErr("DeleteConflict")
	}
	delete(f.roles, name)
	return &iam.DeleteRoleOutput{}, nil
}
