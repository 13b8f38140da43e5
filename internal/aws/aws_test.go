package aws

import (
	"context"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgtypes "github.com/indexcards/indexnet/pkg/types"
)

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

// fakeEC2 implements the EC2 calls the tests exercise; anything else panics
// through the nil embedded interface.
type fakeEC2 struct {
	EC2API

	zones          []types.AvailabilityZone
	createGroupOut string
	revokedEgress  []*ec2.RevokeSecurityGroupEgressInput
	ingress        []*ec2.AuthorizeSecurityGroupIngressInput
	egress         []*ec2.AuthorizeSecurityGroupEgressInput
	authorizeErr   error
	deleteVpcErr   error
	routeTables    []types.RouteTable
	endpointPolls  int
	deleteEndpoint *ec2.DeleteVpcEndpointsInput
}

func (f *fakeEC2) DescribeAvailabilityZones(_ context.Context, _ *ec2.DescribeAvailabilityZonesInput, _ ...func(*ec2.Options)) (*ec2.DescribeAvailabilityZonesOutput, error) {
	return &ec2.DescribeAvailabilityZonesOutput{AvailabilityZones: f.zones}, nil
}

func (f *fakeEC2) CreateSecurityGroup(_ context.Context, _ *ec2.CreateSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	return &ec2.CreateSecurityGroupOutput{GroupId: awssdk.String(f.createGroupOut)}, nil
}

func (f *fakeEC2) RevokeSecurityGroupEgress(_ context.Context, in *ec2.RevokeSecurityGroupEgressInput, _ ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupEgressOutput, error) {
	f.revokedEgress = append(f.revokedEgress, in)
	return &ec2.RevokeSecurityGroupEgressOutput{}, nil
}

func (f *fakeEC2) AuthorizeSecurityGroupIngress(_ context.Context, in *ec2.AuthorizeSecurityGroupIngressInput, _ ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	f.ingress = append(f.ingress, in)
	return &ec2.AuthorizeSecurityGroupIngressOutput{}, f.authorizeErr
}

func (f *fakeEC2) AuthorizeSecurityGroupEgress(_ context.Context, in *ec2.AuthorizeSecurityGroupEgressInput, _ ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupEgressOutput, error) {
	f.egress = append(f.egress, in)
	return &ec2.AuthorizeSecurityGroupEgressOutput{}, f.authorizeErr
}

func (f *fakeEC2) DeleteVpc(_ context.Context, _ *ec2.DeleteVpcInput, _ ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error) {
	return &ec2.DeleteVpcOutput{}, f.deleteVpcErr
}

func (f *fakeEC2) DescribeRouteTables(_ context.Context, _ *ec2.DescribeRouteTablesInput, _ ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	return &ec2.DescribeRouteTablesOutput{RouteTables: f.routeTables}, nil
}

func (f *fakeEC2) DeleteVpcEndpoints(_ context.Context, in *ec2.DeleteVpcEndpointsInput, _ ...func(*ec2.Options)) (*ec2.DeleteVpcEndpointsOutput, error) {
	f.deleteEndpoint = in
	return &ec2.DeleteVpcEndpointsOutput{}, nil
}

func (f *fakeEC2) DescribeVpcEndpoints(_ context.Context, in *ec2.DescribeVpcEndpointsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcEndpointsOutput, error) {
	f.endpointPolls++
	state := types.State("deleting")
	if f.endpointPolls >= 3 {
		state = types.State("deleted")
	}
	var eps []types.VpcEndpoint
	for _, id := range in.VpcEndpointIds {
		eps = append(eps, types.VpcEndpoint{VpcEndpointId: awssdk.String(id), State: state})
	}
	return &ec2.DescribeVpcEndpointsOutput{VpcEndpoints: eps}, nil
}

func TestAvailabilityZonesSorted(t *testing.T) {
	t.Parallel()
	fake := &fakeEC2{zones: []types.AvailabilityZone{
		{ZoneName: awssdk.String("us-east-1c")},
		{ZoneName: awssdk.String("us-east-1a")},
		{ZoneName: nil},
		{ZoneName: awssdk.String("us-east-1b")},
	}}

	zones, err := NewEC2Client(fake).AvailabilityZones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"us-east-1a", "us-east-1b", "us-east-1c"}, zones)
}

func TestCreateSecurityGroupDefaultEgress(t *testing.T) {
	t.Parallel()

	fake := &fakeEC2{createGroupOut: "sg-db"}
	id, err := NewEC2Client(fake).CreateSecurityGroup(context.Background(), "vpc-1", "db", "database", false, nil)
	require.NoError(t, err)
	assert.Equal(t, "sg-db", id)
	require.Len(t, fake.revokedEgress, 1)
	perm := fake.revokedEgress[0].IpPermissions[0]
	assert.Equal(t, "-1", awssdk.ToString(perm.IpProtocol))
	assert.Equal(t, "0.0.0.0/0", awssdk.ToString(perm.IpRanges[0].CidrIp))

	keep := &fakeEC2{createGroupOut: "sg-fn"}
	_, err = NewEC2Client(keep).CreateSecurityGroup(context.Background(), "vpc-1", "fn", "compute", true, nil)
	require.NoError(t, err)
	assert.Empty(t, keep.revokedEgress)
}

func TestAuthorizeRuleResolvesPeerGroup(t *testing.T) {
	t.Parallel()
	fake := &fakeEC2{}
	rule := pkgtypes.SecurityGroupRule{
		Direction: pkgtypes.Ingress, Protocol: "tcp", FromPort: 3306, ToPort: 3306,
		PeerGroup: "LambdaSecurityGroup", Description: "mysql",
	}

	err := NewEC2Client(fake).AuthorizeRule(context.Background(), "sg-db", rule, map[string]string{"LambdaSecurityGroup": "sg-fn"})
	require.NoError(t, err)
	require.Len(t, fake.ingress, 1)

	perm := fake.ingress[0].IpPermissions[0]
	assert.Equal(t, "sg-db", awssdk.ToString(fake.ingress[0].GroupId))
	assert.Equal(t, int32(3306), awssdk.ToInt32(perm.FromPort))
	assert.Equal(t, "sg-fn", awssdk.ToString(perm.UserIdGroupPairs[0].GroupId))
	assert.Empty(t, perm.IpRanges)
}

func TestAuthorizeRuleAllProtocolsOmitsPorts(t *testing.T) {
	t.Parallel()
	fake := &fakeEC2{}
	rule := pkgtypes.SecurityGroupRule{Direction: pkgtypes.Egress, Protocol: pkgtypes.ProtocolAll, PeerCIDR: "0.0.0.0/0"}

	require.NoError(t, NewEC2Client(fake).AuthorizeRule(context.Background(), "sg-fn", rule, nil))
	require.Len(t, fake.egress, 1)
	perm := fake.egress[0].IpPermissions[0]
	assert.Nil(t, perm.FromPort)
	assert.Nil(t, perm.ToPort)
	assert.True(t, IsAllowAll(rule))
}

func TestAuthorizeRuleErrors(t *testing.T) {
	t.Parallel()
	rule := pkgtypes.SecurityGroupRule{Direction: pkgtypes.Ingress, Protocol: "tcp", FromPort: 1, ToPort: 1, PeerGroup: "Missing"}
	err := NewEC2Client(&fakeEC2{}).AuthorizeRule(context.Background(), "sg", rule, map[string]string{})
	assert.ErrorContains(t, err, "Missing")

	dup := &fakeEC2{authorizeErr: apiError("InvalidPermission.Duplicate")}
	rule.PeerGroup = ""
	rule.PeerCIDR = "10.0.0.0/16"
	assert.NoError(t, NewEC2Client(dup).AuthorizeRule(context.Background(), "sg", rule, nil))

	denied := &fakeEC2{authorizeErr: apiError("UnauthorizedOperation")}
	assert.Error(t, NewEC2Client(denied).AuthorizeRule(context.Background(), "sg", rule, nil))
}

func TestDeleteVPCIgnoresNotFound(t *testing.T) {
	t.Parallel()
	assert.NoError(t, NewEC2Client(&fakeEC2{deleteVpcErr: apiError("InvalidVpcID.NotFound")}).DeleteVPC(context.Background(), "vpc-1"))

	err := NewEC2Client(&fakeEC2{deleteVpcErr: apiError("DependencyViolation")}).DeleteVPC(context.Background(), "vpc-1")
	require.Error(t, err)
	assert.True(t, IsDependencyViolation(err))
}

func TestDiscoverRouteTables(t *testing.T) {
	t.Parallel()
	fake := &fakeEC2{routeTables: []types.RouteTable{{
		RouteTableId: awssdk.String("rtb-1"),
		VpcId:        awssdk.String("vpc-1"),
		Associations: []types.RouteTableAssociation{{Main: awssdk.Bool(true)}},
		Routes: []types.Route{
			{DestinationCidrBlock: awssdk.String("10.0.0.0/16"), GatewayId: awssdk.String("local")},
			{DestinationPrefixListId: awssdk.String("pl-63a5400a"), GatewayId: awssdk.String("vpce-123")},
		},
	}}}
	client := NewEC2Client(fake)

	tables, err := client.DiscoverRouteTables(context.Background(), "vpc-1")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.True(t, tables[0].Main)
	require.Len(t, tables[0].Routes, 2)
	assert.Equal(t, "local", tables[0].Routes[0].TargetType)
	assert.Equal(t, "vpc-endpoint", tables[0].Routes[1].TargetType)
	assert.Equal(t, "vpce-123", tables[0].Routes[1].Target)
	assert.Equal(t, "pl-63a5400a", tables[0].Routes[1].DestinationCIDR)

	main, err := client.MainRouteTable(context.Background(), "vpc-1")
	require.NoError(t, err)
	assert.Equal(t, "rtb-1", main)
}

func TestDeleteEndpointsPollsUntilDeleted(t *testing.T) {
	t.Parallel()
	fake := &fakeEC2{}

	err := NewEC2Client(fake).DeleteEndpoints(context.Background(), []string{"vpce-1", "vpce-2"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"vpce-1", "vpce-2"}, fake.deleteEndpoint.VpcEndpointIds)
	assert.Equal(t, 3, fake.endpointPolls)
}

func TestRetryOnDependency(t *testing.T) {
	t.Parallel()
	calls := 0
	err := RetryOnDependency(context.Background(), 5, 0, func() error {
		calls++
		if calls < 3 {
			return apiError("DependencyViolation")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = RetryOnDependency(context.Background(), 2, 0, func() error {
		calls++
		return apiError("DependencyViolation")
	})
	assert.True(t, IsDependencyViolation(err))
	assert.Equal(t, 2, calls)
}

func TestEC2TagsAddsName(t *testing.T) {
	t.Parallel()
	set := pkgtypes.NewResourceTagSet(map[string]string{"Product": "index-cards"})
	tags := EC2Tags(set, "IndexCards-Network-dev/IndexCardsVpc")

	m := tagMap(tags)
	assert.Equal(t, "IndexCards-Network-dev/IndexCardsVpc", m["Name"])
	assert.Equal(t, "index-cards", m["Product"])
	_, ok := set.Get("Name")
	assert.False(t, ok)
}

type fakeLogs struct {
	CloudWatchLogsAPI

	createErr error
	retention *cloudwatchlogs.PutRetentionPolicyInput
	created   *cloudwatchlogs.CreateLogGroupInput
	groups    []cwltypes.LogGroup
	deleteErr error
}

func (f *fakeLogs) CreateLogGroup(_ context.Context, in *cloudwatchlogs.CreateLogGroupInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	f.created = in
	return &cloudwatchlogs.CreateLogGroupOutput{}, f.createErr
}

func (f *fakeLogs) PutRetentionPolicy(_ context.Context, in *cloudwatchlogs.PutRetentionPolicyInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error) {
	f.retention = in
	return &cloudwatchlogs.PutRetentionPolicyOutput{}, nil
}

func (f *fakeLogs) DescribeLogGroups(_ context.Context, _ *cloudwatchlogs.DescribeLogGroupsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error) {
	return &cloudwatchlogs.DescribeLogGroupsOutput{LogGroups: f.groups}, nil
}

func (f *fakeLogs) DeleteLogGroup(_ context.Context, _ *cloudwatchlogs.DeleteLogGroupInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DeleteLogGroupOutput, error) {
	return &cloudwatchlogs.DeleteLogGroupOutput{}, f.deleteErr
}

func TestCreateLogGroupSetsRetentionAndTags(t *testing.T) {
	t.Parallel()
	fake := &fakeLogs{createErr: &cwltypes.ResourceAlreadyExistsException{Message: awssdk.String("exists")}}
	tags := pkgtypes.NewResourceTagSet(map[string]string{"Stack": "Network"})

	err := NewCloudWatchLogsClient(fake).CreateLogGroup(context.Background(), "/aws/vpc/flowlogs/x", 7, tags)
	require.NoError(t, err)
	assert.Equal(t, "Network", fake.created.Tags["Stack"])
	require.NotNil(t, fake.retention)
	assert.Equal(t, int32(7), awssdk.ToInt32(fake.retention.RetentionInDays))

	never := &fakeLogs{}
	require.NoError(t, NewCloudWatchLogsClient(never).CreateLogGroup(context.Background(), "g", 0, nil))
	assert.Nil(t, never.retention)
}

func TestDescribeLogGroupExactMatch(t *testing.T) {
	t.Parallel()
	fake := &fakeLogs{groups: []cwltypes.LogGroup{
		{LogGroupName: awssdk.String("/aws/vpc/flowlogs/dev-old"), RetentionInDays: awssdk.Int32(1)},
		{LogGroupName: awssdk.String("/aws/vpc/flowlogs/dev"), RetentionInDays: awssdk.Int32(7)},
	}}
	client := NewCloudWatchLogsClient(fake)

	lg, err := client.DescribeLogGroup(context.Background(), "/aws/vpc/flowlogs/dev")
	require.NoError(t, err)
	require.NotNil(t, lg)
	assert.Equal(t, 7, lg.RetentionDays)

	lg, err = client.DescribeLogGroup(context.Background(), "/aws/vpc/flowlogs/prod")
	require.NoError(t, err)
	assert.Nil(t, lg)
}

func TestDeleteLogGroupIgnoresMissing(t *testing.T) {
	t.Parallel()
	fake := &fakeLogs{deleteErr: &cwltypes.ResourceNotFoundException{Message: awssdk.String("gone")}}
	assert.NoError(t, NewCloudWatchLogsClient(fake).DeleteLogGroup(context.Background(), "g"))
}

type fakeIAM struct {
	IAMAPI

	createErr     error
	policy        *iam.PutRolePolicyInput
	deletedRole   bool
	deletePolicyE error
}

func (f *fakeIAM) CreateRole(_ context.Context, in *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{Arn: awssdk.String("arn:aws:iam::123:role/" + *in.RoleName)}}, nil
}

func (f *fakeIAM) GetRole(_ context.Context, in *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	return &iam.GetRoleOutput{Role: &iamtypes.Role{Arn: awssdk.String("arn:aws:iam::123:role/existing-" + *in.RoleName)}}, nil
}

func (f *fakeIAM) PutRolePolicy(_ context.Context, in *iam.PutRolePolicyInput, _ ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	f.policy = in
	return &iam.PutRolePolicyOutput{}, nil
}

func (f *fakeIAM) DeleteRolePolicy(_ context.Context, _ *iam.DeleteRolePolicyInput, _ ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error) {
	return &iam.DeleteRolePolicyOutput{}, f.deletePolicyE
}

func (f *fakeIAM) DeleteRole(_ context.Context, _ *iam.DeleteRoleInput, _ ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	f.deletedRole = true
	return &iam.DeleteRoleOutput{}, nil
}

func TestEnsureFlowLogRole(t *testing.T) {
	t.Parallel()
	fake := &fakeIAM{}
	arn, err := NewIAMClient(fake).EnsureFlowLogRole(context.Background(), "r", "/aws/vpc/flowlogs/dev", nil)
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::123:role/r", arn)
	assert.Contains(t, awssdk.ToString(fake.policy.PolicyDocument), "log-group:/aws/vpc/flowlogs/dev:*")

	existing := &fakeIAM{createErr: apiError("EntityAlreadyExists")}
	arn, err = NewIAMClient(existing).EnsureFlowLogRole(context.Background(), "r", "g", nil)
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::123:role/existing-r", arn)
}

func TestDeleteFlowLogRoleIgnoresMissingPolicy(t *testing.T) {
	t.Parallel()
	fake := &fakeIAM{deletePolicyE: apiError("NoSuchEntity")}
	require.NoError(t, NewIAMClient(fake).DeleteFlowLogRole(context.Background(), "r"))
	assert.True(t, fake.deletedRole)
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()
	assert.True(t, IsNotFound(apiError("InvalidGroup.NotFound")))
	assert.True(t, IsAlreadyExists(apiError("InvalidGroup.Duplicate")))
	assert.False(t, IsNotFound(apiError("Throttling")))
	assert.False(t, IsNotFound(assert.AnError))
	assert.False(t, IsAlreadyExists(nil))
}
