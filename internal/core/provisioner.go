package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/indexcards/indexnet/internal/aws"
	"github.com/indexcards/indexnet/internal/logging"
	"github.com/indexcards/indexnet/internal/planner"
	"github.com/indexcards/indexnet/pkg/types"
)

// Progress stages reported while applying or destroying a stack.
const (
	StageZones     = "zones"
	StageVPC       = "vpc"
	StageSubnets   = "subnets"
	StageSecurity  = "security"
	StageEndpoints = "endpoints"
	StageNAT       = "nat"
	StageFlowLog   = "flowlog"
	StageTeardown  = "teardown"
	StageDone      = "done"
)

const (
	defaultPollInterval = 5 * time.Second

	// New IAM roles take a few seconds before EC2 can assume them.
	flowLogAttempts = 10

	dependencyAttempts = 30
)

// Provisioner realizes network topology plans in an AWS account
type Provisioner struct {
	region    string
	accountID string
	ec2Client *aws.EC2Client
	cwlClient *aws.CloudWatchLogsClient
	iamClient *aws.IAMClient
	logger    *slog.Logger
	poll      time.Duration
	progress  func(stage, msg string)
	now       func() time.Time
}

// NewProvisioner loads AWS credentials for region and profile, validates them
// with STS and returns a provisioner bound to the caller's account.
func NewProvisioner(ctx context.Context, region, profile string, logger *slog.Logger) (*Provisioner, error) {
	// Build config options with fast IMDS timeout
	configOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithEC2IMDSClientEnableState(imds.ClientDisabled), // Disable IMDS for fast failure on non-EC2
	}

	// Add profile if specified
	if profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Validate credentials by calling STS - this fails fast if not authenticated
	stsClient := sts.NewFromConfig(cfg)
	identity, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	accountID := ""
	if identity.Account != nil {
		accountID = *identity.Account
	}

	return newProvisioner(region, accountID,
		ec2.NewFromConfig(cfg),
		cloudwatchlogs.NewFromConfig(cfg),
		iam.NewFromConfig(cfg),
		logger,
	), nil
}

func newProvisioner(region, accountID string, ec2API aws.EC2API, cwlAPI aws.CloudWatchLogsAPI, iamAPI aws.IAMAPI, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Provisioner{
		region:    region,
		accountID: accountID,
		ec2Client: aws.NewEC2Client(ec2API),
		cwlClient: aws.NewCloudWatchLogsClient(cwlAPI),
		iamClient: aws.NewIAMClient(iamAPI),
		logger:    logger.With("region", region),
		poll:      defaultPollInterval,
		now:       time.Now,
	}
}

// GetAccountID returns the AWS account ID
func (p *Provisioner) GetAccountID() string {
	return p.accountID
}

// GetRegion returns the AWS region
func (p *Provisioner) GetRegion() string {
	return p.region
}

// OnProgress registers a callback invoked at every provisioning step.
func (p *Provisioner) OnProgress(fn func(stage, msg string)) {
	p.progress = fn
}

func (p *Provisioner) report(stage, msg string, args ...any) {
	p.logger.Info(msg, append([]any{"stage", stage}, args...)...)
	if p.progress != nil {
		p.progress(stage, msg)
	}
}

// Apply creates every resource of plan. On failure it returns the outputs
// recorded so far together with the error, so the partial stack can be
// destroyed.
func (p *Provisioner) Apply(ctx context.Context, plan *types.NetworkTopologyPlan) (*types.StackOutputs, error) {
	if plan.Region != "" && plan.Region != p.region {
		return nil, fmt.Errorf("plan targets %s but credentials are bound to %s", plan.Region, p.region)
	}

	out := &types.StackOutputs{
		StackName:        plan.StackName,
		Environment:      plan.Environment,
		Region:           p.region,
		AccountID:        p.accountID,
		CreatedAt:        p.now().UTC(),
		Exports:          map[string]string{},
		SecurityGroupIDs: map[string]string{},
		EndpointIDs:      map[string]string{},
	}
	stack := plan.StackName

	p.report(StageZones, "Selecting availability zones")
	zones, err := p.ec2Client.AvailabilityZones(ctx)
	if err != nil {
		return out, err
	}
	if len(zones) < len(plan.Subnets) {
		return out, fmt.Errorf("region %s has %d availability zones, plan needs %d", p.region, len(zones), len(plan.Subnets))
	}

	p.report(StageVPC, "Creating VPC "+plan.VPCCIDR)
	vpcID, err := p.ec2Client.CreateVPC(ctx, plan.VPCCIDR, aws.EC2Tags(plan.Tags, planner.PhysicalName(stack, planner.VPCName)))
	out.VPCID = vpcID
	if vpcID != "" {
		out.Exports[plan.Exports.VPCID] = vpcID
	}
	if err != nil {
		return out, err
	}
	p.logger.Debug("vpc available", "vpc_id", vpcID)

	p.report(StageSubnets, fmt.Sprintf("Creating %d isolated subnets", len(plan.Subnets)))
	for _, s := range plan.Subnets {
		az := zones[s.AZIndex]
		id, err := p.ec2Client.CreateSubnet(ctx, vpcID, s.CIDR, az, aws.EC2Tags(plan.Tags, planner.PhysicalName(stack, s.Name)))
		if err != nil {
			return out, err
		}
		out.SubnetIDs = append(out.SubnetIDs, id)
		out.AvailabilityZones = append(out.AvailabilityZones, az)
		p.logger.Debug("subnet created", "subnet_id", id, "cidr", s.CIDR, "az", az)
	}

	p.report(StageSecurity, fmt.Sprintf("Creating %d security groups", len(plan.SecurityGroups)))
	if err := p.createSecurityGroups(ctx, plan, vpcID, out); err != nil {
		return out, err
	}
	out.Exports[plan.Exports.LambdaSecurityGroupID] = out.SecurityGroupIDs[planner.ComputeSecurityGroup]
	out.Exports[plan.Exports.RDSSecurityGroupID] = out.SecurityGroupIDs[planner.DatabaseSecurityGroup]

	p.report(StageEndpoints, fmt.Sprintf("Creating %d VPC endpoints", len(plan.Endpoints)))
	if err := p.createEndpoints(ctx, plan, vpcID, out); err != nil {
		return out, err
	}

	if plan.NATGatewayCount > 0 {
		p.report(StageNAT, "Creating NAT gateway (this takes a few minutes)")
		natID, err := p.ec2Client.CreateNATGateway(ctx, out.SubnetIDs[0], aws.EC2Tags(plan.Tags, planner.PhysicalName(stack, "NatGateway")))
		if natID != "" {
			out.NATGatewayIDs = append(out.NATGatewayIDs, natID)
		}
		if err != nil {
			return out, err
		}
	}

	p.report(StageFlowLog, "Enabling VPC flow log to "+plan.FlowLog.LogGroupName)
	if err := p.createFlowLog(ctx, plan, vpcID, out); err != nil {
		return out, err
	}

	p.report(StageDone, "Stack "+stack+" is ready", "vpc_id", vpcID)
	return out, nil
}

func (p *Provisioner) createSecurityGroups(ctx context.Context, plan *types.NetworkTopologyPlan, vpcID string, out *types.StackOutputs) error {
	// Groups first, so rules may reference any of them
	for _, sg := range plan.SecurityGroups {
		name := planner.PhysicalName(plan.StackName, sg.Name)
		id, err := p.ec2Client.CreateSecurityGroup(ctx, vpcID, name, sg.Description, allowsAllEgress(sg), aws.EC2Tags(plan.Tags, name))
		if id != "" {
			out.SecurityGroupIDs[sg.Name] = id
		}
		if err != nil {
			return err
		}
		p.logger.Debug("security group created", "name", name, "group_id", id)
	}

	for _, sg := range plan.SecurityGroups {
		for _, rule := range sg.Rules {
			if aws.IsAllowAll(rule) {
				continue
			}
			if err := p.ec2Client.AuthorizeRule(ctx, out.SecurityGroupIDs[sg.Name], rule, out.SecurityGroupIDs); err != nil {
				return err
			}
		}
	}
	return nil
}

func allowsAllEgress(sg types.SecurityGroupDescriptor) bool {
	for _, rule := range sg.Rules {
		if aws.IsAllowAll(rule) {
			return true
		}
	}
	return false
}

func (p *Provisioner) createEndpoints(ctx context.Context, plan *types.NetworkTopologyPlan, vpcID string, out *types.StackOutputs) error {
	mainTable, err := p.ec2Client.MainRouteTable(ctx, vpcID)
	if err != nil {
		return err
	}

	var endpointGroups []string
	for _, ep := range plan.Endpoints {
		if ep.Kind != types.EndpointInterface {
			continue
		}
		defaultGroup, err := p.ec2Client.DefaultSecurityGroup(ctx, vpcID)
		if err != nil {
			return err
		}
		if err := p.ec2Client.AllowHTTPSFromCIDR(ctx, defaultGroup, plan.VPCCIDR); err != nil {
			return err
		}
		endpointGroups = []string{defaultGroup}
		break
	}

	for _, ep := range plan.Endpoints {
		tags := aws.EC2Tags(plan.Tags, planner.PhysicalName(plan.StackName, ep.Name))
		id, err := p.ec2Client.CreateEndpoint(ctx, vpcID, ep, []string{mainTable}, out.SubnetIDs, endpointGroups, tags)
		if err != nil {
			return err
		}
		out.EndpointIDs[ep.Service] = id
		p.logger.Debug("endpoint created", "service", ep.ServiceName, "endpoint_id", id, "kind", ep.Kind)
	}
	return nil
}

func (p *Provisioner) createFlowLog(ctx context.Context, plan *types.NetworkTopologyPlan, vpcID string, out *types.StackOutputs) error {
	sink := plan.FlowLog
	if err := p.cwlClient.CreateLogGroup(ctx, sink.LogGroupName, sink.RetentionDays, plan.Tags); err != nil {
		return err
	}
	out.LogGroupName = sink.LogGroupName
	out.RemoveLogGroup = sink.RemoveOnTeardown

	roleName := planner.FlowLogRoleName(plan.StackName)
	roleArn, err := p.iamClient.EnsureFlowLogRole(ctx, roleName, sink.LogGroupName, plan.Tags)
	if err != nil {
		return err
	}
	out.FlowLogRoleName = roleName

	tags := aws.EC2Tags(plan.Tags, planner.PhysicalName(plan.StackName, sink.Name))
	for attempt := 1; ; attempt++ {
		id, err := p.ec2Client.CreateFlowLogs(ctx, vpcID, sink, roleArn, tags)
		if err == nil {
			out.FlowLogID = id
			return nil
		}
		if attempt == flowLogAttempts {
			return err
		}
		p.logger.Debug("flow log not accepted yet, retrying", "attempt", attempt, "error", err)
		if err := sleep(ctx, p.poll); err != nil {
			return err
		}
	}
}

// Destroy deletes everything recorded in out, in reverse dependency order.
// Missing resources are skipped; every other failure is collected and the
// remaining resources are still attempted.
func (p *Provisioner) Destroy(ctx context.Context, out *types.StackOutputs) error {
	var errs []error
	step := func(err error) {
		if err != nil {
			p.logger.Warn("teardown step failed", "error", err)
			errs = append(errs, err)
		}
	}

	if out.FlowLogID != "" {
		p.report(StageTeardown, "Deleting flow log "+out.FlowLogID)
		step(p.ec2Client.DeleteFlowLogs(ctx, []string{out.FlowLogID}))
	}

	for _, natID := range out.NATGatewayIDs {
		p.report(StageTeardown, "Deleting NAT gateway "+natID)
		step(p.ec2Client.DeleteNATGateway(ctx, natID))
	}

	if len(out.EndpointIDs) > 0 {
		ids := sortedValues(out.EndpointIDs)
		p.report(StageTeardown, fmt.Sprintf("Deleting %d VPC endpoints", len(ids)))
		step(p.ec2Client.DeleteEndpoints(ctx, ids, p.poll))
	}

	if len(out.SecurityGroupIDs) > 0 {
		groupIDs := sortedValues(out.SecurityGroupIDs)
		p.report(StageTeardown, fmt.Sprintf("Deleting %d security groups", len(groupIDs)))
		for _, id := range groupIDs {
			step(p.ec2Client.RevokeGroupReferences(ctx, id))
		}
		for _, id := range groupIDs {
			step(aws.RetryOnDependency(ctx, dependencyAttempts, p.poll, func() error {
				return p.ec2Client.DeleteSecurityGroup(ctx, id)
			}))
		}
	}

	for _, id := range out.SubnetIDs {
		p.report(StageTeardown, "Deleting subnet "+id)
		step(aws.RetryOnDependency(ctx, dependencyAttempts, p.poll, func() error {
			return p.ec2Client.DeleteSubnet(ctx, id)
		}))
	}

	if out.VPCID != "" {
		p.report(StageTeardown, "Deleting VPC "+out.VPCID)
		step(aws.RetryOnDependency(ctx, dependencyAttempts, p.poll, func() error {
			return p.ec2Client.DeleteVPC(ctx, out.VPCID)
		}))
	}

	if out.RemoveLogGroup && out.LogGroupName != "" {
		p.report(StageTeardown, "Deleting log group "+out.LogGroupName)
		step(p.cwlClient.DeleteLogGroup(ctx, out.LogGroupName))
	}

	if out.FlowLogRoleName != "" {
		p.report(StageTeardown, "Deleting role "+out.FlowLogRoleName)
		step(p.iamClient.DeleteFlowLogRole(ctx, out.FlowLogRoleName))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("teardown of %s incomplete: %w", out.StackName, err)
	}
	p.report(StageDone, "Stack "+out.StackName+" deleted")
	return nil
}

// Discover reads the live state of a VPC and the flow-log groups it writes to.
func (p *Provisioner) Discover(ctx context.Context, vpcID string) (*types.ObservedNetwork, error) {
	cidr, tags, err := p.ec2Client.DescribeVPC(ctx, vpcID)
	if err != nil {
		return nil, err
	}
	obs := &types.ObservedNetwork{VPCID: vpcID, CIDR: cidr, Region: p.region, Tags: tags}

	if obs.Subnets, err = p.ec2Client.DiscoverSubnets(ctx, vpcID); err != nil {
		return nil, fmt.Errorf("failed to discover subnets: %w", err)
	}
	if obs.SecurityGroups, err = p.ec2Client.DiscoverSecurityGroups(ctx, vpcID); err != nil {
		return nil, fmt.Errorf("failed to discover security groups: %w", err)
	}
	if obs.Endpoints, err = p.ec2Client.DiscoverVPCEndpoints(ctx, vpcID); err != nil {
		return nil, fmt.Errorf("failed to discover VPC endpoints: %w", err)
	}
	if obs.NATGateways, err = p.ec2Client.DiscoverNATGateways(ctx, vpcID); err != nil {
		return nil, fmt.Errorf("failed to discover NAT gateways: %w", err)
	}
	if obs.RouteTables, err = p.ec2Client.DiscoverRouteTables(ctx, vpcID); err != nil {
		return nil, fmt.Errorf("failed to discover route tables: %w", err)
	}
	if obs.FlowLogs, err = p.ec2Client.DiscoverFlowLogs(ctx, vpcID); err != nil {
		return nil, fmt.Errorf("failed to discover flow logs: %w", err)
	}

	seen := map[string]bool{}
	for _, fl := range obs.FlowLogs {
		if fl.LogGroupName == "" || seen[fl.LogGroupName] {
			continue
		}
		seen[fl.LogGroupName] = true
		lg, err := p.cwlClient.DescribeLogGroup(ctx, fl.LogGroupName)
		if err != nil {
			return nil, err
		}
		if lg != nil {
			obs.LogGroups = append(obs.LogGroups, *lg)
		}
	}

	p.logger.Debug("network discovered", "vpc_id", vpcID,
		"subnets", len(obs.Subnets), "security_groups", len(obs.SecurityGroups),
		"endpoints", len(obs.Endpoints), "flow_logs", len(obs.FlowLogs))
	return obs, nil
}

func sortedValues(m map[string]string) []string {
	values := make([]string, 0, len(m))
	for _, v := range m {
		if v != "" {
			values = append(values, v)
		}
	}
	sort.Strings(values)
	return values
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
