package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/indexcards/indexnet/internal/planner"
	"github.com/indexcards/indexnet/pkg/types"
)

// Finding types reported by AnalyzeDrift.
const (
	FindingCIDRMismatch       = "cidr-mismatch"
	FindingMissingSubnet      = "missing-subnet"
	FindingUnexpectedSubnet   = "unexpected-subnet"
	FindingNATGatewayCount    = "nat-gateway-count"
	FindingMissingGroup       = "missing-security-group"
	FindingRuleMismatch       = "security-group-rules"
	FindingMissingEndpoint    = "missing-endpoint"
	FindingEndpointPrivateDNS = "endpoint-private-dns"
	FindingEndpointRoutes     = "misconfigured-endpoint"
	FindingMissingFlowLog     = "missing-flow-log"
	FindingFlowLogTraffic     = "flow-log-traffic"
	FindingMissingLogGroup    = "missing-log-group"
	FindingLogRetention       = "log-retention"
	FindingMissingTags        = "missing-tags"
	FindingTagMismatch        = "tag-mismatch"
)

// Severities, most urgent first.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// AnalyzeDrift compares the live network against the plan it was created from.
// Findings come back in a fixed check order, one per divergence.
func AnalyzeDrift(plan *types.NetworkTopologyPlan, observed *types.ObservedNetwork) []types.Finding {
	d := &drift{plan: plan, obs: observed}

	d.checkCIDR()
	d.checkSubnets()
	d.checkNATGateways()
	d.checkSecurityGroups()
	d.checkEndpoints()
	d.checkFlowLog()
	d.checkTags()

	return d.findings
}

type drift struct {
	plan     *types.NetworkTopologyPlan
	obs      *types.ObservedNetwork
	findings []types.Finding
}

func (d *drift) add(f types.Finding) {
	f.VPCID = d.obs.VPCID
	d.findings = append(d.findings, f)
}

func (d *drift) checkCIDR() {
	if d.obs.CIDR == d.plan.VPCCIDR {
		return
	}
	d.add(types.Finding{
		Type:        FindingCIDRMismatch,
		Severity:    SeverityHigh,
		Title:       "VPC CIDR differs from plan",
		Description: fmt.Sprintf("VPC has %s, plan for %s expects %s", d.obs.CIDR, d.plan.Environment, d.plan.VPCCIDR),
		Resource:    planner.VPCName,
		Action:      "Recreate the stack; a VPC primary CIDR cannot be changed in place",
	})
}

func (d *drift) checkSubnets() {
	live := make(map[string]types.Subnet, len(d.obs.Subnets))
	for _, s := range d.obs.Subnets {
		live[s.CIDR] = s
	}

	planned := make(map[string]bool, len(d.plan.Subnets))
	for _, s := range d.plan.Subnets {
		planned[s.CIDR] = true
		if _, ok := live[s.CIDR]; !ok {
			d.add(types.Finding{
				Type:        FindingMissingSubnet,
				Severity:    SeverityHigh,
				Title:       "Missing subnet " + s.Name,
				Description: fmt.Sprintf("No subnet with CIDR %s exists in the VPC", s.CIDR),
				Resource:    s.Name,
				Action:      "Re-run apply for " + d.plan.Environment,
			})
		}
	}

	for _, s := range d.obs.Subnets {
		if planned[s.CIDR] {
			continue
		}
		d.add(types.Finding{
			Type:        FindingUnexpectedSubnet,
			Severity:    SeverityLow,
			Title:       "Subnet not in plan",
			Description: fmt.Sprintf("Subnet %s (%s) was not created by this stack", s.ID, s.CIDR),
			Resource:    s.ID,
			Action:      "Remove the subnet or record it in the environment configuration",
		})
	}
}

func (d *drift) checkNATGateways() {
	if len(d.obs.NATGateways) == d.plan.NATGatewayCount {
		return
	}
	d.add(types.Finding{
		Type:        FindingNATGatewayCount,
		Severity:    SeverityMedium,
		Title:       "NAT gateway count differs from plan",
		Description: fmt.Sprintf("Found %d NAT gateway(s), plan expects %d", len(d.obs.NATGateways), d.plan.NATGatewayCount),
		Resource:    "NatGateway",
		Action:      "Check enableNatGateway for " + d.plan.Environment + " and re-apply",
	})
}

func (d *drift) checkSecurityGroups() {
	byName := make(map[string]types.SecurityGroup, len(d.obs.SecurityGroups))
	for _, g := range d.obs.SecurityGroups {
		byName[g.Name] = g
	}

	// Planned name -> live group ID, so peer references can be compared
	ids := make(map[string]string, len(d.plan.SecurityGroups))
	for _, sg := range d.plan.SecurityGroups {
		if g, ok := byName[planner.PhysicalName(d.plan.StackName, sg.Name)]; ok {
			ids[sg.Name] = g.ID
		}
	}

	for _, sg := range d.plan.SecurityGroups {
		physical := planner.PhysicalName(d.plan.StackName, sg.Name)
		g, ok := byName[physical]
		if !ok {
			d.add(types.Finding{
				Type:        FindingMissingGroup,
				Severity:    SeverityHigh,
				Title:       "Missing security group " + sg.Name,
				Description: fmt.Sprintf("No security group named %s exists in the VPC", physical),
				Resource:    sg.Name,
				Action:      "Re-run apply for " + d.plan.Environment,
			})
			continue
		}

		for _, dir := range []types.RuleDirection{types.Ingress, types.Egress} {
			want := plannedRuleKeys(sg.RulesFor(dir), ids)
			var live []types.ObservedRule
			if dir == types.Ingress {
				live = g.Ingress
			} else {
				live = g.Egress
			}
			got := observedRuleKeys(live)

			missing, extra := diffKeys(want, got)
			if len(missing) == 0 && len(extra) == 0 {
				continue
			}

			severity := SeverityMedium
			if sg.Name == planner.DatabaseSecurityGroup && dir == types.Ingress {
				severity = SeverityHigh
			}
			d.add(types.Finding{
				Type:        FindingRuleMismatch,
				Severity:    severity,
				Title:       fmt.Sprintf("%s %s rules differ from plan", sg.Name, dir),
				Description: describeRuleDiff(missing, extra),
				Resource:    sg.Name,
				Action:      fmt.Sprintf("Restore the planned %s rules on %s (%s)", dir, physical, g.ID),
			})
		}
	}
}

func ruleKey(protocol string, from, to int, peer string) string {
	if protocol == types.ProtocolAll {
		from, to = 0, 0
	}
	return fmt.Sprintf("%s %d-%d %s", protocol, from, to, peer)
}

func plannedRuleKeys(rules []types.SecurityGroupRule, ids map[string]string) []string {
	keys := make([]string, 0, len(rules))
	for _, r := range rules {
		peer := r.PeerCIDR
		if r.PeerGroup != "" {
			peer = ids[r.PeerGroup]
			if peer == "" {
				peer = r.PeerGroup
			}
		}
		keys = append(keys, ruleKey(r.Protocol, r.FromPort, r.ToPort, peer))
	}
	return keys
}

func observedRuleKeys(rules []types.ObservedRule) []string {
	keys := make([]string, 0, len(rules))
	for _, r := range rules {
		peer := r.CIDR
		if r.PeerGroupID != "" {
			peer = r.PeerGroupID
		}
		keys = append(keys, ruleKey(r.Protocol, int(r.FromPort), int(r.ToPort), peer))
	}
	return keys
}

func diffKeys(want, got []string) (missing, extra []string) {
	have := make(map[string]bool, len(got))
	for _, k := range got {
		have[k] = true
	}
	expected := make(map[string]bool, len(want))
	for _, k := range want {
		expected[k] = true
		if !have[k] {
			missing = append(missing, k)
		}
	}
	for _, k := range got {
		if !expected[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}

func describeRuleDiff(missing, extra []string) string {
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		parts = append(parts, "unexpected: "+strings.Join(extra, ", "))
	}
	return strings.Join(parts, "; ")
}

func (d *drift) checkEndpoints() {
	mainTable := ""
	for _, rt := range d.obs.RouteTables {
		if rt.Main {
			mainTable = rt.ID
			break
		}
	}

	for _, ep := range d.plan.Endpoints {
		live := findEndpoint(d.obs.Endpoints, ep)
		if live == nil {
			d.add(types.Finding{
				Type:        FindingMissingEndpoint,
				Severity:    SeverityHigh,
				Title:       fmt.Sprintf("Missing %s endpoint", ep.Service),
				Description: fmt.Sprintf("No %s endpoint for %s exists in the VPC", strings.ToLower(string(ep.Kind)), ep.ServiceName),
				Resource:    ep.Name,
				Action:      "Re-run apply for " + d.plan.Environment,
			})
			continue
		}

		switch ep.Kind {
		case types.EndpointInterface:
			if ep.PrivateDNS && !live.PrivateDNS {
				d.add(types.Finding{
					Type:        FindingEndpointPrivateDNS,
					Severity:    SeverityMedium,
					Title:       fmt.Sprintf("%s endpoint has private DNS disabled", ep.Service),
					Description: fmt.Sprintf("Endpoint %s resolves only through its endpoint-specific hostname", live.ID),
					Resource:    ep.Name,
					Action:      fmt.Sprintf("aws ec2 modify-vpc-endpoint --vpc-endpoint-id %s --private-dns-enabled", live.ID),
				})
			}
		case types.EndpointGateway:
			if mainTable != "" && !contains(live.RouteTables, mainTable) {
				d.add(types.Finding{
					Type:        FindingEndpointRoutes,
					Severity:    SeverityHigh,
					Title:       fmt.Sprintf("%s gateway endpoint missing route table association", ep.Service),
					Description: fmt.Sprintf("Endpoint %s is not associated with the main route table %s", live.ID, mainTable),
					Resource:    ep.Name,
					Action:      fmt.Sprintf("aws ec2 modify-vpc-endpoint --vpc-endpoint-id %s --add-route-table-ids %s", live.ID, mainTable),
				})
			}
		}
	}
}

func findEndpoint(endpoints []types.VPCEndpoint, ep types.EndpointDescriptor) *types.VPCEndpoint {
	for i := range endpoints {
		if endpoints[i].ServiceName == ep.ServiceName && strings.EqualFold(endpoints[i].Type, string(ep.Kind)) {
			return &endpoints[i]
		}
	}
	return nil
}

func (d *drift) checkFlowLog() {
	sink := d.plan.FlowLog

	var flowLog *types.FlowLog
	for i := range d.obs.FlowLogs {
		if d.obs.FlowLogs[i].LogGroupName == sink.LogGroupName {
			flowLog = &d.obs.FlowLogs[i]
			break
		}
	}

	switch {
	case flowLog == nil:
		d.add(types.Finding{
			Type:        FindingMissingFlowLog,
			Severity:    SeverityMedium,
			Title:       "VPC flow log missing",
			Description: "No flow log delivers to " + sink.LogGroupName,
			Resource:    sink.Name,
			Action:      "Re-run apply for " + d.plan.Environment,
		})
	case flowLog.TrafficType != sink.TrafficType:
		d.add(types.Finding{
			Type:        FindingFlowLogTraffic,
			Severity:    SeverityMedium,
			Title:       "Flow log captures the wrong traffic",
			Description: fmt.Sprintf("Flow log %s captures %s traffic, plan expects %s", flowLog.ID, flowLog.TrafficType, sink.TrafficType),
			Resource:    sink.Name,
			Action:      fmt.Sprintf("Delete flow log %s and re-run apply", flowLog.ID),
		})
	}

	var group *types.LogGroup
	for i := range d.obs.LogGroups {
		if d.obs.LogGroups[i].Name == sink.LogGroupName {
			group = &d.obs.LogGroups[i]
			break
		}
	}

	switch {
	case group == nil:
		d.add(types.Finding{
			Type:        FindingMissingLogGroup,
			Severity:    SeverityMedium,
			Title:       "Flow log group missing",
			Description: "Log group " + sink.LogGroupName + " does not exist",
			Resource:    sink.LogGroupName,
			Action:      "Re-run apply for " + d.plan.Environment,
		})
	case group.RetentionDays != sink.RetentionDays:
		d.add(types.Finding{
			Type:        FindingLogRetention,
			Severity:    SeverityLow,
			Title:       "Flow log retention differs from plan",
			Description: fmt.Sprintf("Log group keeps events %s, plan expects %s", retention(group.RetentionDays), retention(sink.RetentionDays)),
			Resource:    sink.LogGroupName,
			Action: fmt.Sprintf("aws logs put-retention-policy --log-group-name %s --retention-in-days %d",
				sink.LogGroupName, sink.RetentionDays),
		})
	}
}

func retention(days int) string {
	if days == 0 {
		return "forever"
	}
	return fmt.Sprintf("%d days", days)
}

func (d *drift) checkTags() {
	if missing := types.MissingMandatoryTags(d.obs.Tags); len(missing) > 0 {
		d.add(types.Finding{
			Type:        FindingMissingTags,
			Severity:    SeverityMedium,
			Title:       "VPC is missing mandatory tags",
			Description: "Missing or empty: " + strings.Join(missing, ", "),
			Resource:    planner.VPCName,
			Action:      "Re-run apply to restore tags",
		})
	}

	var wrong []string
	for _, t := range d.plan.Tags {
		if v, ok := d.obs.Tags[t.Key]; ok && v != "" && v != t.Value {
			wrong = append(wrong, fmt.Sprintf("%s=%s (want %s)", t.Key, v, t.Value))
		}
	}
	if len(wrong) > 0 {
		d.add(types.Finding{
			Type:        FindingTagMismatch,
			Severity:    SeverityLow,
			Title:       "VPC tag values differ from plan",
			Description: strings.Join(wrong, ", "),
			Resource:    planner.VPCName,
			Action:      "Re-run apply to restore tags",
		})
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// CountBySeverity tallies findings per severity.
func CountBySeverity(findings []types.Finding) map[string]int {
	counts := map[string]int{}
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}

// HasHighSeverity reports whether any finding is high severity.
func HasHighSeverity(findings []types.Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityHigh {
			return true
		}
	}
	return false
}
