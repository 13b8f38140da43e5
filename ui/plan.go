package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/indexcards/indexnet/internal/planner"
	"github.com/indexcards/indexnet/pkg/types"
)

// RenderPlan returns a terminal rendering of plan and its fixed cost.
func RenderPlan(plan *types.NetworkTopologyPlan) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("indexnet - %s", plan.StackName)))
	b.WriteString("\n")
	b.WriteString(infoStyle.Render(fmt.Sprintf("Environment: %s  |  Region: %s  |  VPC: %s", plan.Environment, plan.Region, plan.VPCCIDR)))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Subnets"))
	b.WriteString("\n")
	for _, s := range plan.Subnets {
		b.WriteString(fmt.Sprintf("  %-16s %-18s AZ #%d  %s\n", s.Name, s.CIDR, s.AZIndex+1, s.Isolation))
	}
	if plan.NATGatewayCount > 0 {
		b.WriteString(fmt.Sprintf("  NAT gateways: %d (private, in %s)\n", plan.NATGatewayCount, plan.Subnets[0].Name))
	} else {
		b.WriteString(infoStyle.Render("  NAT gateways: none"))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Security Groups"))
	b.WriteString("\n")
	for _, sg := range plan.SecurityGroups {
		b.WriteString(stepStyle.Render(sg.Name))
		b.WriteString("\n")
		if len(sg.RulesFor(types.Egress)) == 0 {
			b.WriteString(infoStyle.Render("  no outbound traffic"))
			b.WriteString("\n")
		}
		for _, r := range sg.Rules {
			b.WriteString(fmt.Sprintf("  %-7s %-4s %-6s %-22s %s\n", r.Direction, protocolLabel(r.Protocol), portLabel(r), peerLabel(r), infoStyle.Render(r.Description)))
		}
	}
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("VPC Endpoints"))
	b.WriteString("\n")
	for _, ep := range plan.Endpoints {
		dns := ""
		if ep.Kind == types.EndpointInterface && ep.PrivateDNS {
			dns = infoStyle.Render(" private DNS")
		}
		b.WriteString(fmt.Sprintf("  %-10s %-42s%s\n", ep.Kind, ep.ServiceName, dns))
	}
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Flow Log"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s traffic -> %s (retention %s)\n", plan.FlowLog.TrafficType, plan.FlowLog.LogGroupName, retentionLabel(plan.FlowLog.RetentionDays)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Tags"))
	b.WriteString("\n")
	for _, t := range plan.Tags {
		b.WriteString(fmt.Sprintf("  %s=%s\n", t.Key, t.Value))
	}
	b.WriteString("\n")

	costs := planner.EstimateCost(plan)
	if len(costs) > 0 {
		b.WriteString(headerStyle.Render("Estimated Fixed Cost"))
		b.WriteString("\n")
		for _, c := range costs {
			b.WriteString(fmt.Sprintf("  %-34s x%-2d %s/month\n", c.Component, c.Units, formatCurrency(c.MonthlyCost)))
		}
		b.WriteString(highlightStyle.Render(fmt.Sprintf("  Total: %s/month", formatCurrency(planner.TotalMonthly(costs)))))
		b.WriteString("\n")
		b.WriteString(infoStyle.Render("  Data processing is billed per GB on top."))
		b.WriteString("\n")
	}

	return b.String()
}

// RenderOutputs lists the identifiers of a provisioned stack.
func RenderOutputs(out *types.StackOutputs) string {
	var b strings.Builder
	b.WriteString(successStyle.Render(fmt.Sprintf("✅ %s provisioned in %s", out.StackName, out.Region)))
	b.WriteString("\n\n")

	names := make([]string, 0, len(out.Exports))
	for name := range out.Exports {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(fmt.Sprintf("  %-48s %s\n", name, out.Exports[name]))
	}
	if len(out.NATGatewayIDs) > 0 {
		b.WriteString(fmt.Sprintf("  %-48s %s\n", "NAT gateway", strings.Join(out.NATGatewayIDs, ", ")))
	}
	if out.FlowLogID != "" {
		b.WriteString(fmt.Sprintf("  %-48s %s\n", "Flow log", out.FlowLogID))
	}
	return b.String()
}

// RenderFindings summarizes a drift audit.
func RenderFindings(findings []types.Finding) string {
	var b strings.Builder
	if len(findings) == 0 {
		b.WriteString(successStyle.Render("✅ Live network matches the plan."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(warningStyle.Render(fmt.Sprintf("⚠️  %d drift finding(s)", len(findings))))
	b.WriteString("\n\n")
	for _, f := range findings {
		b.WriteString(severityStyle(f.Severity).Render(fmt.Sprintf("[%s] %s", strings.ToUpper(f.Severity), f.Title)))
		b.WriteString("\n")
		if f.Description != "" {
			b.WriteString(fmt.Sprintf("  %s\n", f.Description))
		}
		if f.Action != "" {
			b.WriteString(infoStyle.Render(fmt.Sprintf("  Action: %s", f.Action)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func protocolLabel(protocol string) string {
	if protocol == types.ProtocolAll {
		return "all"
	}
	return protocol
}

func portLabel(r types.SecurityGroupRule) string {
	switch {
	case r.Protocol == types.ProtocolAll:
		return "all"
	case r.FromPort == r.ToPort:
		return fmt.Sprintf("%d", r.FromPort)
	default:
		return fmt.Sprintf("%d-%d", r.FromPort, r.ToPort)
	}
}

func peerLabel(r types.SecurityGroupRule) string {
	if r.PeerGroup != "" {
		return r.PeerGroup
	}
	return r.PeerCIDR
}

func retentionLabel(days int) string {
	if days == 0 {
		return "never expires"
	}
	return fmt.Sprintf("%d days", days)
}
