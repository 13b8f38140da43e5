package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/indexcards/indexnet/internal/planner"
	"github.com/indexcards/indexnet/pkg/types"
)

// Report is the exportable record of a plan, its estimated cost and, once
// applied or audited, the stack outputs and drift findings.
type Report struct {
	GeneratedAt time.Time                  `json:"generated_at" yaml:"generatedAt"`
	Environment string                     `json:"environment" yaml:"environment"`
	StackName   string                     `json:"stack_name" yaml:"stackName"`
	Region      string                     `json:"region" yaml:"region"`
	AccountID   string                     `json:"account_id,omitempty" yaml:"accountId,omitempty"`
	Plan        *types.NetworkTopologyPlan `json:"plan" yaml:"plan"`
	Costs       []types.CostEstimate       `json:"costs" yaml:"costs"`
	Outputs     *types.StackOutputs        `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Findings    []types.Finding            `json:"findings,omitempty" yaml:"findings,omitempty"`
}

// New builds a report for plan. outputs and findings may be nil.
func New(plan *types.NetworkTopologyPlan, outputs *types.StackOutputs, findings []types.Finding) *Report {
	r := &Report{
		GeneratedAt: time.Now().UTC(),
		Environment: plan.Environment,
		StackName:   plan.StackName,
		Region:      plan.Region,
		Plan:        plan,
		Costs:       planner.EstimateCost(plan),
		Outputs:     outputs,
		Findings:    findings,
	}
	if outputs != nil {
		r.AccountID = outputs.AccountID
	}
	return r
}

// Save writes the report in the format implied by the file extension:
// .json, .md or .yaml/.yml.
func (r *Report) Save(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return r.SaveJSON(path)
	case ".md", ".markdown":
		return r.SaveMarkdown(path)
	case ".yaml", ".yml":
		return r.SaveYAML(path)
	default:
		return fmt.Errorf("unsupported report format %q (use .json, .md or .yaml)", filepath.Ext(path))
	}
}

func (r *Report) SaveJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (r *Report) SaveYAML(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (r *Report) SaveMarkdown(path string) error {
	return os.WriteFile(path, []byte(r.ToMarkdown()), 0644)
}

func (r *Report) ToMarkdown() string {
	var b strings.Builder
	p := r.Plan

	b.WriteString(fmt.Sprintf("# IndexCards Network Report: %s\n\n", r.Environment))
	b.WriteString(fmt.Sprintf("**Generated:** %s  \n", r.GeneratedAt.Format(time.RFC1123)))
	b.WriteString(fmt.Sprintf("**Stack:** %s  \n", r.StackName))
	b.WriteString(fmt.Sprintf("**Region:** %s  \n", r.Region))
	if r.AccountID != "" {
		b.WriteString(fmt.Sprintf("**Account:** %s  \n", r.AccountID))
	}
	b.WriteString(fmt.Sprintf("**VPC CIDR:** %s\n\n", p.VPCCIDR))

	// Subnets
	b.WriteString("## Subnets\n\n")
	b.WriteString("| Name | CIDR | AZ | Isolation |\n")
	b.WriteString("|------|------|----|-----------|\n")
	for i, s := range p.Subnets {
		az := fmt.Sprintf("#%d", s.AZIndex+1)
		if r.Outputs != nil && i < len(r.Outputs.AvailabilityZones) {
			az = r.Outputs.AvailabilityZones[i]
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", s.Name, s.CIDR, az, s.Isolation))
	}
	b.WriteString("\n")
	if p.NATGatewayCount > 0 {
		b.WriteString(fmt.Sprintf("NAT gateways: %d (private connectivity, first subnet)\n\n", p.NATGatewayCount))
	} else {
		b.WriteString("NAT gateways: none\n\n")
	}

	// Security groups
	b.WriteString("## Security Groups\n\n")
	b.WriteString("| Group | Direction | Protocol | Ports | Peer | Description |\n")
	b.WriteString("|-------|-----------|----------|-------|------|-------------|\n")
	for _, sg := range p.SecurityGroups {
		for _, rule := range sg.Rules {
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
				sg.Name, rule.Direction, protocolLabel(rule.Protocol), portRange(rule), peerLabel(rule), rule.Description))
		}
	}
	b.WriteString("\n")

	// Endpoints
	b.WriteString("## VPC Endpoints\n\n")
	b.WriteString("| Name | Service | Type | Private DNS |\n")
	b.WriteString("|------|---------|------|-------------|\n")
	for _, ep := range p.Endpoints {
		dns := "-"
		if ep.Kind == types.EndpointInterface {
			dns = yesNo(ep.PrivateDNS)
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", ep.Name, ep.ServiceName, ep.Kind, dns))
	}
	b.WriteString("\n")

	// Flow log
	b.WriteString("## Flow Log\n\n")
	b.WriteString(fmt.Sprintf("- Log group: `%s`\n", p.FlowLog.LogGroupName))
	b.WriteString(fmt.Sprintf("- Traffic: %s\n", p.FlowLog.TrafficType))
	b.WriteString(fmt.Sprintf("- Retention: %d days\n", p.FlowLog.RetentionDays))
	b.WriteString(fmt.Sprintf("- Removed on teardown: %s\n\n", yesNo(p.FlowLog.RemoveOnTeardown)))

	// Tags
	b.WriteString("## Tags\n\n")
	for _, t := range p.Tags {
		b.WriteString(fmt.Sprintf("- `%s` = `%s`\n", t.Key, t.Value))
	}
	b.WriteString("\n")

	// Cost
	if len(r.Costs) > 0 {
		b.WriteString("## Estimated Fixed Cost\n\n")
		b.WriteString("> Hourly charges only; data processing is billed per GB on top.\n\n")
		b.WriteString("| Component | Units | Hourly Rate | Monthly |\n")
		b.WriteString("|-----------|-------|-------------|---------|\n")
		for _, c := range r.Costs {
			b.WriteString(fmt.Sprintf("| %s | %d | $%.3f | $%.2f |\n", c.Component, c.Units, c.HourlyRate, c.MonthlyCost))
		}
		b.WriteString(fmt.Sprintf("| **Total** | | | **$%.2f/month** |\n\n", planner.TotalMonthly(r.Costs)))
	}

	// Outputs
	if r.Outputs != nil {
		b.WriteString("## Stack Exports\n\n")
		b.WriteString("| Export | Value |\n")
		b.WriteString("|--------|-------|\n")
		for _, name := range []string{p.Exports.VPCID, p.Exports.LambdaSecurityGroupID, p.Exports.RDSSecurityGroupID} {
			value := r.Outputs.Exports[name]
			if value == "" {
				value = "-"
			}
			b.WriteString(fmt.Sprintf("| %s | %s |\n", name, value))
		}
		b.WriteString("\n")
	}

	// Drift
	if r.Findings != nil {
		b.WriteString("## Drift\n\n")
		if len(r.Findings) == 0 {
			b.WriteString("✅ Live network matches the plan.\n\n")
		}
		for _, f := range r.Findings {
			b.WriteString(fmt.Sprintf("### [%s] %s\n\n", strings.ToUpper(f.Severity), f.Title))
			if f.Description != "" {
				b.WriteString(f.Description + "\n\n")
			}
			if f.Action != "" {
				b.WriteString(fmt.Sprintf("```bash\n%s\n```\n\n", f.Action))
			}
		}
	}

	b.WriteString("---\n")
	b.WriteString("*Generated by indexnet*\n")

	return b.String()
}

func protocolLabel(protocol string) string {
	if protocol == types.ProtocolAll {
		return "all"
	}
	return protocol
}

func portRange(rule types.SecurityGroupRule) string {
	switch {
	case rule.Protocol == types.ProtocolAll:
		return "all"
	case rule.FromPort == rule.ToPort:
		return fmt.Sprintf("%d", rule.FromPort)
	default:
		return fmt.Sprintf("%d-%d", rule.FromPort, rule.ToPort)
	}
}

func peerLabel(rule types.SecurityGroupRule) string {
	if rule.PeerGroup != "" {
		return rule.PeerGroup
	}
	return rule.PeerCIDR
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
