package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/indexcards/indexnet/internal/analysis"
	"github.com/indexcards/indexnet/internal/config"
	"github.com/indexcards/indexnet/internal/core"
	"github.com/indexcards/indexnet/internal/planner"
	"github.com/indexcards/indexnet/internal/report"
	"github.com/indexcards/indexnet/pkg/types"
	"github.com/indexcards/indexnet/ui"
)

var (
	auditEnv     string
	auditOutputs string
	auditVPCID   string
	auditProfile string
	auditRegion  string
	auditReport  string
	auditStrict  bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Compare a deployed network with its plan",
	Long: `Reads the live state of a deployed VPC (subnets, security group rules, VPC
endpoints, NAT gateways, flow logs and tags) and reports every difference from
the environment's plan. Read-only: nothing is created or changed.

The VPC is taken from an outputs file written by apply, or given with --vpc-id.`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringVarP(&auditEnv, "env", "e", "", "Environment name (default: the outputs file's environment, or dev)")
	auditCmd.Flags().StringVar(&auditOutputs, "outputs", "", "Outputs file written by apply")
	auditCmd.Flags().StringVar(&auditVPCID, "vpc-id", "", "VPC to audit instead of the outputs file")
	auditCmd.Flags().StringVar(&auditProfile, "profile", "", "AWS profile")
	auditCmd.Flags().StringVarP(&auditRegion, "region", "r", "", "AWS region (overrides the environment's region)")
	auditCmd.Flags().StringVarP(&auditReport, "output", "o", "", "Also write the audit report to a .json, .md or .yaml file")
	auditCmd.Flags().BoolVar(&auditStrict, "strict", false, "Exit non-zero when any drift is found")
	auditCmd.MarkFlagsMutuallyExclusive("outputs", "vpc-id")
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var outputs *types.StackOutputs
	env := auditEnv
	if auditVPCID == "" {
		path := auditOutputs
		if path == "" {
			cfg, err := loadEnvironment(env)
			if err != nil {
				return err
			}
			path = report.DefaultOutputsPath(cfg.StackName())
		}
		out, err := report.ReadOutputs(path)
		if err != nil {
			return err
		}
		outputs = out
		if env == "" {
			env = out.Environment
		}
	}

	cfg, err := loadEnvironment(env)
	if err != nil {
		return err
	}
	if outputs != nil && auditRegion == "" {
		cfg.Region = outputs.Region
	} else if cfg, err = config.OverrideRegion(cfg, auditRegion); err != nil {
		return err
	}
	plan, err := planner.Plan(cfg)
	if err != nil {
		return err
	}

	vpcID := auditVPCID
	if outputs != nil {
		vpcID = outputs.VPCID
	}
	if vpcID == "" {
		return fmt.Errorf("no VPC to audit: outputs file has no vpcId")
	}

	prov, err := core.NewProvisioner(ctx, cfg.Region, config.ResolveProfile(auditProfile), logger)
	if err != nil {
		return fmt.Errorf("failed to create provisioner: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Auditing %s (%s) in %s...\n\n", plan.StackName, vpcID, cfg.Region)
	observed, err := prov.Discover(ctx, vpcID)
	if err != nil {
		return fmt.Errorf("failed to discover %s: %w", vpcID, err)
	}

	findings := analysis.AnalyzeDrift(plan, observed)
	fmt.Fprint(cmd.OutOrStdout(), ui.RenderFindings(findings))

	if auditReport != "" {
		r := report.New(plan, outputs, findings)
		r.AccountID = prov.GetAccountID()
		if err := r.Save(auditReport); err != nil {
			return fmt.Errorf("failed to export report: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved report to %s\n", auditReport)
	}

	if auditStrict && len(findings) > 0 {
		counts := analysis.CountBySeverity(findings)
		return fmt.Errorf("drift detected: %d high, %d medium, %d low",
			counts[analysis.SeverityHigh], counts[analysis.SeverityMedium], counts[analysis.SeverityLow])
	}
	return nil
}
