package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/indexcards/indexnet/internal/config"
	"github.com/indexcards/indexnet/internal/core"
	"github.com/indexcards/indexnet/internal/planner"
	"github.com/indexcards/indexnet/internal/report"
	"github.com/indexcards/indexnet/ui"
)

var (
	applyEnv         string
	applyProfile     string
	applyRegion      string
	applyAutoApprove bool
	applyUI          string
	applyOutputs     string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Provision the network stack of an environment",
	Long: `Plans the environment and creates every resource in AWS: VPC, subnets,
security groups, VPC endpoints, the NAT gateway when enabled, and the flow log.

Resource ids are written to an outputs file (.indexnet/<stack>.outputs.yaml by
default) which audit and destroy read back. When provisioning fails part way
the outputs recorded so far are still written, so destroy can remove them.`,
	Args: cobra.NoArgs,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVarP(&applyEnv, "env", "e", "", "Environment name (default dev)")
	applyCmd.Flags().StringVar(&applyProfile, "profile", "", "AWS profile")
	applyCmd.Flags().StringVarP(&applyRegion, "region", "r", "", "AWS region (overrides the environment's region)")
	applyCmd.Flags().BoolVar(&applyAutoApprove, "auto-approve", false, "Skip the confirmation prompt")
	applyCmd.Flags().StringVar(&applyUI, "ui", "", "Progress display: tui or stream (default tui on a terminal)")
	applyCmd.Flags().StringVar(&applyOutputs, "outputs", "", "Where to write the stack outputs")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	mode, err := ui.ResolveMode(applyUI)
	if err != nil {
		return err
	}

	cfg, err := loadEnvironment(applyEnv)
	if err != nil {
		return err
	}
	cfg, err = config.OverrideRegion(cfg, applyRegion)
	if err != nil {
		return err
	}

	plan, err := planner.Plan(cfg)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), ui.RenderPlan(plan))
	fmt.Fprintln(cmd.OutOrStdout())

	if cfg.RequireApproval && !applyAutoApprove {
		if !ui.Interactive() {
			return fmt.Errorf("environment %s requires approval: rerun with --auto-approve or from a terminal", cfg.Name)
		}
		ok, err := ui.NewPrompter(os.Stdin, cmd.OutOrStdout()).
			Confirm(fmt.Sprintf("Provision %s in %s?", plan.StackName, plan.Region), false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Apply cancelled")
			return nil
		}
	}

	prov, err := core.NewProvisioner(ctx, cfg.Region, config.ResolveProfile(applyProfile), logger)
	if err != nil {
		return fmt.Errorf("failed to create provisioner: %w", err)
	}

	out, applyErr := ui.RunApply(ctx, prov, plan, mode)

	path := applyOutputs
	if path == "" {
		path = report.DefaultOutputsPath(plan.StackName)
	}
	if out != nil {
		if err := report.WriteOutputs(path, out); err != nil {
			logger.Error("failed to write outputs", slog.String("path", path), slog.Any("error", err))
			if applyErr == nil {
				return err
			}
		}
	}

	if applyErr != nil {
		if out != nil {
			return fmt.Errorf("apply failed, partial outputs in %s (run destroy --outputs %s): %w", path, path, applyErr)
		}
		return fmt.Errorf("apply failed: %w", applyErr)
	}

	fmt.Fprint(cmd.OutOrStdout(), ui.RenderOutputs(out))
	fmt.Fprintf(cmd.OutOrStdout(), "\nOutputs written to %s\n", path)
	return nil
}
