package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/indexcards/indexnet/internal/config"
	"github.com/indexcards/indexnet/internal/core"
	"github.com/indexcards/indexnet/internal/report"
	"github.com/indexcards/indexnet/ui"
)

var (
	destroyEnv     string
	destroyOutputs string
	destroyProfile string
	destroyForce   bool
	destroyUI      string
)

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Tear down a provisioned network stack",
	Long: `Deletes every resource recorded in an outputs file: the flow log, NAT
gateway, VPC endpoints, security groups, subnets and VPC, then the flow-log
group (unless the environment keeps it) and the flow-log IAM role.

Resources that are already gone are skipped, so destroy can be rerun after a
partial failure. The outputs file is removed once teardown completes.`,
	Args: cobra.NoArgs,
	RunE: runDestroy,
}

func init() {
	destroyCmd.Flags().StringVarP(&destroyEnv, "env", "e", "", "Environment whose default outputs file to use")
	destroyCmd.Flags().StringVar(&destroyOutputs, "outputs", "", "Outputs file written by apply")
	destroyCmd.Flags().StringVar(&destroyProfile, "profile", "", "AWS profile")
	destroyCmd.Flags().BoolVar(&destroyForce, "force", false, "Skip confirmation prompt")
	destroyCmd.Flags().StringVar(&destroyUI, "ui", "", "Progress display: tui or stream (default tui on a terminal)")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	mode, err := ui.ResolveMode(destroyUI)
	if err != nil {
		return err
	}

	path := destroyOutputs
	if path == "" {
		cfg, err := loadEnvironment(destroyEnv)
		if err != nil {
			return err
		}
		path = report.DefaultOutputsPath(cfg.StackName())
	}
	out, err := report.ReadOutputs(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stack:   %s\n", out.StackName)
	fmt.Fprintf(cmd.OutOrStdout(), "Region:  %s\n", out.Region)
	fmt.Fprintf(cmd.OutOrStdout(), "VPC:     %s\n", out.VPCID)
	fmt.Fprintf(cmd.OutOrStdout(), "Subnets: %d  Security groups: %d  Endpoints: %d  NAT gateways: %d\n",
		len(out.SubnetIDs), len(out.SecurityGroupIDs), len(out.EndpointIDs), len(out.NATGatewayIDs))
	if out.LogGroupName != "" {
		keep := ""
		if !out.RemoveLogGroup {
			keep = " (kept)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Log group: %s%s\n", out.LogGroupName, keep)
	}
	fmt.Fprintln(cmd.OutOrStdout())

	if !destroyForce {
		if !ui.Interactive() {
			return fmt.Errorf("destroy needs confirmation: rerun with --force or from a terminal")
		}
		ok, err := ui.NewPrompter(os.Stdin, cmd.OutOrStdout()).
			Confirm(fmt.Sprintf("Delete %s and all of its resources?", out.StackName), false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Destroy cancelled")
			return nil
		}
	}

	prov, err := core.NewProvisioner(ctx, out.Region, config.ResolveProfile(destroyProfile), logger)
	if err != nil {
		return fmt.Errorf("failed to create provisioner: %w", err)
	}

	if err := ui.RunDestroy(ctx, prov, out, mode); err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to remove outputs file", slog.String("path", path), slog.Any("error", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n✅ %s deleted\n", out.StackName)
	return nil
}
