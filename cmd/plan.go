package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/indexcards/indexnet/internal/planner"
	"github.com/indexcards/indexnet/internal/report"
	"github.com/indexcards/indexnet/ui"
)

var (
	planEnv    string
	planOutput string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the network topology of an environment",
	Long: `Resolves the environment and prints the planned subnets, security groups,
VPC endpoints, flow log, tags and the fixed monthly cost. No AWS calls are made.`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planEnv, "env", "e", "", "Environment name (default dev)")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "", "Also write the plan to a .json, .md or .yaml file")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadEnvironment(planEnv)
	if err != nil {
		return err
	}
	plan, err := planner.Plan(cfg)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), ui.RenderPlan(plan))

	if planOutput != "" {
		if err := report.New(plan, nil, nil).Save(planOutput); err != nil {
			return fmt.Errorf("failed to export plan: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nSaved plan to %s\n", planOutput)
	}
	return nil
}
