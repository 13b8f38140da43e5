package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/indexcards/indexnet/internal/config"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Inspect deployment environments",
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the environments in the configuration document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		current := config.ResolveEnvironmentName("", reg)
		for _, name := range reg.Names() {
			marker := " "
			if name == current {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
		}
		return nil
	},
}

var envShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Print the resolved configuration of an environment",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		cfg, err := loadEnvironment(name)
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", cfg.StackName(), data)
		return nil
	},
}

var envUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make an environment the default for later commands",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		if _, err := reg.Get(args[0]); err != nil {
			return err
		}
		settings := config.LoadSettings()
		settings.Environment = args[0]
		if err := config.SaveSettings(settings); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Default environment set to %s\n", args[0])
		return nil
	},
}

func init() {
	envCmd.AddCommand(envListCmd)
	envCmd.AddCommand(envShowCmd)
	envCmd.AddCommand(envUseCmd)
}
