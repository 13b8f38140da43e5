package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/indexcards/indexnet/internal/config"
	"github.com/indexcards/indexnet/internal/logging"
)

var version = "dev"

var (
	configPath string
	logLevel   string
	logFormat  string

	logger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "indexnet",
	Short: "indexnet - plan, provision and audit the IndexCards network",
	Long: `indexnet builds the network stack of an IndexCards environment: a VPC with
two isolated subnets, security groups for the Lambda functions and the RDS
database, VPC endpoints, an optional NAT gateway and a VPC flow log.

Environments are read from a YAML or JSON document (environments.yaml by
default, or --config / INDEXNET_CONFIG).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		l, err := logging.New(os.Stderr, level, logFormat)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		return nil
	},
}

func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the environments document (default environments.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadRegistry() (*config.Registry, error) {
	return config.LoadFile(config.ResolveConfigPath(configPath))
}

// loadEnvironment resolves the named environment, falling back to the
// configured default when name is empty.
func loadEnvironment(name string) (config.EnvironmentConfig, error) {
	reg, err := loadRegistry()
	if err != nil {
		return config.EnvironmentConfig{}, err
	}
	env := config.ResolveEnvironmentName(name, reg)
	cfg, err := config.Resolve(reg, env)
	if err != nil {
		return config.EnvironmentConfig{}, err
	}
	logger.Debug("resolved environment", slog.String("env", env), slog.String("source", reg.Source()))
	return cfg, nil
}
