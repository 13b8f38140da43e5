package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings are per-user defaults kept in ~/.indexnet/settings.yaml.
type Settings struct {
	Environment string `yaml:"environment,omitempty"`
	ConfigPath  string `yaml:"config,omitempty"`
	Profile     string `yaml:"profile,omitempty"`
	Region      string `yaml:"region,omitempty"`
}

func settingsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".indexnet", "settings.yaml"), nil
}

// LoadSettings reads the user settings file. A missing file yields empty
// settings; an unreadable or malformed one is reported through slog and also
// yields empty settings.
func LoadSettings() Settings {
	path, err := settingsPath()
	if err != nil {
		return Settings{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("ignoring unreadable settings file", slog.String("path", path), slog.Any("error", err))
		}
		return Settings{}
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		slog.Warn("ignoring malformed settings file", slog.String("path", path), slog.Any("error", err))
		return Settings{}
	}
	return s
}

// SaveSettings writes s to the user settings file, creating the directory.
func SaveSettings(s Settings) error {
	path, err := settingsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ResolveConfigPath returns the environments document path from
// flag > INDEXNET_CONFIG > settings > environments.yaml.
func ResolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(EnvVarConfig); v != "" {
		return v
	}
	if v := LoadSettings().ConfigPath; v != "" {
		return v
	}
	return DefaultConfigFile
}

// ResolveEnvironmentName returns the environment to use from
// flag > INDEXNET_ENV > settings > the document's default > "dev".
// reg may be nil.
func ResolveEnvironmentName(flagValue string, reg *Registry) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(EnvVarEnvironment); v != "" {
		return v
	}
	if v := LoadSettings().Environment; v != "" {
		return v
	}
	if reg != nil && reg.DefaultName() != "" {
		return reg.DefaultName()
	}
	return DefaultEnvironment
}

// ResolveProfile returns the AWS profile from flag > settings. An empty result
// leaves the SDK's own resolution (AWS_PROFILE, default) in charge.
func ResolveProfile(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return LoadSettings().Profile
}

// OverrideRegion applies the region override from flag > settings to a
// resolved environment. The new region is validated like the configured one
// and fails with *InvalidEnvironmentConfigError. A settings default that moves
// an environment away from its configured region is logged.
func OverrideRegion(cfg EnvironmentConfig, flagValue string) (EnvironmentConfig, error) {
	region, source := flagValue, "--region"
	if region == "" {
		region, source = LoadSettings().Region, "settings"
	}
	if region == "" || region == cfg.Region {
		return cfg, nil
	}

	if constraint, err := checkRegion(region); constraint != "" {
		return EnvironmentConfig{}, &InvalidEnvironmentConfigError{
			Environment: cfg.Name,
			Field:       "region",
			Constraint:  fmt.Sprintf("%s override %q %s", source, region, constraint),
			Err:         err,
		}
	}
	if source == "settings" {
		slog.Warn("settings file overrides the environment's region",
			slog.String("env", cfg.Name), slog.String("configured", cfg.Region), slog.String("region", region))
	}
	cfg.Region = region
	return cfg, nil
}
