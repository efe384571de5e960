package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/acfsync/acfsync/internal/config"
	"github.com/acfsync/acfsync/internal/util"
)

// NewConfigCommand creates the config command and its subcommands
func NewConfigCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show acfsync configuration",
		Long: `Show the effective acfsync configuration.

Values come from the config file, then the optional .env file, then ACFSYNC_*
environment variables, then the --store and --driver flags.
Configuration is stored in ~/.config/acfsync/config.yaml by default.

Example:
  acfsync config path                 # Show config file path
  acfsync config get driver           # Show one setting
  acfsync config get                  # Show all configuration`,
	}

	getCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Get configuration value(s)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runConfigGetAll(cmd, g)
			}
			return runConfigGet(cmd, g, args[0])
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOutput(cmd.OutOrStdout(), "%s\n", g.cfgFile)
		},
	}

	cmd.AddCommand(getCmd)
	cmd.AddCommand(pathCmd)

	return cmd
}

// configKeys lists the settings in display order
var configKeys = []string{"store_path", "driver", "lock_timeout", "log_level", "output_format", "env_file"}

func configValue(cfg *config.Config, key string) (string, bool) {
	switch strings.ReplaceAll(strings.ToLower(key), "-", "_") {
	case "store_path":
		return cfg.StorePath, true
	case "driver":
		return cfg.Driver, true
	case "lock_timeout":
		return cfg.LockTimeout.String(), true
	case "log_level":
		return cfg.LogLevel, true
	case "output_format":
		return cfg.OutputFormat, true
	case "env_file":
		return cfg.EnvFile, true
	}
	return "", false
}

func runConfigGetAll(cmd *cobra.Command, g *globalOptions) error {
	out := cmd.OutOrStdout()

	if err := writeOutput(out, "Configuration file: %s\n\n", g.cfgFile); err != nil {
		return err
	}
	for _, key := range configKeys {
		value, _ := configValue(g.cfg, key)
		if err := writeOutput(out, "%s: %s\n", key, value); err != nil {
			return err
		}
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, g *globalOptions, key string) error {
	value, ok := configValue(g.cfg, key)
	if !ok {
		return util.NewInputError("unknown configuration key: %s", key)
	}
	return writeOutput(cmd.OutOrStdout(), "%s\n", value)
}
