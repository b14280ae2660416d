package cmd

import (
	logger "github.com/PolarWolf314/sealkeeper/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	configVerbose bool
	configDebug   bool
	configFile    string
	ConfigLogger  logger.Logger

	// ConfigCmd is the top-level config command.
	ConfigCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage sealkeeper configuration",
		Long: `Provides commands for managing the sealkeeper config file.

The config file names the AWS region and profile, the two Secrets Manager
slots, the certificate parameters, the S3 bucket and the output directory.
Environment variables (AWS_REGION, AWS_PROFILE, SEALKEEPER_BUCKET,
SEALKEEPER_ENDPOINT) override it, and key command flags override both.

Examples:
  # Write a config file with the defaults
  sealkeeper config init --region eu-west-1 --bucket ops-backups

  # Show the effective configuration
  sealkeeper config show`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ConfigLogger = logger.Logger{
				Verbose: configVerbose,
				Debug:   configDebug,
			}
			ConfigLogger.Debugf("Initializing config command with verbose=%t, debug=%t", configVerbose, configDebug)
		},
	}
)

func init() {
	ConfigCmd.PersistentFlags().BoolVarP(&configVerbose, "verbose", "v", false, "enable verbose output")
	ConfigCmd.PersistentFlags().BoolVarP(&configDebug, "debug", "d", false, "enable debug output")
	ConfigCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default $XDG_CONFIG_HOME/sealkeeper/config.toml)")

	ConfigCmd.AddCommand(configInitCmd)
	ConfigCmd.AddCommand(configShowCmd)
}

// GetConfigCmd returns the ConfigCmd for testing.
func GetConfigCmd() *cobra.Command {
	return ConfigCmd
}

// ResetConfigState resets all config command global variables to their default values for testing.
func ResetConfigState() {
	configVerbose = false
	configDebug = false
	configFile = ""
	resetConfigInitState()
	resetConfigShowState()
	resetConfigCobraFlagState()
}

// resetConfigCobraFlagState resets the flag state for all config commands to prevent test pollution.
func resetConfigCobraFlagState() {
	reset := func(flag *pflag.Flag) {
		flag.Changed = false
		_ = flag.Value.Set(flag.DefValue)
	}
	ConfigCmd.PersistentFlags().VisitAll(reset)
	for _, sub := range ConfigCmd.Commands() {
		sub.Flags().VisitAll(reset)
	}
}
