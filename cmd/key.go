package cmd

import (
	logger "github.com/PolarWolf314/sealkeeper/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	verbose bool
	debug   bool
	Logger  logger.Logger

	// Shared by every key subcommand. Empty values fall through to the
	// environment, then the config file.
	configPath string
	region     string
	profile    string
	endpoint   string
	outputDir  string
	bucket     string
	useSSO     bool

	KeyCmd = &cobra.Command{
		Use:   "key",
		Short: "Manage the Sealed Secrets master key",
		Long: `Sets up, backs up, rotates and recovers the TLS key pair the Sealed Secrets
controller uses to decrypt SealedSecret resources.

The active key lives in the current Secrets Manager slot. Every replaced key
is archived to the backup slot under a version tag such as
rotated-20261019-101500, and to JSON/YAML files in the output directory.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			Logger = logger.Logger{
				Verbose: verbose,
				Debug:   debug,
			}
			Logger.Debugf("Initializing key command with verbose=%t, debug=%t", verbose, debug)
		},
	}
)

func init() {
	KeyCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	KeyCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
	KeyCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/sealkeeper/config.toml)")
	KeyCmd.PersistentFlags().StringVar(&region, "region", "", "AWS region")
	KeyCmd.PersistentFlags().StringVar(&profile, "profile", "", "AWS shared config profile")
	KeyCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "override AWS endpoints, e.g. http://localhost:4566")
	KeyCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "", "directory for local backups and the operation log")
	KeyCmd.PersistentFlags().StringVar(&bucket, "bucket", "", "S3 bucket for uploaded backups")
	KeyCmd.PersistentFlags().BoolVar(&useSSO, "sso", false, "log in through AWS SSO before running")

	KeyCmd.AddCommand(setupCmd)
	KeyCmd.AddCommand(backupCmd)
	KeyCmd.AddCommand(rotateCmd)
	KeyCmd.AddCommand(recoverCmd)
	KeyCmd.AddCommand(versionsCmd)
	KeyCmd.AddCommand(statusCmd)
	KeyCmd.AddCommand(decryptCmd)
	KeyCmd.AddCommand(doctorCmd)
	KeyCmd.AddCommand(logCmd)
}

// ResetGlobalState resets all global variables to their default values for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	configPath = ""
	region = ""
	profile = ""
	endpoint = ""
	outputDir = ""
	bucket = ""
	useSSO = false

	resetSetupCommandState()
	resetBackupCommandState()
	resetRotateCommandState()
	resetRecoverCommandState()
	resetVersionsCommandState()
	resetStatusCommandState()
	resetDecryptCommandState()
	resetDoctorCommandState()
	resetLogCommandState()
	resetKeyCobraFlagState()
}

// resetKeyCobraFlagState clears Changed on every key flag so one test's
// arguments don't leak into the next.
func resetKeyCobraFlagState() {
	reset := func(flag *pflag.Flag) {
		flag.Changed = false
		_ = flag.Value.Set(flag.DefValue)
	}
	KeyCmd.PersistentFlags().VisitAll(reset)
	for _, sub := range KeyCmd.Commands() {
		sub.Flags().VisitAll(reset)
	}
}
