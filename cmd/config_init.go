package cmd

import (
	"fmt"

	"github.com/PolarWolf314/sealkeeper/internal/configs"
	"github.com/PolarWolf314/sealkeeper/internal/utils"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configInitRegion  string
	configInitProfile string
	configInitBucket  string
	configInitForce   bool
)

func init() {
	configInitCmd.Flags().StringVar(&configInitRegion, "region", "", "AWS region")
	configInitCmd.Flags().StringVar(&configInitProfile, "profile", "", "AWS shared config profile")
	configInitCmd.Flags().StringVar(&configInitBucket, "bucket", "", "S3 bucket for uploaded backups")
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing config file")
}

// resetConfigInitState resets the config init command's global state for testing.
func resetConfigInitState() {
	configInitRegion = ""
	configInitProfile = ""
	configInitBucket = ""
	configInitForce = false
}

// configFilePath is the file config commands read and write.
func configFilePath() string {
	if configFile != "" {
		return configFile
	}
	return configs.UserSealkeeperSettings.ConfigPath
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the defaults",
	Long: `Writes a config file holding every setting with its default value, so
the file documents what can be changed.

An existing file is left alone unless --force is given.

Examples:
  # Write the defaults
  sealkeeper config init

  # Pin the region and bucket
  sealkeeper config init --region eu-west-1 --bucket ops-backups

  # Overwrite an existing file
  sealkeeper config init --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ConfigLogger.Infof("Starting config init command")

		path := configFilePath()
		if utils.FileExists(path) && !configInitForce {
			fmt.Println(color.RedString("✗") + " Config file already exists: " + color.YellowString(path))
			fmt.Println(color.CyanString("→") + " Run " + color.YellowString("sealkeeper config init --force") + " to overwrite it")
			return reported(fmt.Errorf("config file already exists: %s", path))
		}

		cfg := configs.Default()
		cfg.AWS.Region = configInitRegion
		cfg.AWS.Profile = configInitProfile
		cfg.Storage.Bucket = configInitBucket

		if err := configs.Save(path, cfg); err != nil {
			return ConfigLogger.ErrorfAndReturn("Failed to save config: %v", err)
		}
		ConfigLogger.Infof("Config written to %s", path)

		fmt.Println(color.GreenString("✓") + " Configuration saved to " + color.YellowString(path))
		fmt.Println()
		fmt.Println("Your settings:")
		if cfg.AWS.Region != "" {
			fmt.Println("  Region:  " + color.CyanString(cfg.AWS.Region))
		}
		if cfg.AWS.Profile != "" {
			fmt.Println("  Profile: " + color.CyanString(cfg.AWS.Profile))
		}
		fmt.Println("  Current: " + color.CyanString(cfg.Secrets.CurrentID))
		fmt.Println("  Backup:  " + color.CyanString(cfg.Secrets.BackupID))
		if cfg.Storage.Bucket != "" {
			fmt.Println("  Bucket:  " + color.CyanString(cfg.Storage.Bucket))
		}
		fmt.Println("  Output:  " + color.CyanString(cfg.Output.Dir))
		fmt.Println()
		fmt.Println(color.CyanString("→") + " Run " + color.YellowString("sealkeeper key setup") + " to create the master key")
		return nil
	},
}
