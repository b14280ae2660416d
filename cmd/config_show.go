package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/PolarWolf314/sealkeeper/internal/configs"
	"github.com/PolarWolf314/sealkeeper/internal/utils"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configShowJSON bool
)

func init() {
	configShowCmd.Flags().BoolVar(&configShowJSON, "json", false, "output in JSON format")
}

func resetConfigShowState() {
	configShowJSON = false
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Shows the configuration key commands run with: the config file on top of
the defaults, with environment overrides applied.

Examples:
  sealkeeper config show
  sealkeeper config show --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ConfigLogger.Infof("Starting config show command")

		path := configFilePath()
		cfg, err := configs.Load(path)
		if err != nil {
			fmt.Println(color.RedString("✗") + " " + err.Error())
			return reported(err)
		}

		if configShowJSON {
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return ConfigLogger.ErrorfAndReturn("Failed to marshal config to JSON: %v", err)
			}
			fmt.Println(string(data))
			return nil
		}

		source := "defaults only, no file at " + path
		if utils.FileExists(path) {
			source = path
		}
		fmt.Println(color.CyanString("Configuration") + " (" + color.YellowString(source) + ")")
		fmt.Println()

		section := func(name string, rows ...[2]string) {
			fmt.Println("[" + name + "]")
			for _, r := range rows {
				value := r[1]
				if value == "" {
					value = color.HiBlackString("(not set)")
				}
				fmt.Printf("  %-14s %s\n", r[0], value)
			}
			fmt.Println()
		}

		section("aws",
			[2]string{"region", cfg.AWS.Region},
			[2]string{"profile", cfg.AWS.Profile},
			[2]string{"endpoint", cfg.AWS.Endpoint},
			[2]string{"sso_start_url", cfg.AWS.SSOStartURL},
			[2]string{"sso_region", cfg.AWS.SSORegion},
			[2]string{"sso_account_id", cfg.AWS.SSOAccountID},
			[2]string{"sso_role_name", cfg.AWS.SSORoleName},
		)
		section("secrets",
			[2]string{"current_id", cfg.Secrets.CurrentID},
			[2]string{"backup_id", cfg.Secrets.BackupID},
		)
		section("record",
			[2]string{"name", cfg.Record.Name},
			[2]string{"namespace", cfg.Record.Namespace},
		)
		section("certificate",
			[2]string{"common_name", cfg.Certificate.CommonName},
			[2]string{"organization", cfg.Certificate.Organization},
			[2]string{"validity_days", strconv.Itoa(cfg.Certificate.ValidityDays)},
			[2]string{"key_bits", strconv.Itoa(cfg.Certificate.KeyBits)},
		)
		section("storage",
			[2]string{"bucket", cfg.Storage.Bucket},
			[2]string{"prefix", cfg.Storage.Prefix},
		)
		section("output",
			[2]string{"dir", cfg.Output.Dir},
		)
		return nil
	},
}
