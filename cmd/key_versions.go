package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PolarWolf314/sealkeeper/internal/ui"
	"github.com/PolarWolf314/sealkeeper/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	versionsS3   bool
	versionsJSON bool
)

func init() {
	versionsCmd.Flags().BoolVar(&versionsS3, "s3", false, "also list backups uploaded to the bucket")
	versionsCmd.Flags().BoolVar(&versionsJSON, "json", false, "output in JSON format")
}

// resetVersionsCommandState resets the versions command's global state for testing.
func resetVersionsCommandState() {
	versionsS3 = false
	versionsJSON = false
}

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List archived master keys",
	Long: `Lists every version of the backup slot, newest first, with its version
tags. Pass a tag or version id to recover --aws-version-stage or
--aws-version-id.

Examples:
  sealkeeper key versions
  sealkeeper key versions --s3
  sealkeeper key versions --json`,
	RunE: runVersions,
}

func runVersions(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting versions command")
	spinner, cleanup := startSpinner("Listing backup versions...", verbose)
	defer cleanup()

	ctx := cmd.Context()
	env, err := prepareEnv(ctx)
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		return reported(err)
	}

	result, err := workflows.Versions(ctx, env, workflows.VersionsOptions{IncludeObjects: versionsS3})
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		return reported(err)
	}
	Logger.Debugf("Found %d versions and %d objects", len(result.Versions), len(result.Objects))

	// Stop the spinner before printing the table.
	cleanup()

	if versionsJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal versions to JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("%s %s\n\n", ui.Info.Sprint("Backup slot"), ui.SecretID.Sprint(result.SecretID))
	if len(result.Versions) == 0 {
		fmt.Println("  No versions found.")
	}
	for _, v := range result.Versions {
		tags := strings.Join(workflows.VersionTags(v.Stages), ", ")
		marker := " "
		for _, s := range v.Stages {
			if s == "AWSCURRENT" {
				marker = "*"
			}
		}
		fmt.Printf("%s %-19s  %-36s  %s\n", marker, v.Created.UTC().Format("2006-01-02 15:04:05"), v.VersionID, ui.Version.Sprint(tags))
	}

	if versionsS3 {
		fmt.Printf("\n%s %s\n\n", ui.Info.Sprint("Uploaded backups in"), ui.Path.Sprint("s3://"+env.Objects.Bucket+"/"+env.Objects.Prefix))
		if len(result.Objects) == 0 {
			fmt.Println("  No objects found.")
		}
		for _, o := range result.Objects {
			fmt.Printf("  %-19s  %8d  %s\n", o.LastModified.UTC().Format("2006-01-02 15:04:05"), o.Size, ui.Path.Sprint(o.Key))
		}
	}
	return nil
}
