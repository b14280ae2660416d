package cmd

import (
	"fmt"

	"github.com/PolarWolf314/sealkeeper/internal/ui"
	"github.com/PolarWolf314/sealkeeper/internal/utils"
	"github.com/PolarWolf314/sealkeeper/internal/workflows"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
)

var (
	setupYes bool
)

func init() {
	setupCmd.Flags().BoolVarP(&setupYes, "yes", "y", false, "replace an existing master key without prompting")
}

// resetSetupCommandState resets the setup command's global state for testing.
func resetSetupCommandState() {
	setupYes = false
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Generate the first master key",
	Long: `Generates a self-signed certificate and RSA key and stores them as the
Sealed Secrets master key in the current Secrets Manager slot.

If a master key already exists you are asked before it is replaced. The
existing key is archived first:
  - to the backup slot, tagged backup-<timestamp>
  - to JSON and YAML files in the output directory

The new key is mirrored to the backup slot as setup-<timestamp> and written
to the output directory. Apply the YAML file to the cluster with kubectl.

Examples:
  # Create the master key
  sealkeeper key setup

  # Replace an existing key without prompting
  sealkeeper key setup --yes`,
	RunE: runSetup,
}

func runSetup(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting setup command")

	if utils.IsStdoutTerminal() && !verbose && !debug {
		fmt.Println()
		figure.NewColorFigure("sealkeeper", "standard", "green", true).Print()
		fmt.Println()
	}

	spinner, cleanup := startSpinner("Checking for an existing master key...", verbose)
	defer cleanup()

	ctx := cmd.Context()
	env, err := prepareEnv(ctx)
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		return reported(err)
	}

	status, err := workflows.Status(ctx, env, workflows.StatusOptions{})
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		return reported(err)
	}

	replace := false
	if status.Current.Exists {
		Logger.Infof("Current slot %s already exists", status.Current.ID)
		if !setupYes {
			details := []string{"It will be archived to " + ui.SecretID.Sprint(env.Config.Secrets.BackupID) + " before it is replaced."}
			if status.Current.Fingerprint != "" {
				details = append([]string{"Existing key: " + ui.Highlight.Sprint(status.Current.RecordName) +
					" (sha256 " + utils.ShortFingerprint(status.Current.Fingerprint) + ")"}, details...)
			}
			if !confirm(spinner, "A master key already exists in "+ui.SecretID.Sprint(status.Current.ID)+".", details...) {
				spinner.FinalMSG = ui.Warning.Sprint("⚠") + " Setup cancelled."
				return nil
			}
		}
		replace = true
	}

	spinner.Suffix = " Generating master key..."
	result, err := workflows.Setup(ctx, env, workflows.SetupOptions{Replace: replace})
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		return reported(err)
	}

	Logger.Infof("Master key stored as version %s", result.CurrentVersionID)

	finalMessage := ui.Success.Sprint("✓") + " Master key " + ui.Highlight.Sprint(result.RecordName) + " stored in " +
		ui.SecretID.Sprint(env.Config.Secrets.CurrentID) + "\n"
	if result.Replaced != nil {
		finalMessage += ui.Success.Sprint("✓") + " Previous key archived as " + ui.Version.Sprint(result.Replaced.Tag) + "\n"
	}
	finalMessage += "\n" +
		"  Fingerprint: sha256 " + result.Fingerprint + "\n" +
		"  Expires:     " + result.NotAfter.Format("2006-01-02") + "\n" +
		"  Backup tag:  " + ui.Version.Sprint(result.Tag) + "\n" +
		"  Files:\n" + ui.Bullets(ui.Path, result.Files) + "\n" +
		ui.Info.Sprint("→") + " Apply it with " + ui.Code.Sprint("kubectl apply -f "+result.Files[len(result.Files)-1]) +
		formatWarnings(result.Warnings)
	spinner.FinalMSG = finalMessage
	return nil
}
