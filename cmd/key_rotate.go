package cmd

import (
	"fmt"

	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"
	"github.com/PolarWolf314/sealkeeper/internal/ui"
	"github.com/PolarWolf314/sealkeeper/internal/utils"
	"github.com/PolarWolf314/sealkeeper/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	rotateYes bool
)

func init() {
	rotateCmd.Flags().BoolVarP(&rotateYes, "yes", "y", false, "skip confirmation prompt")
}

// resetRotateCommandState resets the rotate command's global state for testing.
func resetRotateCommandState() {
	rotateYes = false
}

var rotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Replace the master key with a new key pair",
	Long: `Generates a new certificate and RSA key and stores them under the same
record name, namespace and labels as the current master key.

The command will:
  1. Archive the current key to the backup slot as rotated-<timestamp>
  2. Write the archived key to the output directory
  3. Generate a new key pair
  4. Overwrite the current slot
  5. Write the new key to the output directory as issued-<timestamp>

After running this command:
  - Apply both the archived and the new YAML so the controller can still
    decrypt SealedSecrets sealed with the old key
  - Reseal secrets at your own pace

Examples:
  # Rotate with confirmation prompt
  sealkeeper key rotate

  # Rotate without confirmation prompt
  sealkeeper key rotate --yes`,
	RunE: runRotate,
}

func runRotate(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting rotate command")
	spinner, cleanup := startSpinner("Rotating master key...", verbose)
	defer cleanup()

	ctx := cmd.Context()
	env, err := prepareEnv(ctx)
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		return reported(err)
	}

	if !rotateYes {
		status, err := workflows.Status(ctx, env, workflows.StatusOptions{})
		if err != nil {
			spinner.FinalMSG = formatKeyError(err)
			return reported(err)
		}
		if !status.Current.Exists {
			err := fmt.Errorf("%w: %s", kerrors.ErrRecordNotFound, status.Current.ID)
			spinner.FinalMSG = formatKeyError(err)
			return reported(err)
		}

		details := []string{
			"The current key is archived as rotated-<timestamp> first.",
			"SealedSecrets sealed with it stay readable only while the controller keeps the old key.",
		}
		if status.Current.Fingerprint != "" {
			details = append([]string{"Current key: " + ui.Highlight.Sprint(status.Current.RecordName) +
				" (sha256 " + utils.ShortFingerprint(status.Current.Fingerprint) + ")"}, details...)
		}
		if !confirm(spinner, "This will generate a new master key and replace the current one.", details...) {
			spinner.FinalMSG = ui.Warning.Sprint("⚠") + " Key rotation cancelled."
			return nil
		}
	}

	result, err := workflows.Rotate(ctx, env, workflows.RotateOptions{})
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		return reported(err)
	}

	Logger.Infof("Rotation completed, archived as %s", result.Archived.Tag)

	finalMessage := ui.Success.Sprint("✓") + " Master key " + ui.Highlight.Sprint(result.RecordName) + " rotated\n\n" +
		"  Old:      sha256 " + utils.ShortFingerprint(result.OldFingerprint) + " archived as " + ui.Version.Sprint(result.Archived.Tag) + "\n" +
		"  New:      sha256 " + utils.ShortFingerprint(result.NewFingerprint) + "\n" +
		"  Expires:  " + result.NotAfter.Format("2006-01-02") + "\n" +
		"  Archived:\n" + ui.Bullets(ui.Path, result.Archived.Files) +
		"  Issued:\n" + ui.Bullets(ui.Path, result.Files) + "\n" +
		ui.Info.Sprint("→") + " Apply both YAML files so existing SealedSecrets still decrypt" +
		formatWarnings(result.Warnings)
	spinner.FinalMSG = finalMessage
	return nil
}
