package cmd

import (
	"errors"
	"fmt"

	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"
	"github.com/PolarWolf314/sealkeeper/internal/ui"
	"github.com/PolarWolf314/sealkeeper/internal/utils"
	"github.com/PolarWolf314/sealkeeper/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	recoverKeyFile        string
	recoverFromS3         string
	recoverFromAWSBackup  bool
	recoverVersionID      string
	recoverVersionStage   string
	recoverPassphraseFile string
	recoverYes            bool
)

// readPassphrase and isTerminal are replaced in tests.
var (
	readPassphrase = utils.ReadPassphrase
	isTerminal     = utils.IsTerminal
)

func init() {
	recoverCmd.Flags().StringVar(&recoverKeyFile, "key-file", "", "local JSON, YAML or .enc backup (globs pick the newest match)")
	recoverCmd.Flags().StringVar(&recoverFromS3, "from-s3", "", "object key under the bucket prefix, or an s3://bucket/key URI")
	recoverCmd.Flags().BoolVar(&recoverFromAWSBackup, "from-aws-backup", false, "restore the latest version of the backup slot")
	recoverCmd.Flags().StringVar(&recoverVersionID, "aws-version-id", "", "restore this backup slot version id")
	recoverCmd.Flags().StringVar(&recoverVersionStage, "aws-version-stage", "", "restore the backup slot version with this tag, e.g. rotated-20261019-101500")
	recoverCmd.Flags().StringVar(&recoverPassphraseFile, "passphrase-file", "", "file holding the passphrase for .enc backups")
	recoverCmd.Flags().BoolVarP(&recoverYes, "yes", "y", false, "skip confirmation prompt")
}

// resetRecoverCommandState resets the recover command's global state for testing.
func resetRecoverCommandState() {
	recoverKeyFile = ""
	recoverFromS3 = ""
	recoverFromAWSBackup = false
	recoverVersionID = ""
	recoverVersionStage = ""
	recoverPassphraseFile = ""
	recoverYes = false
	readPassphrase = utils.ReadPassphrase
	isTerminal = utils.IsTerminal
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Restore the master key from a backup",
	Long: `Replaces the current master key with a key from exactly one source:
  --key-file         a local backup (JSON, YAML, or .enc)
  --from-s3          an uploaded backup
  --from-aws-backup  the backup slot, optionally with --aws-version-id or
                     --aws-version-stage to pick an older version

A JSON backup is stored byte for byte. YAML and kubectl List output are
converted to the record's JSON form. The key is validated before anything
is written. The key it replaces is archived as pre-recover-<timestamp>.

Examples:
  # From a local backup, newest match of a glob
  sealkeeper key recover --key-file 'sealkeeper-backups/*-backup-*.json'

  # From an encrypted backup
  sealkeeper key recover --key-file key.json.enc --passphrase-file pass.txt

  # From S3
  sealkeeper key recover --from-s3 sealed-secrets-key-backup-20261019-101500.json

  # From the key archived by a rotation
  sealkeeper key recover --from-aws-backup --aws-version-stage rotated-20261019-101500`,
	RunE: runRecover,
}

func recoverOptions() (workflows.RecoverOptions, error) {
	opts := workflows.RecoverOptions{
		KeyFile:            recoverKeyFile,
		S3Key:              recoverFromS3,
		BackupVersionID:    recoverVersionID,
		BackupVersionStage: recoverVersionStage,
		FromBackup:         recoverFromAWSBackup,
	}
	if recoverPassphraseFile != "" {
		passphrase, err := utils.ReadPassphraseFile(recoverPassphraseFile)
		if err != nil {
			return opts, err
		}
		opts.Passphrase = passphrase
	}
	return opts, nil
}

// describeSource names the selected source for the confirmation prompt.
func describeSource(opts workflows.RecoverOptions, backupID string) string {
	switch {
	case opts.KeyFile != "":
		return ui.Path.Sprint(opts.KeyFile)
	case opts.S3Key != "":
		return ui.Path.Sprint(opts.S3Key)
	case opts.BackupVersionStage != "":
		return ui.SecretID.Sprint(backupID) + " " + ui.Version.Sprint(opts.BackupVersionStage)
	case opts.BackupVersionID != "":
		return ui.SecretID.Sprint(backupID) + " " + ui.Version.Sprint(opts.BackupVersionID)
	default:
		return ui.SecretID.Sprint(backupID) + " " + ui.Version.Sprint("AWSCURRENT")
	}
}

func runRecover(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting recover command")
	spinner, cleanup := startSpinner("Recovering master key...", verbose)
	defer cleanup()

	opts, err := recoverOptions()
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		return reported(err)
	}

	// Reject bad source combinations before touching AWS.
	if err := opts.CheckSource(); err != nil {
		spinner.FinalMSG = formatKeyError(err)
		return reported(err)
	}

	ctx := cmd.Context()
	env, err := prepareEnv(ctx)
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		return reported(err)
	}

	if !recoverYes {
		details := []string{
			"Source: " + describeSource(opts, env.Config.Secrets.BackupID),
			"The current key, if any, is archived as pre-recover-<timestamp> first.",
		}
		if !confirm(spinner, "This will replace the master key in "+ui.SecretID.Sprint(env.Config.Secrets.CurrentID)+".", details...) {
			spinner.FinalMSG = ui.Warning.Sprint("⚠") + " Recovery cancelled."
			return nil
		}
	}

	result, err := workflows.Recover(ctx, env, opts)
	if errors.Is(err, kerrors.ErrPassphraseRequired) && recoverPassphraseFile == "" && isTerminal() {
		Logger.Infof("Source is encrypted, prompting for passphrase")
		wasActive := spinner.Active()
		spinner.Stop()
		passphrase, promptErr := readPassphrase("Passphrase: ")
		if wasActive {
			spinner.Restart()
		}
		if promptErr != nil {
			spinner.FinalMSG = formatKeyError(promptErr)
			return reported(promptErr)
		}
		opts.Passphrase = passphrase
		result, err = workflows.Recover(ctx, env, opts)
	}
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		return reported(err)
	}

	Logger.Infof("Recovered %s from %s", result.RecordName, result.Source)

	finalMessage := ui.Success.Sprint("✓") + " Master key " + ui.Highlight.Sprint(result.RecordName) + " restored from " +
		ui.Path.Sprint(result.Source) + "\n\n" +
		"  Fingerprint: sha256 " + result.Fingerprint + "\n" +
		fmt.Sprintf("  Stored:      %d bytes as version %s\n", len(result.Stored), ui.Version.Sprint(result.CurrentVersionID))
	if result.Archived != nil {
		finalMessage += "  Replaced key archived as " + ui.Version.Sprint(result.Archived.Tag) + ":\n" +
			ui.Bullets(ui.Path, result.Archived.Files)
	}
	finalMessage += "  Files:\n" + ui.Bullets(ui.Path, result.Files) + "\n" +
		ui.Info.Sprint("→") + " Apply it with " + ui.Code.Sprint("kubectl apply -f "+result.Files[len(result.Files)-1]) +
		" and restart the controller" +
		formatWarnings(result.Warnings)
	spinner.FinalMSG = finalMessage
	return nil
}
