package cmd

import (
	"github.com/PolarWolf314/sealkeeper/internal/ui"
	"github.com/PolarWolf314/sealkeeper/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	backupEncrypt    bool
	backupUploadToS3 bool
	backupAWSBackup  bool
)

func init() {
	backupCmd.Flags().BoolVar(&backupEncrypt, "encrypt", false, "encrypt local files with a generated passphrase")
	backupCmd.Flags().BoolVar(&backupUploadToS3, "upload-to-s3", false, "upload the files to the configured bucket")
	backupCmd.Flags().BoolVar(&backupAWSBackup, "aws-backup", false, "also copy the key into the backup slot")
}

// resetBackupCommandState resets the backup command's global state for testing.
func resetBackupCommandState() {
	backupEncrypt = false
	backupUploadToS3 = false
	backupAWSBackup = false
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up the current master key",
	Long: `Fetches the current master key and writes it to the output directory as
<name>-backup-<timestamp>.json (the exact Secrets Manager value) and .yaml
(a Kubernetes Secret manifest).

With --encrypt both files are replaced by passphrase-encrypted .enc files.
The passphrase is printed once and stored nowhere. Keep it with the backup.

Examples:
  # Local JSON and YAML backup
  sealkeeper key backup

  # Encrypted backup uploaded to S3
  sealkeeper key backup --encrypt --upload-to-s3 --bucket my-backups

  # Also archive the key in the backup slot
  sealkeeper key backup --aws-backup`,
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting backup command")
	Logger.Debugf("Flags: encrypt=%t, upload-to-s3=%t, aws-backup=%t", backupEncrypt, backupUploadToS3, backupAWSBackup)

	spinner, cleanup := startSpinner("Backing up master key...", verbose)
	defer cleanup()

	ctx := cmd.Context()
	env, err := prepareEnv(ctx)
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		return reported(err)
	}

	result, err := workflows.Backup(ctx, env, workflows.BackupOptions{
		Encrypt:      backupEncrypt,
		ToBackupSlot: backupAWSBackup,
		UploadToS3:   backupUploadToS3,
	})
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		return reported(err)
	}

	Logger.Infof("Backup %s written (%d files)", result.Tag, len(result.Files))

	finalMessage := ui.Success.Sprint("✓") + " Backed up " + ui.Highlight.Sprint(result.RecordName) +
		" as " + ui.Version.Sprint(result.Tag) + "\n\n" +
		"  Fingerprint: sha256 " + result.Fingerprint + "\n" +
		"  Files:\n" + ui.Bullets(ui.Path, result.Files)

	if result.BackupVersionID != "" {
		finalMessage += "  Backup slot: " + ui.SecretID.Sprint(env.Config.Secrets.BackupID) +
			" version " + ui.Version.Sprint(result.BackupVersionID) + "\n"
	}
	if len(result.Uploaded) > 0 {
		finalMessage += "  Uploaded:\n" + ui.Bullets(ui.Path, result.Uploaded)
	}
	if result.Passphrase != "" {
		finalMessage += "\n" + ui.Warning.Sprint("⚠") + " Store this passphrase now. It is not saved anywhere:\n\n" +
			"    " + result.Passphrase + "\n\n" +
			ui.Info.Sprint("→") + " Decrypt with " + ui.Code.Sprint("sealkeeper key decrypt <file> --passphrase-file <file>")
	}
	finalMessage += formatWarnings(result.Warnings)

	spinner.FinalMSG = finalMessage
	return nil
}
