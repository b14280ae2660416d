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
	decryptOutput         string
	decryptPassphraseFile string
)

func init() {
	decryptCmd.Flags().StringVarP(&decryptOutput, "output", "o", "", "write the plaintext here (default: strip .enc)")
	decryptCmd.Flags().StringVar(&decryptPassphraseFile, "passphrase-file", "", "file holding the passphrase")
}

// resetDecryptCommandState resets the decrypt command's global state for testing.
func resetDecryptCommandState() {
	decryptOutput = ""
	decryptPassphraseFile = ""
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt <file>",
	Short: "Decrypt an encrypted backup",
	Long: `Decrypts a .enc file written by 'sealkeeper key backup --encrypt'.

The passphrase is read from --passphrase-file, or prompted for without echo.
A glob selects the newest matching backup.

Examples:
  sealkeeper key decrypt sealkeeper-backups/sealed-secrets-key-backup-20261019-101500.json.enc
  sealkeeper key decrypt 'sealkeeper-backups/*.yaml.enc' --passphrase-file pass.txt -o key.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runDecrypt,
}

func runDecrypt(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting decrypt command")

	var passphrase []byte
	var err error
	switch {
	case decryptPassphraseFile != "":
		passphrase, err = utils.ReadPassphraseFile(decryptPassphraseFile)
	case isTerminal():
		passphrase, err = readPassphrase("Passphrase: ")
	default:
		err = kerrors.ErrPassphraseRequired
	}
	if err != nil {
		Logger.Errorf("Failed to read passphrase: %v", err)
		fmt.Println(formatKeyError(err))
		return reported(err)
	}

	spinner, cleanup := startSpinner("Decrypting backup...", verbose)
	defer cleanup()

	cfg, err := loadKeyConfig()
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		return reported(err)
	}

	result, err := workflows.Decrypt(cmd.Context(), workflows.DecryptOptions{
		Path:       args[0],
		OutputPath: decryptOutput,
		Passphrase: passphrase,
		LogDir:     cfg.Output.Dir,
	})
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		return reported(err)
	}

	finalMessage := ui.Success.Sprint("✓") + " Decrypted " + ui.Path.Sprint(result.SourcePath) + "\n" +
		"  to " + ui.Path.Sprint(result.OutputPath)
	if result.RecordName != "" {
		finalMessage += "\n  Record " + ui.Highlight.Sprint(result.RecordName) + ", sha256 " + utils.ShortFingerprint(result.Fingerprint)
	}
	finalMessage += "\n" + ui.Warning.Sprint("⚠") + " The output holds the private key in plaintext" +
		formatWarnings(result.Warnings)
	spinner.FinalMSG = finalMessage
	return nil
}
