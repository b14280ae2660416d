package workflows

import (
	"context"
	"os"

	"github.com/PolarWolf314/sealkeeper/internal/audit"
	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"
	"github.com/PolarWolf314/sealkeeper/internal/secrets"
)

// DecryptOptions configures the decrypt workflow.
type DecryptOptions struct {
	// Path is an .enc file or a doublestar glob whose newest match is used.
	Path string

	// OutputPath is where the plaintext goes. Empty strips the .enc suffix.
	OutputPath string

	// Passphrase is the value printed by an encrypted backup.
	Passphrase []byte

	// LogDir is where the operation log lives. Empty skips logging.
	LogDir string
}

// DecryptResult contains the outcome of a decrypt operation.
type DecryptResult struct {
	// SourcePath is the encrypted file that was read.
	SourcePath string

	// OutputPath is the plaintext file written.
	OutputPath string

	// RecordName and Fingerprint are set when the plaintext is a key record.
	RecordName  string
	Fingerprint string

	// Warnings are non-fatal problems, such as an unwritable operation log.
	Warnings []string
}

// Decrypt turns an encrypted backup back into its JSON or YAML form.
//
// Returns ErrFileNotFound if no file matches Path.
// Returns ErrPassphraseRequired if Passphrase is empty.
// Returns ErrNotEncrypted if the file is not an encrypted artifact.
// Returns ErrDecryptFailed if the passphrase is wrong or the file is corrupt.
func Decrypt(ctx context.Context, opts DecryptOptions) (*DecryptResult, error) {
	if len(opts.Passphrase) == 0 {
		return nil, kerrors.ErrPassphraseRequired
	}

	path, err := secrets.FindLatest(opts.Path)
	if err != nil {
		return nil, err
	}

	outputPath, err := secrets.DecryptFile(path, opts.OutputPath, opts.Passphrase)
	if err != nil {
		return nil, err
	}

	result := &DecryptResult{SourcePath: path, OutputPath: outputPath}

	if data, err := os.ReadFile(outputPath); err == nil {
		if rec, err := secrets.ParseKeyRecord(data); err == nil {
			result.RecordName = rec.Name()
			result.Fingerprint, _ = rec.Fingerprint()
		}
	}

	if opts.LogDir != "" {
		entry := audit.New("decrypt")
		entry.Record = result.RecordName
		entry.Fingerprint = result.Fingerprint
		entry.Source = path
		entry.Files = []string{outputPath}
		if err := audit.Log(opts.LogDir, entry); err != nil {
			result.Warnings = append(result.Warnings, err.Error())
		}
	}

	return result, nil
}
