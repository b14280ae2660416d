package workflows

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/sealkeeper/internal/audit"
	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"
	"github.com/PolarWolf314/sealkeeper/internal/secrets"
)

// BackupOptions configures the backup workflow.
type BackupOptions struct {
	// Encrypt replaces each local file with a passphrase-encrypted .enc copy.
	Encrypt bool

	// ToBackupSlot copies the record into the backup slot under the backup tag.
	ToBackupSlot bool

	// UploadToS3 uploads the local files to the configured bucket.
	UploadToS3 bool
}

// BackupResult contains the outcome of a backup operation.
type BackupResult struct {
	// RecordName is metadata.name of the backed up record.
	RecordName string

	// Fingerprint is the SHA-256 fingerprint of the certificate.
	Fingerprint string

	// Tag is the version tag, backup-<ts>.
	Tag string

	// Files are the local files written, .enc paths when encrypted.
	Files []string

	// Passphrase is set when Encrypt was requested. It is not stored anywhere.
	Passphrase string

	// BackupVersionID is the backup slot version written, if any.
	BackupVersionID string

	// Uploaded are the s3:// URIs written, if any.
	Uploaded []string

	// Warnings are non-fatal problems, such as an unwritable operation log.
	Warnings []string
}

// Backup copies the current master key to local files and, optionally, to the
// backup slot and object storage.
//
// Returns ErrRecordNotFound if the current slot is missing.
// Returns ErrInvalidRecord or ErrKeyMismatch if the stored record is unusable.
// Returns ErrBucketRequired if UploadToS3 is set without a bucket.
func Backup(ctx context.Context, env *Env, opts BackupOptions) (*BackupResult, error) {
	cfg := env.Config

	if opts.UploadToS3 && (env.Objects == nil || env.Objects.Bucket == "") {
		return nil, kerrors.ErrBucketRequired
	}

	cur, err := fetchCurrent(ctx, env)
	if err != nil {
		return nil, err
	}
	if cur.parseErr != nil {
		return nil, fmt.Errorf("current record in %s: %w", cfg.Secrets.CurrentID, cur.parseErr)
	}

	result := &BackupResult{
		RecordName: cur.record.Name(),
		Tag:        secrets.VersionTag(secrets.ReasonBackup, now()),
	}
	result.Fingerprint, _ = cur.record.Fingerprint()

	if opts.ToBackupSlot {
		if err := checkTagFree(ctx, env, result.Tag); err != nil {
			return nil, err
		}
	}

	artifacts, err := secrets.WriteArtifacts(cfg.Output.Dir, cur.record, []byte(cur.value.String), result.Tag)
	if err != nil {
		return nil, err
	}
	result.Files = artifacts.Paths()

	if opts.Encrypt {
		passphrase, err := secrets.GeneratePassphrase()
		if err != nil {
			return nil, err
		}
		encrypted := make([]string, 0, len(result.Files))
		for _, path := range result.Files {
			encPath, err := secrets.EncryptFile(path, []byte(passphrase))
			if err != nil {
				return nil, fmt.Errorf("encrypting %s: %w", path, err)
			}
			encrypted = append(encrypted, encPath)
		}
		result.Files = encrypted
		result.Passphrase = passphrase
	}

	if opts.ToBackupSlot {
		put, err := putBackup(ctx, env, cur.value.String, result.Tag)
		if err != nil {
			return nil, fmt.Errorf("copying to backup slot: %w", err)
		}
		result.BackupVersionID = put.VersionID
	}

	if opts.UploadToS3 {
		for _, path := range result.Files {
			uri, err := env.Objects.Upload(ctx, path)
			if err != nil {
				return nil, err
			}
			result.Uploaded = append(result.Uploaded, uri)
		}
	}

	entry := audit.New("backup")
	entry.SecretID = cfg.Secrets.CurrentID
	entry.Record = result.RecordName
	entry.VersionTag = result.Tag
	entry.VersionID = result.BackupVersionID
	entry.Fingerprint = result.Fingerprint
	entry.Files = result.Files
	entry.Uploaded = result.Uploaded
	entry.Encrypted = opts.Encrypt
	result.Warnings = logOperation(cfg, entry)

	return result, nil
}
