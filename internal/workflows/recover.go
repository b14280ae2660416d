package workflows

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/PolarWolf314/sealkeeper/internal/audit"
	"github.com/PolarWolf314/sealkeeper/internal/cloud"
	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"
	"github.com/PolarWolf314/sealkeeper/internal/secrets"
)

// RecoverOptions configures the recover workflow. Exactly one source is allowed.
type RecoverOptions struct {
	// KeyFile is a local JSON or YAML record, or a doublestar glob whose newest match is used.
	KeyFile string

	// S3Key is an object key in the configured bucket, or an s3://bucket/key URI.
	S3Key string

	// BackupVersionID selects a backup slot version by id.
	BackupVersionID string

	// BackupVersionStage selects a backup slot version by staging label.
	BackupVersionStage string

	// FromBackup selects the backup slot's AWSCURRENT version when no id or stage is given.
	FromBackup bool

	// Passphrase decrypts .enc sources.
	Passphrase []byte
}

// RecoverResult contains the outcome of a recover operation.
type RecoverResult struct {
	// Source describes where the replacement came from.
	Source string

	// RecordName is metadata.name of the restored record.
	RecordName string

	// Fingerprint identifies the certificate now in the current slot.
	Fingerprint string

	// Stored is the exact secret string written to the current slot.
	Stored []byte

	// CurrentVersionID is the current slot version holding the restored record.
	CurrentVersionID string

	// Archived is the copy of the record that was replaced, tagged
	// pre-recover-<ts>. Nil when the current slot was empty.
	Archived *Archive

	// Files are the local mirrors of the restored record.
	Files []string

	// Warnings are non-fatal problems, such as an unwritable operation log.
	Warnings []string
}

func (o RecoverOptions) fromBackup() bool {
	return o.FromBackup || o.BackupVersionID != "" || o.BackupVersionStage != ""
}

// CheckSource returns ErrNoSource or ErrAmbiguousSource unless exactly one source is set.
func (o RecoverOptions) CheckSource() error {
	n := 0
	for _, set := range []bool{o.KeyFile != "", o.S3Key != "", o.fromBackup()} {
		if set {
			n++
		}
	}
	switch n {
	case 0:
		return kerrors.ErrNoSource
	case 1:
		return nil
	default:
		return kerrors.ErrAmbiguousSource
	}
}

// Recover replaces the current master key with a record from a local file,
// object storage or a backup slot version.
//
// JSON input is stored byte for byte after trimming surrounding whitespace.
// YAML and kubectl List input are stored as the record's canonical JSON.
//
// Returns ErrNoSource or ErrAmbiguousSource unless exactly one source is set.
// Returns ErrFileNotFound, ErrObjectNotFound or ErrVersionNotFound for missing sources.
// Returns ErrInvalidRecord or ErrKeyMismatch if the replacement is unusable.
// Returns ErrPassphraseRequired or ErrDecryptFailed for encrypted sources.
func Recover(ctx context.Context, env *Env, opts RecoverOptions) (*RecoverResult, error) {
	cfg := env.Config

	if err := opts.CheckSource(); err != nil {
		return nil, err
	}

	data, source, err := loadSource(ctx, env, opts)
	if err != nil {
		return nil, err
	}

	rec, err := secrets.ParseKeyRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	stored, err := secretString(data, rec)
	if err != nil {
		return nil, err
	}

	ts := now()
	result := &RecoverResult{Source: source, RecordName: rec.Name(), Stored: stored}
	result.Fingerprint, _ = rec.Fingerprint()

	cur, err := fetchCurrent(ctx, env)
	switch {
	case errors.Is(err, kerrors.ErrRecordNotFound):
	case err != nil:
		return nil, fmt.Errorf("reading current slot: %w", err)
	default:
		result.Archived, err = archive(ctx, env, cur, secrets.VersionTag(secrets.ReasonPreRecover, ts))
		if err != nil {
			return nil, err
		}
	}

	put, err := env.Secrets.Put(ctx, cfg.Secrets.CurrentID, string(stored), nil, currentDescription)
	if err != nil {
		return nil, fmt.Errorf("storing recovered master key: %w", err)
	}
	result.CurrentVersionID = put.VersionID

	artifacts, err := secrets.WriteArtifacts(cfg.Output.Dir, rec, stored, secrets.VersionTag(secrets.ReasonRecovered, ts))
	if err != nil {
		return nil, fmt.Errorf("writing local mirror: %w", err)
	}
	result.Files = artifacts.Paths()

	entry := audit.New("recover")
	entry.SecretID = cfg.Secrets.CurrentID
	entry.Record = result.RecordName
	entry.VersionID = result.CurrentVersionID
	entry.Source = result.Source
	entry.Fingerprint = result.Fingerprint
	entry.Files = result.Files
	if result.Archived != nil {
		entry.VersionTag = result.Archived.Tag
		entry.Previous = result.Archived.Fingerprint
	}
	result.Warnings = logOperation(cfg, entry)

	return result, nil
}

// loadSource returns the replacement bytes, decrypted if needed, and a
// description of where they came from.
func loadSource(ctx context.Context, env *Env, opts RecoverOptions) ([]byte, string, error) {
	var data []byte
	var source string

	switch {
	case opts.KeyFile != "":
		path, err := secrets.FindLatest(opts.KeyFile)
		if err != nil {
			return nil, "", err
		}
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		source = path

	case opts.S3Key != "":
		if env.Objects == nil {
			return nil, "", kerrors.ErrBucketRequired
		}
		bucket, key, err := env.Objects.Resolve(opts.S3Key)
		if err != nil {
			return nil, "", err
		}
		data, err = env.Objects.Get(ctx, bucket, key)
		if err != nil {
			return nil, "", err
		}
		source = cloud.URI(bucket, key)

	default:
		sel := cloud.VersionSelector{VersionID: opts.BackupVersionID, Stage: opts.BackupVersionStage}
		value, err := env.Secrets.Get(ctx, env.Config.Secrets.BackupID, sel)
		if err != nil {
			return nil, "", err
		}
		data = []byte(value.String)
		source = fmt.Sprintf("%s@%s", env.Config.Secrets.BackupID, value.VersionID)
	}

	if secrets.IsEncrypted(data) {
		if len(opts.Passphrase) == 0 {
			return nil, "", fmt.Errorf("%w: %s is encrypted", kerrors.ErrPassphraseRequired, source)
		}
		plaintext, err := secrets.Decrypt(data, opts.Passphrase)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", source, err)
		}
		data = plaintext
	}

	return data, source, nil
}

// secretString is what goes into the current slot: a single JSON object is
// kept verbatim, anything else is re-encoded from the parsed record.
func secretString(data []byte, rec *secrets.KeyRecord) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var head struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(trimmed, &head); err == nil && head.Kind != "List" {
			return trimmed, nil
		}
	}
	return rec.JSON()
}
