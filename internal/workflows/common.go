package workflows

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/PolarWolf314/sealkeeper/internal/audit"
	"github.com/PolarWolf314/sealkeeper/internal/cloud"
	"github.com/PolarWolf314/sealkeeper/internal/configs"
	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"
	"github.com/PolarWolf314/sealkeeper/internal/secrets"
	"github.com/PolarWolf314/sealkeeper/internal/utils"
)

const (
	currentDescription = "Sealed Secrets controller master key"
	backupDescription  = "Archived Sealed Secrets controller master keys"
)

// now is replaced in tests.
var now = time.Now

// Env is what every workflow runs against: the effective configuration and
// the remote stores built from it.
type Env struct {
	Config  *configs.Config
	Secrets *cloud.SecretStore
	Objects *cloud.ObjectStore
	STS     cloud.STSAPI
}

// Archive describes one copy of a record taken before the current slot changed.
type Archive struct {
	// Tag is the version tag, e.g. rotated-20261019-101500.
	Tag string

	// BackupVersionID is the backup slot version holding the copy.
	BackupVersionID string

	// Fingerprint identifies the archived certificate. Empty when it did not parse.
	Fingerprint string

	// Files are the local copies.
	Files []string
}

// current is the record in the current slot, as stored and as parsed.
type current struct {
	value  *cloud.SecretValue
	record *secrets.KeyRecord

	// parseErr is set when the stored string is not a usable key record.
	parseErr error
}

// fetchCurrent reads the current slot. A missing slot returns ErrRecordNotFound.
// An unparseable record is returned with parseErr set so callers can still archive it.
func fetchCurrent(ctx context.Context, env *Env) (*current, error) {
	value, err := env.Secrets.Get(ctx, env.Config.Secrets.CurrentID, cloud.VersionSelector{})
	if err != nil {
		return nil, err
	}

	cur := &current{value: value}
	cur.record, cur.parseErr = secrets.ParseKeyRecord([]byte(value.String))
	if cur.parseErr == nil {
		cur.parseErr = cur.record.Validate()
	}
	return cur, nil
}

// archive copies the current record to the backup slot under tag and writes
// local copies. The backup slot write happens first so a record is never only
// on local disk.
func archive(ctx context.Context, env *Env, cur *current, tag string) (*Archive, error) {
	put, err := putBackup(ctx, env, cur.value.String, tag)
	if err != nil {
		return nil, fmt.Errorf("archiving current record as %s: %w", tag, err)
	}

	result := &Archive{Tag: tag, BackupVersionID: put.VersionID}

	// A record that parses but fails validation cannot be rendered as a
	// manifest, so it is kept raw like one that does not parse at all.
	if cur.parseErr != nil {
		name := env.Config.Record.Name
		if cur.record != nil && cur.record.Name() != "" {
			name = cur.record.Name()
		}
		path, err := writeRawArtifact(env.Config.Output.Dir, name, []byte(cur.value.String), tag)
		if err != nil {
			return nil, err
		}
		result.Files = []string{path}
		return result, nil
	}

	artifacts, err := secrets.WriteArtifacts(env.Config.Output.Dir, cur.record, []byte(cur.value.String), tag)
	if err != nil {
		return nil, fmt.Errorf("writing local archive: %w", err)
	}
	result.Files = artifacts.Paths()
	result.Fingerprint, _ = cur.record.Fingerprint()
	return result, nil
}

// checkTagFree returns ErrTagExists if tag already labels a backup slot version.
func checkTagFree(ctx context.Context, env *Env, tag string) error {
	_, err := env.Secrets.Get(ctx, env.Config.Secrets.BackupID, cloud.VersionSelector{Stage: tag})
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s in %s", kerrors.ErrTagExists, tag, env.Config.Secrets.BackupID)
	case errors.Is(err, kerrors.ErrVersionNotFound), errors.Is(err, kerrors.ErrRecordNotFound):
		return nil
	default:
		return err
	}
}

// putBackup writes value to the backup slot as its AWSCURRENT version, labelled tag.
// The oldest version tags are detached first so the slot stays within the
// staging label quota. Returns ErrTagExists if tag is taken.
func putBackup(ctx context.Context, env *Env, value, tag string) (*cloud.PutResult, error) {
	id := env.Config.Secrets.BackupID
	if err := checkTagFree(ctx, env, tag); err != nil {
		return nil, err
	}

	// The write adds tag and, on the second version, AWSPREVIOUS.
	if _, err := env.Secrets.PruneStages(ctx, id, 2, secrets.IsVersionTag); err != nil {
		return nil, fmt.Errorf("making room for %s: %w", tag, err)
	}
	return env.Secrets.Put(ctx, id, value, []string{cloud.StageCurrent, tag}, backupDescription)
}

// writeRawArtifact keeps an unusable record byte for byte.
func writeRawArtifact(dir, name string, raw []byte, tag string) (string, error) {
	path := filepath.Join(dir, secrets.ArtifactBaseName(name, tag)+secrets.JSONSuffix)
	if err := utils.WriteFileSync(path, raw, 0600); err != nil {
		return "", fmt.Errorf("writing local archive: %w", err)
	}
	return path, nil
}

// logOperation appends entry to the operation log and returns a warning when it could not.
func logOperation(cfg *configs.Config, entry audit.Entry) []string {
	if err := audit.Log(cfg.Output.Dir, entry); err != nil {
		return []string{fmt.Sprintf("could not write %s: %v", audit.LogPath(cfg.Output.Dir), err)}
	}
	return nil
}

func certOptions(cfg *configs.Config, at time.Time) secrets.CertOptions {
	return secrets.CertOptions{
		CommonName:   cfg.Certificate.CommonName,
		Organization: cfg.Certificate.Organization,
		Validity:     time.Duration(cfg.Certificate.ValidityDays) * 24 * time.Hour,
		KeyBits:      cfg.Certificate.KeyBits,
		Now:          at,
	}
}
