package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PolarWolf314/sealkeeper/internal/audit"
	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"
	"github.com/PolarWolf314/sealkeeper/internal/secrets"
)

// SetupOptions configures the setup workflow.
type SetupOptions struct {
	// Replace allows overwriting an existing master key. The existing key is
	// archived first. The confirmation prompt is handled by the cmd layer.
	Replace bool
}

// SetupResult contains the outcome of a setup operation.
type SetupResult struct {
	// RecordName is metadata.name of the new record.
	RecordName string

	// Fingerprint is the SHA-256 fingerprint of the new certificate.
	Fingerprint string

	// NotAfter is when the new certificate expires.
	NotAfter time.Time

	// Tag is the version tag the new record carries in the backup slot.
	Tag string

	// CurrentVersionID is the current slot version holding the new record.
	CurrentVersionID string

	// BackupVersionID is the backup slot version mirroring the new record.
	BackupVersionID string

	// Created is true when the current slot did not exist before.
	Created bool

	// Replaced is the archive of the key that was replaced, if any.
	Replaced *Archive

	// Files are the local mirrors of the new record.
	Files []string

	// Warnings are non-fatal problems, such as an unwritable operation log.
	Warnings []string
}

// Setup generates the first master key and stores it in the current slot.
//
// The workflow:
//  1. Checks whether the current slot already holds a record
//  2. Archives that record as backup-<ts> when Replace is set
//  3. Generates a self-signed certificate and RSA key
//  4. Writes the new record to the current slot, creating it if needed
//  5. Mirrors it into the backup slot as setup-<ts> and to local JSON/YAML
//
// Returns ErrRecordExists if a record exists and Replace is false.
func Setup(ctx context.Context, env *Env, opts SetupOptions) (*SetupResult, error) {
	cfg := env.Config
	ts := now()
	result := &SetupResult{Tag: secrets.VersionTag(secrets.ReasonSetup, ts)}

	cur, err := fetchCurrent(ctx, env)
	switch {
	case errors.Is(err, kerrors.ErrRecordNotFound):
		cur = nil
	case err != nil:
		return nil, fmt.Errorf("checking current slot: %w", err)
	case !opts.Replace:
		return nil, fmt.Errorf("%w: %s", kerrors.ErrRecordExists, cfg.Secrets.CurrentID)
	}
	if err := checkTagFree(ctx, env, result.Tag); err != nil {
		return nil, err
	}

	if cur != nil {
		result.Replaced, err = archive(ctx, env, cur, secrets.VersionTag(secrets.ReasonBackup, ts))
		if err != nil {
			return nil, err
		}
	}

	pair, err := secrets.GenerateKeyPair(certOptions(cfg, ts))
	if err != nil {
		return nil, fmt.Errorf("generating key pair: %w", err)
	}

	rec := secrets.NewKeyRecord(cfg.Record.Name, cfg.Record.Namespace, pair.CertPEM, pair.KeyPEM)
	raw, err := rec.JSON()
	if err != nil {
		return nil, err
	}

	put, err := env.Secrets.Put(ctx, cfg.Secrets.CurrentID, string(raw), nil, currentDescription)
	if err != nil {
		return nil, fmt.Errorf("storing new master key: %w", err)
	}
	result.CurrentVersionID = put.VersionID
	result.Created = put.Created

	mirror, err := putBackup(ctx, env, string(raw), result.Tag)
	if err != nil {
		return nil, fmt.Errorf("mirroring new master key to backup slot: %w", err)
	}
	result.BackupVersionID = mirror.VersionID

	artifacts, err := secrets.WriteArtifacts(cfg.Output.Dir, rec, raw, result.Tag)
	if err != nil {
		return nil, fmt.Errorf("writing local mirror: %w", err)
	}

	result.RecordName = rec.Name()
	result.Fingerprint, _ = rec.Fingerprint()
	result.NotAfter = pair.Cert.NotAfter
	result.Files = artifacts.Paths()

	entry := audit.New("setup")
	entry.SecretID = cfg.Secrets.CurrentID
	entry.Record = result.RecordName
	entry.VersionTag = result.Tag
	entry.VersionID = result.CurrentVersionID
	entry.Fingerprint = result.Fingerprint
	entry.Files = result.Files
	if result.Replaced != nil {
		entry.Previous = result.Replaced.Fingerprint
	}
	result.Warnings = logOperation(cfg, entry)

	return result, nil
}
