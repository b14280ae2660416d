package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/PolarWolf314/sealkeeper/internal/audit"
	"github.com/PolarWolf314/sealkeeper/internal/secrets"
)

// RotateOptions configures the rotate workflow.
// Confirmation is the caller's job; Rotate always proceeds.
type RotateOptions struct {
	// No options currently, but provides extensibility.
}

// RotateResult contains the outcome of a rotate operation.
type RotateResult struct {
	// RecordName is metadata.name, unchanged by rotation.
	RecordName string

	// OldFingerprint identifies the certificate that was rotated out.
	OldFingerprint string

	// NewFingerprint identifies the certificate now in the current slot.
	NewFingerprint string

	// NotAfter is when the new certificate expires.
	NotAfter time.Time

	// CurrentVersionID is the current slot version holding the new record.
	CurrentVersionID string

	// Archived is the copy of the prior record, tagged rotated-<ts>.
	Archived *Archive

	// Files are the local mirrors of the new record.
	Files []string

	// Warnings are non-fatal problems, such as an unwritable operation log.
	Warnings []string
}

// Rotate replaces the master key with a fresh key pair under the same name.
//
// The workflow:
//  1. Loads the current record
//  2. Archives it to the backup slot and local disk as rotated-<ts>
//  3. Generates a new key pair, keeping name, namespace, labels and annotations
//  4. Overwrites the current slot
//  5. Writes local mirrors of the new record as issued-<ts>
//
// Existing Sealed Secrets stay decryptable only while the controller still has
// the old key, so the archived copy must be applied alongside the new one.
//
// Returns ErrRecordNotFound if the current slot is missing.
// Returns ErrInvalidRecord or ErrKeyMismatch if the stored record is unusable;
// setup --yes replaces such a record.
func Rotate(ctx context.Context, env *Env, opts RotateOptions) (*RotateResult, error) {
	cfg := env.Config
	ts := now()

	cur, err := fetchCurrent(ctx, env)
	if err != nil {
		return nil, err
	}
	if cur.parseErr != nil {
		return nil, fmt.Errorf("current record in %s: %w", cfg.Secrets.CurrentID, cur.parseErr)
	}

	archived, err := archive(ctx, env, cur, secrets.VersionTag(secrets.ReasonRotated, ts))
	if err != nil {
		return nil, err
	}

	pair, err := secrets.GenerateKeyPair(certOptions(cfg, ts))
	if err != nil {
		return nil, fmt.Errorf("generating key pair: %w", err)
	}

	next := cur.record.WithKeyPair(pair.CertPEM, pair.KeyPEM)
	raw, err := next.JSON()
	if err != nil {
		return nil, err
	}

	put, err := env.Secrets.Put(ctx, cfg.Secrets.CurrentID, string(raw), nil, currentDescription)
	if err != nil {
		return nil, fmt.Errorf("storing rotated master key: %w", err)
	}

	artifacts, err := secrets.WriteArtifacts(cfg.Output.Dir, next, raw, secrets.VersionTag(secrets.ReasonIssued, ts))
	if err != nil {
		return nil, fmt.Errorf("writing local mirror: %w", err)
	}

	result := &RotateResult{
		RecordName:       next.Name(),
		OldFingerprint:   archived.Fingerprint,
		NotAfter:         pair.Cert.NotAfter,
		CurrentVersionID: put.VersionID,
		Archived:         archived,
		Files:            artifacts.Paths(),
	}
	result.NewFingerprint, _ = next.Fingerprint()

	entry := audit.New("rotate")
	entry.SecretID = cfg.Secrets.CurrentID
	entry.Record = result.RecordName
	entry.VersionTag = archived.Tag
	entry.VersionID = result.CurrentVersionID
	entry.Fingerprint = result.NewFingerprint
	entry.Previous = result.OldFingerprint
	entry.Files = append(append([]string{}, archived.Files...), result.Files...)
	result.Warnings = logOperation(cfg, entry)

	return result, nil
}
