package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PolarWolf314/sealkeeper/internal/cloud"
	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"
	"github.com/PolarWolf314/sealkeeper/internal/secrets"
)

// SlotStatus describes one Secrets Manager slot.
type SlotStatus struct {
	// ID is the configured secret id.
	ID string

	// Exists is false when the slot has not been created.
	Exists bool

	// ARN, LastChanged and VersionCount come from DescribeSecret.
	ARN          string
	LastChanged  time.Time
	VersionCount int

	// RecordName, Fingerprint and NotAfter describe the AWSCURRENT record.
	RecordName  string
	Fingerprint string
	NotAfter    time.Time

	// Invalid is set when the AWSCURRENT value is not a usable key record.
	Invalid error
}

// StatusOptions configures the status workflow.
type StatusOptions struct {
	// No options currently needed - included for consistency.
}

// StatusResult contains the outcome of a status operation.
type StatusResult struct {
	// Current is the slot the controller key is read from.
	Current SlotStatus

	// Backup is the slot archived records are written to.
	Backup SlotStatus

	// LocalArtifacts are the JSON, YAML and .enc files in the output directory.
	LocalArtifacts []string
}

// Status reports whether the current and backup slots exist and what they hold.
// Missing slots are reported, not returned as errors.
func Status(ctx context.Context, env *Env, opts StatusOptions) (*StatusResult, error) {
	cfg := env.Config
	result := &StatusResult{}

	var err error
	if result.Current, err = slotStatus(ctx, env.Secrets, cfg.Secrets.CurrentID); err != nil {
		return nil, err
	}
	if result.Backup, err = slotStatus(ctx, env.Secrets, cfg.Secrets.BackupID); err != nil {
		return nil, err
	}

	result.LocalArtifacts, err = secrets.ListArtifacts(cfg.Output.Dir)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func slotStatus(ctx context.Context, store *cloud.SecretStore, id string) (SlotStatus, error) {
	status := SlotStatus{ID: id}

	info, err := store.Describe(ctx, id)
	if errors.Is(err, kerrors.ErrRecordNotFound) {
		return status, nil
	}
	if err != nil {
		return status, err
	}
	status.Exists = true
	status.ARN = info.ARN
	status.LastChanged = info.LastChanged
	status.VersionCount = info.VersionCount

	if info.CurrentVersionID == "" {
		status.Invalid = fmt.Errorf("%w: no AWSCURRENT version", kerrors.ErrRecordNotFound)
		return status, nil
	}

	value, err := store.Get(ctx, id, cloud.VersionSelector{})
	if err != nil {
		return status, err
	}

	rec, err := secrets.ParseKeyRecord([]byte(value.String))
	if err != nil {
		status.Invalid = err
		return status, nil
	}
	status.RecordName = rec.Name()
	if err := rec.Validate(); err != nil {
		status.Invalid = err
		return status, nil
	}

	status.Fingerprint, _ = rec.Fingerprint()
	if cert, err := rec.Certificate(); err == nil {
		status.NotAfter = cert.NotAfter
	}
	return status, nil
}
