package workflows

import (
	"context"
	"strings"

	"github.com/PolarWolf314/sealkeeper/internal/cloud"
	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"
)

// VersionsOptions configures the versions workflow.
type VersionsOptions struct {
	// IncludeObjects also lists the artifacts under the bucket prefix.
	IncludeObjects bool
}

// VersionsResult contains the outcome of a versions operation.
type VersionsResult struct {
	// SecretID is the backup slot that was listed.
	SecretID string

	// Versions are newest first, deprecated versions included.
	Versions []cloud.VersionInfo

	// Objects are the uploaded artifacts, when requested.
	Objects []cloud.ObjectInfo
}

// Versions lists the archived records in the backup slot.
//
// Returns ErrRecordNotFound if the backup slot does not exist.
// Returns ErrBucketRequired if IncludeObjects is set without a bucket.
func Versions(ctx context.Context, env *Env, opts VersionsOptions) (*VersionsResult, error) {
	versions, err := env.Secrets.ListVersions(ctx, env.Config.Secrets.BackupID)
	if err != nil {
		return nil, err
	}

	result := &VersionsResult{
		SecretID: env.Config.Secrets.BackupID,
		Versions: versions,
	}

	if opts.IncludeObjects {
		if env.Objects == nil {
			return nil, kerrors.ErrBucketRequired
		}
		result.Objects, err = env.Objects.List(ctx)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// VersionTags returns the sealkeeper version tags among stages.
func VersionTags(stages []string) []string {
	var tags []string
	for _, s := range stages {
		if !strings.HasPrefix(s, "AWS") {
			tags = append(tags, s)
		}
	}
	return tags
}
