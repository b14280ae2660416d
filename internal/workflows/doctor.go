package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PolarWolf314/sealkeeper/internal/cloud"
	"github.com/PolarWolf314/sealkeeper/internal/secrets"
)

// expiryWarning is how long before NotAfter the certificate check warns.
const expiryWarning = 30 * 24 * time.Hour

// CheckStatus represents the result status of a health check.
type CheckStatus int

const (
	// CheckPass means the check passed.
	CheckPass CheckStatus = iota
	// CheckWarning means the check found a non-critical issue.
	CheckWarning
	// CheckError means the check found a critical issue.
	CheckError
)

// String returns a string representation of CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarning:
		return "warning"
	case CheckError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for CheckStatus.
func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// CheckResult holds the result of a single health check.
type CheckResult struct {
	Name       string      `json:"name"`
	Status     CheckStatus `json:"status"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// DoctorResult holds the complete result of the doctor workflow.
type DoctorResult struct {
	Checks      []CheckResult `json:"checks"`
	Summary     DoctorSummary `json:"summary"`
	Suggestions []string      `json:"suggestions,omitempty"`
}

// DoctorSummary holds counts of checks by status.
type DoctorSummary struct {
	Passed   int `json:"passed"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
}

// DoctorOptions configures the doctor workflow.
type DoctorOptions struct {
	// No options currently, but provides extensibility.
}

// Doctor runs health checks against the configured AWS account.
//
// The doctor workflow checks:
//   - AWS credentials (STS GetCallerIdentity)
//   - Current slot existence and record validity
//   - Certificate expiry
//   - Backup slot existence
//   - Bucket reachability, when a bucket is configured
//   - Local output directory permissions and backups
//
// Remote checks are skipped when credentials fail.
func Doctor(ctx context.Context, env *Env, opts DoctorOptions) (*DoctorResult, error) {
	var results []CheckResult

	credentials := checkCredentials(ctx, env)
	results = append(results, credentials)

	if credentials.Status != CheckError {
		status, err := Status(ctx, env, StatusOptions{})
		if err != nil {
			results = append(results, CheckResult{
				Name:       "Secret slots",
				Status:     CheckError,
				Message:    err.Error(),
				Suggestion: "Check the IAM policy allows secretsmanager:DescribeSecret and GetSecretValue",
			})
		} else {
			results = append(results,
				checkCurrentSlot(status.Current),
				checkExpiry(status.Current),
				checkBackupSlot(status.Backup),
			)
		}

		if bucket := checkBucket(ctx, env); bucket != nil {
			results = append(results, *bucket)
		}
	}

	results = append(results, checkOutputDir(env), checkLocalBackups(env))

	summary := calculateDoctorSummary(results)

	// Collect suggestions (deduplicated).
	var suggestions []string
	seen := make(map[string]bool)
	for _, result := range results {
		if result.Suggestion != "" && result.Status != CheckPass && !seen[result.Suggestion] {
			suggestions = append(suggestions, result.Suggestion)
			seen[result.Suggestion] = true
		}
	}

	return &DoctorResult{
		Checks:      results,
		Summary:     summary,
		Suggestions: suggestions,
	}, nil
}

func checkCredentials(ctx context.Context, env *Env) CheckResult {
	if env.STS == nil {
		return CheckResult{
			Name:       "AWS credentials",
			Status:     CheckError,
			Message:    "No STS client configured",
			Suggestion: "Set AWS_PROFILE or run 'aws configure'",
		}
	}

	id, err := cloud.Identity(ctx, env.STS)
	if err != nil {
		return CheckResult{
			Name:       "AWS credentials",
			Status:     CheckError,
			Message:    err.Error(),
			Suggestion: "Set AWS_PROFILE, run 'aws sso login', or pass --sso",
		}
	}
	return CheckResult{
		Name:    "AWS credentials",
		Status:  CheckPass,
		Message: fmt.Sprintf("Authenticated as %s (account %s)", id.ARN, id.Account),
	}
}

func checkCurrentSlot(s SlotStatus) CheckResult {
	switch {
	case !s.Exists:
		return CheckResult{
			Name:       "Current slot",
			Status:     CheckError,
			Message:    fmt.Sprintf("Secret %s does not exist", s.ID),
			Suggestion: "Run 'sealkeeper key setup' to create the master key",
		}
	case s.Invalid != nil:
		return CheckResult{
			Name:       "Current slot",
			Status:     CheckError,
			Message:    fmt.Sprintf("Secret %s is not a usable key record: %v", s.ID, s.Invalid),
			Suggestion: "Run 'sealkeeper key recover' from a known good backup",
		}
	default:
		return CheckResult{
			Name:    "Current slot",
			Status:  CheckPass,
			Message: fmt.Sprintf("Secret %s holds %s", s.ID, s.RecordName),
		}
	}
}

func checkExpiry(s SlotStatus) CheckResult {
	if s.NotAfter.IsZero() {
		return CheckResult{
			Name:    "Certificate expiry",
			Status:  CheckWarning,
			Message: "No certificate to check",
		}
	}

	remaining := s.NotAfter.Sub(now())
	switch {
	case remaining <= 0:
		return CheckResult{
			Name:       "Certificate expiry",
			Status:     CheckError,
			Message:    fmt.Sprintf("Certificate expired on %s", s.NotAfter.Format("2006-01-02")),
			Suggestion: "Run 'sealkeeper key rotate' to issue a new master key",
		}
	case remaining < expiryWarning:
		return CheckResult{
			Name:       "Certificate expiry",
			Status:     CheckWarning,
			Message:    fmt.Sprintf("Certificate expires on %s", s.NotAfter.Format("2006-01-02")),
			Suggestion: "Run 'sealkeeper key rotate' to issue a new master key",
		}
	default:
		return CheckResult{
			Name:    "Certificate expiry",
			Status:  CheckPass,
			Message: fmt.Sprintf("Certificate valid until %s", s.NotAfter.Format("2006-01-02")),
		}
	}
}

func checkBackupSlot(s SlotStatus) CheckResult {
	if !s.Exists {
		return CheckResult{
			Name:       "Backup slot",
			Status:     CheckWarning,
			Message:    fmt.Sprintf("Secret %s does not exist", s.ID),
			Suggestion: "Run 'sealkeeper key backup --aws-backup' to create it",
		}
	}
	return CheckResult{
		Name:    "Backup slot",
		Status:  CheckPass,
		Message: fmt.Sprintf("Secret %s holds %d versions", s.ID, s.VersionCount),
	}
}

// checkBucket returns nil when no bucket is configured.
func checkBucket(ctx context.Context, env *Env) *CheckResult {
	if env.Objects == nil || env.Objects.Bucket == "" {
		return nil
	}
	if err := env.Objects.CheckBucket(ctx); err != nil {
		return &CheckResult{
			Name:       "S3 bucket",
			Status:     CheckError,
			Message:    err.Error(),
			Suggestion: "Check storage.bucket and the IAM policy for s3:ListBucket",
		}
	}
	return &CheckResult{
		Name:    "S3 bucket",
		Status:  CheckPass,
		Message: fmt.Sprintf("Bucket %s is reachable", env.Objects.Bucket),
	}
}

func checkOutputDir(env *Env) CheckResult {
	dir := env.Config.Output.Dir
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return CheckResult{
			Name:    "Output directory",
			Status:  CheckPass,
			Message: fmt.Sprintf("%s will be created with mode 700", dir),
		}
	}
	if err != nil {
		return CheckResult{
			Name:       "Output directory",
			Status:     CheckError,
			Message:    err.Error(),
			Suggestion: "Check that the output directory is accessible",
		}
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return CheckResult{
			Name:       "Output directory",
			Status:     CheckWarning,
			Message:    fmt.Sprintf("%s has mode %o, other users can read private keys", dir, perm),
			Suggestion: fmt.Sprintf("Run 'chmod 700 %s' to fix permissions", dir),
		}
	}
	return CheckResult{
		Name:    "Output directory",
		Status:  CheckPass,
		Message: fmt.Sprintf("%s is private", dir),
	}
}

func checkLocalBackups(env *Env) CheckResult {
	artifacts, err := secrets.ListArtifacts(env.Config.Output.Dir)
	if err != nil {
		return CheckResult{
			Name:    "Local backups",
			Status:  CheckWarning,
			Message: err.Error(),
		}
	}

	var plaintext int
	for _, a := range artifacts {
		if !strings.HasSuffix(a, secrets.EncryptedSuffix) {
			plaintext++
		}
	}

	switch {
	case len(artifacts) == 0:
		return CheckResult{
			Name:       "Local backups",
			Status:     CheckWarning,
			Message:    "No local backups found",
			Suggestion: "Run 'sealkeeper key backup --encrypt' to take one",
		}
	case plaintext > 0:
		return CheckResult{
			Name:    "Local backups",
			Status:  CheckPass,
			Message: fmt.Sprintf("%d files, %d unencrypted", len(artifacts), plaintext),
		}
	default:
		return CheckResult{
			Name:    "Local backups",
			Status:  CheckPass,
			Message: fmt.Sprintf("%d encrypted files", len(artifacts)),
		}
	}
}

// calculateDoctorSummary counts results by status.
func calculateDoctorSummary(results []CheckResult) DoctorSummary {
	var summary DoctorSummary
	for _, result := range results {
		switch result.Status {
		case CheckPass:
			summary.Passed++
		case CheckWarning:
			summary.Warnings++
		case CheckError:
			summary.Errors++
		}
	}
	return summary
}
