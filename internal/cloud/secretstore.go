package cloud

import (
	"context"
	"fmt"
	"sort"
	"time"

	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/google/uuid"
)

// Staging labels managed by Secrets Manager itself.
const (
	StageCurrent  = "AWSCURRENT"
	StagePrevious = "AWSPREVIOUS"
)

// MaxStages is the Secrets Manager quota on staging labels attached across
// all versions of one secret.
const MaxStages = 20

// SecretsManagerAPI is the subset of *secretsmanager.Client sealkeeper calls.
type SecretsManagerAPI interface {
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	UpdateSecretVersionStage(ctx context.Context, params *secretsmanager.UpdateSecretVersionStageInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretVersionStageOutput, error)
	ListSecretVersionIds(ctx context.Context, params *secretsmanager.ListSecretVersionIdsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretVersionIdsOutput, error)
}

// SecretStore reads and writes key records in Secrets Manager slots.
type SecretStore struct {
	api SecretsManagerAPI

	// NewToken returns the ClientRequestToken for each write.
	NewToken func() string
}

// NewSecretStore wraps api.
func NewSecretStore(api SecretsManagerAPI) *SecretStore {
	return &SecretStore{
		api:      api,
		NewToken: func() string { return uuid.NewString() },
	}
}

// SecretInfo describes a slot without reading its value.
type SecretInfo struct {
	ID               string
	ARN              string
	Name             string
	LastChanged      time.Time
	CurrentVersionID string
	VersionCount     int
}

// SecretValue is one version of a slot.
type SecretValue struct {
	SecretID  string
	VersionID string
	Stages    []string
	Created   time.Time
	String    string
}

// VersionSelector picks a version by id, staging label, or both.
// The zero value selects AWSCURRENT.
type VersionSelector struct {
	VersionID string
	Stage     string
}

// IsZero reports whether no version was requested.
func (v VersionSelector) IsZero() bool {
	return v.VersionID == "" && v.Stage == ""
}

func (v VersionSelector) String() string {
	switch {
	case v.VersionID != "" && v.Stage != "":
		return v.VersionID + " (" + v.Stage + ")"
	case v.VersionID != "":
		return v.VersionID
	case v.Stage != "":
		return v.Stage
	default:
		return StageCurrent
	}
}

// VersionInfo is one entry of a slot's version history.
type VersionInfo struct {
	VersionID string
	Stages    []string
	Created   time.Time
}

// PutResult reports the version a write produced.
type PutResult struct {
	SecretID  string
	ARN       string
	VersionID string
	Stages    []string
	Created   bool
}

// Describe returns slot metadata. A missing slot returns ErrRecordNotFound.
func (s *SecretStore) Describe(ctx context.Context, id string) (*SecretInfo, error) {
	out, err := s.api.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrRecordNotFound, id)
		}
		return nil, fmt.Errorf("describing secret %s: %s", id, describeAPIError(err))
	}

	info := &SecretInfo{
		ID:           id,
		ARN:          aws.ToString(out.ARN),
		Name:         aws.ToString(out.Name),
		LastChanged:  aws.ToTime(out.LastChangedDate),
		VersionCount: len(out.VersionIdsToStages),
	}
	for versionID, stages := range out.VersionIdsToStages {
		if hasStage(stages, StageCurrent) {
			info.CurrentVersionID = versionID
		}
	}
	return info, nil
}

// Get reads one version of a slot. A missing slot returns ErrRecordNotFound,
// a missing version of an existing slot returns ErrVersionNotFound.
func (s *SecretStore) Get(ctx context.Context, id string, sel VersionSelector) (*SecretValue, error) {
	input := &secretsmanager.GetSecretValueInput{SecretId: aws.String(id)}
	if sel.VersionID != "" {
		input.VersionId = aws.String(sel.VersionID)
	}
	if sel.Stage != "" {
		input.VersionStage = aws.String(sel.Stage)
	}

	out, err := s.api.GetSecretValue(ctx, input)
	if err != nil {
		if IsNotFound(err) {
			if sel.IsZero() {
				return nil, fmt.Errorf("%w: %s", kerrors.ErrRecordNotFound, id)
			}
			return nil, fmt.Errorf("%w: %s in %s", kerrors.ErrVersionNotFound, sel, id)
		}
		return nil, fmt.Errorf("reading secret %s: %s", id, describeAPIError(err))
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("%w: %s holds a binary secret", kerrors.ErrInvalidRecord, id)
	}

	return &SecretValue{
		SecretID:  id,
		VersionID: aws.ToString(out.VersionId),
		Stages:    out.VersionStages,
		Created:   aws.ToTime(out.CreatedDate),
		String:    aws.ToString(out.SecretString),
	}, nil
}

// Put writes value as a new version of the slot labelled with stages.
// Nil stages means AWSCURRENT. A missing slot is created first; the
// description is only used in that case.
func (s *SecretStore) Put(ctx context.Context, id, value string, stages []string, description string) (*PutResult, error) {
	token := s.NewToken()

	input := &secretsmanager.PutSecretValueInput{
		SecretId:           aws.String(id),
		SecretString:       aws.String(value),
		ClientRequestToken: aws.String(token),
	}
	if len(stages) > 0 {
		input.VersionStages = stages
	}

	out, err := s.api.PutSecretValue(ctx, input)
	if err == nil {
		return &PutResult{
			SecretID:  id,
			ARN:       aws.ToString(out.ARN),
			VersionID: aws.ToString(out.VersionId),
			Stages:    out.VersionStages,
		}, nil
	}
	if !IsNotFound(err) {
		return nil, fmt.Errorf("writing secret %s: %s", id, describeAPIError(err))
	}

	return s.create(ctx, id, value, stages, description, token)
}

func (s *SecretStore) create(ctx context.Context, id, value string, stages []string, description, token string) (*PutResult, error) {
	out, err := s.api.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:               aws.String(id),
		SecretString:       aws.String(value),
		Description:        aws.String(description),
		ClientRequestToken: aws.String(token),
		Tags: []smtypes.Tag{
			{Key: aws.String("managed-by"), Value: aws.String("sealkeeper")},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating secret %s: %s", id, describeAPIError(err))
	}

	result := &PutResult{
		SecretID:  id,
		ARN:       aws.ToString(out.ARN),
		VersionID: aws.ToString(out.VersionId),
		Stages:    []string{StageCurrent},
		Created:   true,
	}

	// CreateSecret always labels the first version AWSCURRENT only.
	for _, stage := range stages {
		if stage == StageCurrent {
			continue
		}
		if _, err := s.api.UpdateSecretVersionStage(ctx, &secretsmanager.UpdateSecretVersionStageInput{
			SecretId:        aws.String(id),
			VersionStage:    aws.String(stage),
			MoveToVersionId: aws.String(result.VersionID),
		}); err != nil {
			return nil, fmt.Errorf("labelling secret %s with %s: %s", id, stage, describeAPIError(err))
		}
		result.Stages = append(result.Stages, stage)
	}
	return result, nil
}

// PruneStages detaches labels accepted by owned, oldest version first, until
// adding more labels keeps the slot within MaxStages. It returns the detached
// labels. A missing slot has nothing to prune.
func (s *SecretStore) PruneStages(ctx context.Context, id string, adding int, owned func(string) bool) ([]string, error) {
	versions, err := s.ListVersions(ctx, id)
	if isRecordNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	total := 0
	for _, v := range versions {
		total += len(v.Stages)
	}
	excess := total + adding - MaxStages

	var removed []string
	for i := len(versions) - 1; i >= 0 && excess > 0; i-- {
		for _, stage := range versions[i].Stages {
			if excess <= 0 {
				break
			}
			if !owned(stage) {
				continue
			}
			if _, err := s.api.UpdateSecretVersionStage(ctx, &secretsmanager.UpdateSecretVersionStageInput{
				SecretId:            aws.String(id),
				VersionStage:        aws.String(stage),
				RemoveFromVersionId: aws.String(versions[i].VersionID),
			}); err != nil {
				return removed, fmt.Errorf("removing %s from %s: %s", stage, id, describeAPIError(err))
			}
			removed = append(removed, stage)
			excess--
		}
	}
	if excess > 0 {
		return removed, fmt.Errorf("%s carries %d staging labels that sealkeeper does not manage", id, total-len(removed))
	}
	return removed, nil
}

// ListVersions returns every version of the slot, deprecated ones included,
// newest first.
func (s *SecretStore) ListVersions(ctx context.Context, id string) ([]VersionInfo, error) {
	var versions []VersionInfo
	var next *string

	for {
		out, err := s.api.ListSecretVersionIds(ctx, &secretsmanager.ListSecretVersionIdsInput{
			SecretId:          aws.String(id),
			IncludeDeprecated: aws.Bool(true),
			NextToken:         next,
		})
		if err != nil {
			if IsNotFound(err) {
				return nil, fmt.Errorf("%w: %s", kerrors.ErrRecordNotFound, id)
			}
			return nil, fmt.Errorf("listing versions of %s: %s", id, describeAPIError(err))
		}

		for _, v := range out.Versions {
			versions = append(versions, VersionInfo{
				VersionID: aws.ToString(v.VersionId),
				Stages:    v.VersionStages,
				Created:   aws.ToTime(v.CreatedDate),
			})
		}

		if aws.ToString(out.NextToken) == "" {
			break
		}
		next = out.NextToken
	}

	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].Created.After(versions[j].Created)
	})
	return versions, nil
}

func hasStage(stages []string, stage string) bool {
	for _, s := range stages {
		if s == stage {
			return true
		}
	}
	return false
}
