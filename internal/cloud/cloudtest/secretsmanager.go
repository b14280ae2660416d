package cloudtest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/google/uuid"
)

const (
	stageCurrent  = "AWSCURRENT"
	stagePrevious = "AWSPREVIOUS"

	// maxStages is the per-secret staging label quota.
	maxStages = 20
)

// SecretsManager is an in-memory Secrets Manager with AWS staging-label
// semantics: a label sits on at most one version, and moving AWSCURRENT
// moves AWSPREVIOUS to the version that held it.
type SecretsManager struct {
	mu      sync.Mutex
	secrets map[string]*fakeSecret
	clock   time.Time

	// Calls records operation names in order.
	Calls []string

	// Err, when set for an operation name, is returned instead of running it.
	Err map[string]error
}

type fakeSecret struct {
	name        string
	arn         string
	description string
	tags        []smtypes.Tag
	versions    []*fakeVersion
	changed     time.Time
}

type fakeVersion struct {
	id      string
	value   string
	stages  []string
	created time.Time
}

// NewSecretsManager returns an empty fake.
func NewSecretsManager() *SecretsManager {
	return &SecretsManager{
		secrets: map[string]*fakeSecret{},
		clock:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Err:     map[string]error{},
	}
}

// Seed stores value as the AWSCURRENT version of a new secret.
func (f *SecretsManager) Seed(id, value string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	secret := &fakeSecret{name: id, arn: arn(id)}
	f.secrets[id] = secret
	return f.addVersion(secret, uuid.NewString(), value, nil).id
}

// Current returns the AWSCURRENT value of id.
func (f *SecretsManager) Current(id string) (string, bool) {
	return f.ValueByStage(id, stageCurrent)
}

// ValueByStage returns the value labelled stage.
func (f *SecretsManager) ValueByStage(id, stage string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	secret, ok := f.secrets[id]
	if !ok {
		return "", false
	}
	v := secret.byStage(stage)
	if v == nil {
		return "", false
	}
	return v.value, true
}

// VersionCount returns how many versions id holds.
func (f *SecretsManager) VersionCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if secret, ok := f.secrets[id]; ok {
		return len(secret.versions)
	}
	return 0
}

// Stages returns every staging label on id.
func (f *SecretsManager) Stages(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stages []string
	if secret, ok := f.secrets[id]; ok {
		for _, v := range secret.versions {
			stages = append(stages, v.stages...)
		}
	}
	sort.Strings(stages)
	return stages
}

func (f *SecretsManager) DescribeSecret(_ context.Context, in *secretsmanager.DescribeSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DescribeSecret"); err != nil {
		return nil, err
	}

	secret, err := f.lookup(aws.ToString(in.SecretId))
	if err != nil {
		return nil, err
	}

	stages := make(map[string][]string, len(secret.versions))
	for _, v := range secret.versions {
		stages[v.id] = append([]string(nil), v.stages...)
	}
	return &secretsmanager.DescribeSecretOutput{
		ARN:                aws.String(secret.arn),
		Name:               aws.String(secret.name),
		Description:        aws.String(secret.description),
		Tags:               secret.tags,
		LastChangedDate:    aws.Time(secret.changed),
		VersionIdsToStages: stages,
	}, nil
}

func (f *SecretsManager) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("GetSecretValue"); err != nil {
		return nil, err
	}

	secret, err := f.lookup(aws.ToString(in.SecretId))
	if err != nil {
		return nil, err
	}

	versionID, stage := aws.ToString(in.VersionId), aws.ToString(in.VersionStage)
	if versionID == "" && stage == "" {
		stage = stageCurrent
	}

	var found *fakeVersion
	for _, v := range secret.versions {
		if versionID != "" && v.id != versionID {
			continue
		}
		if stage != "" && !contains(v.stages, stage) {
			continue
		}
		found = v
	}
	if found == nil {
		return nil, notFound("version %q/%q of %s", versionID, stage, secret.name)
	}

	return &secretsmanager.GetSecretValueOutput{
		ARN:           aws.String(secret.arn),
		Name:          aws.String(secret.name),
		SecretString:  aws.String(found.value),
		VersionId:     aws.String(found.id),
		VersionStages: append([]string(nil), found.stages...),
		CreatedDate:   aws.Time(found.created),
	}, nil
}

func (f *SecretsManager) PutSecretValue(_ context.Context, in *secretsmanager.PutSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("PutSecretValue"); err != nil {
		return nil, err
	}

	secret, err := f.lookup(aws.ToString(in.SecretId))
	if err != nil {
		return nil, err
	}

	token := aws.ToString(in.ClientRequestToken)
	if token == "" {
		token = uuid.NewString()
	}
	for _, v := range secret.versions {
		if v.id != token {
			continue
		}
		if v.value != aws.ToString(in.SecretString) {
			return nil, &smtypes.ResourceExistsException{Message: aws.String("version " + token + " exists with a different value")}
		}
		return f.putOutput(secret, v), nil
	}

	if err := secret.checkQuota(in.VersionStages); err != nil {
		return nil, err
	}
	v := f.addVersion(secret, token, aws.ToString(in.SecretString), in.VersionStages)
	return f.putOutput(secret, v), nil
}

func (f *SecretsManager) CreateSecret(_ context.Context, in *secretsmanager.CreateSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateSecret"); err != nil {
		return nil, err
	}

	name := aws.ToString(in.Name)
	if _, ok := f.secrets[name]; ok {
		return nil, &smtypes.ResourceExistsException{Message: aws.String("secret " + name + " already exists")}
	}

	secret := &fakeSecret{
		name:        name,
		arn:         arn(name),
		description: aws.ToString(in.Description),
		tags:        in.Tags,
	}
	f.secrets[name] = secret

	token := aws.ToString(in.ClientRequestToken)
	if token == "" {
		token = uuid.NewString()
	}
	v := f.addVersion(secret, token, aws.ToString(in.SecretString), nil)

	return &secretsmanager.CreateSecretOutput{
		ARN:       aws.String(secret.arn),
		Name:      aws.String(secret.name),
		VersionId: aws.String(v.id),
	}, nil
}

func (f *SecretsManager) UpdateSecretVersionStage(_ context.Context, in *secretsmanager.UpdateSecretVersionStageInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretVersionStageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("UpdateSecretVersionStage"); err != nil {
		return nil, err
	}

	secret, err := f.lookup(aws.ToString(in.SecretId))
	if err != nil {
		return nil, err
	}

	stage := aws.ToString(in.VersionStage)
	if from := aws.ToString(in.RemoveFromVersionId); from != "" {
		source := secret.byID(from)
		if source == nil || !contains(source.stages, stage) {
			return nil, &smtypes.InvalidParameterException{Message: aws.String(stage + " is not attached to version " + from)}
		}
		source.stages = remove(source.stages, stage)
	}

	if to := aws.ToString(in.MoveToVersionId); to != "" {
		target := secret.byID(to)
		if target == nil {
			return nil, notFound("version %s of %s", to, secret.name)
		}
		if err := secret.checkQuota([]string{stage}); err != nil {
			return nil, err
		}
		f.label(secret, target, stage)
	}
	secret.changed = f.tick()

	return &secretsmanager.UpdateSecretVersionStageOutput{
		ARN:  aws.String(secret.arn),
		Name: aws.String(secret.name),
	}, nil
}

func (f *SecretsManager) ListSecretVersionIds(_ context.Context, in *secretsmanager.ListSecretVersionIdsInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretVersionIdsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ListSecretVersionIds"); err != nil {
		return nil, err
	}

	secret, err := f.lookup(aws.ToString(in.SecretId))
	if err != nil {
		return nil, err
	}

	var entries []smtypes.SecretVersionsListEntry
	for _, v := range secret.versions {
		if len(v.stages) == 0 && !aws.ToBool(in.IncludeDeprecated) {
			continue
		}
		entries = append(entries, smtypes.SecretVersionsListEntry{
			VersionId:     aws.String(v.id),
			VersionStages: append([]string(nil), v.stages...),
			CreatedDate:   aws.Time(v.created),
		})
	}

	// Two entries per page so callers exercise pagination.
	start := 0
	if tok := aws.ToString(in.NextToken); tok != "" {
		n, err := strconv.Atoi(tok)
		if err != nil || n > len(entries) {
			return nil, &smtypes.InvalidNextTokenException{Message: aws.String("bad token " + tok)}
		}
		start = n
	}
	end := min(start+2, len(entries))
	out := &secretsmanager.ListSecretVersionIdsOutput{
		ARN:      aws.String(secret.arn),
		Name:     aws.String(secret.name),
		Versions: entries[start:end],
	}
	if end < len(entries) {
		out.NextToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *SecretsManager) call(op string) error {
	f.Calls = append(f.Calls, op)
	return f.Err[op]
}

func (f *SecretsManager) lookup(id string) (*fakeSecret, error) {
	if secret, ok := f.secrets[id]; ok {
		return secret, nil
	}
	for _, secret := range f.secrets {
		if secret.arn == id {
			return secret, nil
		}
	}
	return nil, notFound("secret %s", id)
}

func (f *SecretsManager) addVersion(secret *fakeSecret, id, value string, stages []string) *fakeVersion {
	v := &fakeVersion{id: id, value: value, created: f.tick()}
	secret.versions = append(secret.versions, v)
	if len(stages) == 0 {
		stages = []string{stageCurrent}
	}
	for _, stage := range stages {
		f.label(secret, v, stage)
	}
	secret.changed = v.created
	return v
}

func (f *SecretsManager) label(secret *fakeSecret, target *fakeVersion, stage string) {
	if contains(target.stages, stage) {
		return
	}
	previous := secret.byStage(stage)
	if previous != nil {
		previous.stages = remove(previous.stages, stage)
	}
	target.stages = append(target.stages, stage)

	if stage == stageCurrent && previous != nil {
		if old := secret.byStage(stagePrevious); old != nil {
			old.stages = remove(old.stages, stagePrevious)
		}
		previous.stages = append(previous.stages, stagePrevious)
	}
}

func (f *SecretsManager) putOutput(secret *fakeSecret, v *fakeVersion) *secretsmanager.PutSecretValueOutput {
	return &secretsmanager.PutSecretValueOutput{
		ARN:           aws.String(secret.arn),
		Name:          aws.String(secret.name),
		VersionId:     aws.String(v.id),
		VersionStages: append([]string(nil), v.stages...),
	}
}

func (f *SecretsManager) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

// checkQuota fails like Secrets Manager when labelling a version with stages
// would leave more than maxStages labels on the secret.
func (s *fakeSecret) checkQuota(stages []string) error {
	if len(stages) == 0 {
		stages = []string{stageCurrent}
	}
	count := 0
	for _, v := range s.versions {
		count += len(v.stages)
	}
	for _, stage := range stages {
		if s.byStage(stage) == nil {
			count++
		}
	}
	if contains(stages, stageCurrent) && s.byStage(stageCurrent) != nil && s.byStage(stagePrevious) == nil {
		count++
	}
	if count > maxStages {
		return &smtypes.LimitExceededException{Message: aws.String(fmt.Sprintf("%s would carry %d staging labels, the limit is %d", s.name, count, maxStages))}
	}
	return nil
}

func (s *fakeSecret) byStage(stage string) *fakeVersion {
	for _, v := range s.versions {
		if contains(v.stages, stage) {
			return v
		}
	}
	return nil
}

func (s *fakeSecret) byID(id string) *fakeVersion {
	for _, v := range s.versions {
		if v.id == id {
			return v
		}
	}
	return nil
}

func notFound(format string, args ...any) error {
	return &smtypes.ResourceNotFoundException{Message: aws.String(fmt.Sprintf(format, args...) + " not found")}
}

func arn(name string) string {
	return "arn:aws:secretsmanager:us-east-1:123456789012:secret:" + name
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, item := range list {
		if item != s {
			out = append(out, item)
		}
	}
	return out
}
