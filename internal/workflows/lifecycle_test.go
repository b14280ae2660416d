package workflows

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/PolarWolf314/sealkeeper/internal/audit"
	"github.com/PolarWolf314/sealkeeper/internal/cloud"
	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"
	"github.com/PolarWolf314/sealkeeper/internal/secrets"

	"github.com/google/go-cmp/cmp"
)

func TestSetupCreatesSlots(t *testing.T) {
	env := newTestEnv(t)
	setNow(t, t0)

	result, err := Setup(context.Background(), env.Env, SetupOptions{})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if !result.Created {
		t.Error("Setup() on an empty account should create the current slot")
	}
	if result.Tag != "setup-20261019-101500" {
		t.Errorf("Tag = %q", result.Tag)
	}

	rec := env.currentRecord(t)
	if rec.Name() != "sealed-secrets-key" {
		t.Errorf("record name = %q", rec.Name())
	}
	if err := rec.Validate(); err != nil {
		t.Errorf("stored record does not validate: %v", err)
	}

	current, _ := env.sm.Current(env.Config.Secrets.CurrentID)
	mirrored, ok := env.sm.ValueByStage(env.Config.Secrets.BackupID, result.Tag)
	if !ok || mirrored != current {
		t.Error("backup slot does not mirror the new record under the setup tag")
	}

	for _, f := range result.Files {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("local mirror missing: %v", err)
		}
	}

	entries, err := audit.ReadEntries(env.Config.Output.Dir)
	if err != nil || len(entries) != 1 || entries[0].Operation != "setup" {
		t.Errorf("operation log = %+v, %v", entries, err)
	}
}

func TestSetupRefusesExistingRecord(t *testing.T) {
	env := newTestEnv(t)
	setNow(t, t0)

	if _, err := Setup(context.Background(), env.Env, SetupOptions{}); err != nil {
		t.Fatal(err)
	}
	before, _ := env.sm.Current(env.Config.Secrets.CurrentID)

	_, err := Setup(context.Background(), env.Env, SetupOptions{})
	if !errors.Is(err, kerrors.ErrRecordExists) {
		t.Fatalf("Setup() error = %v, want ErrRecordExists", err)
	}

	after, _ := env.sm.Current(env.Config.Secrets.CurrentID)
	if before != after {
		t.Error("refused setup changed the current slot")
	}
}

func TestSetupReplaceArchivesExisting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	setNow(t, t0)
	first, err := Setup(ctx, env.Env, SetupOptions{})
	if err != nil {
		t.Fatal(err)
	}
	old, _ := env.sm.Current(env.Config.Secrets.CurrentID)

	setNow(t, t0.Add(time.Hour))
	second, err := Setup(ctx, env.Env, SetupOptions{Replace: true})
	if err != nil {
		t.Fatalf("Setup(Replace) error = %v", err)
	}

	if second.Replaced == nil {
		t.Fatal("Replaced archive is nil")
	}
	if second.Replaced.Tag != "backup-20261019-111500" {
		t.Errorf("Replaced.Tag = %q", second.Replaced.Tag)
	}
	if second.Replaced.Fingerprint != first.Fingerprint {
		t.Error("archive fingerprint does not match the replaced key")
	}
	if archived, _ := env.sm.ValueByStage(env.Config.Secrets.BackupID, second.Replaced.Tag); archived != old {
		t.Error("backup slot does not hold the replaced record byte for byte")
	}
	if second.Fingerprint == first.Fingerprint {
		t.Error("replacement key has the same fingerprint")
	}
}

func TestSetupBackupRotateKeepsNameAndChangesCertificate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	setNow(t, t0)
	setup, err := Setup(ctx, env.Env, SetupOptions{})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	before := env.currentRecord(t)
	beforeRaw, _ := env.sm.Current(env.Config.Secrets.CurrentID)

	setNow(t, t0.Add(time.Minute))
	backup, err := Backup(ctx, env.Env, BackupOptions{ToBackupSlot: true, UploadToS3: true})
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if backup.Fingerprint != setup.Fingerprint {
		t.Error("backup fingerprint differs from the setup key")
	}
	if len(backup.Uploaded) != 2 {
		t.Errorf("Uploaded = %v, want JSON and YAML", backup.Uploaded)
	}

	setNow(t, t0.Add(2*time.Minute))
	rotate, err := Rotate(ctx, env.Env, RotateOptions{})
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	after := env.currentRecord(t)
	if after.Name() != before.Name() {
		t.Errorf("rotation renamed the record: %q -> %q", before.Name(), after.Name())
	}
	if diff := cmp.Diff(before.Metadata, after.Metadata); diff != "" {
		t.Errorf("rotation changed metadata (-before +after):\n%s", diff)
	}
	if after.Data["tls.crt"] == before.Data["tls.crt"] {
		t.Error("rotation kept the same certificate")
	}
	if rotate.OldFingerprint == rotate.NewFingerprint {
		t.Error("old and new fingerprints are equal")
	}
	if rotate.OldFingerprint != setup.Fingerprint {
		t.Error("OldFingerprint is not the setup key")
	}

	archived, ok := env.sm.ValueByStage(env.Config.Secrets.BackupID, "rotated-20261019-101700")
	if !ok || archived != beforeRaw {
		t.Error("backup slot does not hold the prior record under the rotated tag")
	}

	entries, _ := audit.ReadEntries(env.Config.Output.Dir)
	var ops []string
	for _, e := range entries {
		ops = append(ops, e.Operation)
	}
	if diff := cmp.Diff([]string{"setup", "backup", "rotate"}, ops); diff != "" {
		t.Errorf("operation log mismatch (-want +got):\n%s", diff)
	}
}

func TestRotateWithoutRecord(t *testing.T) {
	env := newTestEnv(t)
	if _, err := Rotate(context.Background(), env.Env, RotateOptions{}); !errors.Is(err, kerrors.ErrRecordNotFound) {
		t.Errorf("Rotate() error = %v, want ErrRecordNotFound", err)
	}
}

func TestBackupWithoutRecord(t *testing.T) {
	env := newTestEnv(t)
	if _, err := Backup(context.Background(), env.Env, BackupOptions{}); !errors.Is(err, kerrors.ErrRecordNotFound) {
		t.Errorf("Backup() error = %v, want ErrRecordNotFound", err)
	}
}

func TestBackupUploadRequiresBucket(t *testing.T) {
	env := newTestEnv(t)
	env.Objects.Bucket = ""

	if _, err := Backup(context.Background(), env.Env, BackupOptions{UploadToS3: true}); !errors.Is(err, kerrors.ErrBucketRequired) {
		t.Errorf("Backup() error = %v, want ErrBucketRequired", err)
	}
}

func TestBackupRejectsInvalidRecord(t *testing.T) {
	env := newTestEnv(t)
	env.sm.Seed(env.Config.Secrets.CurrentID, `{"metadata":{"name":"k"}}`)

	if _, err := Backup(context.Background(), env.Env, BackupOptions{}); !errors.Is(err, kerrors.ErrInvalidRecord) {
		t.Errorf("Backup() error = %v, want ErrInvalidRecord", err)
	}
}

func TestBackupEncryptRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	setNow(t, t0)

	if _, err := Setup(ctx, env.Env, SetupOptions{}); err != nil {
		t.Fatal(err)
	}
	raw, _ := env.sm.Current(env.Config.Secrets.CurrentID)

	backup, err := Backup(ctx, env.Env, BackupOptions{Encrypt: true, UploadToS3: true})
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if backup.Passphrase == "" {
		t.Fatal("encrypted backup returned no passphrase")
	}

	for _, f := range backup.Files {
		if !strings.HasSuffix(f, ".enc") {
			t.Errorf("%s is not encrypted", f)
		}
		if _, err := os.Stat(strings.TrimSuffix(f, ".enc")); !os.IsNotExist(err) {
			t.Errorf("plaintext for %s was not removed", f)
		}
	}
	for _, uri := range backup.Uploaded {
		if !strings.HasSuffix(uri, ".enc") {
			t.Errorf("uploaded plaintext %s", uri)
		}
	}

	decrypted, err := Decrypt(ctx, DecryptOptions{Path: backup.Files[0], Passphrase: []byte(backup.Passphrase)})
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	got, err := os.ReadFile(decrypted.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != raw {
		t.Error("decrypted backup differs from the stored secret string")
	}
	if decrypted.Fingerprint != backup.Fingerprint {
		t.Error("decrypted record fingerprint mismatch")
	}

	_, err = Decrypt(ctx, DecryptOptions{Path: backup.Files[1], Passphrase: []byte("wrong")})
	if !errors.Is(err, kerrors.ErrDecryptFailed) {
		t.Errorf("Decrypt(wrong passphrase) error = %v, want ErrDecryptFailed", err)
	}
}

func TestVersionsListsArchives(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	setNow(t, t0)
	if _, err := Setup(ctx, env.Env, SetupOptions{}); err != nil {
		t.Fatal(err)
	}
	setNow(t, t0.Add(time.Minute))
	if _, err := Rotate(ctx, env.Env, RotateOptions{}); err != nil {
		t.Fatal(err)
	}
	setNow(t, t0.Add(2*time.Minute))
	if _, err := Backup(ctx, env.Env, BackupOptions{UploadToS3: true}); err != nil {
		t.Fatal(err)
	}

	result, err := Versions(ctx, env.Env, VersionsOptions{IncludeObjects: true})
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}

	var tags []string
	for _, v := range result.Versions {
		tags = append(tags, VersionTags(v.Stages)...)
	}
	want := []string{"rotated-20261019-101600", "setup-20261019-101500"}
	if diff := cmp.Diff(want, tags); diff != "" {
		t.Errorf("version tags mismatch (-want +got):\n%s", diff)
	}
	if len(result.Objects) != 2 {
		t.Errorf("Objects = %v, want the uploaded JSON and YAML", result.Objects)
	}
}

func TestStatusReportsSlots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	empty, err := Status(ctx, env.Env, StatusOptions{})
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if empty.Current.Exists || empty.Backup.Exists {
		t.Error("empty account reports existing slots")
	}

	setNow(t, t0)
	setup, err := Setup(ctx, env.Env, SetupOptions{})
	if err != nil {
		t.Fatal(err)
	}

	status, err := Status(ctx, env.Env, StatusOptions{})
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !status.Current.Exists || status.Current.Invalid != nil {
		t.Errorf("Current = %+v", status.Current)
	}
	if status.Current.Fingerprint != setup.Fingerprint {
		t.Error("status fingerprint differs from setup")
	}
	if !status.Current.NotAfter.Equal(setup.NotAfter) {
		t.Errorf("NotAfter = %s, want %s", status.Current.NotAfter, setup.NotAfter)
	}
	if len(status.LocalArtifacts) != 2 {
		t.Errorf("LocalArtifacts = %v", status.LocalArtifacts)
	}
}

func TestSetupArchivesUnparseableRecord(t *testing.T) {
	env := newTestEnv(t)
	env.sm.Seed(env.Config.Secrets.CurrentID, "not a record")
	setNow(t, t0)

	result, err := Setup(context.Background(), env.Env, SetupOptions{Replace: true})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if len(result.Replaced.Files) != 1 {
		t.Fatalf("Replaced.Files = %v", result.Replaced.Files)
	}
	got, err := os.ReadFile(result.Replaced.Files[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "not a record" {
		t.Errorf("raw archive = %q", got)
	}
	if _, err := secrets.ParseKeyRecord([]byte(mustCurrent(t, env))); err != nil {
		t.Errorf("current slot not replaced with a valid record: %v", err)
	}
}

func mustCurrent(t *testing.T, env *testEnv) string {
	t.Helper()
	v, ok := env.sm.Current(env.Config.Secrets.CurrentID)
	if !ok {
		t.Fatal("current slot is empty")
	}
	return v
}

// undecodableRecord parses as a key record but its data is not base64.
const undecodableRecord = `{"type":"kubernetes.io/tls","metadata":{"name":"k"},"data":{"tls.crt":"!!!","tls.key":"!!!"}}`

func TestSetupReplacesUndecodableRecord(t *testing.T) {
	env := newTestEnv(t)
	env.sm.Seed(env.Config.Secrets.CurrentID, undecodableRecord)
	setNow(t, t0)

	result, err := Setup(context.Background(), env.Env, SetupOptions{Replace: true})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if result.Replaced.Fingerprint != "" {
		t.Errorf("Replaced.Fingerprint = %q, want empty", result.Replaced.Fingerprint)
	}
	if len(result.Replaced.Files) != 1 || !strings.HasSuffix(result.Replaced.Files[0], "k-backup-20261019-101500.json") {
		t.Fatalf("Replaced.Files = %v", result.Replaced.Files)
	}
	got, err := os.ReadFile(result.Replaced.Files[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != undecodableRecord {
		t.Errorf("raw archive = %q", got)
	}
	if v, _ := env.sm.ValueByStage(env.Config.Secrets.BackupID, result.Replaced.Tag); v != undecodableRecord {
		t.Errorf("backup slot holds %q", v)
	}
	if rec := env.currentRecord(t); rec.Validate() != nil {
		t.Error("current slot not replaced with a usable record")
	}
}

func TestRotateRefusesUndecodableRecord(t *testing.T) {
	env := newTestEnv(t)
	env.sm.Seed(env.Config.Secrets.CurrentID, undecodableRecord)

	_, err := Rotate(context.Background(), env.Env, RotateOptions{})
	if !errors.Is(err, kerrors.ErrInvalidRecord) {
		t.Fatalf("Rotate() error = %v, want ErrInvalidRecord", err)
	}
	if n := env.sm.VersionCount(env.Config.Secrets.BackupID); n != 0 {
		t.Errorf("backup slot has %d versions, want none", n)
	}
	if mustCurrent(t, env) != undecodableRecord {
		t.Error("current slot changed")
	}
}

func TestBackupSlotStaysWithinLabelQuota(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	setNow(t, t0)
	if _, err := Setup(ctx, env.Env, SetupOptions{}); err != nil {
		t.Fatal(err)
	}

	var last *BackupResult
	for i := 1; i <= 25; i++ {
		setNow(t, t0.Add(time.Duration(i)*time.Minute))
		result, err := Backup(ctx, env.Env, BackupOptions{ToBackupSlot: true})
		if err != nil {
			t.Fatalf("Backup() #%d error = %v", i, err)
		}
		last = result
	}

	stages := env.sm.Stages(env.Config.Secrets.BackupID)
	if len(stages) > cloud.MaxStages {
		t.Errorf("backup slot carries %d labels, quota is %d", len(stages), cloud.MaxStages)
	}
	if v, ok := env.sm.ValueByStage(env.Config.Secrets.BackupID, last.Tag); !ok || v != mustCurrent(t, env) {
		t.Error("newest backup tag is missing")
	}
	if _, ok := env.sm.ValueByStage(env.Config.Secrets.BackupID, "setup-20261019-101500"); ok {
		t.Error("oldest tag should have been pruned")
	}
	if n := env.sm.VersionCount(env.Config.Secrets.BackupID); n != 26 {
		t.Errorf("backup slot has %d versions, want 26", n)
	}
}

func TestBackupRefusesTakenTag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	setNow(t, t0)
	if _, err := Setup(ctx, env.Env, SetupOptions{}); err != nil {
		t.Fatal(err)
	}
	setNow(t, t0.Add(time.Minute))
	first, err := Backup(ctx, env.Env, BackupOptions{ToBackupSlot: true})
	if err != nil {
		t.Fatal(err)
	}
	versions := env.sm.VersionCount(env.Config.Secrets.BackupID)

	_, err = Backup(ctx, env.Env, BackupOptions{ToBackupSlot: true})
	if !errors.Is(err, kerrors.ErrTagExists) {
		t.Fatalf("Backup() error = %v, want ErrTagExists", err)
	}
	if n := env.sm.VersionCount(env.Config.Secrets.BackupID); n != versions {
		t.Errorf("backup slot gained %d versions", n-versions)
	}

	got, err := env.Secrets.Get(ctx, env.Config.Secrets.BackupID, cloud.VersionSelector{Stage: first.Tag})
	if err != nil {
		t.Fatal(err)
	}
	if got.VersionID != first.BackupVersionID {
		t.Errorf("%s moved from %s to %s", first.Tag, first.BackupVersionID, got.VersionID)
	}
}

func TestSetupReplaceRefusesTakenTag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	setNow(t, t0)
	if _, err := Setup(ctx, env.Env, SetupOptions{}); err != nil {
		t.Fatal(err)
	}
	before := mustCurrent(t, env)

	_, err := Setup(ctx, env.Env, SetupOptions{Replace: true})
	if !errors.Is(err, kerrors.ErrTagExists) {
		t.Fatalf("Setup(Replace) error = %v, want ErrTagExists", err)
	}
	if mustCurrent(t, env) != before {
		t.Error("refused setup changed the current slot")
	}
}
