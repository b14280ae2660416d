package workflows

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"
	"github.com/PolarWolf314/sealkeeper/internal/secrets"
)

func TestRecoverFromFileStoresExactBytes(t *testing.T) {
	env := newTestEnv(t)
	setNow(t, t0)

	rec, compact := newRecordJSON(t, "sealed-secrets-keyabc12")
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, append(append([]byte("\n  "), compact...), '\n', '\n'), 0600); err != nil {
		t.Fatal(err)
	}

	result, err := Recover(context.Background(), env.Env, RecoverOptions{KeyFile: path})
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}

	if string(result.Stored) != string(compact) {
		t.Errorf("Stored = %q, want the trimmed input", result.Stored)
	}
	if got := mustCurrent(t, env); got != string(compact) {
		t.Errorf("current slot = %q, want the trimmed input", got)
	}
	if result.Archived != nil {
		t.Error("nothing should be archived when the current slot was empty")
	}
	if result.RecordName != rec.Name() {
		t.Errorf("RecordName = %q, want %q", result.RecordName, rec.Name())
	}
	if result.Source != path {
		t.Errorf("Source = %q, want %q", result.Source, path)
	}
}

func TestRecoverFromYAMLStoresCanonicalJSON(t *testing.T) {
	env := newTestEnv(t)
	setNow(t, t0)

	rec, _ := newRecordJSON(t, "sealed-secrets-key")
	manifest, err := rec.YAML()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "key.yaml")
	if err := os.WriteFile(path, manifest, 0600); err != nil {
		t.Fatal(err)
	}

	result, err := Recover(context.Background(), env.Env, RecoverOptions{KeyFile: path})
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}

	stored, err := secrets.ParseKeyRecord([]byte(mustCurrent(t, env)))
	if err != nil {
		t.Fatalf("stored value is not a key record: %v", err)
	}
	want, _ := rec.Fingerprint()
	if got, _ := stored.Fingerprint(); got != want {
		t.Error("stored record has a different certificate")
	}
	if mustCurrent(t, env)[0] != '{' {
		t.Error("YAML input was not stored as JSON")
	}
	if result.Fingerprint != want {
		t.Errorf("Fingerprint = %q, want %q", result.Fingerprint, want)
	}
}

func TestRecoverArchivesReplacedRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	setNow(t, t0)
	setup, err := Setup(ctx, env.Env, SetupOptions{})
	if err != nil {
		t.Fatal(err)
	}
	old := mustCurrent(t, env)

	_, compact := newRecordJSON(t, "sealed-secrets-key")
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, compact, 0600); err != nil {
		t.Fatal(err)
	}

	setNow(t, t0.Add(time.Hour))
	result, err := Recover(ctx, env.Env, RecoverOptions{KeyFile: path})
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}

	if result.Archived == nil || result.Archived.Tag != "pre-recover-20261019-111500" {
		t.Fatalf("Archived = %+v", result.Archived)
	}
	if result.Archived.Fingerprint != setup.Fingerprint {
		t.Error("archive does not hold the replaced key")
	}
	if got, _ := env.sm.ValueByStage(env.Config.Secrets.BackupID, result.Archived.Tag); got != old {
		t.Error("backup slot does not hold the replaced record byte for byte")
	}
	for _, f := range result.Files {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("local mirror missing: %v", err)
		}
	}
}

func TestRecoverFromBackupVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	setNow(t, t0)
	setup, err := Setup(ctx, env.Env, SetupOptions{})
	if err != nil {
		t.Fatal(err)
	}
	original := mustCurrent(t, env)

	setNow(t, t0.Add(time.Minute))
	rotate, err := Rotate(ctx, env.Env, RotateOptions{})
	if err != nil {
		t.Fatal(err)
	}

	setNow(t, t0.Add(2*time.Minute))
	result, err := Recover(ctx, env.Env, RecoverOptions{BackupVersionStage: rotate.Archived.Tag})
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}

	if got := mustCurrent(t, env); got != original {
		t.Error("current slot does not hold the pre-rotation record")
	}
	if result.Fingerprint != setup.Fingerprint {
		t.Error("recovered fingerprint differs from the original key")
	}
	if result.Archived.Fingerprint != rotate.NewFingerprint {
		t.Error("pre-recover archive does not hold the rotated key")
	}

	_, err = Recover(ctx, env.Env, RecoverOptions{BackupVersionID: "no-such-version"})
	if !errors.Is(err, kerrors.ErrVersionNotFound) {
		t.Errorf("Recover(unknown version) error = %v, want ErrVersionNotFound", err)
	}
}

func TestRecoverFromS3(t *testing.T) {
	env := newTestEnv(t)
	setNow(t, t0)

	_, compact := newRecordJSON(t, "sealed-secrets-key")
	env.s3.Seed("ops-backups", "sealed-secrets/sealed-secrets-key-backup-20261001-000000.json", compact)

	result, err := Recover(context.Background(), env.Env, RecoverOptions{S3Key: "sealed-secrets-key-backup-20261001-000000.json"})
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	if result.Source != "s3://ops-backups/sealed-secrets/sealed-secrets-key-backup-20261001-000000.json" {
		t.Errorf("Source = %q", result.Source)
	}
	if mustCurrent(t, env) != string(compact) {
		t.Error("current slot does not hold the object body")
	}

	_, err = Recover(context.Background(), env.Env, RecoverOptions{S3Key: "missing.json"})
	if !errors.Is(err, kerrors.ErrObjectNotFound) {
		t.Errorf("Recover(missing object) error = %v, want ErrObjectNotFound", err)
	}
}

func TestRecoverEncryptedFile(t *testing.T) {
	env := newTestEnv(t)
	setNow(t, t0)

	_, compact := newRecordJSON(t, "sealed-secrets-key")
	sealed, err := secrets.Encrypt(compact, []byte("correct horse"))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "key.json.enc")
	if err := os.WriteFile(path, sealed, 0600); err != nil {
		t.Fatal(err)
	}

	_, err = Recover(context.Background(), env.Env, RecoverOptions{KeyFile: path})
	if !errors.Is(err, kerrors.ErrPassphraseRequired) {
		t.Errorf("Recover() without passphrase error = %v, want ErrPassphraseRequired", err)
	}
	if _, ok := env.sm.Current(env.Config.Secrets.CurrentID); ok {
		t.Error("failed recover wrote the current slot")
	}

	_, err = Recover(context.Background(), env.Env, RecoverOptions{KeyFile: path, Passphrase: []byte("wrong")})
	if !errors.Is(err, kerrors.ErrDecryptFailed) {
		t.Errorf("Recover() with wrong passphrase error = %v, want ErrDecryptFailed", err)
	}

	if _, err := Recover(context.Background(), env.Env, RecoverOptions{KeyFile: path, Passphrase: []byte("correct horse")}); err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	if mustCurrent(t, env) != string(compact) {
		t.Error("current slot does not hold the decrypted record")
	}
}

func TestRecoverSourceSelection(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		opts RecoverOptions
		want error
	}{
		{"no source", RecoverOptions{}, kerrors.ErrNoSource},
		{"file and s3", RecoverOptions{KeyFile: "a.json", S3Key: "b.json"}, kerrors.ErrAmbiguousSource},
		{"file and backup", RecoverOptions{KeyFile: "a.json", FromBackup: true}, kerrors.ErrAmbiguousSource},
		{"s3 and version id", RecoverOptions{S3Key: "b.json", BackupVersionID: "v1"}, kerrors.ErrAmbiguousSource},
		{"missing file", RecoverOptions{KeyFile: filepath.Join(t.TempDir(), "nope.json")}, kerrors.ErrFileNotFound},
		{"empty backup slot", RecoverOptions{FromBackup: true}, kerrors.ErrRecordNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Recover(context.Background(), env.Env, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("Recover() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRecoverRejectsMismatchedKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	setNow(t, t0)

	if _, err := Setup(ctx, env.Env, SetupOptions{}); err != nil {
		t.Fatal(err)
	}
	before := mustCurrent(t, env)

	a, _ := newRecordJSON(t, "sealed-secrets-key")
	b, _ := newRecordJSON(t, "sealed-secrets-key")
	aCert, _ := a.CertPEM()
	bKey, _ := b.KeyPEM()
	mixed, err := secrets.NewKeyRecord("sealed-secrets-key", "kube-system", aCert, bKey).JSON()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "mixed.json")
	if err := os.WriteFile(path, mixed, 0600); err != nil {
		t.Fatal(err)
	}

	_, err = Recover(ctx, env.Env, RecoverOptions{KeyFile: path})
	if !errors.Is(err, kerrors.ErrKeyMismatch) {
		t.Fatalf("Recover() error = %v, want ErrKeyMismatch", err)
	}
	if mustCurrent(t, env) != before {
		t.Error("rejected recover changed the current slot")
	}
}

func TestRecoverFromGlobPicksNewest(t *testing.T) {
	env := newTestEnv(t)
	setNow(t, t0)

	dir := t.TempDir()
	_, olderJSON := newRecordJSON(t, "sealed-secrets-key")
	newer, newerJSON := newRecordJSON(t, "sealed-secrets-key")
	if err := os.WriteFile(filepath.Join(dir, "sealed-secrets-key-backup-20260101-000000.json"), olderJSON, 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sealed-secrets-key-backup-20260601-000000.json"), newerJSON, 0600); err != nil {
		t.Fatal(err)
	}

	result, err := Recover(context.Background(), env.Env, RecoverOptions{KeyFile: filepath.Join(dir, "*.json")})
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	want, _ := newer.Fingerprint()
	if result.Fingerprint != want {
		t.Error("glob did not resolve to the newest backup")
	}
}

func TestRecoverReplacesUndecodableRecord(t *testing.T) {
	env := newTestEnv(t)
	env.sm.Seed(env.Config.Secrets.CurrentID, undecodableRecord)

	_, compact := newRecordJSON(t, "sealed-secrets-key")
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, compact, 0600); err != nil {
		t.Fatal(err)
	}

	setNow(t, t0)
	result, err := Recover(context.Background(), env.Env, RecoverOptions{KeyFile: path})
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}

	if mustCurrent(t, env) != string(compact) {
		t.Error("current slot does not hold the recovered record")
	}
	if result.Archived == nil || len(result.Archived.Files) != 1 {
		t.Fatalf("Archived = %+v", result.Archived)
	}
	got, err := os.ReadFile(result.Archived.Files[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != undecodableRecord {
		t.Errorf("raw archive = %q", got)
	}
}
