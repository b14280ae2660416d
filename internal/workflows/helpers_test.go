package workflows

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/PolarWolf314/sealkeeper/internal/cloud"
	"github.com/PolarWolf314/sealkeeper/internal/cloud/cloudtest"
	"github.com/PolarWolf314/sealkeeper/internal/configs"
	"github.com/PolarWolf314/sealkeeper/internal/secrets"
)

var t0 = time.Date(2026, 10, 19, 10, 15, 0, 0, time.UTC)

type testEnv struct {
	*Env
	sm  *cloudtest.SecretsManager
	s3  *cloudtest.S3
	sts *cloudtest.STS
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := configs.Default()
	cfg.Certificate.KeyBits = 2048
	cfg.Output.Dir = filepath.Join(t.TempDir(), "backups")
	cfg.Storage.Bucket = "ops-backups"

	sm := cloudtest.NewSecretsManager()
	s3 := cloudtest.NewS3("ops-backups")
	sts := cloudtest.NewSTS()

	return &testEnv{
		Env: &Env{
			Config:  cfg,
			Secrets: cloud.NewSecretStore(sm),
			Objects: cloud.NewObjectStore(s3, cfg.Storage.Bucket, cfg.Storage.Prefix),
			STS:     sts,
		},
		sm:  sm,
		s3:  s3,
		sts: sts,
	}
}

// setNow freezes the workflow clock for the rest of the test.
func setNow(t *testing.T, at time.Time) {
	t.Helper()
	saved := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = saved })
}

func (e *testEnv) currentRecord(t *testing.T) *secrets.KeyRecord {
	t.Helper()
	raw, ok := e.sm.Current(e.Config.Secrets.CurrentID)
	if !ok {
		t.Fatal("current slot is empty")
	}
	rec, err := secrets.ParseKeyRecord([]byte(raw))
	if err != nil {
		t.Fatalf("current slot holds an invalid record: %v", err)
	}
	return rec
}

func newRecordJSON(t *testing.T, name string) (*secrets.KeyRecord, []byte) {
	t.Helper()
	pair, err := secrets.GenerateKeyPair(secrets.CertOptions{
		CommonName: "sealed-secret",
		Validity:   24 * time.Hour,
		KeyBits:    2048,
	})
	if err != nil {
		t.Fatal(err)
	}
	rec := secrets.NewKeyRecord(name, "kube-system", pair.CertPEM, pair.KeyPEM)
	compact, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	return rec, compact
}
