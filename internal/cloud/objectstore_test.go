package cloud_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/PolarWolf314/sealkeeper/internal/cloud"
	"github.com/PolarWolf314/sealkeeper/internal/cloud/cloudtest"
	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/go-cmp/cmp"
)

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://ops-backups/sealed-secrets/key.json", "ops-backups", "sealed-secrets/key.json", false},
		{"s3://ops-backups/key.json", "ops-backups", "key.json", false},
		{"s3://ops-backups", "", "", true},
		{"s3:///key.json", "", "", true},
		{"https://ops-backups/key.json", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, err := cloud.ParseS3URI(tt.uri)
			if tt.wantErr {
				if !errors.Is(err, kerrors.ErrInvalidS3URI) {
					t.Errorf("ParseS3URI() error = %v, want ErrInvalidS3URI", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseS3URI() error = %v", err)
			}
			if bucket != tt.bucket || key != tt.key {
				t.Errorf("ParseS3URI() = %q, %q", bucket, key)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	store := cloud.NewObjectStore(cloudtest.NewS3(), "ops", "/sealed-secrets/")

	tests := []struct {
		ref, bucket, key string
	}{
		{"key-backup-20260101-000000.json", "ops", "sealed-secrets/key-backup-20260101-000000.json"},
		{"archive/key.json", "ops", "archive/key.json"},
		{"s3://other/x/key.json", "other", "x/key.json"},
	}
	for _, tt := range tests {
		bucket, key, err := store.Resolve(tt.ref)
		if err != nil {
			t.Fatalf("Resolve(%q) error = %v", tt.ref, err)
		}
		if bucket != tt.bucket || key != tt.key {
			t.Errorf("Resolve(%q) = %q, %q; want %q, %q", tt.ref, bucket, key, tt.bucket, tt.key)
		}
	}

	noBucket := cloud.NewObjectStore(cloudtest.NewS3(), "", "")
	if _, _, err := noBucket.Resolve("key.json"); !errors.Is(err, kerrors.ErrBucketRequired) {
		t.Errorf("Resolve without bucket error = %v, want ErrBucketRequired", err)
	}
}

func TestUploadEncryptsAndPrefixes(t *testing.T) {
	fake := cloudtest.NewS3("ops")
	store := cloud.NewObjectStore(fake, "ops", "sealed-secrets")

	path := filepath.Join(t.TempDir(), "key-backup-20260101-000000.json")
	if err := os.WriteFile(path, []byte(`{"a":1}`), 0600); err != nil {
		t.Fatal(err)
	}

	uri, err := store.Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if uri != "s3://ops/sealed-secrets/key-backup-20260101-000000.json" {
		t.Errorf("Upload() uri = %q", uri)
	}

	obj := fake.Object("ops", "sealed-secrets/key-backup-20260101-000000.json")
	if obj == nil {
		t.Fatal("object was not stored")
	}
	if obj.ServerSideEncryption != s3types.ServerSideEncryptionAes256 {
		t.Errorf("ServerSideEncryption = %q, want AES256", obj.ServerSideEncryption)
	}
	if obj.ContentType != "application/json" {
		t.Errorf("ContentType = %q", obj.ContentType)
	}
}

func TestPutRequiresBucket(t *testing.T) {
	store := cloud.NewObjectStore(cloudtest.NewS3(), "", "")
	if _, err := store.Put(context.Background(), "k", nil); !errors.Is(err, kerrors.ErrBucketRequired) {
		t.Errorf("Put() error = %v, want ErrBucketRequired", err)
	}
}

func TestGet(t *testing.T) {
	fake := cloudtest.NewS3()
	fake.Seed("ops", "sealed-secrets/key.json", []byte("payload"))
	store := cloud.NewObjectStore(fake, "ops", "sealed-secrets")
	ctx := context.Background()

	data, err := store.Get(ctx, "ops", "sealed-secrets/key.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("Get() = %q", data)
	}

	if _, err := store.Get(ctx, "ops", "missing.json"); !errors.Is(err, kerrors.ErrObjectNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrObjectNotFound", err)
	}
}

func TestListPaginates(t *testing.T) {
	fake := cloudtest.NewS3()
	for _, k := range []string{"p/a.json", "p/b.json", "p/c.yaml", "p/d.enc", "other/e.json"} {
		fake.Seed("ops", k, []byte("x"))
	}
	store := cloud.NewObjectStore(fake, "ops", "p")

	objects, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var keys []string
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	if diff := cmp.Diff([]string{"p/a.json", "p/b.json", "p/c.yaml", "p/d.enc"}, keys); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckBucket(t *testing.T) {
	ctx := context.Background()

	if err := cloud.NewObjectStore(cloudtest.NewS3("ops"), "ops", "").CheckBucket(ctx); err != nil {
		t.Errorf("CheckBucket() error = %v", err)
	}
	if err := cloud.NewObjectStore(cloudtest.NewS3(), "ops", "").CheckBucket(ctx); err == nil {
		t.Error("CheckBucket() on a missing bucket should fail")
	}
	if err := cloud.NewObjectStore(cloudtest.NewS3(), "", "").CheckBucket(ctx); !errors.Is(err, kerrors.ErrBucketRequired) {
		t.Errorf("CheckBucket() without bucket error = %v, want ErrBucketRequired", err)
	}
}
