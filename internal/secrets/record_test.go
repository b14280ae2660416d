package secrets

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"

	"github.com/google/go-cmp/cmp"
)

func testRecord(t *testing.T) *KeyRecord {
	t.Helper()
	pair := sharedKeyPair(t)
	return NewKeyRecord("sealed-secrets-key", "kube-system", pair.CertPEM, pair.KeyPEM)
}

func TestNewKeyRecordShape(t *testing.T) {
	record := testRecord(t)

	if record.APIVersion != "v1" || record.Kind != "Secret" || record.Type != "kubernetes.io/tls" {
		t.Errorf("unexpected header: %s/%s type %s", record.APIVersion, record.Kind, record.Type)
	}
	if got := record.Metadata.Labels[ActiveKeyLabel]; got != ActiveKeyValue {
		t.Errorf("active label = %q, want %q", got, ActiveKeyValue)
	}
	if err := record.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestParseKeyRecordJSON(t *testing.T) {
	record := testRecord(t)
	data, err := record.JSON()
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseKeyRecord(data)
	if err != nil {
		t.Fatalf("ParseKeyRecord() error = %v", err)
	}
	if diff := cmp.Diff(record, parsed); diff != "" {
		t.Errorf("parsed record mismatch (-want +got):\n%s", diff)
	}
}

func TestYAMLMirrorCarriesSameKeyMaterial(t *testing.T) {
	record := testRecord(t)

	manifest, err := record.YAML()
	if err != nil {
		t.Fatalf("YAML() error = %v", err)
	}
	if !strings.Contains(string(manifest), "kind: Secret") {
		t.Errorf("manifest lacks kind:\n%s", manifest)
	}

	parsed, err := ParseKeyRecord(manifest)
	if err != nil {
		t.Fatalf("ParseKeyRecord(yaml) error = %v", err)
	}
	if diff := cmp.Diff(record.Data, parsed.Data); diff != "" {
		t.Errorf("data mismatch (-json +yaml):\n%s", diff)
	}
	if diff := cmp.Diff(record.Metadata, parsed.Metadata); diff != "" {
		t.Errorf("metadata mismatch (-json +yaml):\n%s", diff)
	}
	if err := parsed.Validate(); err != nil {
		t.Errorf("Validate() on yaml mirror error = %v", err)
	}
}

func TestParseKeyRecordList(t *testing.T) {
	record := testRecord(t)
	item, err := record.JSON()
	if err != nil {
		t.Fatal(err)
	}

	single := `{"apiVersion":"v1","kind":"List","items":[` + string(item) + `]}`
	parsed, err := ParseKeyRecord([]byte(single))
	if err != nil {
		t.Fatalf("ParseKeyRecord(list) error = %v", err)
	}
	if parsed.Name() != "sealed-secrets-key" {
		t.Errorf("Name() = %q", parsed.Name())
	}

	double := `{"kind":"List","items":[` + string(item) + `,` + string(item) + `]}`
	if _, err := ParseKeyRecord([]byte(double)); !errors.Is(err, kerrors.ErrInvalidRecord) {
		t.Errorf("two-item list error = %v, want ErrInvalidRecord", err)
	}
}

func TestParseKeyRecordRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", "   "},
		{"not a document", "{oops"},
		{"missing name", `{"type":"kubernetes.io/tls","metadata":{},"data":{"tls.crt":"YQ==","tls.key":"YQ=="}}`},
		{"missing key", `{"metadata":{"name":"k"},"data":{"tls.crt":"YQ=="}}`},
		{"wrong type", `{"type":"Opaque","metadata":{"name":"k"},"data":{"tls.crt":"YQ==","tls.key":"YQ=="}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseKeyRecord([]byte(tt.input))
			if !errors.Is(err, kerrors.ErrInvalidRecord) {
				t.Errorf("ParseKeyRecord(%q) error = %v, want ErrInvalidRecord", tt.input, err)
			}
		})
	}
}

func TestParseKeyRecordDefaultsType(t *testing.T) {
	parsed, err := ParseKeyRecord([]byte(`{"metadata":{"name":"k"},"data":{"tls.crt":"YQ==","tls.key":"YQ=="}}`))
	if err != nil {
		t.Fatalf("ParseKeyRecord() error = %v", err)
	}
	if parsed.Type != "kubernetes.io/tls" {
		t.Errorf("Type = %q", parsed.Type)
	}
}

func TestValidateDetectsMismatch(t *testing.T) {
	pair := sharedKeyPair(t)
	other := secondKeyPair(t)

	record := NewKeyRecord("k", "kube-system", pair.CertPEM, other.KeyPEM)
	if err := record.Validate(); !errors.Is(err, kerrors.ErrKeyMismatch) {
		t.Errorf("Validate() error = %v, want ErrKeyMismatch", err)
	}
}

func TestValidateRejectsBadBase64(t *testing.T) {
	record := testRecord(t)
	record.Data["tls.crt"] = "!!!"
	if err := record.Validate(); !errors.Is(err, kerrors.ErrInvalidRecord) {
		t.Errorf("Validate() error = %v, want ErrInvalidRecord", err)
	}
}

func TestDecodeToleratesWrappedBase64(t *testing.T) {
	record := testRecord(t)
	encoded := record.Data["tls.crt"]

	var wrapped strings.Builder
	for i := 0; i < len(encoded); i += 76 {
		end := min(i+76, len(encoded))
		wrapped.WriteString(encoded[i:end])
		wrapped.WriteString("\n")
	}
	record.Data["tls.crt"] = wrapped.String()

	certPEM, err := record.CertPEM()
	if err != nil {
		t.Fatalf("CertPEM() error = %v", err)
	}
	want, _ := base64.StdEncoding.DecodeString(encoded)
	if string(certPEM) != string(want) {
		t.Error("wrapped base64 decoded to different bytes")
	}
}

func TestFingerprintFormat(t *testing.T) {
	fp, err := testRecord(t).Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	if parts := strings.Split(fp, ":"); len(parts) != 32 {
		t.Errorf("fingerprint has %d groups, want 32", len(parts))
	}
	if fp != strings.ToUpper(fp) {
		t.Errorf("fingerprint %q is not upper case", fp)
	}
}

func TestWithKeyPairPreservesIdentity(t *testing.T) {
	old := testRecord(t)
	old.Metadata.Name = "custom-key"
	old.Metadata.Annotations = map[string]string{"owner": "platform"}
	old.Metadata.Labels["team"] = "infra"

	next := old.WithKeyPair(secondKeyPair(t).CertPEM, secondKeyPair(t).KeyPEM)

	if diff := cmp.Diff(old.Metadata, next.Metadata); diff != "" {
		t.Errorf("metadata changed (-old +new):\n%s", diff)
	}
	if next.Data["tls.crt"] == old.Data["tls.crt"] {
		t.Error("certificate was not replaced")
	}
	if err := next.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	next.Metadata.Labels["team"] = "changed"
	if old.Metadata.Labels["team"] != "infra" {
		t.Error("WithKeyPair shares the labels map with the original")
	}
}
