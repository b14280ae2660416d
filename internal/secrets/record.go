package secrets

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/yaml"
)

const (
	// ActiveKeyLabel marks a Secret as a key the Sealed Secrets controller should load.
	ActiveKeyLabel = "sealedsecrets.bitnami.com/sealed-secrets-key"
	ActiveKeyValue = "active"
)

// Metadata is the subset of Kubernetes object metadata carried by a key record.
type Metadata struct {
	Name        string            `json:"name"`
	Namespace   string            `json:"namespace,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// KeyRecord is the master key as stored in Secrets Manager: a kubernetes.io/tls
// Secret whose data holds the base64 PEM certificate and private key.
type KeyRecord struct {
	APIVersion string            `json:"apiVersion,omitempty"`
	Kind       string            `json:"kind,omitempty"`
	Type       string            `json:"type"`
	Metadata   Metadata          `json:"metadata"`
	Data       map[string]string `json:"data"`
}

// recordList accepts `kubectl get secret -l ... -o json` output holding a single item.
type recordList struct {
	Kind  string      `json:"kind"`
	Items []KeyRecord `json:"items"`
}

// NewKeyRecord builds a record from PEM material, labelled as the active controller key.
func NewKeyRecord(name, namespace string, certPEM, keyPEM []byte) *KeyRecord {
	return &KeyRecord{
		APIVersion: "v1",
		Kind:       "Secret",
		Type:       string(corev1.SecretTypeTLS),
		Metadata: Metadata{
			Name:      name,
			Namespace: namespace,
			Labels:    map[string]string{ActiveKeyLabel: ActiveKeyValue},
		},
		Data: map[string]string{
			corev1.TLSCertKey:       base64.StdEncoding.EncodeToString(certPEM),
			corev1.TLSPrivateKeyKey: base64.StdEncoding.EncodeToString(keyPEM),
		},
	}
}

// ParseKeyRecord decodes a JSON or YAML key record and checks its structure.
// Cryptographic consistency is checked separately by Validate.
func ParseKeyRecord(data []byte) (*KeyRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", kerrors.ErrInvalidRecord)
	}

	jsonData := data
	if data[0] != '{' {
		converted, err := yaml.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%w: not valid JSON or YAML: %v", kerrors.ErrInvalidRecord, err)
		}
		jsonData = converted
	}

	var list recordList
	if err := json.Unmarshal(jsonData, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidRecord, err)
	}

	var record KeyRecord
	if list.Kind == "List" {
		if len(list.Items) != 1 {
			return nil, fmt.Errorf("%w: list holds %d items, want exactly 1", kerrors.ErrInvalidRecord, len(list.Items))
		}
		record = list.Items[0]
	} else if err := json.Unmarshal(jsonData, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidRecord, err)
	}

	if err := record.checkStructure(); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *KeyRecord) checkStructure() error {
	if r.Type == "" {
		r.Type = string(corev1.SecretTypeTLS)
	}
	if r.Type != string(corev1.SecretTypeTLS) {
		return fmt.Errorf("%w: type is %q, want %q", kerrors.ErrInvalidRecord, r.Type, corev1.SecretTypeTLS)
	}
	if r.Metadata.Name == "" {
		return fmt.Errorf("%w: metadata.name is missing", kerrors.ErrInvalidRecord)
	}
	for _, key := range []string{corev1.TLSCertKey, corev1.TLSPrivateKeyKey} {
		if strings.TrimSpace(r.Data[key]) == "" {
			return fmt.Errorf("%w: data[%q] is missing", kerrors.ErrInvalidRecord, key)
		}
	}
	return nil
}

// Name returns metadata.name.
func (r *KeyRecord) Name() string {
	return r.Metadata.Name
}

// CertPEM returns the decoded tls.crt field.
func (r *KeyRecord) CertPEM() ([]byte, error) {
	return r.decodeField(corev1.TLSCertKey)
}

// KeyPEM returns the decoded tls.key field.
func (r *KeyRecord) KeyPEM() ([]byte, error) {
	return r.decodeField(corev1.TLSPrivateKeyKey)
}

func (r *KeyRecord) decodeField(key string) ([]byte, error) {
	// Tolerate wrapped base64 (`base64` without -w0).
	raw := strings.Join(strings.Fields(r.Data[key]), "")
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: data[%q] is not base64: %v", kerrors.ErrInvalidRecord, key, err)
	}
	return decoded, nil
}

// Certificate parses the tls.crt field.
func (r *KeyRecord) Certificate() (*x509.Certificate, error) {
	certPEM, err := r.CertPEM()
	if err != nil {
		return nil, err
	}
	return ParseCertificatePEM(certPEM)
}

// Validate checks that both fields decode to a certificate and a private key
// and that the key belongs to the certificate.
func (r *KeyRecord) Validate() error {
	if err := r.checkStructure(); err != nil {
		return err
	}

	cert, err := r.Certificate()
	if err != nil {
		return err
	}

	keyPEM, err := r.KeyPEM()
	if err != nil {
		return err
	}
	key, err := ParsePrivateKeyPEM(keyPEM)
	if err != nil {
		return err
	}

	if !publicKeysEqual(key.Public(), cert.PublicKey) {
		return kerrors.ErrKeyMismatch
	}
	return nil
}

// Fingerprint returns the SHA-256 of the certificate DER as colon-separated hex.
func (r *KeyRecord) Fingerprint() (string, error) {
	cert, err := r.Certificate()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(cert.Raw)
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":"), nil
}

// JSON returns the indented JSON form used as the Secrets Manager secret string.
func (r *KeyRecord) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding key record: %w", err)
	}
	return data, nil
}

// WithKeyPair returns a copy of r carrying new PEM material. Name, namespace,
// labels and annotations are preserved.
func (r *KeyRecord) WithKeyPair(certPEM, keyPEM []byte) *KeyRecord {
	next := NewKeyRecord(r.Metadata.Name, r.Metadata.Namespace, certPEM, keyPEM)
	if r.APIVersion != "" {
		next.APIVersion = r.APIVersion
	}
	if r.Kind != "" {
		next.Kind = r.Kind
	}
	if len(r.Metadata.Labels) > 0 {
		next.Metadata.Labels = copyMap(r.Metadata.Labels)
	}
	if len(r.Metadata.Annotations) > 0 {
		next.Metadata.Annotations = copyMap(r.Metadata.Annotations)
	}
	return next
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
