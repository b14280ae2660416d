package secrets

import (
	"encoding/base64"
	"fmt"
	"strings"

	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

// ToSecret converts the record into a typed Kubernetes Secret ready for `kubectl apply`.
func (r *KeyRecord) ToSecret() (*corev1.Secret, error) {
	data := make(map[string][]byte, len(r.Data))

	for k, v := range r.Data {
		decoded, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(v), ""))
		if err != nil {
			return nil, fmt.Errorf("%w: data[%q] is not base64: %v", kerrors.ErrInvalidRecord, k, err)
		}
		data[k] = decoded
	}

	return &corev1.Secret{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "Secret",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:        r.Metadata.Name,
			Namespace:   r.Metadata.Namespace,
			Labels:      r.Metadata.Labels,
			Annotations: r.Metadata.Annotations,
		},
		Type: corev1.SecretType(r.Type),
		Data: data,
	}, nil
}

// YAML renders the record as a Kubernetes Secret manifest.
func (r *KeyRecord) YAML() ([]byte, error) {
	secret, err := r.ToSecret()
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(secret)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return out, nil
}
