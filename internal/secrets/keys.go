package secrets

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"
)

const (
	pemTypeCertificate   = "CERTIFICATE"
	pemTypeRSAPrivateKey = "RSA PRIVATE KEY"
	pemTypePrivateKey    = "PRIVATE KEY"
	pemTypeECPrivateKey  = "EC PRIVATE KEY"

	// DefaultKeyBits matches the key size the Sealed Secrets controller generates.
	DefaultKeyBits = 4096
)

// CertOptions configures a self-signed master key certificate.
type CertOptions struct {
	CommonName   string
	Organization string
	Validity     time.Duration
	KeyBits      int

	// Now is the issue time. Zero means time.Now().
	Now time.Time
}

// KeyPair is a generated certificate and its private key, parsed and PEM-encoded.
type KeyPair struct {
	Cert    *x509.Certificate
	Key     *rsa.PrivateKey
	CertPEM []byte
	KeyPEM  []byte
}

// GenerateKeyPair creates an RSA key and a self-signed certificate for it.
func GenerateKeyPair(opts CertOptions) (*KeyPair, error) {
	bits := opts.KeyBits
	if bits == 0 {
		bits = DefaultKeyBits
	}
	if opts.Validity <= 0 {
		return nil, fmt.Errorf("certificate validity must be positive, got %s", opts.Validity)
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	serial, err := genSerialNum()
	if err != nil {
		return nil, err
	}

	var organization []string
	if opts.Organization != "" {
		organization = []string{opts.Organization}
	}

	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   opts.CommonName,
			Organization: organization,
		},
		NotBefore:             now.Add(-time.Minute).UTC(),
		NotAfter:              now.Add(opts.Validity).UTC(),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	// template == parent, so the certificate is self-signed.
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create self-signed certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated certificate: %w", err)
	}

	certPEM, err := pemEncoding(der, pemTypeCertificate)
	if err != nil {
		return nil, err
	}
	keyPEM, err := pemEncoding(x509.MarshalPKCS1PrivateKey(privateKey), pemTypeRSAPrivateKey)
	if err != nil {
		return nil, err
	}

	return &KeyPair{
		Cert:    cert,
		Key:     privateKey,
		CertPEM: certPEM,
		KeyPEM:  keyPEM,
	}, nil
}

// ParseCertificatePEM parses the first CERTIFICATE block in data.
func ParseCertificatePEM(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemTypeCertificate {
		return nil, fmt.Errorf("%w: tls.crt does not contain a PEM certificate", kerrors.ErrInvalidRecord)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: tls.crt: %v", kerrors.ErrInvalidRecord, err)
	}
	return cert, nil
}

// ParsePrivateKeyPEM parses a PKCS#1, PKCS#8 or SEC 1 private key.
func ParsePrivateKeyPEM(data []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: tls.key does not contain a PEM block", kerrors.ErrInvalidRecord)
	}

	switch block.Type {
	case pemTypeRSAPrivateKey:
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: tls.key: %v", kerrors.ErrInvalidRecord, err)
		}
		return key, nil
	case pemTypeECPrivateKey:
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: tls.key: %v", kerrors.ErrInvalidRecord, err)
		}
		return key, nil
	case pemTypePrivateKey:
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: tls.key: %v", kerrors.ErrInvalidRecord, err)
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("%w: tls.key holds an unsupported key type %T", kerrors.ErrInvalidRecord, key)
		}
		return signer, nil
	default:
		return nil, fmt.Errorf("%w: tls.key has unsupported PEM type %q", kerrors.ErrInvalidRecord, block.Type)
	}
}

func publicKeysEqual(a, b crypto.PublicKey) bool {
	type equaler interface {
		Equal(crypto.PublicKey) bool
	}
	ea, ok := a.(equaler)
	return ok && ea.Equal(b)
}

func pemEncoding(rawData []byte, blockType string) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pem.Encode(buf, &pem.Block{Type: blockType, Bytes: rawData}); err != nil {
		return nil, fmt.Errorf("failed to encode PEM: %w", err)
	}
	return buf.Bytes(), nil
}

func genSerialNum() (*big.Int, error) {
	serialNumLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNum, err := rand.Int(rand.Reader, serialNumLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	return serialNum, nil
}
