package secrets

import (
	"sync"
	"testing"
	"time"
)

var (
	testPairOnce sync.Once
	testPair     *KeyPair
	testPairErr  error

	otherPairOnce sync.Once
	otherPair     *KeyPair
	otherPairErr  error
)

// sharedKeyPair returns a 2048-bit pair generated once per test binary.
func sharedKeyPair(t *testing.T) *KeyPair {
	t.Helper()
	testPairOnce.Do(func() {
		testPair, testPairErr = GenerateKeyPair(CertOptions{
			CommonName:   "sealed-secret",
			Organization: "sealed-secret",
			Validity:     24 * time.Hour,
			KeyBits:      2048,
		})
	})
	if testPairErr != nil {
		t.Fatalf("GenerateKeyPair() error = %v", testPairErr)
	}
	return testPair
}

// secondKeyPair returns a pair unrelated to sharedKeyPair.
func secondKeyPair(t *testing.T) *KeyPair {
	t.Helper()
	otherPairOnce.Do(func() {
		otherPair, otherPairErr = GenerateKeyPair(CertOptions{
			CommonName: "other",
			Validity:   time.Hour,
			KeyBits:    2048,
		})
	})
	if otherPairErr != nil {
		t.Fatalf("GenerateKeyPair() error = %v", otherPairErr)
	}
	return otherPair
}
