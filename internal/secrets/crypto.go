package secrets

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"
	"github.com/PolarWolf314/sealkeeper/internal/utils"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// Encrypted artifact layout:
//
//	magic (8) | salt (16) | nonce (24) | secretbox(plaintext)
//
// The secretbox key is scrypt(passphrase, salt, N=2^15, r=8, p=1).
const (
	EncryptedSuffix = ".enc"

	encryptedMagic = "SKENC\x00\x01\n"
	saltSize       = 16
	nonceSize      = 24
	keySize        = 32

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1

	passphraseBytes = 32
)

// GeneratePassphrase returns 32 random bytes as standard base64,
// the same shape as `openssl rand -base64 32`.
func GeneratePassphrase() (string, error) {
	buf := make([]byte, passphraseBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// IsEncrypted reports whether data starts with the encrypted artifact header.
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, []byte(encryptedMagic))
}

// Encrypt seals plaintext with a key derived from passphrase.
func Encrypt(plaintext, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, kerrors.ErrPassphraseRequired
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(encryptedMagic)+saltSize+nonceSize+len(plaintext)+secretbox.Overhead)
	out = append(out, encryptedMagic...)
	out = append(out, salt...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plaintext, &nonce, key), nil
}

// Decrypt opens data produced by Encrypt.
func Decrypt(data, passphrase []byte) ([]byte, error) {
	if !IsEncrypted(data) {
		return nil, kerrors.ErrNotEncrypted
	}
	if len(passphrase) == 0 {
		return nil, kerrors.ErrPassphraseRequired
	}

	body := data[len(encryptedMagic):]
	if len(body) < saltSize+nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("%w: file is truncated", kerrors.ErrDecryptFailed)
	}

	salt := body[:saltSize]
	var nonce [nonceSize]byte
	copy(nonce[:], body[saltSize:saltSize+nonceSize])

	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}

	plaintext, ok := secretbox.Open(nil, body[saltSize+nonceSize:], &nonce, key)
	if !ok {
		return nil, kerrors.ErrDecryptFailed
	}
	return plaintext, nil
}

// EncryptFile writes path+".enc" and removes the plaintext file.
func EncryptFile(path string, passphrase []byte) (string, error) {
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	ciphertext, err := Encrypt(plaintext, passphrase)
	if err != nil {
		return "", err
	}

	outputPath := path + EncryptedSuffix
	if err := utils.WriteFileSync(outputPath, ciphertext, 0600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", outputPath, err)
	}

	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("failed to remove plaintext %s: %w", path, err)
	}
	return outputPath, nil
}

// DecryptFile decrypts path into outputPath. An empty outputPath strips the ".enc" suffix.
func DecryptFile(path, outputPath string, passphrase []byte) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	plaintext, err := Decrypt(data, passphrase)
	if err != nil {
		return "", err
	}

	if outputPath == "" {
		outputPath = strings.TrimSuffix(path, EncryptedSuffix)
		if outputPath == path {
			outputPath = path + ".dec"
		}
	}

	if err := utils.WriteFileSync(outputPath, plaintext, 0600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	return outputPath, nil
}

func deriveKey(passphrase, salt []byte) (*[keySize]byte, error) {
	derived, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	var key [keySize]byte
	copy(key[:], derived)
	return &key, nil
}
