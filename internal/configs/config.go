package configs

import (
	"fmt"
	"os"
	"strings"

	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"
)

const (
	DefaultCurrentSecretID = "sealed-secrets/master-key"
	DefaultBackupSecretID  = "sealed-secrets/master-key-backup"
	DefaultRecordName      = "sealed-secrets-key"
	DefaultNamespace       = "kube-system"
	DefaultCommonName      = "sealed-secret"
	DefaultOrganization    = "sealed-secret"
	DefaultValidityDays    = 3650
	DefaultKeyBits         = 4096
	DefaultS3Prefix        = "sealed-secrets"
	DefaultOutputDir       = "sealkeeper-backups"
)

type Config struct {
	AWS         AWSConfig         `toml:"aws"`
	Secrets     SecretsConfig     `toml:"secrets"`
	Record      RecordConfig      `toml:"record"`
	Certificate CertificateConfig `toml:"certificate"`
	Storage     StorageConfig     `toml:"storage"`
	Output      OutputConfig      `toml:"output"`
}

type AWSConfig struct {
	Region   string `toml:"region"`
	Profile  string `toml:"profile"`
	Endpoint string `toml:"endpoint"`

	SSOStartURL  string `toml:"sso_start_url"`
	SSORegion    string `toml:"sso_region"`
	SSOAccountID string `toml:"sso_account_id"`
	SSORoleName  string `toml:"sso_role_name"`
}

type SecretsConfig struct {
	CurrentID string `toml:"current_id"`
	BackupID  string `toml:"backup_id"`
}

type RecordConfig struct {
	Name      string `toml:"name"`
	Namespace string `toml:"namespace"`
}

type CertificateConfig struct {
	CommonName   string `toml:"common_name"`
	Organization string `toml:"organization"`
	ValidityDays int    `toml:"validity_days"`
	KeyBits      int    `toml:"key_bits"`
}

type StorageConfig struct {
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
}

type OutputConfig struct {
	Dir string `toml:"dir"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		Secrets: SecretsConfig{
			CurrentID: DefaultCurrentSecretID,
			BackupID:  DefaultBackupSecretID,
		},
		Record: RecordConfig{
			Name:      DefaultRecordName,
			Namespace: DefaultNamespace,
		},
		Certificate: CertificateConfig{
			CommonName:   DefaultCommonName,
			Organization: DefaultOrganization,
			ValidityDays: DefaultValidityDays,
			KeyBits:      DefaultKeyBits,
		},
		Storage: StorageConfig{
			Prefix: DefaultS3Prefix,
		},
		Output: OutputConfig{
			Dir: DefaultOutputDir,
		},
	}
}

// Load reads the config file at path on top of the defaults, then applies
// environment overrides. An empty path means the default user config path,
// which may be missing. A missing explicit path returns ErrConfigNotFound.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = UserSealkeeperSettings.ConfigPath
	}

	config := Default()

	_, err := os.Stat(path)
	switch {
	case err == nil:
		if err := LoadTOML(path, config); err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	case os.IsNotExist(err) && explicit:
		return nil, fmt.Errorf("%w: %s", kerrors.ErrConfigNotFound, path)
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	config.applyEnv()
	config.fillDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save writes the config to path, or to the default user config path when empty.
func Save(path string, config *Config) error {
	if path == "" {
		path = UserSealkeeperSettings.ConfigPath
	}
	if err := SaveTOML(path, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// applyEnv overlays the environment variables the AWS CLI scripts honoured.
func (c *Config) applyEnv() {
	if v := firstEnv("AWS_REGION", "AWS_DEFAULT_REGION"); v != "" {
		c.AWS.Region = v
	}
	if v := os.Getenv("AWS_PROFILE"); v != "" {
		c.AWS.Profile = v
	}
	if v := os.Getenv("SEALKEEPER_BUCKET"); v != "" {
		c.Storage.Bucket = v
	}
	if v := os.Getenv("SEALKEEPER_ENDPOINT"); v != "" {
		c.AWS.Endpoint = v
	}
}

// fillDefaults restores defaults for keys a config file set to empty values.
func (c *Config) fillDefaults() {
	d := Default()
	if c.Secrets.CurrentID == "" {
		c.Secrets.CurrentID = d.Secrets.CurrentID
	}
	if c.Secrets.BackupID == "" {
		c.Secrets.BackupID = d.Secrets.BackupID
	}
	if c.Record.Name == "" {
		c.Record.Name = d.Record.Name
	}
	if c.Record.Namespace == "" {
		c.Record.Namespace = d.Record.Namespace
	}
	if c.Certificate.CommonName == "" {
		c.Certificate.CommonName = d.Certificate.CommonName
	}
	if c.Certificate.Organization == "" {
		c.Certificate.Organization = d.Certificate.Organization
	}
	if c.Certificate.ValidityDays == 0 {
		c.Certificate.ValidityDays = d.Certificate.ValidityDays
	}
	if c.Certificate.KeyBits == 0 {
		c.Certificate.KeyBits = d.Certificate.KeyBits
	}
	if c.Output.Dir == "" {
		c.Output.Dir = d.Output.Dir
	}
	c.Storage.Prefix = strings.Trim(c.Storage.Prefix, "/")
}

// Validate checks values that would otherwise fail deep inside a workflow.
func (c *Config) Validate() error {
	if c.Secrets.CurrentID == c.Secrets.BackupID {
		return fmt.Errorf("secrets.current_id and secrets.backup_id must differ (both %q)", c.Secrets.CurrentID)
	}
	if c.Certificate.ValidityDays < 1 {
		return fmt.Errorf("certificate.validity_days must be positive, got %d", c.Certificate.ValidityDays)
	}
	switch c.Certificate.KeyBits {
	case 2048, 3072, 4096:
	default:
		return fmt.Errorf("certificate.key_bits must be 2048, 3072 or 4096, got %d", c.Certificate.KeyBits)
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
