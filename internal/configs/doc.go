// Package configs manages sealkeeper's TOML configuration.
//
// The config file lives at $XDG_CONFIG_HOME/sealkeeper/config.toml
// (os.UserConfigDir) unless --config points elsewhere:
//
//	[aws]
//	region = "eu-west-1"
//	profile = "ops"
//	endpoint = ""          # e.g. http://localhost:4566 for LocalStack
//	sso_start_url = ""
//	sso_region = ""
//	sso_account_id = ""    # account and role the --sso login assumes
//	sso_role_name = ""
//
//	[secrets]
//	current_id = "sealed-secrets/master-key"
//	backup_id = "sealed-secrets/master-key-backup"
//
//	[record]
//	name = "sealed-secrets-key"
//	namespace = "kube-system"
//
//	[certificate]
//	common_name = "sealed-secret"
//	organization = "sealed-secret"
//	validity_days = 3650
//	key_bits = 4096
//
//	[storage]
//	bucket = ""
//	prefix = "sealed-secrets"
//
//	[output]
//	dir = "sealkeeper-backups"
//
// # Precedence
//
// Command-line flags override environment variables (AWS_REGION,
// AWS_DEFAULT_REGION, AWS_PROFILE, SEALKEEPER_BUCKET, SEALKEEPER_ENDPOINT),
// which override the file, which overrides the built-in defaults.
// Flags are applied by the cmd package after Load returns.
package configs
