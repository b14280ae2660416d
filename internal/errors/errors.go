package errors

import "errors"

// Credential errors indicate the AWS identity could not be resolved.
var (
	// ErrMissingCredentials indicates no usable AWS credentials were found.
	ErrMissingCredentials = errors.New("aws credentials are missing or invalid")

	// ErrMissingRegion indicates no AWS region was configured.
	ErrMissingRegion = errors.New("aws region is not configured")

	// ErrSSOLoginFailed indicates the AWS SSO device login did not complete.
	ErrSSOLoginFailed = errors.New("aws sso login failed")
)

// Configuration errors.
var (
	// ErrConfigNotFound indicates the config file named with --config does not exist.
	ErrConfigNotFound = errors.New("config file not found")
)

// Record errors indicate issues with the master key record itself.
var (
	// ErrRecordNotFound indicates the secret slot holds no master key record.
	ErrRecordNotFound = errors.New("master key record not found")

	// ErrRecordExists indicates a master key record is already stored.
	ErrRecordExists = errors.New("master key record already exists")

	// ErrInvalidRecord indicates the record is malformed or missing fields.
	ErrInvalidRecord = errors.New("invalid master key record")

	// ErrKeyMismatch indicates the private key does not belong to the certificate.
	ErrKeyMismatch = errors.New("private key does not match certificate")

	// ErrTagExists indicates the version tag already labels a backup slot version,
	// e.g. two operations of the same kind within one second.
	ErrTagExists = errors.New("version tag already exists")
)

// Source errors indicate issues locating a replacement record for recovery.
var (
	// ErrNoSource indicates no recovery source was given.
	ErrNoSource = errors.New("no recovery source specified")

	// ErrAmbiguousSource indicates more than one recovery source was given.
	ErrAmbiguousSource = errors.New("more than one recovery source specified")

	// ErrFileNotFound indicates a specific file could not be located.
	ErrFileNotFound = errors.New("file not found")

	// ErrVersionNotFound indicates the requested backup version does not exist.
	ErrVersionNotFound = errors.New("backup version not found")

	// ErrObjectNotFound indicates the requested object storage key does not exist.
	ErrObjectNotFound = errors.New("object not found")
)

// Storage errors indicate the object storage target is misconfigured.
var (
	// ErrBucketRequired indicates an S3 operation was requested without a bucket.
	ErrBucketRequired = errors.New("s3 bucket is required")

	// ErrInvalidS3URI indicates an s3:// URI could not be parsed.
	ErrInvalidS3URI = errors.New("invalid s3 uri")
)

// Cryptographic errors indicate failures while encrypting or decrypting artifacts.
var (
	// ErrDecryptFailed indicates the passphrase was wrong or the file is corrupt.
	ErrDecryptFailed = errors.New("failed to decrypt file")

	// ErrNotEncrypted indicates the file does not carry the encrypted artifact header.
	ErrNotEncrypted = errors.New("file is not an encrypted artifact")

	// ErrPassphraseRequired indicates an encrypted source was given without a passphrase.
	ErrPassphraseRequired = errors.New("passphrase is required")
)

// Log errors indicate issues with the operation log.
var (
	// ErrNoLogFound indicates the operation log does not exist yet.
	ErrNoLogFound = errors.New("operation log not found")

	// ErrInvalidDateFormat indicates a date filter was not YYYY-MM-DD.
	ErrInvalidDateFormat = errors.New("invalid date format")
)
