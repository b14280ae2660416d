// Package errors provides typed error values for sealkeeper.
//
// Sentinel errors let the CLI layer pick a user-facing message with
// errors.Is() instead of matching on strings.
//
// # Error Categories
//
//   - Credential errors: AWS identity problems (ErrMissingCredentials)
//   - Record errors: master key record state (ErrRecordNotFound, ErrInvalidRecord)
//   - Source errors: recovery inputs (ErrNoSource, ErrVersionNotFound)
//   - Storage errors: S3 configuration (ErrBucketRequired)
//   - Crypto errors: encrypted artifacts (ErrDecryptFailed)
//
// # Usage
//
// Return or wrap errors from internal packages:
//
//	if rec == nil {
//	    return nil, errors.ErrRecordNotFound
//	}
//	return fmt.Errorf("%w: tls.key is not base64", errors.ErrInvalidRecord)
//
// Handle them in the CLI layer:
//
//	result, err := workflows.Rotate(ctx, clients, opts)
//	if errors.Is(err, kerrors.ErrRecordNotFound) {
//	    // Suggest running setup first.
//	}
package errors
