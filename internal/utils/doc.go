// Package utils provides shared helpers for sealkeeper.
//
// # Filesystem
//   - EnsureDir, WriteFileSync, FileExists: owner-only, fsynced writes for key material
//
// # System
//   - GetUsername, GetHostname, Operator: identify who ran an operation
//   - SanitizeFileComponent: make record names and secret IDs file-name safe
//
// # Terminal and I/O
//   - ReadPassphrase, ReadPassphraseFile: passphrases for encrypted artifacts
//   - IsTerminal, IsStdoutTerminal: decide whether prompts and banners make sense
//
// # Strings
//   - FormatPaths, ShortFingerprint: output helpers
package utils
