// Package audit records sealkeeper operations in an append-only log.
//
// Every operation that touches a secret slot (setup, backup, rotate,
// recover) appends one entry, so operators can see which key was in the
// current slot at any time and where its archived copies went.
//
// # Log Format
//
// The log is stored as JSON Lines (one JSON object per line) next to the
// local artifacts:
//
//	<output-dir>/sealkeeper.log
//
// Each entry contains:
//   - Timestamp (RFC3339 with microseconds, UTC)
//   - Operator (user@host)
//   - Operation name
//   - Operation-specific details (secret id, version tag, source, files)
//
// # Usage
//
//	entry := audit.New("rotate")
//	entry.VersionTag = tag
//	if err := audit.Log(outputDir, entry); err != nil {
//		log.Warnf("could not write operation log: %v", err)
//	}
//
// # Failure Handling
//
// Callers treat a failed write as a warning. The secret slot has already
// changed by the time the entry is written, so failing the operation
// would misreport what happened.
//
// # Reading Logs
//
// Use ReadEntries to parse the log for display. Malformed entries are
// skipped to handle partial writes.
package audit
