// Package workflows provides high-level orchestration for sealkeeper commands.
//
// Workflows coordinate multiple operations across packages (cloud, secrets,
// audit) to implement complete user-facing features. Each workflow handles
// a single command's business logic, independent of CLI concerns like flag
// parsing, spinners, prompts, and output formatting.
//
// # Design Philosophy
//
// The cmd/ package should be a thin layer that:
//   - Parses command-line flags and arguments
//   - Loads configuration and builds an Env
//   - Asks for confirmation before destructive steps
//   - Calls the appropriate workflow function
//   - Formats the result for display
//
// Workflows handle everything else:
//   - Reading and validating key records
//   - Archiving the current record before it is overwritten
//   - Writing the secret slots, local files and object storage
//   - Recording operation log entries
//
// # Available Workflows
//
//   - Setup: Generates the first master key, archiving any existing one
//   - Backup: Copies the current key to disk, the backup slot and S3
//   - Rotate: Issues a new key pair under the same record name
//   - Recover: Restores the current key from a file, S3 or a backup version
//   - Versions: Lists archived versions in the backup slot
//   - Status: Reports what the current and backup slots hold
//   - Doctor: Runs health checks on credentials, slots and local files
//   - Decrypt: Decrypts an encrypted backup
//   - Log: Reads and filters the operation log
//
// # Archiving
//
// Every workflow that overwrites the current slot first copies the old
// record into the backup slot under a version tag (backup-, rotated- or
// pre-recover-<UTC timestamp>) and writes it to the output directory. If
// archiving fails the current slot is left untouched.
//
// # Error Handling
//
// Workflows return typed errors from the internal/errors package, allowing
// the CLI layer to provide appropriate user-facing messages without string
// matching. Use errors.Is() to check for specific error conditions:
//
//	result, err := workflows.Backup(ctx, env, opts)
//	if errors.Is(err, kerrors.ErrRecordNotFound) {
//	    // Suggest running setup
//	}
//
// # Context Usage
//
// All workflow functions accept a context.Context as their first parameter.
// Every AWS call made on behalf of a workflow uses it.
package workflows
