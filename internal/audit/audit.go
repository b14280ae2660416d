package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/PolarWolf314/sealkeeper/internal/utils"
)

// LogFileName is the operation log written alongside local artifacts.
const LogFileName = "sealkeeper.log"

// TimestampLayout is the UTC timestamp format of Entry.Timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Entry represents a single operation log entry.
type Entry struct {
	Timestamp string `json:"ts"`       // RFC3339 with microseconds.
	Operator  string `json:"operator"` // user@host that ran the command.
	Operation string `json:"op"`       // Operation name.

	// Optional fields depending on operation.
	SecretID    string   `json:"secret_id,omitempty"`   // Secret slot written to.
	Record      string   `json:"record,omitempty"`      // metadata.name of the key record.
	VersionTag  string   `json:"version_tag,omitempty"` // For archive writes.
	VersionID   string   `json:"version_id,omitempty"`  // Secrets Manager version written.
	Source      string   `json:"source,omitempty"`      // For recover.
	Fingerprint string   `json:"fingerprint,omitempty"` // Certificate now in the current slot.
	Previous    string   `json:"previous,omitempty"`    // For rotate/recover.
	Files       []string `json:"files,omitempty"`       // Local artifacts written.
	Uploaded    []string `json:"uploaded,omitempty"`    // s3:// URIs written.
	Encrypted   bool     `json:"encrypted,omitempty"`   // For backup.
}

// New returns an entry for op with the operator pre-populated.
func New(op string) Entry {
	return Entry{Operation: op, Operator: utils.Operator()}
}

// Log appends an entry to dir/sealkeeper.log.
// If logging fails, it returns the error but callers only warn about it.
// Operations should not fail just because the log could not be written.
func Log(dir string, entry Entry) error {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(TimestampLayout)
	}

	if err := utils.EnsureDir(dir); err != nil {
		return err
	}

	f, err := os.OpenFile(LogPath(dir), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	_, err = f.Write(append(data, '\n'))
	return err
}

// LogPath returns the path to the operation log in dir.
func LogPath(dir string) string {
	return filepath.Join(dir, LogFileName)
}

// ReadEntries reads all entries from the operation log in dir.
// Returns an empty slice if the log doesn't exist.
func ReadEntries(dir string) ([]Entry, error) {
	data, err := os.ReadFile(LogPath(dir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return ParseEntries(data)
}

// ParseEntries parses JSON Lines data into log entries.
// Malformed lines are silently skipped.
func ParseEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	start := 0

	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1

			if len(line) == 0 {
				continue
			}

			var entry Entry
			if err := json.Unmarshal(line, &entry); err != nil {
				// Skip partial writes.
				continue
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}
