package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"
	"github.com/PolarWolf314/sealkeeper/internal/utils"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	JSONSuffix = ".json"
	YAMLSuffix = ".yaml"

	tagTimeLayout = "20060102-150405"
)

// Version tag reasons. The first four label archived records in the backup
// slot; issued and recovered only name local mirrors of the new current record.
const (
	ReasonSetup      = "setup"
	ReasonBackup     = "backup"
	ReasonRotated    = "rotated"
	ReasonPreRecover = "pre-recover"
	ReasonIssued     = "issued"
	ReasonRecovered  = "recovered"
)

// VersionTag returns "<reason>-YYYYMMDD-HHMMSS" in UTC.
func VersionTag(reason string, t time.Time) string {
	return reason + "-" + t.UTC().Format(tagTimeLayout)
}

var versionTag = regexp.MustCompile(`^(` + ReasonSetup + `|` + ReasonBackup + `|` + ReasonRotated + `|` + ReasonPreRecover + `)-\d{8}-\d{6}$`)

// IsVersionTag reports whether label is a tag sealkeeper puts on backup slot versions.
func IsVersionTag(label string) bool {
	return versionTag.MatchString(label)
}

// ArtifactBaseName returns the file name stem shared by an artifact's JSON and YAML copies.
func ArtifactBaseName(recordName, tag string) string {
	return utils.SanitizeFileComponent(recordName) + "-" + tag
}

// Artifacts are the local files written for one archived record.
type Artifacts struct {
	JSONPath string
	YAMLPath string
}

// Paths returns the artifact paths in a stable order.
func (a *Artifacts) Paths() []string {
	return []string{a.JSONPath, a.YAMLPath}
}

// WriteArtifacts writes <dir>/<name>-<tag>.json holding raw, the exact secret
// string, and <dir>/<name>-<tag>.yaml holding the manifest mirror.
// When raw is nil the record's canonical JSON is written instead.
func WriteArtifacts(dir string, record *KeyRecord, raw []byte, tag string) (*Artifacts, error) {
	if raw == nil {
		var err error
		raw, err = record.JSON()
		if err != nil {
			return nil, err
		}
	}

	manifest, err := record.YAML()
	if err != nil {
		return nil, err
	}

	base := filepath.Join(dir, ArtifactBaseName(record.Name(), tag))
	artifacts := &Artifacts{
		JSONPath: base + JSONSuffix,
		YAMLPath: base + YAMLSuffix,
	}

	if err := utils.WriteFileSync(artifacts.JSONPath, raw, 0600); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", artifacts.JSONPath, err)
	}
	if err := utils.WriteFileSync(artifacts.YAMLPath, manifest, 0600); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", artifacts.YAMLPath, err)
	}
	return artifacts, nil
}

// FindLatest resolves a path or a doublestar glob to a single file.
// For globs, the match with the newest embedded version-tag timestamp wins.
func FindLatest(pattern string) (string, error) {
	if !hasGlobMeta(pattern) {
		if !utils.FileExists(pattern) {
			return "", fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, pattern)
		}
		return pattern, nil
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}

	var files []string
	for _, m := range matches {
		if utils.FileExists(m) {
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%w: no file matches %s", kerrors.ErrFileNotFound, pattern)
	}

	sortArtifacts(files)
	return files[len(files)-1], nil
}

// ListArtifacts returns all JSON, YAML and encrypted artifacts under dir, oldest first.
func ListArtifacts(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	matches, err := doublestar.FilepathGlob(filepath.Join(dir, "**", "*.{json,yaml,enc}"))
	if err != nil {
		return nil, fmt.Errorf("listing artifacts in %s: %w", dir, err)
	}
	sortArtifacts(matches)
	return matches, nil
}

var tagTimestamp = regexp.MustCompile(`\d{8}-\d{6}`)

// sortArtifacts orders paths by the last version-tag timestamp in their base
// name, then by base name. Names without a timestamp sort first.
func sortArtifacts(paths []string) {
	stamp := func(p string) string {
		found := tagTimestamp.FindAllString(filepath.Base(p), -1)
		if len(found) == 0 {
			return ""
		}
		return found[len(found)-1]
	}
	sort.SliceStable(paths, func(i, j int) bool {
		si, sj := stamp(paths[i]), stamp(paths[j])
		if si != sj {
			return si < sj
		}
		bi, bj := filepath.Base(paths[i]), filepath.Base(paths[j])
		if bi != bj {
			return bi < bj
		}
		return paths[i] < paths[j]
	})
}

func hasGlobMeta(pattern string) bool {
	for _, c := range pattern {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
