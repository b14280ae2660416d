package utils

import (
	"strings"

	"github.com/PolarWolf314/sealkeeper/internal/ui"
)

// FormatPaths formats a slice of paths into a readable string.
func FormatPaths(paths []string) string {
	return "\n" + ui.Bullets(ui.Path, paths)
}

// ShortFingerprint abbreviates a colon-separated fingerprint to its first and last groups.
func ShortFingerprint(fp string) string {
	parts := strings.Split(fp, ":")
	if len(parts) <= 8 {
		return fp
	}
	return strings.Join(parts[:4], ":") + "…" + strings.Join(parts[len(parts)-4:], ":")
}
