package utils

import (
	"os"
	"os/user"
	"regexp"
	"strings"
)

var (
	unsafeFileChars = regexp.MustCompile(`[^a-z0-9\-_.]`)
	repeatedHyphens = regexp.MustCompile(`-+`)
)

// GetUsername returns the current username.
func GetUsername() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// GetHostname returns the system hostname.
func GetHostname() (string, error) {
	return os.Hostname()
}

// SanitizeFileComponent turns an arbitrary name (a record name, a secret ID
// like "sealed-secrets/master-key") into something safe to embed in a file name.
func SanitizeFileComponent(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer(" ", "-", "/", "-", ":", "-").Replace(name)
	name = unsafeFileChars.ReplaceAllString(name, "")
	name = repeatedHyphens.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-.")

	if name == "" {
		name = "master-key"
	}
	return name
}

// Operator returns "user@host" for log entries, falling back to whichever half is known.
func Operator() string {
	username, userErr := GetUsername()
	hostname, hostErr := GetHostname()

	switch {
	case userErr == nil && hostErr == nil:
		return username + "@" + hostname
	case userErr == nil:
		return username
	case hostErr == nil:
		return "unknown@" + hostname
	default:
		return "unknown"
	}
}
