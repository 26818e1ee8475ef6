// Package secrets resolves credentials from ${VAR} references or mounted
// secret files (Docker and Kubernetes secrets). Secret values are never logged.
package secrets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/logger"
)

// maxFileSize bounds secret file reads; keys and passwords are small.
const maxFileSize = 64 * 1024

// ExpandString expands ${VAR} and ${VAR:-default} references in s.
// A referenced variable that is unset and has no default is an error.
func ExpandString(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	expanded := os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if value := os.Getenv(name); value != "" {
			return value
		}
		if hasFallback {
			return fallback
		}
		missing = append(missing, name)
		return ""
	})

	if len(missing) > 0 {
		return "", errors.Newf("missing required environment variable(s): %s", strings.Join(missing, ", ")).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return expanded, nil
}

// ReadFile reads a secret file, trimming trailing newlines. Files readable by
// group or others are accepted with a warning.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", fileError("secret file path is empty", path, nil)
	}
	clean := filepath.Clean(path)

	info, err := os.Stat(clean)
	switch {
	case os.IsNotExist(err):
		return "", fileError("secret file not found", clean, nil)
	case err != nil:
		return "", fileError("cannot stat secret file", clean, err)
	case !info.Mode().IsRegular():
		return "", fileError("secret path is not a regular file", clean, nil)
	case info.Size() > maxFileSize:
		return "", fileError("secret file too large", clean, nil)
	}

	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Global().Module("secrets").Warn("secret file is readable by group or others",
			logger.String("path", clean),
			logger.String("mode", perm.String()))
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return "", fileError("cannot read secret file", clean, err)
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fileError("secret file is empty", clean, nil)
	}
	return secret, nil
}

// Resolve returns the secret from filePath when set, otherwise value with
// environment references expanded. Both empty resolves to "".
func Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		return ReadFile(filePath)
	}
	return ExpandString(value)
}

func fileError(msg, path string, cause error) error {
	var b *errors.ErrorBuilder
	if cause != nil {
		b = errors.Newf("%s %s: %w", msg, path, cause)
	} else {
		b = errors.Newf("%s: %s", msg, path)
	}
	return b.Component("secrets").
		Category(errors.CategoryFileIO).
		Context("path", path).
		Build()
}
