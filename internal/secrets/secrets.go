// Package secrets resolves credentials from config values, environment
// variables and mounted secret files (Docker or Kubernetes secrets).
//
// Secret values are never logged. Errors name the file or variable only.
package secrets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/logger"
)

const (
	// secrets are tokens and passwords, not documents
	maxFileSize = 64 * 1024

	// permission bits that must be clear on a secret file
	groupOtherPerm = 0o077
)

// Expand replaces ${VAR} and ${VAR:-fallback} references with environment
// values. A referenced variable that is unset and has no fallback is an error.
func Expand(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	expanded := os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasFallback {
			return fallback
		}
		missing = append(missing, name)
		return ""
	})

	if len(missing) > 0 {
		return "", errors.Newf("missing environment variable(s): %s", strings.Join(missing, ", ")).
			Category(errors.CategoryConfiguration).
			Context("variables", strings.Join(missing, ",")).
			Build()
	}
	return expanded, nil
}

// ReadFile reads a secret file, trimming trailing newlines.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", errors.NewStd("secret file path is empty")
	}
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return "", errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("path", path).
			Build()
	}
	if !info.Mode().IsRegular() {
		return "", errors.Newf("secret path is not a regular file: %s", path).
			Category(errors.CategoryValidation).
			Build()
	}
	if info.Size() > maxFileSize {
		return "", errors.Newf("secret file larger than %d bytes: %s", maxFileSize, path).
			Category(errors.CategoryLimit).
			Build()
	}
	if perm := info.Mode().Perm(); perm&groupOtherPerm != 0 {
		logger.Global().Module("secrets").Warn("secret file is readable by group or others",
			logger.String("path", path),
			logger.String("mode", perm.String()))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("path", path).
			Build()
	}

	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", errors.Newf("secret file is empty: %s", path).
			Category(errors.CategoryValidation).
			Build()
	}
	return secret, nil
}

// Resolve returns the secret from filePath when set, otherwise value with
// environment references expanded.
func Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		return ReadFile(filePath)
	}
	return Expand(value)
}
