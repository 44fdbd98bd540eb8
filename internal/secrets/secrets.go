// Package secrets resolves credentials given as literals, ${VAR} references
// or mounted secret files, so broker passwords and DSNs stay out of config files.
package secrets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ringneck/libwebphone/internal/errors"
	"github.com/ringneck/libwebphone/internal/logger"
)

const componentName = "secrets"

// maxFileSize bounds secret files; credentials are small.
const maxFileSize = 64 * 1024

// ExpandString replaces ${VAR} and ${VAR:-fallback} references with
// environment values. A reference without a fallback to an unset or empty
// variable is an error naming the variable, never its value.
func ExpandString(s string) (string, error) {
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
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}
	return expanded, nil
}

// ReadFile reads a secret file such as /run/secrets/mqtt_password. Trailing
// newlines are trimmed and an empty file is an error. Files readable by group
// or others are accepted with a warning.
func ReadFile(path string) (string, error) {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return "", fileError(err, path, "stat")
	}
	if !info.Mode().IsRegular() {
		return "", errors.Newf("secret path is not a regular file").
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Context("path", path).
			Build()
	}
	if info.Size() > maxFileSize {
		return "", errors.Newf("secret file larger than %d bytes", maxFileSize).
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Context("path", path).
			Build()
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Global().Module(componentName).Warn("secret file is readable by group or others",
			logger.String("path", path),
			logger.String("mode", perm.String()))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fileError(err, path, "read")
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", errors.Newf("secret file is empty").
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Context("path", path).
			Build()
	}
	return secret, nil
}

func fileError(err error, path, op string) error {
	return errors.New(err).
		Component(componentName).
		Category(errors.CategoryFileIO).
		Context("path", path).
		Context("operation", op).
		Build()
}

// Resolve prefers filePath when set, then value with ${VAR} expansion.
// Both empty resolves to an empty secret.
func Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		return ReadFile(filePath)
	}
	if value == "" {
		return "", nil
	}
	return ExpandString(value)
}
