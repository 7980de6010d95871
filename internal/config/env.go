package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup parses key with parse, falling back to def when the variable is unset or
// does not parse. A value that does not parse is logged, not fatal.
func lookup[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		slog.Warn("Ignoring malformed environment variable", "key", key, "value", raw, "error", err)
		return def
	}
	return v
}

// GetEnv returns the environment variable value or a default.
func GetEnv(key, defaultValue string) string {
	return lookup(key, defaultValue, func(s string) (string, error) { return s, nil })
}

// GetIntEnv returns an integer environment variable or a default.
func GetIntEnv(key string, defaultValue int) int {
	return lookup(key, defaultValue, strconv.Atoi)
}

// GetDurationEnv returns a duration environment variable or a default.
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	return lookup(key, defaultValue, time.ParseDuration)
}

// GetBoolEnv returns a boolean environment variable or a default.
func GetBoolEnv(key string, defaultValue bool) bool {
	return lookup(key, defaultValue, strconv.ParseBool)
}

// GetSecretFile reads a secret such as an API key or signing key from a mounted file,
// trimming surrounding whitespace. An empty path yields "". An unreadable file is
// logged and yields "", which leaves the feature using the secret disabled.
func GetSecretFile(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Cannot read secret file", "path", path, "error", err)
		return ""
	}
	return strings.TrimSpace(string(data))
}
