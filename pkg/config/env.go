package config

import (
	"os"
	"strings"
)

// GetString retrieves an environment variable or returns a fallback when unset or blank.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

// ParseBool reports whether v spells true. Only "true" and "1" do; every
// other value, including an empty one, is false.
func ParseBool(v string) bool {
	switch strings.TrimSpace(v) {
	case "true", "1":
		return true
	default:
		return false
	}
}
