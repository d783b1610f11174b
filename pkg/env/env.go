// Package env reads process settings that must be known before config.Load runs.
package env

import (
	"os"
	"strconv"
	"strings"
)

// String returns the trimmed value of the first key that is set, or fallback.
func String(fallback string, keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return fallback
}

// Bool parses the first key that is set. Unparseable values yield fallback.
func Bool(fallback bool, keys ...string) bool {
	raw := String("", keys...)
	if raw == "" {
		return fallback
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return val
}
