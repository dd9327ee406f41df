package utils

import "os"

// ParseWithFallback reads name from the environment, returning fallback when
// the variable is unset or empty.
func ParseWithFallback(name string, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}

	return fallback
}
