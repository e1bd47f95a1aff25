package config

import "os"

// ExpandEnv expands environment variables in YAML content using Go's standard library.
// Supports both ${VAR} and $VAR syntax (standard shell-style).
//
// Examples:
//   - ${LLM_API_KEY} → value of LLM_API_KEY environment variable
//   - $STORE_DSN → value of STORE_DSN environment variable
//   - ${REDIS_ADDR}:${REDIS_DB} → address:db with both variables expanded
//
// Missing variables expand to empty string. Validation should catch required fields that are empty.
func ExpandEnv(data []byte) []byte {
	expanded := os.ExpandEnv(string(data))
	return []byte(expanded)
}
