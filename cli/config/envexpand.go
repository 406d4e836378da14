// Package config loads modality-dlt configuration from YAML files, .env
// files and the environment.
package config

import (
	"os"
	"regexp"
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} patterns with environment
// values. ${VAR:-default} falls back when VAR is unset or empty; an unset
// ${VAR} without a default expands to the empty string.
func ExpandEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if value, ok := os.LookupEnv(groups[1]); ok && value != "" {
			return value
		}
		return groups[2]
	})
}
