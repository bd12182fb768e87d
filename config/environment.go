package config

import (
	"fmt"
	"os"
	"strings"
)

// DefaultConfigPath is the configuration file used when -config is not set.
const DefaultConfigPath = "config/config.yml"

const (
	appEnvVar              = "APP_ENV"
	environmentDevelopment = "development"
	environmentProduction  = "production"
	environmentStaging     = "staging"
)

var environmentAliases = map[string]string{
	"dev":  environmentDevelopment,
	"prod": environmentProduction,
	"stag": environmentStaging,
}

// getAppEnvironment reads the application environment from APP_ENV and
// defaults to development when no value is provided.
func getAppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return environmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// envConfigPaths lists the environment specific files that exist on disk.
func envConfigPaths() map[string]string {
	out := make(map[string]string)
	for _, env := range []string{environmentDevelopment, environmentStaging, environmentProduction} {
		candidate := fmt.Sprintf("config/config.%s.yml", env)
		if _, err := os.Stat(candidate); err == nil {
			out[env] = candidate
		}
	}
	return out
}

// resolveEnvSpecificPath selects an environment specific configuration file
// when one is available for the current environment and the caller asked for
// the default file.
func resolveEnvSpecificPath(path, defaultPath string, envPaths map[string]string) string {
	if path == "" {
		path = defaultPath
	}

	env := getAppEnvironment()
	if envPath, ok := envPaths[env]; ok {
		if path == defaultPath || path == envPath {
			return envPath
		}
	}

	return path
}

// AppEnvironment exposes the current application environment as configured
// through the APP_ENV environment variable.
func AppEnvironment() string {
	return getAppEnvironment()
}
