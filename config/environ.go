package config

import (
	"os"
	"strings"
)

// Recognized environment variables
const (
	EnvName          = "ENV"
	EnvHTTPBinURL    = "HTTPBIN_URL"
	EnvRabbitMQURL   = "RABBITMQ_URL"
	EnvPrometheusURL = "PROMETHEUS_URL"
)

// EnvLocal is the value of Settings.Env when ENV is unset or empty.
const EnvLocal = "local"

// overrideKeys maps override variables to settings paths.
var overrideKeys = map[string]string{
	EnvHTTPBinURL:    "base_url",
	EnvRabbitMQURL:   "rabbitmq.url",
	EnvPrometheusURL: "prometheus_url",
}

// Environ is a snapshot of environment variables, name to value.
type Environ map[string]string

// OSEnviron captures the current process environment.
func OSEnviron() Environ {
	return ParseEnviron(os.Environ())
}

// ParseEnviron builds an Environ from KEY=VALUE pairs. Entries without '=' are ignored.
func ParseEnviron(pairs []string) Environ {
	env := make(Environ, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

// Get returns the value of key, or "" when absent. Safe on a nil Environ.
func (e Environ) Get(key string) string {
	return e[key]
}

// Pairs renders the snapshot as KEY=VALUE strings.
func (e Environ) Pairs() []string {
	pairs := make([]string, 0, len(e))
	for k, v := range e {
		pairs = append(pairs, k+"="+v)
	}
	return pairs
}

// overrideTransform keeps only recognized, non-empty override variables and
// renames them to their settings path.
func overrideTransform(key, value string) (string, any) {
	path, ok := overrideKeys[key]
	if !ok || value == "" {
		return "", nil
	}
	return path, value
}
