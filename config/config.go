package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the settings file used when none is given.
const DefaultPath = "config.yaml"

// Load reads the settings file at path and resolves it against env.
// Priority, highest first: override variables, ENV, the file, defaults.
func Load(path string, env Environ) (*Settings, error) {
	if path == "" {
		path = DefaultPath
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, NewFileError(path, err)
	}

	envName := env.Get(EnvName)
	if envName == "" {
		envName = EnvLocal
	}
	if err := k.Load(confmap.Provider(map[string]any{"env": envName}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to apply %s: %w", EnvName, err)
	}

	if err := k.Load(envprovider.Provider(".", envprovider.Opt{
		EnvironFunc:   env.Pairs,
		TransformFunc: overrideTransform,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	s.k = k

	// ext_http picks the external target unless HTTPBIN_URL pinned one explicitly
	if s.ExtHTTP && env.Get(EnvHTTPBinURL) == "" && s.ExtBaseURL != "" {
		s.BaseURL = s.ExtBaseURL
	}

	if err := Validate(&s); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}

	return &s, nil
}

// LoadFromOS loads path against the current process environment.
func LoadFromOS(path string) (*Settings, error) {
	return Load(path, OSEnviron())
}

func defaults() map[string]any {
	return map[string]any{
		"base_url":              "http://localhost:80",
		"ext_base_url":          "https://httpbin.org",
		"ext_http":              false,
		"timeout":               5,
		"retry.attempts":        3,
		"retry.backoff_seconds": 1,
		"rabbitmq.url":          "",
		"rabbitmq.queue":        "test_queue",
		"prometheus_url":        "",
		"metrics.enabled":       false,
		"metrics.port":          8001,
		"skip_rabbitmq":         false,
		"log.level":             "info",
		"log.pretty":            false,

		"observability.enabled":      false,
		"observability.service_name": "go-bricks-harness",
		"observability.endpoint":     "stdout",
		"observability.protocol":     "http",
		"observability.sample_rate":  1.0,
	}
}
