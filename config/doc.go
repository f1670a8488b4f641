// Package config loads harness settings from a YAML file and an explicit
// environment snapshot.
//
// Sources are layered with koanf, lowest priority first:
//  1. built-in defaults
//  2. the YAML settings file (required; a missing or malformed file is fatal)
//  3. the ENV variable, which always sets Settings.Env (default "local")
//  4. HTTPBIN_URL, RABBITMQ_URL and PROMETHEUS_URL when present and non-empty
//
// Load never reads the process environment itself. Callers pass an Environ
// snapshot, usually OSEnviron(), which keeps loading deterministic in tests.
// Nothing is cached; every call re-reads the file.
package config
