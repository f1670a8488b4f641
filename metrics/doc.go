// Package metrics exposes harness counters for Prometheus scraping.
//
// A Recorder owns a private registry so that parallel sessions and tests
// never collide on the global default registerer. Server publishes the
// registry on /metrics as a supervised background task that is stopped
// explicitly with Shutdown.
package metrics
