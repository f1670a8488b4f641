// Package testing groups the harness's test support packages.
//
//   - fixtures: synthetic request payloads and query parameters
//   - echoserver: an in-process httpbin-compatible service
//   - mocks: testify mocks for the harness interfaces
//   - containers: testcontainers helpers, built with the integration tag
package testing
