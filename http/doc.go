// Package http provides the harness's HTTP client for an httpbin-compatible
// echo service.
//
// A Client is bound to a base URL and a per-attempt timeout. Get and Post
// join the base URL (trailing slashes stripped) with a path that must start
// with "/", then run the exchange under a retry.Retrier.
//
// Retries
//   - Default policy: 3 attempts, 1s linear backoff (1s, then 2s).
//   - Only transport failures are retried: NetworkError and TimeoutError.
//   - 4xx/5xx responses complete the exchange and are returned as-is.
//     Callers check the status themselves, use Response.EnsureSuccess, or
//     build the client WithStrictStatus to get an HTTPError alongside the response.
//   - After the last attempt the transport error is returned unchanged.
//   - Validation and interceptor errors, and cancellation of the caller's
//     context, are never retried.
//
// Timeout applies to each attempt independently; nothing bounds the whole
// retry sequence. Request bodies are rebuilt for every attempt.
package http
