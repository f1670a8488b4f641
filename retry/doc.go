// Package retry provides a bounded-attempt retry policy with linear backoff.
//
// A Retrier runs an operation up to Policy.Attempts times. After a failed
// attempt k (1-based) that the Policy.Retryable predicate accepts, it blocks
// for Policy.Backoff * k before trying again. Failures the predicate rejects
// are returned immediately without sleeping. When every attempt fails the
// error from the last attempt is returned unchanged, so callers can keep
// using errors.Is / errors.As against the original failure.
//
// There is no overall deadline: a started sequence always runs to success,
// a non-retryable failure, or exhaustion.
package retry
