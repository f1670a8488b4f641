// Package messaging talks to an AMQP 0-9-1 broker for the harness.
//
// QueueClient is a short-lived connection used by smoke tests to declare a
// throwaway queue, publish one message and fetch it back. Probe decides whether
// any broker is reachable at all; its failures are never surfaced as errors,
// only as an unavailable result that callers turn into a skipped test.
package messaging
