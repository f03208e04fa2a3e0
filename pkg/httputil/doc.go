// Package httputil provides retry support for Keyline's HTTP clients.
//
// [Retry] wraps idempotent requests with automatic retry for transient
// failures. Callers mark an error as transient by wrapping it in
// [RetryableError]; anything else returns immediately. Backoff is
// exponential, starting from the caller's initial delay.
//
// The data API resolver retries GETs this way; entity store writes are
// never retried here because the save cycle has its own retry semantics
// (a dirty session re-upserts everything on the next save).
package httputil
