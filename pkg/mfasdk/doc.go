// Package mfasdk is a thin typed HTTP client for the remote multi-factor
// authentication provider. It wraps the provider's REST endpoints
// (challenge, validate, register, status polling, user administration and
// license lookup) as plain request/response calls; all state lives on the
// provider or in the caller.
//
// Every call is a synchronous HTTPS POST with a JSON body, authenticated
// by a per-request signature header (see sign.go). Calls are never
// retried: a failed call surfaces immediately so the login flow gets
// at-most-once semantics against the provider.
//
// Failures are split into two kinds the caller must treat differently:
//
//   - *TransportError: the provider could not be reached or returned
//     garbage. This is an infrastructure problem, not an authentication
//     outcome.
//   - *ProviderError: the provider answered with a well-formed failure.
//
// Certificate verification is on by default. InsecureSkipTLS exists only
// for test environments and logs a warning when set.
package mfasdk
