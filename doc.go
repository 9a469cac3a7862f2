// Package authtokens is the refresh-token lifecycle core of a credential
// and session-management backend: issuance, rotation, family-based
// revocation, theft detection, and the single-use action tokens (password
// reset, email verification, signup verification) that share the same store.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authtokens is the public surface. It exposes [Engine], [Builder],
// [Config], sentinel errors, and value types (TokenPair, AuditEvent,
// MetricsSnapshot). Credential checks, transports, and email delivery are
// collaborators: identity verification hands the engine a subject, the
// engine hands back tokens, and a separate authentication gate validates
// access tokens with [Engine.ValidateAccess] alone — access tokens are
// never persisted.
//
// # Security contract
//
// Rotation is strictly linear: each refresh token is consumed exactly once
// by a single conditional storage operation, so two concurrent uses of the
// same token resolve to one winner even across engine instances. A token
// that arrives already consumed (or never existed) is treated as theft:
// the whole family descending from that login is revoked before the error
// is returned, and other families of the same subject stay untouched.
// Store outages are surfaced as [ErrStoreUnavailable], never as token
// invalidity, so an infrastructure incident cannot revoke sessions.
package authtokens
