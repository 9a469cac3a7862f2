// Package token creates and verifies the signed tokens used by the engine:
// short-lived access tokens, rotating refresh tokens, and single-use action
// tokens (password reset, email verification, signup verification).
//
// Tokens are self-contained JWTs (HS256 or Ed25519) carrying the subject,
// a [Kind] tag, a unique token identifier (jti), and — for refresh tokens —
// the family identifier shared by every token descended from one login.
// Verification here is structural only: signature, expiry, shape. Whether a
// refresh or action token is still live is a separate store lookup owned by
// the engine; access tokens are never persisted and need no lookup at all.
package token
