// Package rate provides internal primitives used to build Redis-backed rate
// limit keys, errors, and limiter behavior for the token engine's rotate and
// action-token-issue paths.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - tr: — rotate per-family
//   - ti: — action issue per-subject
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (the engine decides when to call).
//   - Be imported outside the authtokens module.
package rate
